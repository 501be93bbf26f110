package execution

import (
	"sync"
	"time"
)

// KillSwitch is the process-wide trading halt flag
// ⭐ SSOT: 킬 스위치 상태는 여기서만 관리, 자동 해제 없음
//
// Set by the risk gate on a daily loss breach or by an operator. Once
// set, the Execution Engine refuses all new orders until Clear is
// called explicitly. Queryable at any time, including while the
// engine is stopped.
type KillSwitch struct {
	mu       sync.RWMutex
	active   bool
	reason   string
	trippedA time.Time
}

// NewKillSwitch creates a kill switch in the cleared state
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Set activates the kill switch with a reason. Setting an already
// active switch keeps the original reason.
func (k *KillSwitch) Set(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active {
		return
	}
	k.active = true
	k.reason = reason
	k.trippedA = time.Now().UTC()
}

// Clear deactivates the kill switch
func (k *KillSwitch) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = false
	k.reason = ""
	k.trippedA = time.Time{}
}

// Active reports whether trading is halted
func (k *KillSwitch) Active() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// State returns the current flag with the trip reason
func (k *KillSwitch) State() (bool, string) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active, k.reason
}

// TrippedAt returns when the switch was set, zero if cleared
func (k *KillSwitch) TrippedAt() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.trippedA
}
