package signal

import (
	"sync"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/pkg/logger"
)

// DefaultQueueSize is the per-subscriber bounded queue capacity.
const DefaultQueueSize = 256

// Subscription is a handle to a subscriber's intent queue.
type Subscription struct {
	ch     chan contracts.Intent
	closed bool
}

// C returns the receive channel for this subscription.
func (s *Subscription) C() <-chan contracts.Intent {
	return s.ch
}

// Bus delivers trade intents from many producers to many consumers
// ⭐ SSOT: Agent → Execution 신호는 반드시 버스를 통해서만 전달
//
// Each subscriber owns a bounded queue. Publish never blocks the
// publisher: on overflow the OLDEST queued intent is dropped, since a
// stale intent is worse than a lost one.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	size    int
	log     *logger.Logger
	dropped uint64
}

// New creates a bus with the given per-subscriber queue capacity.
// size <= 0 falls back to DefaultQueueSize.
func New(size int, log *logger.Logger) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		subs: make(map[*Subscription]struct{}),
		size: size,
		log:  log,
	}
}

// Subscribe registers a new subscriber. It receives every intent
// published after this call; no history is replayed.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan contracts.Intent, b.size)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscriber and closes its queue. Intents
// still queued for the removed handle are discarded without error.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	sub.closed = true
	close(sub.ch)
}

// Publish enqueues the intent for every current subscriber without
// blocking. Per-subscriber FIFO in publish order; no ordering is
// promised across subscribers.
func (b *Bus) Publish(intent contracts.Intent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- intent:
		default:
			// Queue full: evict the oldest, then enqueue.
			select {
			case old := <-sub.ch:
				b.dropped++
				b.log.WithFields(map[string]interface{}{
					"symbol": old.Symbol,
					"side":   old.Side,
					"reason": old.Reason,
				}).Warn("Signal queue full, dropped oldest intent")
			default:
			}
			select {
			case sub.ch <- intent:
			default:
			}
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns the total number of intents evicted due to overflow.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
