package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// AgentConfig holds per-agent tuning knobs loaded from agents.json
type AgentConfig struct {
	Enabled         bool    `json:"enabled"`
	IntervalSec     float64 `json:"interval_sec,omitempty"`
	MomThresh       float64 `json:"mom_thresh,omitempty"`
	ImbalanceThresh float64 `json:"imbalance_thresh,omitempty"`
	Qty             float64 `json:"qty,omitempty"`
}

// interval converts the configured seconds to a duration with a fallback
func (c AgentConfig) interval(def time.Duration) time.Duration {
	if c.IntervalSec <= 0 {
		return def
	}
	return time.Duration(c.IntervalSec * float64(time.Second))
}

// AgentConfigs maps agent name to its configuration
type AgentConfigs map[string]AgentConfig

// defaultConfigs returns the shipped agent set: indicator and execution
// on, scanner and depth off.
func defaultConfigs() AgentConfigs {
	return AgentConfigs{
		"market_scanner": {Enabled: false, IntervalSec: 2, MomThresh: 0.25},
		"depth":          {Enabled: false, IntervalSec: 3, ImbalanceThresh: 0.60},
		"indicator":      {Enabled: true, IntervalSec: 2},
		"execution":      {Enabled: true},
	}
}

// loadConfigs reads agents.json, writing defaults if the file is missing
func loadConfigs(path string) (AgentConfigs, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfgs := defaultConfigs()
		out, err := json.MarshalIndent(cfgs, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal default agent config: %w", err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("write default agent config: %w", err)
		}
		return cfgs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}

	var cfgs AgentConfigs
	if err := json.Unmarshal(data, &cfgs); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	return cfgs, nil
}
