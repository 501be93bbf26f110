package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/talos/internal/contracts"
	"github.com/wonny/talos/internal/execution"
	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/internal/market"
	"github.com/wonny/talos/internal/signal"
	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/logger"
)

const defaultBusSize = 256

// AgentInfo is a point-in-time snapshot of one agent
type AgentInfo struct {
	Name    string      `json:"name"`
	Status  string      `json:"status"`
	Mode    string      `json:"mode"`
	Symbols []string    `json:"symbols"`
	Config  AgentConfig `json:"config"`
}

// Manager builds and supervises the agent set
// ⭐ SSOT: 에이전트 생성과 수명주기 관리는 매니저에서만
type Manager struct {
	cfg     *config.Config
	logger  *logger.Logger
	cfgPath string

	bus      *signal.Bus
	feed     *market.Feed
	exchange contracts.Exchange
	ledger   *ledger.Ledger
	kill     *execution.KillSwitch

	mu        sync.Mutex
	agentCfgs AgentConfigs
	sups      map[string]*Supervisor
}

// NewManager loads agents.json and builds the agent set over the shared
// bus, feed, exchange and ledger.
func NewManager(cfg *config.Config, cfgPath string, feed *market.Feed, exchange contracts.Exchange,
	led *ledger.Ledger, kill *execution.KillSwitch, log *logger.Logger) (*Manager, error) {

	if cfgPath == "" {
		cfgPath = "agents.json"
	}
	if log == nil {
		log = logger.Nop()
	}

	agentCfgs, err := loadConfigs(cfgPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		logger:    log,
		cfgPath:   cfgPath,
		bus:       signal.New(defaultBusSize, log),
		feed:      feed,
		exchange:  exchange,
		ledger:    led,
		kill:      kill,
		agentCfgs: agentCfgs,
		sups:      make(map[string]*Supervisor),
	}

	m.buildAll()
	return m, nil
}

// buildAll constructs supervisors for every enabled agent.
// Callers must hold no running agents; Rebuild stops them first.
func (m *Manager) buildAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	syms := m.cfg.Trading.AllowedSymbols
	m.sups = make(map[string]*Supervisor)

	// agents without an explicit qty trade the configured order size
	for name, c := range m.agentCfgs {
		if c.Qty <= 0 {
			c.Qty = m.cfg.Trading.OrderSize
			m.agentCfgs[name] = c
		}
	}

	if c, ok := m.agentCfgs["market_scanner"]; ok && c.Enabled {
		m.sups["market_scanner"] = NewSupervisor(
			NewScanner(syms, c, m.feed, m.bus, m.logger), m.logger)
	}
	if c, ok := m.agentCfgs["depth"]; ok && c.Enabled {
		m.sups["depth"] = NewSupervisor(
			NewDepth(syms, c, m.feed, m.bus, m.logger), m.logger)
	}
	if c, ok := m.agentCfgs["indicator"]; ok && c.Enabled {
		m.sups["indicator"] = NewSupervisor(
			NewIndicator(syms, c, m.cfg.Trading.LongOnly, m.feed, m.bus, m.logger), m.logger)
	}
	if c, ok := m.agentCfgs["execution"]; ok && c.Enabled {
		engine := execution.New(m.cfg.Trading, m.cfg.Execution, m.cfg.IsLive(),
			m.bus, m.feed, m.exchange, m.ledger, m.kill, m.logger)
		m.sups["execution"] = NewSupervisor(engine, m.logger)
	}

	names := make([]string, 0, len(m.sups))
	for n := range m.sups {
		names = append(names, n)
	}
	sort.Strings(names)

	m.logger.WithFields(map[string]interface{}{
		"agents":  names,
		"symbols": syms,
		"mode":    m.cfg.Trading.Mode,
	}).Info("Built agents")
}

// Start starts one agent by name
func (m *Manager) Start(name string) error {
	sup, ok := m.supervisor(name)
	if !ok {
		return fmt.Errorf("unknown agent: %s", name)
	}
	sup.Start()
	return nil
}

// Stop stops one agent by name
func (m *Manager) Stop(name string) error {
	sup, ok := m.supervisor(name)
	if !ok {
		return fmt.Errorf("unknown agent: %s", name)
	}
	sup.Stop()
	return nil
}

// StartAll starts every built agent
func (m *Manager) StartAll() {
	for _, sup := range m.supervisors() {
		sup.Start()
	}
	m.logger.Info("All agents started")
}

// StopAll stops every built agent
func (m *Manager) StopAll() {
	for _, sup := range m.supervisors() {
		sup.Stop()
	}
	m.logger.Info("All agents stopped")
}

// List returns a snapshot of every agent, sorted by name
func (m *Manager) List() []AgentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AgentInfo, 0, len(m.sups))
	for name, sup := range m.sups {
		out = append(out, AgentInfo{
			Name:    name,
			Status:  string(sup.State()),
			Mode:    m.cfg.Trading.Mode,
			Symbols: m.cfg.Trading.AllowedSymbols,
			Config:  m.agentCfgs[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rebuild stops all agents, reloads agents.json and reconstructs the
// agent set. State is never swapped underneath a running loop.
func (m *Manager) Rebuild() error {
	m.StopAll()

	agentCfgs, err := loadConfigs(m.cfgPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.agentCfgs = agentCfgs
	m.mu.Unlock()

	m.buildAll()
	return nil
}

// Bus returns the shared signal bus
func (m *Manager) Bus() *signal.Bus { return m.bus }

// Ledger returns the shared position ledger
func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

// Feed returns the shared market data feed
func (m *Manager) Feed() *market.Feed { return m.feed }

// Kill returns the shared kill switch
func (m *Manager) Kill() *execution.KillSwitch { return m.kill }

func (m *Manager) supervisor(name string) (*Supervisor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sup, ok := m.sups[name]
	return sup, ok
}

func (m *Manager) supervisors() []*Supervisor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Supervisor, 0, len(m.sups))
	for _, sup := range m.sups {
		out = append(out, sup)
	}
	return out
}
