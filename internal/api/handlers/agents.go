package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/talos/internal/agent"
	"github.com/wonny/talos/internal/execution"
	"github.com/wonny/talos/pkg/logger"
)

// AgentHandler handles agent lifecycle API endpoints
// ⭐ SSOT: 에이전트 제어 API는 이 핸들러에서만
type AgentHandler struct {
	manager *agent.Manager
	kill    *execution.KillSwitch
	logger  *logger.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(manager *agent.Manager, kill *execution.KillSwitch, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		manager: manager,
		kill:    kill,
		logger:  log,
	}
}

// List returns every agent with its current status
// GET /api/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.List())
}

// StartAll starts every agent. Refused while the kill switch is set.
// POST /api/agents/start_all, POST /api/agents/start
func (h *AgentHandler) StartAll(w http.ResponseWriter, r *http.Request) {
	if h.kill.Active() {
		respondError(w, http.StatusConflict, "Kill switch enabled")
		return
	}

	h.manager.StartAll()

	started := make([]string, 0)
	for _, info := range h.manager.List() {
		started = append(started, info.Name)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"started": started,
	})
}

// StopAll stops every agent
// POST /api/agents/stop_all, POST /api/agents/stop
func (h *AgentHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	h.manager.StopAll()

	stopped := make([]string, 0)
	for _, info := range h.manager.List() {
		stopped = append(stopped, info.Name)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"stopped": stopped,
	})
}

// Start starts one agent by name
// POST /api/agents/start/{name}
func (h *AgentHandler) Start(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !h.knownAgent(name) {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}
	if h.kill.Active() {
		respondError(w, http.StatusConflict, "Kill switch enabled")
		return
	}

	if err := h.manager.Start(name); err != nil {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Stop stops one agent by name
// POST /api/agents/stop/{name}
func (h *AgentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !h.knownAgent(name) {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}

	if err := h.manager.Stop(name); err != nil {
		respondError(w, http.StatusNotFound, "Agent not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Rebuild stops all agents, reloads agents.json and rebuilds the set
// POST /api/agents/rebuild
func (h *AgentHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Rebuild(); err != nil {
		h.logger.WithError(err).Error("Agent rebuild failed")
		respondError(w, http.StatusInternalServerError, "Rebuild failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"agents": h.manager.List(),
	})
}

// GetKill returns kill switch state
// GET /api/kill
func (h *AgentHandler) GetKill(w http.ResponseWriter, r *http.Request) {
	active, reason := h.kill.State()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active": active,
		"reason": reason,
	})
}

// SetKill activates the kill switch
// POST /api/kill/set
func (h *AgentHandler) SetKill(w http.ResponseWriter, r *http.Request) {
	h.kill.Set("operator")
	h.logger.Warn("Kill switch set by operator")
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true, "active": true})
}

// ClearKill deactivates the kill switch
// POST /api/kill/clear
func (h *AgentHandler) ClearKill(w http.ResponseWriter, r *http.Request) {
	h.kill.Clear()
	h.logger.Info("Kill switch cleared by operator")
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true, "active": false})
}

func (h *AgentHandler) knownAgent(name string) bool {
	for _, info := range h.manager.List() {
		if info.Name == name {
			return true
		}
	}
	return false
}
