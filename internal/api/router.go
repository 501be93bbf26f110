package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/talos/internal/api/handlers"
	"github.com/wonny/talos/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(agentHandler *handlers.AgentHandler, tradingHandler *handlers.TradingHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Agent lifecycle
	api.HandleFunc("/agents", agentHandler.List).Methods("GET")
	api.HandleFunc("/agents/start_all", agentHandler.StartAll).Methods("POST")
	api.HandleFunc("/agents/stop_all", agentHandler.StopAll).Methods("POST")
	api.HandleFunc("/agents/start/{name}", agentHandler.Start).Methods("POST")
	api.HandleFunc("/agents/stop/{name}", agentHandler.Stop).Methods("POST")
	api.HandleFunc("/agents/rebuild", agentHandler.Rebuild).Methods("POST")

	// UI compatibility endpoints
	api.HandleFunc("/agents/start", agentHandler.StartAll).Methods("POST")
	api.HandleFunc("/agents/stop", agentHandler.StopAll).Methods("POST")

	// Kill switch
	api.HandleFunc("/kill", agentHandler.GetKill).Methods("GET")
	api.HandleFunc("/kill/set", agentHandler.SetKill).Methods("POST")
	api.HandleFunc("/kill/clear", agentHandler.ClearKill).Methods("POST")

	// Trading snapshots
	api.HandleFunc("/build", tradingHandler.GetBuild).Methods("GET")
	api.HandleFunc("/status", tradingHandler.GetStatus).Methods("GET")
	api.HandleFunc("/positions", tradingHandler.GetPositions).Methods("GET")
	api.HandleFunc("/pnl", tradingHandler.GetPnL).Methods("GET")
	api.HandleFunc("/trades", tradingHandler.GetTrades).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "talos-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
