package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// HealthServer provides the coordinator's HTTP health endpoint.
type HealthServer struct {
	client    *taskboard.Client
	publisher publisher
	addr      string
	server    *http.Server
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	MQTT   string `json:"mqtt,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a new health check server. The publisher may be nil
// when MQTT is not configured.
func NewHealthServer(client *taskboard.Client, pub publisher, addr string) *HealthServer {
	return &HealthServer{
		client:    client,
		publisher: pub,
		addr:      addr,
	}
}

// Start starts the HTTP health check server in the background.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Health server error: %v\n", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK when Redis is reachable; a degraded MQTT connection is
// reported in the body but does not fail the check, since the board itself
// still works without the UNS.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy"}

	if err := h.client.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(response)
		return
	}
	response.Redis = "connected"

	if h.publisher != nil {
		if h.publisher.Connected() {
			response.MQTT = "connected"
		} else {
			response.MQTT = "disconnected"
			response.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
