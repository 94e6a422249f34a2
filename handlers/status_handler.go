package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/services/breaker"
	"github.com/brightline-ai/enhance-gateway/services/orchestrator"
	"github.com/brightline-ai/enhance-gateway/services/stats"
	"github.com/brightline-ai/enhance-gateway/services/usage"
	"github.com/brightline-ai/enhance-gateway/utils"
)

// ProviderStatus is one provider's health summary
type ProviderStatus struct {
	Circuit            string  `json:"circuit"`
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	AverageLatencyMs   float64 `json:"average_latency_ms"`
	LastRequestAt      string  `json:"last_request_at,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status
type StatusResponse struct {
	Providers    map[string]ProviderStatus `json:"providers"`
	UsageCircuit string                    `json:"usage_circuit"`
	Timestamp    string                    `json:"timestamp"`
}

// StatusHandler reports per-provider circuit and traffic statistics
type StatusHandler struct {
	orchestrator *orchestrator.Service
	tracker      *stats.Tracker
	recorder     *usage.Recorder
	logger       *zap.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(orch *orchestrator.Service, tracker *stats.Tracker, recorder *usage.Recorder, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		orchestrator: orch,
		tracker:      tracker,
		recorder:     recorder,
		logger:       logger,
	}
}

// HandleStatus handles GET /api/v1/status
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	breakers := h.orchestrator.BreakerStates()
	snapshots := h.tracker.AllSnapshots()

	providers := make(map[string]ProviderStatus)
	for name, br := range breakers {
		st := ProviderStatus{Circuit: br.State.String()}
		if snap, ok := snapshots[name]; ok {
			st.TotalRequests = snap.TotalRequests
			st.SuccessfulRequests = snap.SuccessfulRequests
			st.FailedRequests = snap.FailedRequests
			st.AverageLatencyMs = float64(snap.AverageLatency) / float64(time.Millisecond)
			if !snap.LastRequestTime.IsZero() {
				st.LastRequestAt = snap.LastRequestTime.UTC().Format(time.RFC3339)
			}
		}
		providers[name] = st
	}
	// Providers with traffic but no breaker yet (never dispatched to) still
	// show their stats.
	for name, snap := range snapshots {
		if _, ok := providers[name]; ok {
			continue
		}
		providers[name] = ProviderStatus{
			Circuit:            breaker.StateClosed.String(),
			TotalRequests:      snap.TotalRequests,
			SuccessfulRequests: snap.SuccessfulRequests,
			FailedRequests:     snap.FailedRequests,
			AverageLatencyMs:   float64(snap.AverageLatency) / float64(time.Millisecond),
		}
	}

	_ = utils.WriteOK(w, StatusResponse{
		Providers:    providers,
		UsageCircuit: h.recorder.BreakerState().State.String(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}
