package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/middleware"
	"github.com/brightline-ai/enhance-gateway/services/orchestrator"
	"github.com/brightline-ai/enhance-gateway/services/usage"
	"github.com/brightline-ai/enhance-gateway/utils"
)

// idempotencyKeyHeader lets clients retry safely: two requests with the same
// key are accounted once.
const idempotencyKeyHeader = "X-Idempotency-Key"

// EnhanceRequest is the request body for POST /api/v1/enhance
type EnhanceRequest struct {
	Text    string `json:"text" validate:"required,min=1,max=10000"`
	Profile string `json:"profile,omitempty" validate:"omitempty,oneof=professional casual concise friendly"`
}

// EnhanceResponse is the response body for POST /api/v1/enhance
type EnhanceResponse struct {
	Output    string        `json:"output"`
	Provider  string        `json:"provider"`
	Degraded  bool          `json:"degraded"`
	LatencyMs int64         `json:"latency_ms"`
	Usage     *UsageSummary `json:"usage,omitempty"`
}

// UsageSummary reports the caller's accounting state after this request
type UsageSummary struct {
	PeriodCount int64  `json:"period_count"`
	TotalCount  int64  `json:"total_count"`
	Tier        string `json:"tier"`
}

// EnhanceHandler handles text enhancement requests
type EnhanceHandler struct {
	orchestrator *orchestrator.Service
	recorder     *usage.Recorder
	period       usage.Period
	logger       *zap.Logger
}

// NewEnhanceHandler creates a new EnhanceHandler
func NewEnhanceHandler(orch *orchestrator.Service, recorder *usage.Recorder, period usage.Period, logger *zap.Logger) *EnhanceHandler {
	return &EnhanceHandler{
		orchestrator: orch,
		recorder:     recorder,
		period:       period,
		logger:       logger,
	}
}

// HandleEnhance handles POST /api/v1/enhance.
// Admission (rate limit middleware, allowance gate) happens before dispatch;
// accounting happens after, and always, regardless of the gate's earlier
// answer for a request already in flight.
func (h *EnhanceHandler) HandleEnhance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req EnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		var vErr *utils.ValidationError
		if errors.As(err, &vErr) {
			_ = utils.WriteBadRequest(w, vErr.Message, vErr.Details())
			return
		}
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	claims := middleware.GetClaimsFromContext(ctx)

	if claims != nil {
		allowed, remaining := h.recorder.CheckAllowance(ctx, claims.Sub, h.period)
		if !allowed {
			h.logger.Info("allowance exhausted",
				zap.String("request_id", requestID),
				zap.String("user_id", claims.Sub))
			_ = utils.WritePaymentRequired(w, "", map[string]interface{}{
				"remaining": remaining,
			})
			return
		}
	}

	result := h.orchestrator.Enhance(ctx, req.Text, req.Profile)

	resp := EnhanceResponse{
		Output:    result.Output,
		Provider:  result.Provider,
		Degraded:  result.Degraded,
		LatencyMs: result.Latency.Milliseconds(),
	}

	if claims != nil {
		idemKey := r.Header.Get(idempotencyKeyHeader)
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
		rec := h.recorder.Record(ctx, claims.Sub, idemKey, h.period)
		resp.Usage = &UsageSummary{
			PeriodCount: rec.PeriodCount,
			TotalCount:  rec.TotalCount,
			Tier:        string(rec.Tier),
		}
	}

	h.logger.Info("enhancement served",
		zap.String("request_id", requestID),
		zap.String("provider", result.Provider),
		zap.Bool("degraded", result.Degraded),
		zap.Duration("latency", result.Latency))

	_ = utils.WriteJSON(w, http.StatusOK, resp)
}
