package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/middleware"
	"github.com/brightline-ai/enhance-gateway/services"
	"github.com/brightline-ai/enhance-gateway/services/usage"
	"github.com/brightline-ai/enhance-gateway/utils"
)

// UsageResponse is the response body for GET /api/v1/usage/me
type UsageResponse struct {
	UserID       string `json:"user_id"`
	Tier         string `json:"tier"`
	TotalCount   int64  `json:"total_count"`
	PeriodCount  int64  `json:"period_count"`
	PeriodAnchor string `json:"period_anchor,omitempty"`
	Remaining    int64  `json:"remaining"`
	Unlimited    bool   `json:"unlimited"`
}

// UsageHandler reports the caller's usage record
type UsageHandler struct {
	recorder *usage.Recorder
	period   usage.Period
	logger   *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(recorder *usage.Recorder, period usage.Period, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{recorder: recorder, period: period, logger: logger}
}

// HandleMe handles GET /api/v1/usage/me
func (h *UsageHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaimsFromContext(ctx)
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	rec, err := h.recorder.Current(ctx, claims.Sub)
	if err != nil {
		h.logger.Error("reading usage record",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("user_id", claims.Sub),
			zap.Error(err))
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeInternal, "failed to read usage record", err), h.logger)
		return
	}

	_, remaining := h.recorder.CheckAllowance(ctx, claims.Sub, h.period)
	tier := rec.EffectiveTier(time.Now())

	_ = utils.WriteOK(w, UsageResponse{
		UserID:       rec.UserID,
		Tier:         string(tier),
		TotalCount:   rec.TotalCount,
		PeriodCount:  rec.PeriodCount,
		PeriodAnchor: rec.PeriodAnchor,
		Remaining:    remaining,
		Unlimited:    !tier.Limited(),
	})
}
