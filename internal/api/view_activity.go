package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
)

// ActivityViews handles requests that credit time or steer the recorder.
type ActivityViews struct {
	tracker  *usage.Tracker
	recorder *usage.Recorder
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewActivityViews creates a new activity views instance.
func NewActivityViews(tracker *usage.Tracker, recorder *usage.Recorder, c clock.Clock, logger zerolog.Logger) *ActivityViews {
	return &ActivityViews{
		tracker:  tracker,
		recorder: recorder,
		clock:    c,
		logger:   logger.With().Str("handler", "activity").Logger(),
	}
}

// ApplyRequest credits seconds to a domain. Timestamp defaults to now.
type ApplyRequest struct {
	Domain    string      `json:"domain"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Seconds   json.Number `json:"seconds"`
}

// Apply credits time directly, bypassing the activity gate.
func (v *ActivityViews) Apply(ctx *gin.Context) {
	var req ApplyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	seconds, err := parseSeconds(req.Seconds)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_seconds", err.Error())
		return
	}

	at := v.clock.Now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	err = v.tracker.Apply(ctx.Request.Context(), req.Domain, at, seconds)
	switch {
	case errors.Is(err, usage.ErrInvalidDomain), errors.Is(err, usage.ErrInvalidDelta):
		respondError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, usage.ErrOverflow):
		respondError(ctx, http.StatusUnprocessableEntity, "overflow", err.Error())
		return
	case err != nil:
		v.logger.Error().Err(err).Str("domain", req.Domain).Msg("Failed to apply time")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to record time")
		return
	}

	rec, err := v.tracker.Domain(ctx.Request.Context(), req.Domain)
	if err != nil && !errors.Is(err, usage.ErrDomainNotFound) {
		v.logger.Error().Err(err).Str("domain", req.Domain).Msg("Failed to read domain after apply")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to read domain")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"applied": seconds,
		"record":  rec,
	})
}

// Signal forwards an activity signal to the recorder.
func (v *ActivityViews) Signal(ctx *gin.Context) {
	if v.recorder == nil {
		respondError(ctx, http.StatusServiceUnavailable, "recorder_unavailable", "No recorder is running")
		return
	}

	var sig usage.Signal
	if err := ctx.ShouldBindJSON(&sig); err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := sig.Validate(); err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_signal", err.Error())
		return
	}

	if err := v.recorder.Signal(ctx.Request.Context(), sig); err != nil {
		v.logger.Warn().Err(err).Str("type", string(sig.Type)).Msg("Failed to queue signal")
		respondError(ctx, http.StatusServiceUnavailable, "signal_dropped", err.Error())
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"queued": sig})
}

// Status reports the recorder state.
func (v *ActivityViews) Status(ctx *gin.Context) {
	if v.recorder == nil {
		respondError(ctx, http.StatusServiceUnavailable, "recorder_unavailable", "No recorder is running")
		return
	}
	ctx.JSON(http.StatusOK, v.recorder.Status())
}

// parseSeconds accepts non-negative whole numbers, including 12.0.
func parseSeconds(n json.Number) (int64, error) {
	if n == "" {
		return 0, errors.New("seconds is required")
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		if i < 0 {
			return 0, usage.ErrInvalidDelta
		}
		return i, nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("seconds must be a finite number")
	}
	if f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, errors.New("seconds must be a whole number")
	}
	if f < 0 {
		return 0, usage.ErrInvalidDelta
	}
	return int64(f), nil
}
