package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
)

// DomainViews handles read-only reporting requests.
type DomainViews struct {
	tracker  *usage.Tracker
	recorder *usage.Recorder
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewDomainViews creates a new domain views instance.
func NewDomainViews(tracker *usage.Tracker, recorder *usage.Recorder, c clock.Clock, logger zerolog.Logger) *DomainViews {
	return &DomainViews{
		tracker:  tracker,
		recorder: recorder,
		clock:    c,
		logger:   logger.With().Str("handler", "domains").Logger(),
	}
}

// List returns every domain ordered by total time.
func (v *DomainViews) List(ctx *gin.Context) {
	snap, err := v.tracker.Snapshot(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to read store")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve domains")
		return
	}

	overview := usage.Summarize(snap)
	resp := gin.H{
		"sites":      overview.Sites,
		"totalSites": overview.TotalSites,
		"totalTime":  overview.TotalTime,
		"formatted":  usage.FormatSeconds(overview.TotalTime),
	}
	if v.recorder != nil {
		resp["current"] = v.recorder.Status()
	}
	ctx.JSON(http.StatusOK, resp)
}

// Get returns one domain's record with its recent hourly, daily and weekly series.
func (v *DomainViews) Get(ctx *gin.Context) {
	domain := ctx.Param("domain")

	rec, err := v.tracker.Domain(ctx.Request.Context(), domain)
	switch {
	case errors.Is(err, usage.ErrDomainNotFound):
		respondError(ctx, http.StatusNotFound, "not_found", "Domain not tracked")
		return
	case errors.Is(err, usage.ErrInvalidDomain):
		respondError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		v.logger.Error().Err(err).Str("domain", domain).Msg("Failed to get domain")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve domain")
		return
	}

	hours := queryCount(ctx, "hours", usage.RecentHourCount)
	days := queryCount(ctx, "days", usage.RecentDayCount)
	weeks := queryCount(ctx, "weeks", usage.RecentWeekCount)

	now := v.clock.Now()
	loc := v.tracker.Location()
	ctx.JSON(http.StatusOK, gin.H{
		"domain":    domain,
		"record":    rec,
		"formatted": usage.FormatSeconds(rec.TotalTime),
		"recent": gin.H{
			"hours": usage.RecentHours(rec, now, loc, hours),
			"days":  usage.RecentDays(rec, now, loc, days),
			"weeks": usage.RecentWeeks(rec, now, loc, weeks),
		},
	})
}

// queryCount reads a positive window length, capped at 1000.
func queryCount(ctx *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(ctx.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 1000)
}
