package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/exchange"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
)

// StoreViews handles whole-store operations: dump, replace, clear, import and export.
type StoreViews struct {
	tracker *usage.Tracker
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewStoreViews creates a new store views instance.
func NewStoreViews(tracker *usage.Tracker, c clock.Clock, logger zerolog.Logger) *StoreViews {
	return &StoreViews{
		tracker: tracker,
		clock:   c,
		logger:  logger.With().Str("handler", "store").Logger(),
	}
}

// Get returns the live store as stored.
func (v *StoreViews) Get(ctx *gin.Context) {
	snap, err := v.tracker.Snapshot(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to read store")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to read store")
		return
	}
	ctx.JSON(http.StatusOK, snap)
}

// Replace swaps the live store for the payload in the body. Nothing is merged.
func (v *StoreViews) Replace(ctx *gin.Context) {
	body := http.MaxBytesReader(ctx.Writer, ctx.Request.Body, exchange.MaxImportSize)
	snap, err := exchange.Decode(body)
	if err != nil {
		v.rejectPayload(ctx, err)
		return
	}

	if err := v.tracker.Restore(ctx.Request.Context(), snap); err != nil {
		v.logger.Error().Err(err).Msg("Failed to replace store")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to replace store")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"totalSites": len(snap)})
}

// Clear removes every record. The caller confirms with ?confirm=true.
func (v *StoreViews) Clear(ctx *gin.Context) {
	confirm := usage.ConfirmFunc(func(context.Context, string) (bool, error) {
		return ctx.Query("confirm") == "true", nil
	})

	err := v.tracker.ClearAll(ctx.Request.Context(), confirm)
	switch {
	case errors.Is(err, usage.ErrCancelled):
		respondError(ctx, http.StatusBadRequest, "confirmation_required", "Pass confirm=true to clear all tracked time")
		return
	case err != nil:
		v.logger.Error().Err(err).Msg("Failed to clear store")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to clear store")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cleared": true})
}

// Import merges an exported payload into the live store.
func (v *StoreViews) Import(ctx *gin.Context) {
	body := http.MaxBytesReader(ctx.Writer, ctx.Request.Body, exchange.MaxImportSize)
	result, err := exchange.Import(ctx.Request.Context(), v.tracker, exchange.ReaderImporter{R: body})
	if err != nil {
		v.rejectPayload(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Export downloads the live store as json, csv or yaml.
func (v *StoreViews) Export(ctx *gin.Context) {
	format, err := exchange.ParseFormat(ctx.Query("format"))
	if err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}

	if _, err := exchange.Export(ctx.Request.Context(), v.tracker, responseExporter{ctx: ctx}, format, v.clock.Now()); err != nil {
		v.logger.Error().Err(err).Str("format", string(format)).Msg("Failed to export store")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to export store")
		return
	}
}

func (v *StoreViews) rejectPayload(ctx *gin.Context, err error) {
	var formatErr *exchange.FormatError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &formatErr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_format",
			"message": formatErr.Error(),
			"field":   formatErr.Field,
		})
	case errors.Is(err, usage.ErrOverflow):
		respondError(ctx, http.StatusUnprocessableEntity, "overflow", err.Error())
	case errors.As(err, &tooLarge):
		respondError(ctx, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("Payload exceeds %d bytes", tooLarge.Limit))
	default:
		v.logger.Error().Err(err).Msg("Failed to import payload")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to import payload")
	}
}

// responseExporter sends the export as a download.
type responseExporter struct {
	ctx *gin.Context
}

func (e responseExporter) Export(_ context.Context, name, contentType string, data []byte) error {
	e.ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	e.ctx.Data(http.StatusOK, contentType, data)
	return nil
}
