package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
)

// BackupViews handles backup requests.
type BackupViews struct {
	backups *usage.Backups
	logger  zerolog.Logger
}

// NewBackupViews creates a new backup views instance.
func NewBackupViews(backups *usage.Backups, logger zerolog.Logger) *BackupViews {
	return &BackupViews{
		backups: backups,
		logger:  logger.With().Str("handler", "backups").Logger(),
	}
}

// List returns the retained backups, newest first.
func (v *BackupViews) List(ctx *gin.Context) {
	backups, err := v.backups.List(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to list backups")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to list backups")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"backups":   backups,
		"count":     len(backups),
		"retention": v.backups.Retention(),
	})
}

// Create takes a backup of the live store.
func (v *BackupViews) Create(ctx *gin.Context) {
	info, err := v.backups.Create(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to create backup")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to create backup")
		return
	}
	ctx.JSON(http.StatusCreated, info)
}

// Restore replaces the live store with a backup.
func (v *BackupViews) Restore(ctx *gin.Context) {
	id := ctx.Param("id")

	err := v.backups.Restore(ctx.Request.Context(), id)
	switch {
	case errors.Is(err, usage.ErrBackupNotFound):
		respondError(ctx, http.StatusNotFound, "not_found", "Backup not found")
		return
	case err != nil:
		v.logger.Error().Err(err).Str("id", id).Msg("Failed to restore backup")
		respondError(ctx, http.StatusInternalServerError, "server_error", "Failed to restore backup")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"restored": id})
}
