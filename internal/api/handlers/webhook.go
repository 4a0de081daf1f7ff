package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/machinehub/machinehub/internal/db"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/machinehub/machinehub/internal/telemetry"
	"github.com/rs/zerolog"
)

// maxTelemetryBody caps the accepted webhook payload size.
const maxTelemetryBody = 4 << 20 // 4 MiB

// WebhookStore defines the interface for telemetry ingestion persistence.
type WebhookStore interface {
	GetMachineByID(ctx context.Context, id uuid.UUID) (*models.Machine, error)
	ResolveMachineByIP(ctx context.Context, ip string) (*models.Machine, error)
	InsertSnapshot(ctx context.Context, s *models.Snapshot, hostname, osName, osVersion string) error
}

// WebhookHandler ingests telemetry reports pushed by machines.
type WebhookHandler struct {
	store  WebhookStore
	secret string
	logger zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret disables
// the secret check: every sender is accepted without authentication.
func NewWebhookHandler(store WebhookStore, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		store:  store,
		secret: secret,
		logger: logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// RegisterRoutes registers webhook routes on the given router group.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhook := r.Group("/webhook")
	{
		webhook.POST("/telemetry", h.Telemetry)
	}
}

// Telemetry accepts a telemetry report, resolves the sending machine, and
// records a snapshot. Delivery is at-most-once: any rejection is final and
// the sender is expected to drop the report, not retry it.
//
// @Summary Ingest telemetry report
// @Tags Webhook
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string false "Shared webhook secret, required when the server has one configured"
// @Param machine_id query string false "Explicit machine ID, overrides IP matching"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /webhook/telemetry [post]
func (h *WebhookHandler) Telemetry(c *gin.Context) {
	if !h.secretMatches(c.GetHeader("X-Webhook-Secret")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTelemetryBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	doc, err := telemetry.Parse(body)
	if err != nil {
		if errors.Is(err, telemetry.ErrMalformed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telemetry payload"})
		return
	}

	machine, err := h.resolveMachine(c)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown machine"})
		case errors.Is(err, db.ErrAmbiguousMachine):
			h.logger.Warn().Str("remote_ip", c.ClientIP()).Msg("telemetry source IP matches multiple machines")
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown machine"})
		case errors.Is(err, errBadMachineID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine_id"})
		default:
			h.logger.Error().Err(err).Msg("failed to resolve machine")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve machine"})
		}
		return
	}

	snapshot := telemetry.Normalize(doc, machine.ID, models.SourceWebhook)
	hostname, osName, osVersion := doc.Identity()

	if err := h.store.InsertSnapshot(c.Request.Context(), snapshot, hostname, osName, osVersion); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown machine"})
			return
		}
		h.logger.Error().Err(err).Str("machine_id", machine.ID.String()).Msg("failed to record snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record snapshot"})
		return
	}

	h.logger.Debug().
		Str("machine_id", machine.ID.String()).
		Str("snapshot_id", snapshot.ID.String()).
		Msg("telemetry snapshot recorded")

	c.JSON(http.StatusOK, gin.H{
		"machine_id":  machine.ID,
		"snapshot_id": snapshot.ID,
	})
}

var errBadMachineID = errors.New("invalid machine id")

// resolveMachine identifies the reporting machine. An explicit machine_id
// query parameter always wins; otherwise the client IP must match exactly
// one registered machine.
func (h *WebhookHandler) resolveMachine(c *gin.Context) (*models.Machine, error) {
	if raw := c.Query("machine_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errBadMachineID
		}
		return h.store.GetMachineByID(c.Request.Context(), id)
	}
	return h.store.ResolveMachineByIP(c.Request.Context(), c.ClientIP())
}

func (h *WebhookHandler) secretMatches(provided string) bool {
	if h.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) == 1
}
