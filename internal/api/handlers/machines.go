package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/machinehub/machinehub/internal/db"
	"github.com/machinehub/machinehub/internal/liveness"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/rs/zerolog"
)

// MachineStore defines the interface for machine persistence operations.
type MachineStore interface {
	GetAllMachines(ctx context.Context) ([]*models.Machine, error)
	GetMachineByID(ctx context.Context, id uuid.UUID) (*models.Machine, error)
	CreateMachine(ctx context.Context, m *models.Machine) error
	UpdateMachine(ctx context.Context, m *models.Machine) error
	DeleteMachine(ctx context.Context, id uuid.UUID) error
	GetSnapshotsByMachine(ctx context.Context, machineID uuid.UUID, limit, offset int) ([]*models.Snapshot, error)
	GetLatestSnapshot(ctx context.Context, machineID uuid.UUID) (*models.Snapshot, error)
	GetSnapshotsInRange(ctx context.Context, machineID uuid.UUID, start, end time.Time) ([]*models.Snapshot, error)
}

// MachinesHandler handles machine-related HTTP endpoints.
type MachinesHandler struct {
	store      MachineStore
	thresholds liveness.Thresholds
	logger     zerolog.Logger
}

// NewMachinesHandler creates a new MachinesHandler.
func NewMachinesHandler(store MachineStore, logger zerolog.Logger) *MachinesHandler {
	return &MachinesHandler{
		store:      store,
		thresholds: liveness.DefaultThresholds(),
		logger:     logger.With().Str("component", "machines_handler").Logger(),
	}
}

// RegisterRoutes registers machine routes on the given router group.
func (h *MachinesHandler) RegisterRoutes(r *gin.RouterGroup) {
	machines := r.Group("/machines")
	{
		machines.GET("", h.List)
		machines.POST("", h.Create)
		machines.GET("/overview", h.Overview)
		machines.GET("/:id", h.Get)
		machines.PUT("/:id", h.Update)
		machines.DELETE("/:id", h.Delete)
		machines.GET("/:id/snapshots", h.Snapshots)
		machines.GET("/:id/snapshots/latest", h.LatestSnapshot)
		machines.GET("/:id/snapshots/range", h.SnapshotRange)
	}
}

// MachineRequest is the request body for creating or updating a machine.
type MachineRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Hostname    string `json:"hostname" binding:"max=255"`
	IPAddress   string `json:"ip_address" binding:"required,ip"`
	MACAddress  string `json:"mac_address" binding:"omitempty,mac"`
	HAEntityID  string `json:"ha_entity_id" binding:"max=255"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// MachineResponse is a machine together with its derived status.
type MachineResponse struct {
	*models.Machine
	Status liveness.Status `json:"status"`
}

// MachineOverview is a machine with its derived status and latest snapshot.
type MachineOverview struct {
	*models.Machine
	Status         liveness.Status  `json:"status"`
	LatestSnapshot *models.Snapshot `json:"latest_snapshot,omitempty"`
}

func (h *MachinesHandler) machineResponse(m *models.Machine, now time.Time) MachineResponse {
	return MachineResponse{
		Machine: m,
		Status:  liveness.Classify(m.LastSeen, now, h.thresholds),
	}
}

// List returns all registered machines with their derived status.
// @Summary List machines
// @Tags Machines
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/v1/machines [get]
func (h *MachinesHandler) List(c *gin.Context) {
	machines, err := h.store.GetAllMachines(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list machines")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list machines"})
		return
	}

	now := time.Now().UTC()
	resp := make([]MachineResponse, 0, len(machines))
	for _, m := range machines {
		resp = append(resp, h.machineResponse(m, now))
	}

	c.JSON(http.StatusOK, gin.H{"machines": resp})
}

// Overview returns all machines, each with status and latest snapshot.
// @Summary Machine fleet overview
// @Tags Machines
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/v1/machines/overview [get]
func (h *MachinesHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	machines, err := h.store.GetAllMachines(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list machines")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list machines"})
		return
	}

	now := time.Now().UTC()
	overview := make([]MachineOverview, 0, len(machines))
	for _, m := range machines {
		entry := MachineOverview{
			Machine: m,
			Status:  liveness.Classify(m.LastSeen, now, h.thresholds),
		}
		latest, err := h.store.GetLatestSnapshot(ctx, m.ID)
		switch {
		case err == nil:
			entry.LatestSnapshot = latest
		case errors.Is(err, db.ErrNotFound):
			// machine has never reported
		default:
			h.logger.Error().Err(err).Str("machine_id", m.ID.String()).Msg("failed to get latest snapshot")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build overview"})
			return
		}
		overview = append(overview, entry)
	}

	c.JSON(http.StatusOK, gin.H{"machines": overview})
}

// Get returns a specific machine by ID.
// @Summary Get machine
// @Tags Machines
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} MachineResponse
// @Router /api/v1/machines/{id} [get]
func (h *MachinesHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return
	}

	m, err := h.store.GetMachineByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
			return
		}
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to get machine")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get machine"})
		return
	}

	c.JSON(http.StatusOK, h.machineResponse(m, time.Now().UTC()))
}

// Create registers a new machine.
// @Summary Register machine
// @Tags Machines
// @Accept json
// @Produce json
// @Param machine body MachineRequest true "Machine"
// @Success 201 {object} MachineResponse
// @Router /api/v1/machines [post]
func (h *MachinesHandler) Create(c *gin.Context) {
	var req MachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	m := models.NewMachine(req.Name, req.IPAddress)
	m.Hostname = req.Hostname
	m.MACAddress = req.MACAddress
	m.HAEntityID = req.HAEntityID
	m.Description = req.Description
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	if err := h.store.CreateMachine(c.Request.Context(), m); err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("failed to create machine")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create machine"})
		return
	}

	h.logger.Info().
		Str("machine_id", m.ID.String()).
		Str("name", m.Name).
		Str("ip_address", m.IPAddress).
		Msg("machine registered")

	c.JSON(http.StatusCreated, h.machineResponse(m, time.Now().UTC()))
}

// Update edits a machine's registration.
// @Summary Update machine
// @Tags Machines
// @Accept json
// @Produce json
// @Param id path string true "Machine ID"
// @Param machine body MachineRequest true "Machine"
// @Success 200 {object} MachineResponse
// @Router /api/v1/machines/{id} [put]
func (h *MachinesHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return
	}

	var req MachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	m, err := h.store.GetMachineByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
			return
		}
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to get machine")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update machine"})
		return
	}

	m.Name = req.Name
	m.Hostname = req.Hostname
	m.IPAddress = req.IPAddress
	m.MACAddress = req.MACAddress
	m.HAEntityID = req.HAEntityID
	m.Description = req.Description
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	if err := h.store.UpdateMachine(c.Request.Context(), m); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
			return
		}
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to update machine")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update machine"})
		return
	}

	c.JSON(http.StatusOK, h.machineResponse(m, time.Now().UTC()))
}

// Delete removes a machine and all of its snapshots.
// @Summary Delete machine
// @Tags Machines
// @Param id path string true "Machine ID"
// @Success 204
// @Router /api/v1/machines/{id} [delete]
func (h *MachinesHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return
	}

	if err := h.store.DeleteMachine(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
			return
		}
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to delete machine")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete machine"})
		return
	}

	h.logger.Info().Str("machine_id", id.String()).Msg("machine deleted")
	c.Status(http.StatusNoContent)
}

// Snapshots returns a page of snapshots for a machine, newest first.
// @Summary List machine snapshots
// @Tags Snapshots
// @Produce json
// @Param id path string true "Machine ID"
// @Param limit query int false "Page size (default 100, max 1000)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/machines/{id}/snapshots [get]
func (h *MachinesHandler) Snapshots(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be non-negative"})
		return
	}

	snapshots, err := h.store.GetSnapshotsByMachine(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// LatestSnapshot returns the most recent snapshot for a machine.
// @Summary Latest machine snapshot
// @Tags Snapshots
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} models.Snapshot
// @Router /api/v1/machines/{id}/snapshots/latest [get]
func (h *MachinesHandler) LatestSnapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return
	}

	snapshot, err := h.store.GetLatestSnapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshots for machine"})
			return
		}
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to get latest snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get latest snapshot"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// SnapshotRange returns snapshots within a time window, oldest first.
// @Summary Machine snapshots in a time range
// @Tags Snapshots
// @Produce json
// @Param id path string true "Machine ID"
// @Param start query string true "Range start (RFC 3339)"
// @Param end query string true "Range end (RFC 3339)"
// @Success 200 {object} map[string]any
// @Router /api/v1/machines/{id}/snapshots/range [get]
func (h *MachinesHandler) SnapshotRange(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC 3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC 3339"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must not precede start"})
		return
	}

	snapshots, err := h.store.GetSnapshotsInRange(c.Request.Context(), id, start.UTC(), end.UTC())
	if err != nil {
		h.logger.Error().Err(err).Str("machine_id", id.String()).Msg("failed to list snapshots in range")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}
