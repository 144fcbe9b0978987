package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"savrdv/internal/clients"
	"savrdv/internal/domain"
	"savrdv/internal/service/scheduling"
	"savrdv/internal/store"
)

type schedulingService interface {
	CreateSlot(ctx context.Context, technicianID string, start, end time.Time) (domain.Slot, error)
	GenerateRecurringSlots(ctx context.Context, in scheduling.GenerateSlotsInput) ([]domain.Slot, error)
	DeleteSlot(ctx context.Context, slotID uuid.UUID) error
	ReserveSlot(ctx context.Context, slotID, interventionID uuid.UUID) (domain.Slot, error)
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) (domain.Slot, error)
	ListSlotsByTechnician(ctx context.Context, technicianID string, date *time.Time) ([]domain.Slot, error)
	ListAvailability(ctx context.Context, rangeStart, rangeEnd time.Time, technicianID string) ([]domain.Slot, error)
	ListAvailabilityPaged(ctx context.Context, rangeStart, rangeEnd time.Time, technicianID string, page, pageSize int) (store.AvailabilityPage, error)

	CreateRequest(ctx context.Context, in scheduling.CreateRequestInput) (domain.AppointmentRequest, error)
	GetRequest(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error)
	ListRequests(ctx context.Context, status *domain.RequestStatus) ([]domain.AppointmentRequest, error)
	ListRequestsByClient(ctx context.Context, clientID string) ([]domain.AppointmentRequest, error)
	ProcessRequest(ctx context.Context, in scheduling.ProcessRequestInput) (domain.AppointmentRequest, error)
	CancelRequest(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error)
}

type SlotsHandler struct {
	svc       schedulingService
	directory clients.TechnicianDirectory
	log       *slog.Logger
}

func NewSlotsHandler(svc schedulingService, directory clients.TechnicianDirectory, log *slog.Logger) *SlotsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SlotsHandler{
		svc:       svc,
		directory: directory,
		log:       log.With(slog.String("component", "http.slots")),
	}
}

type createSlotRequest struct {
	TechnicianID string    `json:"technician_id" binding:"required"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required"`
}

func (h *SlotsHandler) Create(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	slot, err := h.svc.CreateSlot(c.Request.Context(), req.TechnicianID, req.StartTime, req.EndTime)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info(
		"slot created",
		slog.String("slot_id", slot.ID.String()),
		slog.String("technician_id", slot.TechnicianID),
	)
	c.JSON(http.StatusCreated, toSlotResponse(c.Request.Context(), h.directory, slot))
}

type generateSlotsRequest struct {
	TechnicianID    string  `json:"technician_id" binding:"required"`
	RangeStart      string  `json:"range_start" binding:"required"`
	RangeEnd        string  `json:"range_end" binding:"required"`
	DurationMinutes int     `json:"duration_minutes" binding:"required"`
	Weekdays        []int16 `json:"weekdays" binding:"required"`
	DailyStart      string  `json:"daily_start" binding:"required"`
	DailyEnd        string  `json:"daily_end" binding:"required"`
}

func (h *SlotsHandler) Generate(c *gin.Context) {
	var req generateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	rangeStart, err := time.Parse("2006-01-02", req.RangeStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range_start must be YYYY-MM-DD"})
		return
	}
	rangeEnd, err := time.Parse("2006-01-02", req.RangeEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range_end must be YYYY-MM-DD"})
		return
	}
	dailyStart, err := parseMinuteOfDay(req.DailyStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dailyEnd, err := parseMinuteOfDay(req.DailyEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, err := h.svc.GenerateRecurringSlots(c.Request.Context(), scheduling.GenerateSlotsInput{
		TechnicianID:    req.TechnicianID,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DurationMinutes: req.DurationMinutes,
		Weekdays:        req.Weekdays,
		DailyStartMin:   dailyStart,
		DailyEndMin:     dailyEnd,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"slots": toSlotResponses(c.Request.Context(), h.directory, slots),
		"count": len(slots),
	})
}

func (h *SlotsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot id must be a UUID"})
		return
	}
	if err := h.svc.DeleteSlot(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("slot deleted", slog.String("slot_id", id.String()))
	c.Status(http.StatusNoContent)
}

type reserveSlotRequest struct {
	InterventionID string `json:"intervention_id" binding:"required"`
}

func (h *SlotsHandler) Reserve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot id must be a UUID"})
		return
	}
	var req reserveSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	interventionID, err := uuid.Parse(req.InterventionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intervention_id must be a UUID"})
		return
	}

	slot, err := h.svc.ReserveSlot(c.Request.Context(), id, interventionID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info(
		"slot reserved",
		slog.String("slot_id", slot.ID.String()),
		slog.String("intervention_id", interventionID.String()),
	)
	c.JSON(http.StatusOK, toSlotResponse(c.Request.Context(), h.directory, slot))
}

func (h *SlotsHandler) Release(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot id must be a UUID"})
		return
	}

	slot, err := h.svc.ReleaseSlot(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info("slot released", slog.String("slot_id", slot.ID.String()))
	c.JSON(http.StatusOK, toSlotResponse(c.Request.Context(), h.directory, slot))
}

func (h *SlotsHandler) ListByTechnician(c *gin.Context) {
	technicianID := c.Param("technicianId")

	var date *time.Time
	if v := c.Query("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = &d
	}

	slots, err := h.svc.ListSlotsByTechnician(c.Request.Context(), technicianID, date)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": toSlotResponses(c.Request.Context(), h.directory, slots)})
}

func (h *SlotsHandler) ListAvailability(c *gin.Context) {
	rangeStart, rangeEnd, ok := parseWindow(c)
	if !ok {
		return
	}
	technicianID := c.Query("technician_id")

	if c.Query("page") == "" && c.Query("page_size") == "" {
		slots, err := h.svc.ListAvailability(c.Request.Context(), rangeStart, rangeEnd, technicianID)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"slots": toSlotResponses(c.Request.Context(), h.directory, slots)})
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 0)

	result, err := h.svc.ListAvailabilityPaged(c.Request.Context(), rangeStart, rangeEnd, technicianID, page, pageSize)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if pageSize == 0 {
		pageSize = scheduling.DefaultPageSize
	}
	c.JSON(http.StatusOK, toPagedResponse(c.Request.Context(), h.directory, result, page, pageSize))
}

func parseWindow(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, c.Query("range_start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range_start must be RFC3339"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, c.Query("range_end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range_end must be RFC3339"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return parsed
}
