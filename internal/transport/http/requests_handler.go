package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"savrdv/internal/authz"
	"savrdv/internal/domain"
	"savrdv/internal/service/scheduling"
)

type RequestsHandler struct {
	svc schedulingService
	log *slog.Logger
}

func NewRequestsHandler(svc schedulingService, log *slog.Logger) *RequestsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RequestsHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.requests")),
	}
}

type createRequestRequest struct {
	ClientID       string     `json:"client_id"`
	Motive         string     `json:"motive" binding:"required"`
	ComplaintID    *string    `json:"complaint_id"`
	SlotID         *string    `json:"slot_id"`
	DesiredDate    *time.Time `json:"desired_date"`
	TimePreference string     `json:"time_preference"`
	Comment        string     `json:"comment"`
}

func (h *RequestsHandler) Create(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	// Clients always create requests for themselves; managers may create on a
	// client's behalf.
	clientID := req.ClientID
	if callerRole(c) == authz.RoleClient || clientID == "" {
		clientID = callerSubject(c)
	}

	complaintID, ok := parseOptionalUUID(c, req.ComplaintID, "complaint_id")
	if !ok {
		return
	}
	slotID, ok := parseOptionalUUID(c, req.SlotID, "slot_id")
	if !ok {
		return
	}

	out, err := h.svc.CreateRequest(c.Request.Context(), scheduling.CreateRequestInput{
		ClientID:       clientID,
		Motive:         req.Motive,
		ComplaintID:    complaintID,
		SlotID:         slotID,
		DesiredDate:    req.DesiredDate,
		TimePreference: req.TimePreference,
		Comment:        req.Comment,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info(
		"request created",
		slog.String("request_id", out.ID.String()),
		slog.String("client_id", out.ClientID),
	)
	c.JSON(http.StatusCreated, toRequestResponse(out))
}

func (h *RequestsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id must be a UUID"})
		return
	}

	out, err := h.svc.GetRequest(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if callerRole(c) == authz.RoleClient && out.ClientID != callerSubject(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(out))
}

func (h *RequestsHandler) List(c *gin.Context) {
	var status *domain.RequestStatus
	if v := c.Query("status"); v != "" {
		parsed, err := domain.ParseRequestStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status = &parsed
	}

	out, err := h.svc.ListRequests(c.Request.Context(), status)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": toRequestResponses(out)})
}

func (h *RequestsHandler) ListByClient(c *gin.Context) {
	clientID := c.Param("clientId")
	if callerRole(c) == authz.RoleClient && clientID != callerSubject(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot list another client's requests"})
		return
	}

	out, err := h.svc.ListRequestsByClient(c.Request.Context(), clientID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": toRequestResponses(out)})
}

type processRequestRequest struct {
	Accept         *bool   `json:"accept" binding:"required"`
	SlotID         *string `json:"slot_id"`
	InterventionID *string `json:"intervention_id"`
	Comment        string  `json:"comment"`
}

func (h *RequestsHandler) Process(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id must be a UUID"})
		return
	}
	var req processRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	slotID, ok := parseOptionalUUID(c, req.SlotID, "slot_id")
	if !ok {
		return
	}
	interventionID, ok := parseOptionalUUID(c, req.InterventionID, "intervention_id")
	if !ok {
		return
	}

	out, err := h.svc.ProcessRequest(c.Request.Context(), scheduling.ProcessRequestInput{
		RequestID:      id,
		Accept:         *req.Accept,
		SlotID:         slotID,
		InterventionID: interventionID,
		Comment:        req.Comment,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info(
		"request processed",
		slog.String("request_id", out.ID.String()),
		slog.String("status", string(out.Status)),
	)
	c.JSON(http.StatusOK, toRequestResponse(out))
}

func (h *RequestsHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id must be a UUID"})
		return
	}

	if callerRole(c) == authz.RoleClient {
		existing, err := h.svc.GetRequest(c.Request.Context(), id)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		if existing.ClientID != callerSubject(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
	}

	out, err := h.svc.CancelRequest(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info("request cancelled", slog.String("request_id", out.ID.String()))
	c.JSON(http.StatusOK, toRequestResponse(out))
}

func parseOptionalUUID(c *gin.Context, value *string, field string) (*uuid.UUID, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " must be a UUID"})
		return nil, false
	}
	return &id, true
}
