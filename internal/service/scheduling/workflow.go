package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"savrdv/internal/domain"
	"savrdv/internal/notify"
)

type CreateRequestInput struct {
	ClientID       string
	Motive         string
	ComplaintID    *uuid.UUID
	SlotID         *uuid.UUID
	DesiredDate    *time.Time
	TimePreference string
	Comment        string
}

// CreateRequest records a pending appointment request. A pre-selected slot id
// is stored as a preference only; the slot stays free until a manager accepts
// the request.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (domain.AppointmentRequest, error) {
	if in.ClientID == "" {
		return domain.AppointmentRequest{}, validationError("client_id is required")
	}
	motive, ok := trimBounded(in.Motive, maxMotiveLen)
	if !ok {
		return domain.AppointmentRequest{}, validationError("motive too long")
	}
	if motive == "" {
		return domain.AppointmentRequest{}, validationError("motive is required")
	}
	comment, ok := trimBounded(in.Comment, maxCommentLen)
	if !ok {
		return domain.AppointmentRequest{}, validationError("comment too long")
	}

	var desired *time.Time
	if in.DesiredDate != nil {
		d := in.DesiredDate.UTC()
		desired = &d
	}

	req, err := s.requests.Create(ctx, domain.AppointmentRequest{
		ClientID:       in.ClientID,
		ComplaintID:    in.ComplaintID,
		SlotID:         in.SlotID,
		Motive:         motive,
		DesiredDate:    desired,
		TimePreference: in.TimePreference,
		Status:         domain.RequestStatusPending,
		Comment:        comment,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return domain.AppointmentRequest{}, err
	}

	s.log.Info(
		"appointment request created",
		slog.String("request_id", req.ID.String()),
		slog.String("client_id", req.ClientID),
	)
	s.emit(notify.EventRequested, req, nil)
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error) {
	if requestID == uuid.Nil {
		return domain.AppointmentRequest{}, validationError("request_id is required")
	}
	return s.requests.Get(ctx, requestID)
}

func (s *Service) ListRequests(ctx context.Context, status *domain.RequestStatus) ([]domain.AppointmentRequest, error) {
	return s.requests.ListByStatus(ctx, status)
}

func (s *Service) ListRequestsByClient(ctx context.Context, clientID string) ([]domain.AppointmentRequest, error) {
	if clientID == "" {
		return nil, validationError("client_id is required")
	}
	return s.requests.ListByClient(ctx, clientID)
}

type ProcessRequestInput struct {
	RequestID uuid.UUID
	Accept    bool
	// SlotID overrides the slot the client pre-selected, when present.
	SlotID *uuid.UUID
	// InterventionID links the reservation to a service job. When absent the
	// request id itself is used as the job context until an intervention is
	// recorded by its owning service.
	InterventionID *uuid.UUID
	Comment        string
}

// ProcessRequest settles a pending request. Accepting reserves the resolved
// slot and confirms the request in one atomic unit; a reservation conflict
// leaves the request pending. Rejecting touches no slot.
func (s *Service) ProcessRequest(ctx context.Context, in ProcessRequestInput) (domain.AppointmentRequest, error) {
	if in.RequestID == uuid.Nil {
		return domain.AppointmentRequest{}, validationError("request_id is required")
	}
	comment, ok := trimBounded(in.Comment, maxCommentLen)
	if !ok {
		return domain.AppointmentRequest{}, validationError("comment too long")
	}

	if !in.Accept {
		req, err := s.requests.Reject(ctx, in.RequestID, comment, s.now())
		if err != nil {
			return domain.AppointmentRequest{}, err
		}
		s.log.Info("appointment request rejected", slog.String("request_id", req.ID.String()))
		s.emit(notify.EventRejected, req, nil)
		return req, nil
	}

	current, err := s.requests.Get(ctx, in.RequestID)
	if err != nil {
		return domain.AppointmentRequest{}, err
	}

	slotID := current.SlotID
	if in.SlotID != nil {
		slotID = in.SlotID
	}
	if slotID == nil || *slotID == uuid.Nil {
		return domain.AppointmentRequest{}, validationError("slot_id is required to accept")
	}

	interventionID := current.ID
	if in.InterventionID != nil && *in.InterventionID != uuid.Nil {
		interventionID = *in.InterventionID
		if err := s.checkIntervention(ctx, interventionID); err != nil {
			return domain.AppointmentRequest{}, err
		}
	}

	req, err := s.requests.Accept(ctx, in.RequestID, *slotID, interventionID, comment, s.now())
	if err != nil {
		return domain.AppointmentRequest{}, err
	}

	slot, slotErr := s.slots.Get(ctx, *slotID)
	s.log.Info(
		"appointment request confirmed",
		slog.String("request_id", req.ID.String()),
		slog.String("slot_id", slotID.String()),
	)
	if slotErr != nil {
		s.emit(notify.EventConfirmed, req, nil)
	} else {
		s.emit(notify.EventConfirmed, req, &slot)
	}
	return req, nil
}

// CancelRequest cancels a pending or confirmed request, releasing its slot
// when one is held. Rejected and cancelled requests are terminal.
func (s *Service) CancelRequest(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error) {
	if requestID == uuid.Nil {
		return domain.AppointmentRequest{}, validationError("request_id is required")
	}

	req, err := s.requests.Cancel(ctx, requestID)
	if err != nil {
		return domain.AppointmentRequest{}, err
	}

	s.log.Info("appointment request cancelled", slog.String("request_id", req.ID.String()))
	s.emit(notify.EventCancelled, req, nil)
	return req, nil
}

// emit produces exactly one event per transition, synchronously with the state
// change; the dispatcher guarantees it never blocks or fails the caller.
func (s *Service) emit(kind notify.EventKind, req domain.AppointmentRequest, slot *domain.Slot) {
	if s.emitter == nil {
		return
	}
	ev := notify.Event{
		Kind:       kind,
		RequestID:  req.ID,
		ClientID:   req.ClientID,
		SlotID:     req.SlotID,
		Motive:     req.Motive,
		OccurredAt: s.now(),
	}
	if slot != nil {
		start := slot.StartTime
		ev.SlotStart = &start
	}
	s.emitter.Emit(ev)
}
