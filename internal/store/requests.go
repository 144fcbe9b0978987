package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"savrdv/internal/domain"
)

type RequestRepository interface {
	Create(ctx context.Context, req domain.AppointmentRequest) (domain.AppointmentRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error)
	ListByStatus(ctx context.Context, status *domain.RequestStatus) ([]domain.AppointmentRequest, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.AppointmentRequest, error)

	// Accept confirms a pending request and reserves the slot in the same
	// transaction; either both state changes commit or neither does. Returns
	// ErrInvalidState when the request is not pending, ErrConflict when the
	// slot is already reserved, ErrNotFound when request or slot is unknown.
	Accept(ctx context.Context, requestID, slotID, interventionID uuid.UUID, comment string, processedAt time.Time) (domain.AppointmentRequest, error)
	// Reject marks a pending request rejected; no slot interaction.
	Reject(ctx context.Context, requestID uuid.UUID, comment string, processedAt time.Time) (domain.AppointmentRequest, error)
	// Cancel marks a pending or confirmed request cancelled, releasing its
	// slot first if one is held.
	Cancel(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error)
}
