package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"savrdv/internal/domain"
)

// AvailabilityFilter selects slots whose [start,end) interval intersects
// [RangeStart, RangeEnd], optionally restricted to one technician.
type AvailabilityFilter struct {
	RangeStart   time.Time
	RangeEnd     time.Time
	TechnicianID string
	Page         int
	PageSize     int
}

// AvailabilityPage is one page of matching slots plus totals computed over the
// entire filtered set, not just the page.
type AvailabilityPage struct {
	Slots         []domain.Slot
	TotalCount    int
	FreeCount     int
	ReservedCount int
	PageCount     int
}

type SlotRepository interface {
	// Create persists a slot, failing with ErrConflict when it overlaps an
	// existing slot of the same technician.
	Create(ctx context.Context, slot domain.Slot) (domain.Slot, error)
	// BulkCreate applies Create semantics per candidate, silently skipping
	// candidates that collide, and returns the accepted subset.
	BulkCreate(ctx context.Context, candidates []domain.SlotCandidate) ([]domain.Slot, error)
	Get(ctx context.Context, slotID uuid.UUID) (domain.Slot, error)
	// Reserve atomically flips the reservation flag and links the intervention.
	// Exactly one of several concurrent callers succeeds; the rest observe
	// ErrConflict.
	Reserve(ctx context.Context, slotID, interventionID uuid.UUID) (domain.Slot, error)
	// Release clears the reservation flag and intervention link. Releasing a
	// free slot is a no-op, not an error.
	Release(ctx context.Context, slotID uuid.UUID) (domain.Slot, error)
	// Delete removes an unreserved slot; ErrConflict while reserved.
	Delete(ctx context.Context, slotID uuid.UUID) error
	// ListByTechnician returns a technician's slots ordered by start time,
	// optionally restricted to one calendar date.
	ListByTechnician(ctx context.Context, technicianID string, date *time.Time) ([]domain.Slot, error)
	// ListWindow returns every slot intersecting the window, ordered by start
	// time, optionally restricted to one technician.
	ListWindow(ctx context.Context, rangeStart, rangeEnd time.Time, technicianID string) ([]domain.Slot, error)
	QueryAvailability(ctx context.Context, filter AvailabilityFilter) (AvailabilityPage, error)
}
