// Package scheduling is the façade over slot storage, availability queries and
// the appointment-request workflow. It is the only surface exposed to
// transports and other services.
package scheduling

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"savrdv/internal/clients"
	"savrdv/internal/domain"
	"savrdv/internal/notify"
	"savrdv/internal/store"
)

// DefaultPageSize applies when an availability query asks for pages without
// naming a size.
const DefaultPageSize = 20

const (
	maxSlotSpan   = 24 * time.Hour
	maxMotiveLen  = 500
	maxCommentLen = 1000
	maxPageSize   = 200
)

type Service struct {
	slots         store.SlotRepository
	requests      store.RequestRepository
	emitter       notify.Emitter
	interventions clients.InterventionRegistry
	log           *slog.Logger
	now           func() time.Time
}

func NewService(slots store.SlotRepository, requests store.RequestRepository, emitter notify.Emitter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		slots:    slots,
		requests: requests,
		emitter:  emitter,
		log:      log.With(slog.String("component", "scheduling")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithInterventionRegistry installs the intervention existence check applied
// before reservations. Best-effort: an unreachable registry never blocks.
func (s *Service) WithInterventionRegistry(reg clients.InterventionRegistry) *Service {
	s.interventions = reg
	return s
}

// WithClock overrides the time source so transition timestamps are
// deterministic in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) CreateSlot(ctx context.Context, technicianID string, start, end time.Time) (domain.Slot, error) {
	if technicianID == "" {
		return domain.Slot{}, validationError("technician_id is required")
	}
	startUTC := start.UTC()
	endUTC := end.UTC()
	if !endUTC.After(startUTC) {
		return domain.Slot{}, validationError("end_time must be after start_time")
	}
	if endUTC.Sub(startUTC) > maxSlotSpan {
		return domain.Slot{}, validationError("slot too long")
	}

	return s.slots.Create(ctx, domain.Slot{
		TechnicianID: technicianID,
		StartTime:    startUTC,
		EndTime:      endUTC,
	})
}

type GenerateSlotsInput struct {
	TechnicianID    string
	RangeStart      time.Time
	RangeEnd        time.Time
	DurationMinutes int
	Weekdays        []int16
	DailyStartMin   int
	DailyEndMin     int
}

// GenerateRecurringSlots expands the recurrence spec and persists the
// candidates, silently skipping any that collide with stored slots.
func (s *Service) GenerateRecurringSlots(ctx context.Context, in GenerateSlotsInput) ([]domain.Slot, error) {
	candidates, err := domain.GenerateSlots(domain.RecurrenceSpec{
		TechnicianID:    in.TechnicianID,
		RangeStart:      in.RangeStart,
		RangeEnd:        in.RangeEnd,
		DurationMinutes: in.DurationMinutes,
		Weekdays:        in.Weekdays,
		DailyStartMin:   in.DailyStartMin,
		DailyEndMin:     in.DailyEndMin,
	})
	if err != nil {
		return nil, validationError(err.Error())
	}

	accepted, err := s.slots.BulkCreate(ctx, candidates)
	if err != nil {
		return nil, err
	}

	s.log.Info(
		"recurring slots generated",
		slog.String("technician_id", in.TechnicianID),
		slog.Int("candidates", len(candidates)),
		slog.Int("accepted", len(accepted)),
	)
	return accepted, nil
}

func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	if slotID == uuid.Nil {
		return validationError("slot_id is required")
	}
	return s.slots.Delete(ctx, slotID)
}

func (s *Service) ReserveSlot(ctx context.Context, slotID, interventionID uuid.UUID) (domain.Slot, error) {
	if slotID == uuid.Nil {
		return domain.Slot{}, validationError("slot_id is required")
	}
	if interventionID == uuid.Nil {
		return domain.Slot{}, validationError("intervention_id is required")
	}
	if err := s.checkIntervention(ctx, interventionID); err != nil {
		return domain.Slot{}, err
	}
	return s.slots.Reserve(ctx, slotID, interventionID)
}

func (s *Service) ReleaseSlot(ctx context.Context, slotID uuid.UUID) (domain.Slot, error) {
	if slotID == uuid.Nil {
		return domain.Slot{}, validationError("slot_id is required")
	}
	return s.slots.Release(ctx, slotID)
}

func (s *Service) GetSlot(ctx context.Context, slotID uuid.UUID) (domain.Slot, error) {
	if slotID == uuid.Nil {
		return domain.Slot{}, validationError("slot_id is required")
	}
	return s.slots.Get(ctx, slotID)
}

func (s *Service) ListSlotsByTechnician(ctx context.Context, technicianID string, date *time.Time) ([]domain.Slot, error) {
	if technicianID == "" {
		return nil, validationError("technician_id is required")
	}
	return s.slots.ListByTechnician(ctx, technicianID, date)
}

func (s *Service) ListAvailability(ctx context.Context, rangeStart, rangeEnd time.Time, technicianID string) ([]domain.Slot, error) {
	if err := validateWindow(rangeStart, rangeEnd); err != nil {
		return nil, err
	}
	return s.slots.ListWindow(ctx, rangeStart.UTC(), rangeEnd.UTC(), technicianID)
}

func (s *Service) ListAvailabilityPaged(ctx context.Context, rangeStart, rangeEnd time.Time, technicianID string, page, pageSize int) (store.AvailabilityPage, error) {
	if err := validateWindow(rangeStart, rangeEnd); err != nil {
		return store.AvailabilityPage{}, err
	}
	if page < 1 {
		return store.AvailabilityPage{}, validationError("page must be positive")
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return store.AvailabilityPage{}, validationError("page_size out of range")
	}

	return s.slots.QueryAvailability(ctx, store.AvailabilityFilter{
		RangeStart:   rangeStart.UTC(),
		RangeEnd:     rangeEnd.UTC(),
		TechnicianID: technicianID,
		Page:         page,
		PageSize:     pageSize,
	})
}

func validateWindow(start, end time.Time) error {
	if !end.UTC().After(start.UTC()) {
		return validationError("range_end must be after range_start")
	}
	return nil
}

func (s *Service) checkIntervention(ctx context.Context, interventionID uuid.UUID) error {
	if s.interventions == nil {
		return nil
	}
	exists, err := s.interventions.Exists(ctx, interventionID.String())
	if err != nil {
		s.log.Warn(
			"intervention registry unreachable; continuing",
			slog.Any("err", err),
			slog.String("intervention_id", interventionID.String()),
		)
		return nil
	}
	if !exists {
		return validationError("unknown intervention_id")
	}
	return nil
}

func trimBounded(value string, max int) (string, bool) {
	trimmed := strings.TrimSpace(value)
	return trimmed, len(trimmed) <= max
}
