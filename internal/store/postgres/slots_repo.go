package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"savrdv/internal/domain"
	"savrdv/internal/store"
)

type SlotRepo struct {
	db *bun.DB
}

func NewSlotRepo(db *bun.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

func (r *SlotRepo) Create(ctx context.Context, slot domain.Slot) (domain.Slot, error) {
	var out domain.Slot
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTechnicianAgenda(ctx, tx, slot.TechnicianID); err != nil {
			return err
		}
		s, err := insertSlot(ctx, tx, slot)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return out, nil
}

func (r *SlotRepo) BulkCreate(ctx context.Context, candidates []domain.SlotCandidate) ([]domain.Slot, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	accepted := make([]domain.Slot, 0, len(candidates))
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, technicianID := range distinctTechnicians(candidates) {
			if err := lockTechnicianAgenda(ctx, tx, technicianID); err != nil {
				return err
			}
		}

		for _, c := range candidates {
			collides, err := overlapExists(ctx, tx, c.TechnicianID, c.StartTime, c.EndTime)
			if err != nil {
				return err
			}
			if collides {
				continue
			}
			s, err := insertSlot(ctx, tx, domain.Slot{
				TechnicianID: c.TechnicianID,
				StartTime:    c.StartTime.UTC(),
				EndTime:      c.EndTime.UTC(),
			})
			if err != nil {
				return err
			}
			accepted = append(accepted, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func (r *SlotRepo) Get(ctx context.Context, slotID uuid.UUID) (domain.Slot, error) {
	return getSlot(ctx, r.db, slotID)
}

func (r *SlotRepo) Reserve(ctx context.Context, slotID, interventionID uuid.UUID) (domain.Slot, error) {
	return reserveSlot(ctx, r.db, slotID, interventionID)
}

func (r *SlotRepo) Release(ctx context.Context, slotID uuid.UUID) (domain.Slot, error) {
	return releaseSlot(ctx, r.db, slotID)
}

func (r *SlotRepo) Delete(ctx context.Context, slotID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Slot)(nil)).
		Where("id = ?", slotID).
		Where("reserved = FALSE").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := getSlot(ctx, r.db, slotID); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (r *SlotRepo) ListByTechnician(ctx context.Context, technicianID string, date *time.Time) ([]domain.Slot, error) {
	q := r.db.NewSelect().
		Model((*domain.Slot)(nil)).
		Where("technician_id = ?", technicianID).
		OrderExpr("start_time ASC")

	if date != nil {
		d := date.UTC()
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("start_time >= ?", dayStart).
			Where("start_time < ?", dayStart.AddDate(0, 0, 1))
	}

	var rows []domain.Slot
	if err := q.Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SlotRepo) ListWindow(ctx context.Context, rangeStart, rangeEnd time.Time, technicianID string) ([]domain.Slot, error) {
	q := r.db.NewSelect().
		Model((*domain.Slot)(nil)).
		Where("start_time < ?", rangeEnd.UTC()).
		Where("end_time > ?", rangeStart.UTC()).
		OrderExpr("start_time ASC")
	if technicianID != "" {
		q = q.Where("technician_id = ?", technicianID)
	}

	var rows []domain.Slot
	if err := q.Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SlotRepo) QueryAvailability(ctx context.Context, filter store.AvailabilityFilter) (store.AvailabilityPage, error) {
	base := func() *bun.SelectQuery {
		q := r.db.NewSelect().
			Model((*domain.Slot)(nil)).
			Where("start_time < ?", filter.RangeEnd.UTC()).
			Where("end_time > ?", filter.RangeStart.UTC())
		if filter.TechnicianID != "" {
			q = q.Where("technician_id = ?", filter.TechnicianID)
		}
		return q
	}

	total, err := base().Count(ctx)
	if err != nil {
		return store.AvailabilityPage{}, err
	}
	reserved, err := base().Where("reserved = TRUE").Count(ctx)
	if err != nil {
		return store.AvailabilityPage{}, err
	}

	var rows []domain.Slot
	err = base().
		Model(&rows).
		OrderExpr("start_time ASC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Scan(ctx)
	if err != nil {
		return store.AvailabilityPage{}, err
	}

	return store.AvailabilityPage{
		Slots:         rows,
		TotalCount:    total,
		FreeCount:     total - reserved,
		ReservedCount: reserved,
		PageCount:     pageCount(total, filter.PageSize),
	}, nil
}

func pageCount(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Agenda writes for one technician serialize on an advisory lock so overlap
// checks and inserts in the same transaction cannot race.
func lockTechnicianAgenda(ctx context.Context, tx bun.Tx, technicianID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", technicianID).Exec(ctx)
	return err
}

func distinctTechnicians(candidates []domain.SlotCandidate) []string {
	seen := make(map[string]struct{}, 1)
	out := make([]string, 0, 1)
	for _, c := range candidates {
		if _, ok := seen[c.TechnicianID]; ok {
			continue
		}
		seen[c.TechnicianID] = struct{}{}
		out = append(out, c.TechnicianID)
	}
	return out
}

func insertSlot(ctx context.Context, idb bun.IDB, slot domain.Slot) (domain.Slot, error) {
	m := slot
	_, err := idb.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "slots_no_overlap" {
			return domain.Slot{}, store.ErrConflict
		}
		return domain.Slot{}, err
	}
	return m, nil
}

func overlapExists(ctx context.Context, idb bun.IDB, technicianID string, start, end time.Time) (bool, error) {
	return idb.NewSelect().
		Model((*domain.Slot)(nil)).
		Where("technician_id = ?", technicianID).
		Where("start_time < ?", end.UTC()).
		Where("end_time > ?", start.UTC()).
		Exists(ctx)
}

func getSlot(ctx context.Context, idb bun.IDB, slotID uuid.UUID) (domain.Slot, error) {
	var s domain.Slot
	err := idb.NewSelect().Model(&s).Where("id = ?", slotID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Slot{}, store.ErrNotFound
		}
		return domain.Slot{}, err
	}
	return s, nil
}

// reserveSlot is a compare-and-set on the reservation flag: the WHERE clause
// admits only an unreserved row, so exactly one concurrent caller wins.
func reserveSlot(ctx context.Context, idb bun.IDB, slotID, interventionID uuid.UUID) (domain.Slot, error) {
	res, err := idb.NewUpdate().
		Model((*domain.Slot)(nil)).
		Set("reserved = TRUE").
		Set("intervention_id = ?", interventionID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", slotID).
		Where("reserved = FALSE").
		Exec(ctx)
	if err != nil {
		return domain.Slot{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Slot{}, err
	}
	if affected == 0 {
		if _, err := getSlot(ctx, idb, slotID); err != nil {
			return domain.Slot{}, err
		}
		return domain.Slot{}, store.ErrConflict
	}
	return getSlot(ctx, idb, slotID)
}

func releaseSlot(ctx context.Context, idb bun.IDB, slotID uuid.UUID) (domain.Slot, error) {
	res, err := idb.NewUpdate().
		Model((*domain.Slot)(nil)).
		Set("reserved = FALSE").
		Set("intervention_id = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", slotID).
		Exec(ctx)
	if err != nil {
		return domain.Slot{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Slot{}, err
	}
	if affected == 0 {
		return domain.Slot{}, store.ErrNotFound
	}
	return getSlot(ctx, idb, slotID)
}
