package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"savrdv/internal/domain"
	"savrdv/internal/store"
)

type RequestRepo struct {
	db *bun.DB
}

func NewRequestRepo(db *bun.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

func (r *RequestRepo) Create(ctx context.Context, req domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	m := req
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.AppointmentRequest{}, err
	}
	return m, nil
}

func (r *RequestRepo) Get(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error) {
	return getRequest(ctx, r.db, requestID)
}

func (r *RequestRepo) ListByStatus(ctx context.Context, status *domain.RequestStatus) ([]domain.AppointmentRequest, error) {
	q := r.db.NewSelect().
		Model((*domain.AppointmentRequest)(nil)).
		OrderExpr("created_at DESC")
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var rows []domain.AppointmentRequest
	if err := q.Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RequestRepo) ListByClient(ctx context.Context, clientID string) ([]domain.AppointmentRequest, error) {
	var rows []domain.AppointmentRequest
	err := r.db.NewSelect().
		Model(&rows).
		Where("client_id = ?", clientID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Accept runs the request-status transition and the slot reservation as one
// transaction. A reservation failure rolls everything back, leaving the
// request pending.
func (r *RequestRepo) Accept(ctx context.Context, requestID, slotID, interventionID uuid.UUID, comment string, processedAt time.Time) (domain.AppointmentRequest, error) {
	var out domain.AppointmentRequest
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*domain.AppointmentRequest)(nil)).
			Set("status = ?", domain.RequestStatusConfirmed).
			Set("slot_id = ?", slotID).
			Set("comment = ?", comment).
			Set("processed_at = ?", processedAt.UTC()).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", requestID).
			Where("status = ?", domain.RequestStatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := getRequest(ctx, tx, requestID); err != nil {
				return err
			}
			return store.ErrInvalidState
		}

		if _, err := reserveSlot(ctx, tx, slotID, interventionID); err != nil {
			return err
		}

		req, err := getRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	return out, nil
}

func (r *RequestRepo) Reject(ctx context.Context, requestID uuid.UUID, comment string, processedAt time.Time) (domain.AppointmentRequest, error) {
	var out domain.AppointmentRequest
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*domain.AppointmentRequest)(nil)).
			Set("status = ?", domain.RequestStatusRejected).
			Set("comment = ?", comment).
			Set("processed_at = ?", processedAt.UTC()).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", requestID).
			Where("status = ?", domain.RequestStatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := getRequest(ctx, tx, requestID); err != nil {
				return err
			}
			return store.ErrInvalidState
		}

		req, err := getRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	return out, nil
}

func (r *RequestRepo) Cancel(ctx context.Context, requestID uuid.UUID) (domain.AppointmentRequest, error) {
	var out domain.AppointmentRequest
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var req domain.AppointmentRequest
		err := tx.NewSelect().
			Model(&req).
			Where("id = ?", requestID).
			For("UPDATE").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if !req.Status.CanCancel() {
			return store.ErrInvalidState
		}

		if req.Status == domain.RequestStatusConfirmed && req.SlotID != nil {
			if _, err := releaseSlot(ctx, tx, *req.SlotID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		_, err = tx.NewUpdate().
			Model((*domain.AppointmentRequest)(nil)).
			Set("status = ?", domain.RequestStatusCancelled).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", requestID).
			Exec(ctx)
		if err != nil {
			return err
		}

		updated, err := getRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	return out, nil
}

func getRequest(ctx context.Context, idb bun.IDB, requestID uuid.UUID) (domain.AppointmentRequest, error) {
	var req domain.AppointmentRequest
	err := idb.NewSelect().Model(&req).Where("id = ?", requestID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AppointmentRequest{}, store.ErrNotFound
		}
		return domain.AppointmentRequest{}, err
	}
	return req, nil
}
