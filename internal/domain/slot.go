package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Slot is a bookable time window belonging to one technician. Reserved and
// InterventionID change together: both set on reserve, both cleared on release.
type Slot struct {
	bun.BaseModel `bun:"table:slots"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	TechnicianID   string     `bun:"technician_id,notnull" json:"technician_id"`
	StartTime      time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime        time.Time  `bun:"end_time,notnull" json:"end_time"`
	Reserved       bool       `bun:"reserved,notnull,default:false" json:"reserved"`
	InterventionID *uuid.UUID `bun:"intervention_id,type:uuid" json:"intervention_id,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

func (s *Slot) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// Overlaps reports whether the [start,end) intervals of the two slots intersect.
func (s Slot) Overlaps(other Slot) bool {
	return s.StartTime.Before(other.EndTime) && s.EndTime.After(other.StartTime)
}
