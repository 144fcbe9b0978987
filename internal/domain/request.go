package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusConfirmed RequestStatus = "confirmed"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// ParseRequestStatus validates external input against the closed status set.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestStatusPending, RequestStatusConfirmed, RequestStatusRejected, RequestStatusCancelled:
		return RequestStatus(s), nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusRejected || s == RequestStatusCancelled
}

// CanCancel reports whether a request in this status may be cancelled.
// Rejected is terminal and cannot be cancelled.
func (s RequestStatus) CanCancel() bool {
	return s == RequestStatusPending || s == RequestStatusConfirmed
}

// AppointmentRequest is a client's ask for a service appointment, optionally
// tied to a complaint and to a chosen slot. A slot id present before confirmation
// is a preference only; the slot is reserved when the request is accepted.
type AppointmentRequest struct {
	bun.BaseModel `bun:"table:appointment_requests"`

	ID             uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	ComplaintID    *uuid.UUID    `bun:"complaint_id,type:uuid" json:"complaint_id,omitempty"`
	ClientID       string        `bun:"client_id,notnull" json:"client_id"`
	SlotID         *uuid.UUID    `bun:"slot_id,type:uuid" json:"slot_id,omitempty"`
	Motive         string        `bun:"motive,notnull" json:"motive"`
	DesiredDate    *time.Time    `bun:"desired_date" json:"desired_date,omitempty"`
	TimePreference string        `bun:"time_preference" json:"time_preference,omitempty"`
	Status         RequestStatus `bun:"status,notnull" json:"status"`
	Comment        string        `bun:"comment" json:"comment,omitempty"`
	CreatedAt      time.Time     `bun:"created_at,notnull" json:"created_at"`
	ProcessedAt    *time.Time    `bun:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt      time.Time     `bun:"updated_at,notnull" json:"updated_at"`
}

func (r *AppointmentRequest) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}
