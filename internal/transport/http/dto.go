package http

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"savrdv/internal/clients"
	"savrdv/internal/domain"
	"savrdv/internal/store"
)

type slotResponse struct {
	ID             string    `json:"id"`
	TechnicianID   string    `json:"technician_id"`
	TechnicianName string    `json:"technician_name,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Reserved       bool      `json:"reserved"`
	InterventionID *string   `json:"intervention_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type pagedAvailabilityResponse struct {
	Slots         []slotResponse `json:"slots"`
	TotalCount    int            `json:"total_count"`
	FreeCount     int            `json:"free_count"`
	ReservedCount int            `json:"reserved_count"`
	PageCount     int            `json:"page_count"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
}

type requestResponse struct {
	ID             string     `json:"id"`
	ComplaintID    *string    `json:"complaint_id,omitempty"`
	ClientID       string     `json:"client_id"`
	SlotID         *string    `json:"slot_id,omitempty"`
	Motive         string     `json:"motive"`
	DesiredDate    *time.Time `json:"desired_date,omitempty"`
	TimePreference string     `json:"time_preference,omitempty"`
	Status         string     `json:"status"`
	Comment        string     `json:"comment,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// toSlotResponse resolves the technician display name when a directory is
// configured; resolution failures are ignored (presentation only).
func toSlotResponse(ctx context.Context, directory clients.TechnicianDirectory, s domain.Slot) slotResponse {
	out := slotResponse{
		ID:           s.ID.String(),
		TechnicianID: s.TechnicianID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Reserved:     s.Reserved,
		CreatedAt:    s.CreatedAt,
	}
	if s.InterventionID != nil {
		id := s.InterventionID.String()
		out.InterventionID = &id
	}
	if directory != nil {
		if name, err := directory.DisplayName(ctx, s.TechnicianID); err == nil && name != "" {
			out.TechnicianName = name
		}
	}
	return out
}

func toSlotResponses(ctx context.Context, directory clients.TechnicianDirectory, slots []domain.Slot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(ctx, directory, s))
	}
	return out
}

func toPagedResponse(ctx context.Context, directory clients.TechnicianDirectory, page store.AvailabilityPage, pageNum, pageSize int) pagedAvailabilityResponse {
	return pagedAvailabilityResponse{
		Slots:         toSlotResponses(ctx, directory, page.Slots),
		TotalCount:    page.TotalCount,
		FreeCount:     page.FreeCount,
		ReservedCount: page.ReservedCount,
		PageCount:     page.PageCount,
		Page:          pageNum,
		PageSize:      pageSize,
	}
}

func toRequestResponse(r domain.AppointmentRequest) requestResponse {
	out := requestResponse{
		ID:             r.ID.String(),
		ClientID:       r.ClientID,
		Motive:         r.Motive,
		DesiredDate:    r.DesiredDate,
		TimePreference: r.TimePreference,
		Status:         string(r.Status),
		Comment:        r.Comment,
		CreatedAt:      r.CreatedAt,
		ProcessedAt:    r.ProcessedAt,
	}
	if r.ComplaintID != nil {
		id := r.ComplaintID.String()
		out.ComplaintID = &id
	}
	if r.SlotID != nil {
		id := r.SlotID.String()
		out.SlotID = &id
	}
	return out
}

func toRequestResponses(reqs []domain.AppointmentRequest) []requestResponse {
	out := make([]requestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRequestResponse(r))
	}
	return out
}

// parseMinuteOfDay parses "HH:MM" into minutes from midnight.
func parseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return hour*60 + minute, nil
}
