package domain

import (
	"errors"
	"sort"
	"time"
)

const (
	MinSlotDurationMinutes = 15
	MaxSlotDurationMinutes = 480
)

// RecurrenceSpec describes a technician's recurring availability. Weekdays use
// the 1..7 Monday-first encoding. Daily window bounds are minutes from midnight,
// interpreted in UTC.
type RecurrenceSpec struct {
	TechnicianID    string
	RangeStart      time.Time
	RangeEnd        time.Time
	DurationMinutes int
	Weekdays        []int16
	DailyStartMin   int
	DailyEndMin     int
}

// SlotCandidate is a generated, not yet persisted slot.
type SlotCandidate struct {
	TechnicianID string
	StartTime    time.Time
	EndTime      time.Time
}

// GenerateSlots expands a recurrence spec into candidate slots. For every date
// in [RangeStart, RangeEnd] whose weekday is in the spec, it walks from the
// daily start in duration steps; a trailing remainder shorter than the duration
// is discarded. Generation is pure; persistence and collision checks against
// stored slots belong to the store.
func GenerateSlots(spec RecurrenceSpec) ([]SlotCandidate, error) {
	if spec.TechnicianID == "" {
		return nil, errors.New("technician_id is required")
	}
	if spec.DurationMinutes < MinSlotDurationMinutes || spec.DurationMinutes > MaxSlotDurationMinutes {
		return nil, errors.New("duration_minutes out of range")
	}
	if spec.DailyStartMin < 0 || spec.DailyEndMin > 24*60 {
		return nil, errors.New("daily window out of range")
	}
	if spec.DailyStartMin >= spec.DailyEndMin {
		return nil, errors.New("daily_start must be before daily_end")
	}

	rangeStart := dateOnlyUTC(spec.RangeStart)
	rangeEnd := dateOnlyUTC(spec.RangeEnd)
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("range_end must not be before range_start")
	}

	weekdays, err := normalizeWeekdays(spec.Weekdays)
	if err != nil {
		return nil, err
	}

	byWeekday := make(map[int16]struct{}, len(weekdays))
	for _, wd := range weekdays {
		byWeekday[wd] = struct{}{}
	}

	duration := time.Duration(spec.DurationMinutes) * time.Minute
	out := make([]SlotCandidate, 0, 16)

	for day := rangeStart; !day.After(rangeEnd); day = day.AddDate(0, 0, 1) {
		if _, ok := byWeekday[isoWeekday(day)]; !ok {
			continue
		}

		dayEnd := day.Add(time.Duration(spec.DailyEndMin) * time.Minute)
		for cursor := day.Add(time.Duration(spec.DailyStartMin) * time.Minute); ; cursor = cursor.Add(duration) {
			next := cursor.Add(duration)
			if next.After(dayEnd) {
				break
			}
			out = append(out, SlotCandidate{
				TechnicianID: spec.TechnicianID,
				StartTime:    cursor,
				EndTime:      next,
			})
		}
	}

	return out, nil
}

func normalizeWeekdays(weekdays []int16) ([]int16, error) {
	out := make([]int16, 0, len(weekdays))
	seen := make(map[int16]struct{}, len(weekdays))
	for _, wd := range weekdays {
		if wd < 1 || wd > 7 {
			return nil, errors.New("invalid weekday")
		}
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		out = append(out, wd)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one weekday is required")
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func dateOnlyUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func isoWeekday(t time.Time) int16 {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int16(t.Weekday())
}
