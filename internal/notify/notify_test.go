package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingSender struct {
	mu   sync.Mutex
	got  []Event
	err  error
	slow time.Duration
}

func (s *recordingSender) Send(ctx context.Context, event Event) error {
	if s.slow > 0 {
		select {
		case <-time.After(s.slow):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, event)
	return s.err
}

func (s *recordingSender) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.got))
	copy(out, s.got)
	return out
}

func testEvent(kind EventKind) Event {
	return Event{
		Kind:       kind,
		RequestID:  uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		ClientID:   "c1",
		Motive:     "noisy fridge",
		OccurredAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_DeliversQueuedEventsOnClose(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(16, nil, sender)

	d.Emit(testEvent(EventRequested))
	d.Emit(testEvent(EventConfirmed))
	d.Emit(testEvent(EventCancelled))
	d.Close()

	got := sender.events()
	if len(got) != 3 {
		t.Fatalf("delivered = %d events, want 3", len(got))
	}
	want := []EventKind{EventRequested, EventConfirmed, EventCancelled}
	for i, ev := range got {
		if ev.Kind != want[i] {
			t.Fatalf("event %d kind = %q, want %q", i, ev.Kind, want[i])
		}
	}
}

func TestDispatcher_FanOutToAllSenders(t *testing.T) {
	first := &recordingSender{err: errors.New("smtp down")}
	second := &recordingSender{}
	d := NewDispatcher(4, nil, first, second)

	d.Emit(testEvent(EventRejected))
	d.Close()

	if len(first.events()) != 1 {
		t.Fatalf("first sender saw %d events, want 1", len(first.events()))
	}
	// A failing sender must not stop delivery to the rest.
	if len(second.events()) != 1 {
		t.Fatalf("second sender saw %d events, want 1", len(second.events()))
	}
}

func TestDispatcher_EmitNeverBlocksWhenBufferFull(t *testing.T) {
	// The worker is stalled in a slow sender, so the single-slot buffer
	// overflows almost immediately.
	sender := &recordingSender{slow: 50 * time.Millisecond}
	d := NewDispatcher(1, nil, sender)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			d.Emit(testEvent(EventRequested))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with a full buffer")
	}
	d.Close()
}

func TestRecipientAddresses(t *testing.T) {
	tests := []struct {
		name    string
		kind    EventKind
		manager string
		want    []string
	}{
		{"requested adds manager", EventRequested, "sav@acme.test", []string{"c1@acme.test", "sav@acme.test"}},
		{"requested without manager configured", EventRequested, "", []string{"c1@acme.test"}},
		{"confirmed stays client only", EventConfirmed, "sav@acme.test", []string{"c1@acme.test"}},
		{"cancelled stays client only", EventCancelled, "sav@acme.test", []string{"c1@acme.test"}},
		{"manager address never duplicated", EventRequested, "c1@acme.test", []string{"c1@acme.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recipientAddresses(tt.kind, "c1@acme.test", tt.manager)
			if len(got) != len(tt.want) {
				t.Fatalf("recipients = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("recipients = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(4, nil, &recordingSender{})
	d.Close()
	d.Close()
}
