package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventRequested EventKind = "rdv.requested"
	EventConfirmed EventKind = "rdv.confirmed"
	EventRejected  EventKind = "rdv.rejected"
	EventCancelled EventKind = "rdv.cancelled"
)

// Event is one outbound notification produced synchronously with a request
// state transition. Delivery is best-effort and never affects the transition.
type Event struct {
	Kind       EventKind  `json:"kind"`
	RequestID  uuid.UUID  `json:"request_id"`
	ClientID   string     `json:"client_id"`
	SlotID     *uuid.UUID `json:"slot_id,omitempty"`
	SlotStart  *time.Time `json:"slot_start,omitempty"`
	Motive     string     `json:"motive"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Emitter interface {
	Emit(event Event)
}

// Sender delivers one event to a client-facing channel (log, email, ...).
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// Dispatcher decouples transition success from delivery: Emit enqueues onto a
// buffered channel and never blocks; a worker goroutine fans events out to the
// configured senders, logging failures and moving on.
type Dispatcher struct {
	events  chan Event
	senders []Sender
	log     *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(bufferSize int, log *slog.Logger, senders ...Sender) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		events:  make(chan Event, bufferSize),
		senders: senders,
		log:     log.With(slog.String("component", "notify.dispatcher")),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Emit(event Event) {
	select {
	case d.events <- event:
	default:
		d.log.Warn(
			"notification buffer full; event dropped",
			slog.String("kind", string(event.Kind)),
			slog.String("request_id", event.RequestID.String()),
		)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.events:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, s := range d.senders {
		if err := s.Send(ctx, ev); err != nil {
			d.log.Warn(
				"notification delivery failed",
				slog.Any("err", err),
				slog.String("kind", string(ev.Kind)),
				slog.String("request_id", ev.RequestID.String()),
			)
		}
	}
}

// Close drains already-queued events and stops the worker.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	<-d.done
}
