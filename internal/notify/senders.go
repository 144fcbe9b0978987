package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// LogSender records every event; it is always installed so transitions stay
// observable even with no delivery channel configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With(slog.String("component", "notify.log"))}
}

func (s *LogSender) Send(ctx context.Context, event Event) error {
	s.log.Info(
		"notification",
		slog.String("kind", string(event.Kind)),
		slog.String("request_id", event.RequestID.String()),
		slog.String("client_id", event.ClientID),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

type EmailSenderConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// ManagerEmail is the mailbox of the manager team handling incoming
	// requests. Optional.
	ManagerEmail string
}

// EmailSender delivers events as SendGrid mails. The client directory owning
// address resolution lives outside this core, so the client id doubles as the
// recipient address when no resolver is configured.
type EmailSender struct {
	cfg     EmailSenderConfig
	resolve func(ctx context.Context, clientID string) (string, error)
}

func NewEmailSender(cfg EmailSenderConfig, resolve func(ctx context.Context, clientID string) (string, error)) *EmailSender {
	return &EmailSender{cfg: cfg, resolve: resolve}
}

func (s *EmailSender) Send(ctx context.Context, event Event) error {
	address := event.ClientID
	if s.resolve != nil {
		resolved, err := s.resolve(ctx, event.ClientID)
		if err != nil {
			return fmt.Errorf("resolve recipient: %w", err)
		}
		address = resolved
	}

	subject, body := composeEmail(event)
	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	client := sendgrid.NewSendClient(s.cfg.APIKey)

	for _, addr := range recipientAddresses(event.Kind, address, s.cfg.ManagerEmail) {
		message := mail.NewSingleEmail(from, subject, mail.NewEmail("", addr), body, "")
		resp, err := client.SendWithContext(ctx, message)
		if err != nil {
			return fmt.Errorf("sendgrid send: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("sendgrid status %d", resp.StatusCode)
		}
	}
	return nil
}

// New requests are also addressed to the manager mailbox so pending work is
// noticed; settled transitions concern the client only.
func recipientAddresses(kind EventKind, clientAddr, managerAddr string) []string {
	out := []string{clientAddr}
	if kind == EventRequested && managerAddr != "" && managerAddr != clientAddr {
		out = append(out, managerAddr)
	}
	return out
}

func composeEmail(event Event) (subject, body string) {
	switch event.Kind {
	case EventRequested:
		subject = "Your appointment request was received"
	case EventConfirmed:
		subject = "Your appointment is confirmed"
	case EventRejected:
		subject = "Your appointment request was declined"
	case EventCancelled:
		subject = "Your appointment was cancelled"
	default:
		subject = "Appointment update"
	}

	body = fmt.Sprintf("Request %s: %s", event.RequestID, event.Motive)
	if event.SlotStart != nil {
		body = fmt.Sprintf("%s\nScheduled for %s", body, event.SlotStart.Format("2006-01-02 15:04 MST"))
	}
	return subject, body
}
