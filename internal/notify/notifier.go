// Package notify sends transactional email. Delivery is best-effort
// throughout the system: entitlement operations log failures and move on.
package notify

import (
	"context"
	"time"

	"github.com/resend/resend-go/v2"
)

// Message is one outbound email. ScheduledAt, when non-zero, asks the
// provider to deliver later instead of immediately.
type Message struct {
	To          string
	Subject     string
	HTML        string
	ScheduledAt time.Time
}

// Notifier delivers a single message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ResendNotifier delivers through the Resend API.
type ResendNotifier struct {
	client *resend.Client
	from   string
}

// NewResendNotifier returns a notifier sending from the given address
// (e.g. `RATCHOPPER <noreply@bts.ratchoppermusic.com>`).
func NewResendNotifier(apiKey, from string) *ResendNotifier {
	return &ResendNotifier{client: resend.NewClient(apiKey), from: from}
}

func (r *ResendNotifier) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if !msg.ScheduledAt.IsZero() {
		req.ScheduledAt = msg.ScheduledAt.UTC().Format(time.RFC3339)
	}
	_, err := r.client.Emails.SendWithContext(ctx, req)
	if err != nil && !msg.ScheduledAt.IsZero() {
		// Scheduling is optional polish; retry once as an immediate send.
		req.ScheduledAt = ""
		_, err = r.client.Emails.SendWithContext(ctx, req)
	}
	return err
}
