package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/alerting"
)

// Transport is the external collaborator that actually moves email and SMS.
// Retry and backoff, if any, live behind this interface, bounded and
// exponential; the dispatcher itself never retries.
type Transport interface {
	SendEmail(ctx context.Context, recipients []string, subject, body string) error
	SendSMS(ctx context.Context, recipients []string, body string) error
}

// EmailSender hands (recipients, subject, body) to the transport.
type EmailSender struct {
	transport Transport
}

func NewEmailSender(transport Transport) *EmailSender {
	return &EmailSender{transport: transport}
}

func (s *EmailSender) Type() ChannelType { return TypeEmail }

func (s *EmailSender) Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error {
	recipients := splitRecipients(ch.Config["recipients"])
	if len(recipients) == 0 {
		return fmt.Errorf("channel has no recipients configured")
	}
	if s.transport == nil {
		return fmt.Errorf("no email transport configured")
	}
	return s.transport.SendEmail(ctx, recipients, msg.Subject, msg.Body)
}

// SMSSender hands (recipients, body) to the transport. The subject is folded
// into the body since SMS has no subject line.
type SMSSender struct {
	transport Transport
}

func NewSMSSender(transport Transport) *SMSSender {
	return &SMSSender{transport: transport}
}

func (s *SMSSender) Type() ChannelType { return TypeSMS }

func (s *SMSSender) Deliver(ctx context.Context, alert alerting.Alert, msg Message, ch Channel) error {
	recipients := splitRecipients(ch.Config["recipients"])
	if len(recipients) == 0 {
		return fmt.Errorf("channel has no recipients configured")
	}
	if s.transport == nil {
		return fmt.Errorf("no sms transport configured")
	}
	return s.transport.SendSMS(ctx, recipients, msg.Subject+": "+msg.Body)
}

// LogTransport writes deliveries to the log instead of an upstream provider.
// Deployments without an email or SMS gateway still get a visible record of
// what would have been sent.
type LogTransport struct {
	Logger *logrus.Logger
}

func (t *LogTransport) SendEmail(ctx context.Context, recipients []string, subject, body string) error {
	t.Logger.WithFields(logrus.Fields{
		"recipients": recipients,
		"subject":    subject,
	}).Info("Email delivery (log transport)")
	return nil
}

func (t *LogTransport) SendSMS(ctx context.Context, recipients []string, body string) error {
	t.Logger.WithFields(logrus.Fields{
		"recipients": recipients,
	}).Info("SMS delivery (log transport)")
	return nil
}

func splitRecipients(raw string) []string {
	var out []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
