// Package email provides the transactional email layer: one provider
// contract backed by SES, the SparkPost API, or plain SMTP, a static Liquid
// template table, and concurrent batch sending with isolate-and-collect
// semantics.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edustack/academy-api/internal/pkg/logger"
	"github.com/edustack/academy-api/internal/provider"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// Receipt is returned by a provider after a successful send.
type Receipt struct {
	MessageID string        `json:"message_id"`
	Provider  string        `json:"provider"`
	Elapsed   time.Duration `json:"-"`
}

// Provider is the capability contract every concrete email backend
// implements. Selection happens once at construction, never per call.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Send(ctx context.Context, msg Message) (*Receipt, error)
	Probe(ctx context.Context) error
}

// ErrUnavailable is returned when the email provider failed bootstrap and
// sending is disabled.
var ErrUnavailable = errors.New("email provider unavailable")

// BatchResult is the per-recipient outcome of SendBatch.
type BatchResult struct {
	Recipient string   `json:"recipient"`
	Receipt   *Receipt `json:"receipt,omitempty"`
	Err       error    `json:"-"`
}

// Service wraps a Provider with template rendering, availability gating,
// logging, and batch fan-out.
type Service struct {
	provider  Provider
	from      string
	fromName  string
	workers   int
	available atomic.Bool
}

// NewService creates an email service over the given provider.
func NewService(p Provider, fromEmail, fromName string, batchWorkers int) *Service {
	if batchWorkers <= 0 {
		batchWorkers = 8
	}
	return &Service{
		provider: p,
		from:     fromEmail,
		fromName: fromName,
		workers:  batchWorkers,
	}
}

// SetAvailable marks the provider usable. Called by the bootstrapper.
func (s *Service) SetAvailable(ok bool) { s.available.Store(ok) }

// Available reports whether the underlying provider initialized.
func (s *Service) Available() bool { return s.available.Load() }

// ProviderName returns the active provider's identity.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Send delivers one message through the provider.
func (s *Service) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if !s.available.Load() {
		return nil, ErrUnavailable
	}
	if !strings.Contains(msg.To, "@") {
		return nil, fmt.Errorf("invalid recipient %q", msg.To)
	}

	start := time.Now()
	receipt, err := s.provider.Send(ctx, msg)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("email send failed",
			"provider", s.provider.Name(),
			"recipient", msg.To,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error())
		return nil, &provider.CallError{Provider: s.provider.Name(), Op: "send", Elapsed: elapsed, Err: err}
	}
	receipt.Elapsed = elapsed

	logger.Info("email sent",
		"provider", s.provider.Name(),
		"recipient", msg.To,
		"message_id", receipt.MessageID,
		"elapsed_ms", elapsed.Milliseconds())
	return receipt, nil
}

// sendTemplate renders a named template and delivers it.
func (s *Service) sendTemplate(ctx context.Context, kind TemplateKind, to string, data map[string]interface{}) (*Receipt, error) {
	msg, err := Render(kind, to, data)
	if err != nil {
		return nil, fmt.Errorf("rendering %s template: %w", kind, err)
	}
	return s.Send(ctx, msg)
}

// SendOTP sends a one-time passcode.
func (s *Service) SendOTP(ctx context.Context, to, code string) (*Receipt, error) {
	return s.sendTemplate(ctx, TemplateOTP, to, map[string]interface{}{
		"code":    code,
		"minutes": 10,
	})
}

// SendWelcome sends the account welcome message.
func (s *Service) SendWelcome(ctx context.Context, to, name string) (*Receipt, error) {
	return s.sendTemplate(ctx, TemplateWelcome, to, map[string]interface{}{
		"name": name,
	})
}

// SendEnrollmentConfirmation confirms a course enrollment.
func (s *Service) SendEnrollmentConfirmation(ctx context.Context, to, name, course string) (*Receipt, error) {
	return s.sendTemplate(ctx, TemplateEnrollmentConfirmation, to, map[string]interface{}{
		"name":   name,
		"course": course,
	})
}

// SendPaymentReceipt sends a payment receipt.
func (s *Service) SendPaymentReceipt(ctx context.Context, to, name, course string, amount float64, currency, reference string) (*Receipt, error) {
	return s.sendTemplate(ctx, TemplatePaymentReceipt, to, map[string]interface{}{
		"name":      name,
		"course":    course,
		"amount":    fmt.Sprintf("%.2f", amount),
		"currency":  currency,
		"reference": reference,
	})
}

// SendNotification sends a generic notification.
func (s *Service) SendNotification(ctx context.Context, to, subject, body string) (*Receipt, error) {
	return s.sendTemplate(ctx, TemplateNotification, to, map[string]interface{}{
		"subject": subject,
		"body":    body,
	})
}

// SendBatch delivers one message per recipient concurrently. One recipient's
// failure never aborts the others; a failed send gets a single isolated
// retry. Results are returned in input order.
func (s *Service) SendBatch(ctx context.Context, msgs []Message) []BatchResult {
	results := make([]BatchResult, len(msgs))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range msgs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			msg := msgs[i]
			receipt, err := s.Send(ctx, msg)
			if err != nil && ctx.Err() == nil && !errors.Is(err, ErrUnavailable) {
				// One retry, isolated to this recipient.
				receipt, err = s.Send(ctx, msg)
			}
			results[i] = BatchResult{Recipient: msg.To, Receipt: receipt, Err: err}
		}(i)
	}
	wg.Wait()

	return results
}
