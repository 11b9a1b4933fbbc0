package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/resilience"
	"github.com/AutomataNexus/remote-portal/internal/shared/httpclient"
	"go.uber.org/zap"
)

// Notification types.
const (
	TypeAlert   = "alert"
	TypeInfo    = "info"
	TypeWarning = "warning"
	TypeError   = "error"
)

var (
	// ErrInvalidNotification is returned for a request missing subject or message.
	ErrInvalidNotification = errors.New("subject and message are required")
	// ErrProviderRejected wraps any failure to hand the email to the provider.
	ErrProviderRejected = errors.New("email provider rejected notification")
)

// Notification is the body of POST /api/notifications.
type Notification struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Normalize fills the default type and checks required fields.
func (n *Notification) Normalize() error {
	n.Subject = strings.TrimSpace(n.Subject)
	if n.Subject == "" || strings.TrimSpace(n.Message) == "" {
		return ErrInvalidNotification
	}
	n.Type = strings.ToLower(strings.TrimSpace(n.Type))
	if n.Type == "" {
		n.Type = TypeAlert
	}
	return nil
}

// Config configures the sender.
type Config struct {
	APIKey   string
	From     string
	To       string
	BaseURL  string
	Serial   string
	Location string
	// RatePerSecond caps calls to the provider; zero means unlimited.
	RatePerSecond float64
	// Breaker fails sends fast after repeated provider failures. The zero
	// value leaves every send going to the provider.
	Breaker resilience.Settings
}

// OutcomeRecorder counts send outcomes.
type OutcomeRecorder interface {
	RecordNotification(category, outcome string)
}

// Sender delivers notifications through the Resend email API.
type Sender struct {
	cfg      Config
	client   *httpclient.Client
	breaker  *resilience.Breaker
	logger   *zap.Logger
	outcomes OutcomeRecorder
	now      func() time.Time
}

// NewSender creates a sender. outcomes may be nil.
func NewSender(cfg Config, logger *zap.Logger, outcomes OutcomeRecorder) *Sender {
	client := httpclient.New(httpclient.Options{
		BaseURL:       cfg.BaseURL,
		RatePerSecond: cfg.RatePerSecond,
	})
	client.SetBearerAuth(cfg.APIKey)

	settings := cfg.Breaker
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("email circuit changed state",
				zap.String("upstream", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}

	return &Sender{
		cfg:      cfg,
		client:   client,
		breaker:  resilience.New("resend", settings),
		logger:   logger,
		outcomes: outcomes,
		now:      time.Now,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type providerError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send renders and delivers n, returning the provider's message id.
func (s *Sender) Send(ctx context.Context, n Notification) (string, error) {
	if err := n.Normalize(); err != nil {
		return "", err
	}

	id, err := resilience.Do(ctx, s.breaker, func(ctx context.Context) (string, error) {
		return s.send(ctx, n)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", ErrProviderRejected, err)
	}
	if err != nil {
		s.logger.Error("email notification failed",
			zap.String("subject", n.Subject),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		s.record(metricCategory(n.Type), "error")
		return "", err
	}

	s.logger.Info("email notification sent",
		zap.String("subject", n.Subject),
		zap.String("message_id", id),
	)
	s.record(metricCategory(n.Type), "sent")
	return id, nil
}

func (s *Sender) send(ctx context.Context, n Notification) (string, error) {
	html, err := render(n, s.cfg.Serial, s.cfg.Location, s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}

	req, err := s.client.Request(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProviderRejected, err)
	}

	var (
		result  sendResponse
		failure providerError
	)
	resp, err := req.
		SetBody(sendRequest{
			From:    s.cfg.From,
			To:      []string{s.cfg.To},
			Subject: fmt.Sprintf("[%s] %s", strings.ToUpper(n.Type), n.Subject),
			HTML:    html,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProviderRejected, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode(), failure.Message)
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: response carried no message id", ErrProviderRejected)
	}
	return result.ID, nil
}

// metricCategory bounds the metric label to the known types.
func metricCategory(kind string) string {
	switch kind {
	case TypeAlert, TypeInfo, TypeWarning, TypeError:
		return kind
	default:
		return "other"
	}
}

func (s *Sender) record(category, outcome string) {
	if s.outcomes != nil {
		s.outcomes.RecordNotification(category, outcome)
	}
}
