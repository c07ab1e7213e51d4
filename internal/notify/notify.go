// Package notify delivers fire-and-forget notification events to
// downstream consumers. Delivery failures are logged, never propagated:
// a notification must not roll back the ledger transaction it describes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
	"github.com/refnet-platform/walletops/internal/observability"
)

// Sink receives notification events after the emitting transaction
// commits.
type Sink interface {
	Publish(ctx context.Context, n domain.Notification)
}

// LogSink writes events to the structured log. Used in development and
// as the fallback when no broker is configured.
type LogSink struct {
	Logger zerolog.Logger
}

func (s *LogSink) Publish(_ context.Context, n domain.Notification) {
	observability.NotificationsPublished.WithLabelValues(n.Kind).Inc()
	s.Logger.Info().
		Str("event_id", n.EventID.String()).
		Int64("account_id", n.AccountID).
		Str("kind", n.Kind).
		Str("message", n.Message).
		Msg("notification")
}

// NATSSink publishes events to wallet.events.<kind> subjects.
type NATSSink struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func NewNATSSink(url string, logger zerolog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("walletops-notify"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSSink{conn: conn, logger: logger}, nil
}

func (s *NATSSink) Publish(_ context.Context, n domain.Notification) {
	observability.NotificationsPublished.WithLabelValues(n.Kind).Inc()

	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", n.Kind).Msg("marshal notification")
		return
	}
	subject := fmt.Sprintf("wallet.events.%s", n.Kind)
	if err := s.conn.Publish(subject, data); err != nil {
		// Non-fatal: consumers can read the notifications table directly.
		s.logger.Warn().Err(err).Str("subject", subject).Msg("outbound publish failed")
	}
}

func (s *NATSSink) Close() {
	s.conn.Close()
}
