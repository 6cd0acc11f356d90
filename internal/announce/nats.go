package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dom/stream-games/internal/metrics"
	"github.com/nats-io/nats.go"
)

// NATSAnnouncer publishes each message part to a subject a chat bridge
// relays to the channel.
type NATSAnnouncer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewNATSAnnouncer(url, subject string, logger *slog.Logger, m *metrics.Metrics) (*NATSAnnouncer, error) {
	conn, err := nats.Connect(url,
		nats.Name("stream-games announcer"),
		nats.Timeout(10*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}

	return &NATSAnnouncer{
		conn:    conn,
		subject: subject,
		logger:  logger,
		metrics: m,
	}, nil
}

func (a *NATSAnnouncer) Announce(ctx context.Context, text string) error {
	for _, part := range Split(text, MaxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.conn.Publish(a.subject, []byte(part)); err != nil {
			a.count("error")
			return fmt.Errorf("publishing announcement: %w", err)
		}
		a.count("sent")
	}
	return a.conn.FlushWithContext(ctx)
}

func (a *NATSAnnouncer) Check(ctx context.Context) error {
	if !a.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

func (a *NATSAnnouncer) Close() error {
	return a.conn.Drain()
}

func (a *NATSAnnouncer) count(outcome string) {
	if a.metrics != nil {
		a.metrics.Announcements.WithLabelValues(outcome).Inc()
	}
}
