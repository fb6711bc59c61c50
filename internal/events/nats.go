package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultSubjectPrefix   = "phonebook"
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

// Config holds the NATS publisher settings.
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string

	// BreakerFailures is the number of consecutive publish failures that
	// opens the circuit.
	BreakerFailures uint32
	// BreakerTimeout is how long the circuit stays open before a probe.
	BreakerTimeout time.Duration
}

// NATSPublisher publishes events on core NATS subjects behind a circuit
// breaker.
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to cfg.URL. The connection reconnects on its
// own; while it is down publishes fail and count against the breaker.
func NewNATSPublisher(cfg Config, logger zerolog.Logger) (*NATSPublisher, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.SubjectPrefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	name := cfg.Name
	if name == "" {
		name = Source
	}

	logger = logger.With().Str("component", "events").Logger()

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrlRedacted()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &NATSPublisher{
		conn:    conn,
		prefix:  prefix,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Subject returns the NATS subject for an event type.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends event. It returns gobreaker.ErrOpenState without touching
// the connection while the circuit is open.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	subject := p.Subject(event.Type)
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.conn.Publish(subject, body)
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}

// State reports the breaker state, e.g. for logging.
func (p *NATSPublisher) State() gobreaker.State {
	return p.breaker.State()
}
