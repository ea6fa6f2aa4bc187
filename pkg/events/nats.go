package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "chess.events"

// natsConn is the slice of *nats.Conn the forwarder needs
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSForwarder republishes every in-process event on NATS so other services
// can follow games without talking to the websocket gateway.
type NATSForwarder struct {
	conn   natsConn
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials the NATS server and returns a forwarder on top of it
func ConnectNATS(url, prefix string, logger *zap.Logger) (*NATSForwarder, error) {
	opts := []nats.Option{
		nats.Name("chess-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return newNATSForwarder(nc, prefix, logger), nil
}

func newNATSForwarder(conn natsConn, prefix string, logger *zap.Logger) *NATSForwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &NATSForwarder{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Attach subscribes the forwarder to every event of the publisher
func (f *NATSForwarder) Attach(p *Publisher) {
	p.SubscribeAll(f.Forward)
}

// Subject returns the NATS subject an event type is published on
func (f *NATSForwarder) Subject(t EventType) string {
	return f.prefix + "." + strings.ToLower(string(t))
}

// Forward publishes a single event. Failures are logged, never returned:
// the gateway keeps running when the broker is away.
func (f *NATSForwarder) Forward(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("Error marshaling event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	if err := f.conn.Publish(f.Subject(event.Type), data); err != nil {
		f.logger.Warn("NATS publish failed",
			zap.String("subject", f.Subject(event.Type)),
			zap.Error(err),
		)
	}
}

// Close drains pending messages and closes the connection
func (f *NATSForwarder) Close() error {
	if err := f.conn.Drain(); err != nil {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
