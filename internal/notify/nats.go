// Package notify publishes decoded events to NATS so other services can
// react to them without reading the event store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"eventRelay/internal/model"
)

// Config holds NATS connection configuration.
type Config struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// DefaultConfig returns defaults for local development.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "event-relay",
		SubjectPrefix:  "events",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 10 * time.Second,
	}
}

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Connect dials NATS with reconnect handling logged through logger.
func Connect(cfg Config, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Notifier publishes every decoded event as one JSON message on
// <prefix>.<network>.<contract>.<event>.
type Notifier struct {
	pub    Publisher
	prefix string
}

func NewNotifier(pub Publisher, prefix string) *Notifier {
	return &Notifier{pub: pub, prefix: strings.Trim(prefix, ".")}
}

// Subject returns the subject an event record is published on.
func (n *Notifier) Subject(rec model.EventRecord) string {
	parts := []string{token(rec.Network), token(rec.Contract), token(rec.EventName)}
	if n.prefix != "" {
		parts = append([]string{n.prefix}, parts...)
	}
	return strings.Join(parts, ".")
}

// PutEvents publishes the batch in order.
func (n *Notifier) PutEvents(ctx context.Context, events []model.EventRecord) error {
	for _, rec := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", rec.EventName, err)
		}
		msg := nats.NewMsg(n.Subject(rec))
		msg.Data = data
		if id := messageID(rec); id != "" {
			msg.Header.Set(nats.MsgIdHdr, id)
		}
		if err := n.pub.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Subject, err)
		}
	}
	return nil
}

// messageID identifies a mined log so JetStream can drop republished copies.
func messageID(rec model.EventRecord) string {
	if rec.TransactionHash == nil || rec.LogIndex == nil {
		return ""
	}
	return rec.Network + ":" + rec.TransactionHash.Hex() + ":" + strconv.FormatUint(*rec.LogIndex, 10)
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
