package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const publishTimeout = 5 * time.Second

// Client publishes ranking events. Implementations must be safe for concurrent use.
type Client interface {
	Publish(subject string, data interface{}) error
	Close()
}

// NATSClient writes events to the rankings JetStream stream. When the stream
// cannot be created it degrades to core NATS publishes.
type NATSClient struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	buffered bool
	logger   *slog.Logger
}

func NewNATSClient(ctx context.Context, url string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url,
		nats.Name("pipeselect"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	maxAge, _ := time.ParseDuration(StreamMaxAge)
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectRankingWildcard},
		MaxAge:     maxAge,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		logger.Warn("rankings stream unavailable, publishing without persistence", "stream", StreamName, "error", err)
	}

	return &NATSClient{conn: nc, js: js, buffered: err == nil, logger: logger}, nil
}

// Publish sends data as JSON. Subjects embed the run ID, so the subject doubles
// as the dedup ID and a retried publish is stored once.
func (c *NATSClient) Publish(subject string, data interface{}) error {
	msg, err := newMessage(subject, data)
	if err != nil {
		return err
	}
	if !c.buffered {
		return c.conn.PublishMsg(msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := c.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func newMessage(subject string, data interface{}) (*nats.Msg, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(jetstream.MsgIDHeader, subject)
	msg.Header.Set("Content-Type", "application/json")
	return msg, nil
}

func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.conn.Close()
	}
}
