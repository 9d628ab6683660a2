package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

// Consumer reads response events back out of JetStream.
type Consumer struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Logger
}

// NewConsumer connects to NATS for consuming response events.
func NewConsumer(natsURL string, logger *logrus.Logger) (*Consumer, error) {
	if logger == nil {
		logger = logrus.New()
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("pft-node-subscriber"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Consumer{nc: nc, js: js, logger: logger}, nil
}

// Consume delivers new response events to the handler until ctx is done.
// An empty wallet subscribes to responses for every recipient.
func (c *Consumer) Consume(ctx context.Context, wallet string, handler func(*ResponseEvent)) error {
	subject := StreamSubjects
	if wallet != "" {
		subject = fmt.Sprintf("%s.%s", constants.NatsSubjectPrefix, wallet)
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, constants.NatsStreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event ResponseEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			c.logger.WithError(err).Warn("skipping malformed response event")
			_ = msg.Ack()
			return
		}
		handler(&event)
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.WithField("subject", subject).Info("subscribed to response events")

	<-ctx.Done()
	cc.Stop()
	return nil
}

// Close closes the connection to NATS.
func (c *Consumer) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
