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

// Publisher defines the interface for publishing response events to NATS.
type Publisher interface {
	// PublishResponse publishes a single response event to JetStream on
	// the subject "responses.{recipient_wallet}".
	PublishResponse(ctx context.Context, event *ResponseEvent) error

	// Close closes the connection to NATS.
	Close() error
}

const (
	// StreamSubjects is the subject pattern covered by the stream.
	StreamSubjects = constants.NatsSubjectPrefix + ".*"

	// StreamRetention is how long events are retained.
	StreamRetention = 30 * 24 * time.Hour
)

// JetStreamPublisher publishes response events to NATS JetStream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Logger
}

// NewPublisher connects to NATS and ensures the response stream exists.
func NewPublisher(natsURL string, logger *logrus.Logger) (*JetStreamPublisher, error) {
	if logger == nil {
		logger = logrus.New()
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("pft-node-publisher"),
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

	publisher := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"url":    natsURL,
		"stream": constants.NatsStreamName,
	}).Info("NATS publisher initialized")

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, constants.NatsStreamName)
	if err == nil {
		if info, err := stream.Info(ctx); err == nil {
			p.logger.WithFields(logrus.Fields{
				"stream":   constants.NatsStreamName,
				"messages": info.State.Msgs,
			}).Debug("JetStream stream already exists")
		}
		return nil
	}

	p.logger.WithField("stream", constants.NatsStreamName).Info("creating JetStream stream")

	streamConfig := jetstream.StreamConfig{
		Name:        constants.NatsStreamName,
		Description: "Response events from the payment node",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := p.js.CreateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishResponse publishes a single response event.
func (p *JetStreamPublisher) PublishResponse(ctx context.Context, event *ResponseEvent) error {
	subject := fmt.Sprintf("%s.%s", constants.NatsSubjectPrefix, event.Recipient)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal response event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish response: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":   subject,
		"signature": event.ResponseSignature,
	}).Debug("published response event")

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
