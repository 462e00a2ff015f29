package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mirror520/first-web3/service/metrics"
)

// Publisher defines the interface for publishing dashboard events to NATS.
type Publisher interface {
	// PublishAccountUpdate publishes an account view event to JetStream.
	// The event is published to the subject "dashboard.account.{wallet_address}".
	PublishAccountUpdate(ctx context.Context, event *AccountEvent) error

	// PublishTransfer publishes a transfer lifecycle event to JetStream.
	// The event is published to the subject "dashboard.transfers.{wallet_address}".
	PublishTransfer(ctx context.Context, event *TransferEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes dashboard events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for dashboard events.
	StreamName = "DASHBOARD"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "dashboard.>"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
// If m is nil, no metrics will be recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	// Connect to NATS
	nc, err := nats.Connect(natsURL,
		nats.Name("first-web3-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	// Ensure stream exists
	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Try to get existing stream
	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		// Stream exists, log info
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	// Stream doesn't exist, create it
	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Account and transfer events from the wallet dashboard",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	_, err = p.js.CreateStream(ctx, streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishAccountUpdate publishes an account view event.
func (p *JetStreamPublisher) PublishAccountUpdate(ctx context.Context, event *AccountEvent) error {
	subject := fmt.Sprintf("dashboard.account.%s", event.WalletAddress)

	if err := p.publish(ctx, subject, event); err != nil {
		return fmt.Errorf("failed to publish account update: %w", err)
	}

	p.logger.Debug("published account event",
		"subject", subject,
		"wallet", event.WalletAddress,
		"state", event.State,
	)

	return nil
}

// PublishTransfer publishes a transfer lifecycle event.
func (p *JetStreamPublisher) PublishTransfer(ctx context.Context, event *TransferEvent) error {
	subject := fmt.Sprintf("dashboard.transfers.%s", event.WalletAddress)

	if err := p.publish(ctx, subject, event); err != nil {
		return fmt.Errorf("failed to publish transfer: %w", err)
	}

	p.logger.Debug("published transfer event",
		"subject", subject,
		"signature", event.Signature,
		"wallet", event.WalletAddress,
	)

	return nil
}

// publish marshals the event and publishes it to JetStream, recording
// publish metrics.
func (p *JetStreamPublisher) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(subject, status, duration)
	}

	return err
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
