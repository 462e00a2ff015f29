package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mirror520/first-web3/service/metrics"
	natspkg "github.com/mirror520/first-web3/service/nats"
)

// SSEPublisher manages Server-Sent Events connections for dashboard event
// streaming.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	// Connect to NATS
	nc, err := nats.Connect(natsURL,
		nats.Name("first-web3-sse-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
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

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// handleStreamEvents handles SSE streaming of dashboard events.
// Without a wallet query parameter it streams every event; with one it
// streams only that wallet's account and transfer events.
// GET /api/v1/stream/events?wallet={address}
func handleStreamEvents(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("wallet")

		var subject string
		var walletDesc string
		if address == "" {
			subject = "dashboard.>"
			walletDesc = "all wallets"
		} else {
			subject = fmt.Sprintf("dashboard.*.%s", address)
			walletDesc = address
		}

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// Flush headers immediately
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		logger.DebugContext(r.Context(), "SSE client connected",
			"wallet", walletDesc,
			"remote_addr", r.RemoteAddr,
		)
		if m != nil {
			m.RecordSSEConnectionChange(walletDesc, 1)
			defer m.RecordSSEConnectionChange(walletDesc, -1)
		}

		// Create ephemeral consumer for this connection
		cons, err := publisher.js.CreateOrUpdateConsumer(r.Context(), natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject: subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverNewPolicy, // Only deliver new messages after consumer creation
			// Ephemeral - will be deleted when connection closes
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create consumer",
				"wallet", walletDesc,
				"error", err,
			)
			fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
			return
		}

		// Create buffered channel for messages
		msgChan := make(chan jetstream.Msg, 10)
		doneChan := make(chan struct{})

		// Start consuming messages
		go func() {
			defer close(doneChan)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-r.Context().Done():
					return
				}
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start consuming messages",
					"error", err,
				)
				return
			}
			// Wait for context to be done, then stop consuming
			<-r.Context().Done()
			cc.Stop()
		}()

		// Send initial connection event
		fmt.Fprintf(w, "event: connected\ndata: {\"wallet\":\"%s\"}\n\n", walletDesc)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		// Create ticker for keepalive comments (every 10 seconds)
		keepalive := time.NewTicker(10 * time.Second)
		defer keepalive.Stop()

		// Stream events to client
		for {
			select {
			case <-keepalive.C:
				// Send keepalive comment to prevent timeout
				fmt.Fprintf(w, ": keepalive\n\n")
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

			case msg := <-msgChan:
				// The subject's second token names the event type:
				// dashboard.account.{wallet} or dashboard.transfers.{wallet}.
				eventType := "event"
				if parts := strings.Split(msg.Subject(), "."); len(parts) >= 2 {
					eventType = strings.TrimSuffix(parts[1], "s")
				}

				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, string(msg.Data()))
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

				msg.Ack()
				if m != nil {
					m.RecordSSEEventSent(walletDesc, eventType)
				}

				logger.DebugContext(r.Context(), "sent dashboard event",
					"wallet", walletDesc,
					"subject", msg.Subject(),
				)

			case <-r.Context().Done():
				// Client disconnected
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"wallet", walletDesc,
					"remote_addr", r.RemoteAddr,
				)
				return

			case <-doneChan:
				// Consumer closed
				return
			}
		}
	})
}
