package solana

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mirror520/first-web3/service/metrics"
	"github.com/mirror520/first-web3/service/pubsub"
)

// Cluster identifies one of the independent Solana networks.
type Cluster string

const (
	MainBeta Cluster = "mainnet-beta"
	Testnet  Cluster = "testnet"
	Devnet   Cluster = "devnet"
)

// ParseCluster parses a cluster name. It accepts the canonical names used
// in config and over the API.
func ParseCluster(s string) (Cluster, error) {
	switch Cluster(s) {
	case MainBeta, Testnet, Devnet:
		return Cluster(s), nil
	default:
		return "", fmt.Errorf("unknown cluster %q", s)
	}
}

func (c Cluster) String() string { return string(c) }

// Connection is an immutable binding of a cluster to a live RPC client.
// Connections are replaced, never mutated; the sync core detects stale
// responses by comparing connection identity, so two Connect calls always
// yield two distinct values.
type Connection struct {
	cluster  Cluster
	endpoint string
	rpc      RPCClient
}

func (c *Connection) Cluster() Cluster { return c.cluster }
func (c *Connection) Endpoint() string { return c.endpoint }

// SendTransaction submits a signed transaction through this connection.
// Wallet adapters use it so submission always rides the connection the
// envelope was built against.
func (c *Connection) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, newError(KindSubmit, err)
	}
	return sig, nil
}

// Resolver maps a cluster selection to an RPC endpoint and owns the single
// active connection. Every successful Connect publishes exactly one change
// event; a failed Connect leaves the previous connection in place and
// publishes nothing.
type Resolver struct {
	mainnetURL    string
	skipRedundant bool
	dial          func(string) RPCClient
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu      sync.RWMutex
	current *Connection
	changes *pubsub.Stream[*Connection]
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDialer overrides how endpoint URLs become RPC clients. Tests use this
// to substitute mocks.
func WithDialer(dial func(string) RPCClient) ResolverOption {
	return func(r *Resolver) { r.dial = dial }
}

// WithSkipRedundantConnect controls whether re-selecting the already active
// cluster skips the reconnect. Defaults to true.
func WithSkipRedundantConnect(skip bool) ResolverOption {
	return func(r *Resolver) { r.skipRedundant = skip }
}

// NewResolver creates a cluster resolver. The mainnet endpoint must be a
// dedicated one; testnet and devnet resolve to the public cluster URLs.
// If m is nil, no metrics will be recorded.
func NewResolver(mainnetURL string, m *metrics.Metrics, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		mainnetURL:    mainnetURL,
		skipRedundant: true,
		dial:          NewRPCClient,
		metrics:       m,
		logger:        logger,
		changes:       pubsub.NewStream[*Connection](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// endpointFor resolves a cluster to its RPC endpoint URL.
func (r *Resolver) endpointFor(cluster Cluster) (string, error) {
	switch cluster {
	case Devnet:
		return rpc.DevNet_RPC, nil
	case Testnet:
		return rpc.TestNet_RPC, nil
	case MainBeta:
		// The public mainnet endpoint rate-limits browsers and services
		// alike; a dedicated endpoint is mandatory here.
		if r.mainnetURL == "" {
			return "", fmt.Errorf("no dedicated mainnet endpoint configured")
		}
		return r.mainnetURL, nil
	default:
		return "", fmt.Errorf("unknown cluster %q", cluster)
	}
}

// Connect resolves cluster to an endpoint, dials it, and verifies liveness
// with a node-version query. On success the new connection replaces the
// current one and a change event is published. On failure the previous
// connection is untouched.
func (r *Resolver) Connect(ctx context.Context, cluster Cluster) (*Connection, error) {
	if r.skipRedundant {
		if current := r.Current(); current != nil && current.cluster == cluster {
			r.logger.DebugContext(ctx, "cluster already active, skipping reconnect",
				"cluster", cluster,
			)
			return current, nil
		}
	}

	endpoint, err := r.endpointFor(cluster)
	if err != nil {
		return nil, newError(KindConnect, err)
	}

	conn := &Connection{
		cluster:  cluster,
		endpoint: endpoint,
		rpc:      r.dial(endpoint),
	}

	start := time.Now()
	version, err := conn.rpc.GetVersion(ctx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordRPCCall("GetVersion", status, cluster.String(), duration)
	}

	if err != nil {
		r.logger.ErrorContext(ctx, "liveness check failed",
			"cluster", cluster,
			"endpoint", endpoint,
			"error", err,
		)
		return nil, newError(KindConnect, fmt.Errorf("liveness check failed: %w", err))
	}

	r.mu.Lock()
	r.current = conn
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordConnectionSwap(cluster.String())
	}
	r.logger.InfoContext(ctx, "connected to cluster",
		"cluster", cluster,
		"node_version", version.SolanaCore,
	)

	r.changes.Publish(conn)
	return conn, nil
}

// Current returns the active connection, or nil before the first
// successful Connect.
func (r *Resolver) Current() *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Changes returns a subscription to connection replacements.
func (r *Resolver) Changes() (<-chan *Connection, func()) {
	return r.changes.Subscribe()
}
