package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mirror520/first-web3/service/metrics"
)

// Client provides the dashboard's domain operations over a Connection.
// The connection is passed per call rather than held, because the active
// connection is replaced whenever the user switches clusters and in-flight
// work must keep using the handle it was issued under.
type Client struct {
	metrics *metrics.Metrics
	logger  *slog.Logger

	// confirmPollInterval is how often ConfirmTransaction re-checks the
	// signature status.
	confirmPollInterval time.Duration
}

// NewClient creates a new Solana client. If m is nil, no metrics will be
// recorded.
func NewClient(m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		metrics:             m,
		logger:              logger,
		confirmPollInterval: 500 * time.Millisecond,
	}
}

// record wraps an RPC call with duration and status metrics the way every
// call in this package is accounted.
func (c *Client) record(conn *Connection, method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, conn.cluster.String(), time.Since(start).Seconds())
}

// GetBalance returns the wallet's balance in SOL. A fetch failure is
// classified, not retried; the caller's next trigger is the retry path.
func (c *Client) GetBalance(ctx context.Context, conn *Connection, pubkey solana.PublicKey) (float64, error) {
	start := time.Now()
	out, err := conn.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	c.record(conn, "GetBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance",
			"wallet", pubkey.String(),
			"cluster", conn.cluster,
			"error", err,
		)
		return 0, newError(KindFetch, err)
	}

	return float64(out.Value) / LamportsPerSOL, nil
}

// RequestAirdrop asks the cluster faucet to credit lamports to the wallet.
// Only test clusters run a faucet; mainnet requests fail at the RPC layer.
func (c *Client) RequestAirdrop(ctx context.Context, conn *Connection, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	start := time.Now()
	sig, err := conn.rpc.RequestAirdrop(ctx, pubkey, lamports, rpc.CommitmentConfirmed)
	c.record(conn, "RequestAirdrop", start, err)
	if err != nil {
		return solana.Signature{}, newError(KindSubmit, err)
	}

	c.logger.InfoContext(ctx, "airdrop requested",
		"wallet", pubkey.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)
	return sig, nil
}

// ConfirmTransaction polls the signature status until it reaches confirmed
// commitment, the context is done, or timeout elapses. A chain-reported
// error on the signature becomes a KindConfirm error; success is nil.
func (c *Client) ConfirmTransaction(ctx context.Context, conn *Connection, sig solana.Signature, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		start := time.Now()
		out, err := conn.rpc.GetSignatureStatuses(ctx, true, sig)
		c.record(conn, "GetSignatureStatuses", start, err)
		if err != nil {
			return newError(KindFetch, err)
		}

		if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]

			if status.Err != nil {
				// The chain rejected the transaction; surface the
				// reported error string for the presentation layer.
				return newError(KindConfirm, fmt.Errorf("transaction failed: %v", status.Err))
			}

			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				c.logger.DebugContext(ctx, "transaction confirmed",
					"signature", sig.String(),
					"slot", status.Slot,
				)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return newError(KindConfirm, fmt.Errorf("confirmation timed out: %w", ctx.Err()))
		case <-time.After(c.confirmPollInterval):
		}
	}
}
