package wallet

import (
	"context"
	"log/slog"
	"sync"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/mirror520/first-web3/service/pubsub"
	"github.com/mirror520/first-web3/service/solana"
)

// Session holds the single current wallet. Replacing the wallet
// disconnects the previous one first (best-effort) and detaches its
// connect listener before the new one is attached, so a late connect event
// from a replaced wallet can never masquerade as the current one.
type Session struct {
	logger *slog.Logger

	mu           sync.Mutex
	current      Adapter
	detach       func() // unsubscribes the current adapter's connect stream
	walletChange *pubsub.Stream[solanago.PublicKey]
}

// NewSession creates an empty wallet session.
func NewSession(logger *slog.Logger) *Session {
	return &Session{
		logger:       logger,
		walletChange: pubsub.NewStream[solanago.PublicKey](),
	}
}

// SetCurrent binds adapter as the current wallet, or clears the session
// when adapter is nil. A previously bound wallet is disconnected exactly
// once; disconnect failure is logged, never propagated. Clearing does not
// emit a wallet-changed event — absence is not a change worth
// broadcasting.
func (s *Session) SetCurrent(ctx context.Context, adapter Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if s.detach != nil {
			s.detach()
			s.detach = nil
		}

		if err := s.current.Disconnect(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to disconnect previous wallet",
				"wallet", s.current.Name(),
				"error", err,
			)
		}
		s.current = nil
	}

	if adapter == nil {
		return
	}

	s.current = adapter

	// Republish the adapter's connect events as session-level wallet
	// changes until the adapter is replaced.
	events, unsubscribe := adapter.Connected()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case pubkey, ok := <-events:
				if !ok {
					return
				}
				s.logger.DebugContext(ctx, "wallet connected",
					"wallet", adapter.Name(),
					"pubkey", pubkey.String(),
				)
				s.walletChange.Publish(pubkey)
			case <-done:
				return
			}
		}
	}()

	s.detach = func() {
		unsubscribe()
		close(done)
	}
}

// Current returns the live current adapter, or nil. Callers receive the
// reference itself, never a copy.
func (s *Session) Current() Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Changes returns a subscription to wallet-changed events (the public key
// of a wallet that has just become available).
func (s *Session) Changes() (<-chan solanago.PublicKey, func()) {
	return s.walletChange.Subscribe()
}

// SendTransaction submits the envelope through the current wallet.
func (s *Session) SendTransaction(ctx context.Context, envelope *solana.TransferEnvelope, conn *solana.Connection) (solanago.Signature, error) {
	current := s.Current()
	if current == nil {
		return solanago.Signature{}, ErrNoWallet
	}
	return current.SendTransaction(ctx, envelope, conn)
}
