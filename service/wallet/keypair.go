package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"github.com/mirror520/first-web3/service/pubsub"
	"github.com/mirror520/first-web3/service/solana"
)

// KeypairAdapter is a wallet backed by a local ed25519 keypair. It signs
// transfer envelopes in-process and submits them itself.
type KeypairAdapter struct {
	priv   solanago.PrivateKey
	pub    solanago.PublicKey
	logger *slog.Logger

	connected *pubsub.Stream[solanago.PublicKey]
}

// NewKeypairAdapter creates a wallet from a private key string: either a
// base58-encoded 64-byte key or a solana-keygen JSON byte array.
func NewKeypairAdapter(privateKey string, logger *slog.Logger) (*KeypairAdapter, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	return &KeypairAdapter{
		priv:      priv,
		pub:       priv.PublicKey(),
		logger:    logger,
		connected: pubsub.NewStream[solanago.PublicKey](),
	}, nil
}

// NewKeypairAdapterFromFile creates a wallet from a solana-keygen keypair
// file.
func NewKeypairAdapterFromFile(path string, logger *slog.Logger) (*KeypairAdapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	return NewKeypairAdapter(strings.TrimSpace(string(raw)), logger)
}

func (a *KeypairAdapter) Name() string { return "keypair" }

func (a *KeypairAdapter) PublicKey() solanago.PublicKey { return a.pub }

// Connect is immediate for a local keypair; it only announces the key.
func (a *KeypairAdapter) Connect(ctx context.Context) error {
	a.logger.DebugContext(ctx, "keypair wallet connected", "pubkey", a.pub.String())
	a.connected.Publish(a.pub)
	return nil
}

// Disconnect is a no-op for a local keypair.
func (a *KeypairAdapter) Disconnect(ctx context.Context) error {
	return nil
}

func (a *KeypairAdapter) Connected() (<-chan solanago.PublicKey, func()) {
	return a.connected.Subscribe()
}

// SendTransaction signs the envelope and submits it, pinning the
// envelope's MinContextSlot so the node never evaluates it against a state
// older than the blockhash's.
func (a *KeypairAdapter) SendTransaction(ctx context.Context, envelope *solana.TransferEnvelope, conn *solana.Connection) (solanago.Signature, error) {
	_, err := envelope.Tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(a.pub) {
			return &a.priv
		}
		return nil
	})
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	minContextSlot := envelope.MinContextSlot
	sig, err := conn.SendTransaction(ctx, envelope.Tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentProcessed,
		MinContextSlot:      &minContextSlot,
	})
	if err != nil {
		return solanago.Signature{}, err
	}

	a.logger.InfoContext(ctx, "transaction submitted",
		"signature", sig.String(),
		"min_context_slot", minContextSlot,
	)
	return sig, nil
}

// parsePrivateKey accepts a base58-encoded key or a solana-keygen JSON
// array of bytes.
func parsePrivateKey(s string) (solanago.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solanago.PrivateKey(b), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solanago.PrivateKey(raw), nil
}
