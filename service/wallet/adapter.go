// Package wallet holds the wallet session: at most one current wallet
// adapter, replaced or cleared explicitly, with its public key republished
// on a typed change stream whenever the bound wallet connects.
package wallet

import (
	"context"
	"errors"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/mirror520/first-web3/service/solana"
)

// ErrNoWallet is returned when an operation needs a current wallet and the
// session holds none.
var ErrNoWallet = errors.New("no wallet connected")

// Adapter is the capability contract a wallet provider must satisfy.
// Distinct providers (local keypair, remote signer) are interchangeable
// behind it.
type Adapter interface {
	// Name identifies the provider, e.g. "keypair" or "remote".
	Name() string

	// PublicKey returns the wallet's public key. Only valid after Connect.
	PublicKey() solanago.PublicKey

	// Connect establishes the wallet session. Implementations emit the
	// public key on their Connected stream upon success.
	Connect(ctx context.Context) error

	// Disconnect tears the wallet session down. Idempotent.
	Disconnect(ctx context.Context) error

	// SendTransaction signs the envelope and submits it through the given
	// connection, honoring the envelope's MinContextSlot.
	SendTransaction(ctx context.Context, envelope *solana.TransferEnvelope, conn *solana.Connection) (solanago.Signature, error)

	// Connected returns a subscription to the adapter's connect events
	// and an unsubscribe function.
	Connected() (<-chan solanago.PublicKey, func())
}
