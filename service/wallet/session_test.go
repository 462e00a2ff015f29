package wallet

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirror520/first-web3/service/pubsub"
	"github.com/mirror520/first-web3/service/solana"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// stubAdapter is a scriptable wallet for session tests.
type stubAdapter struct {
	pub             solanago.PublicKey
	connected       *pubsub.Stream[solanago.PublicKey]
	disconnectCalls atomic.Int64

	sendSig solanago.Signature
	sendErr error
	sent    *solana.TransferEnvelope
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{
		pub:       solanago.NewWallet().PublicKey(),
		connected: pubsub.NewStream[solanago.PublicKey](),
	}
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) PublicKey() solanago.PublicKey { return a.pub }

func (a *stubAdapter) Connect(ctx context.Context) error {
	a.connected.Publish(a.pub)
	return nil
}

func (a *stubAdapter) Disconnect(ctx context.Context) error {
	a.disconnectCalls.Add(1)
	return nil
}

func (a *stubAdapter) Connected() (<-chan solanago.PublicKey, func()) {
	return a.connected.Subscribe()
}

func (a *stubAdapter) SendTransaction(ctx context.Context, envelope *solana.TransferEnvelope, conn *solana.Connection) (solanago.Signature, error) {
	a.sent = envelope
	return a.sendSig, a.sendErr
}

// receiveKey waits briefly for a wallet-changed event.
func receiveKey(t *testing.T, ch <-chan solanago.PublicKey) solanago.PublicKey {
	t.Helper()
	select {
	case pubkey := <-ch:
		return pubkey
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wallet change")
		return solanago.PublicKey{}
	}
}

// assertNoKey asserts that no wallet-changed event arrives.
func assertNoKey(t *testing.T, ch <-chan solanago.PublicKey) {
	t.Helper()
	select {
	case pubkey := <-ch:
		t.Fatalf("unexpected wallet change: %s", pubkey)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionSetCurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("republishes the adapter's connect events", func(t *testing.T) {
		session := NewSession(testLogger())
		changes, unsubscribe := session.Changes()
		defer unsubscribe()

		adapter := newStubAdapter()
		session.SetCurrent(ctx, adapter)
		require.NoError(t, adapter.Connect(ctx))

		assert.Equal(t, adapter.pub, receiveKey(t, changes))
		assert.Same(t, Adapter(adapter), session.Current())
	})

	t.Run("replacing disconnects and detaches the previous wallet", func(t *testing.T) {
		session := NewSession(testLogger())
		changes, unsubscribe := session.Changes()
		defer unsubscribe()

		first := newStubAdapter()
		second := newStubAdapter()

		session.SetCurrent(ctx, first)
		require.NoError(t, first.Connect(ctx))
		receiveKey(t, changes)

		session.SetCurrent(ctx, second)
		assert.Equal(t, int64(1), first.disconnectCalls.Load())

		// A late connect from the replaced wallet must not surface as a
		// session-level change.
		require.NoError(t, first.Connect(ctx))
		assertNoKey(t, changes)

		require.NoError(t, second.Connect(ctx))
		assert.Equal(t, second.pub, receiveKey(t, changes))
	})

	t.Run("clearing disconnects without emitting", func(t *testing.T) {
		session := NewSession(testLogger())

		adapter := newStubAdapter()
		session.SetCurrent(ctx, adapter)
		require.NoError(t, adapter.Connect(ctx))

		changes, unsubscribe := session.Changes()
		defer unsubscribe()

		session.SetCurrent(ctx, nil)
		assert.Equal(t, int64(1), adapter.disconnectCalls.Load())
		assert.Nil(t, session.Current())
		assertNoKey(t, changes)
	})

	t.Run("clearing an empty session is a no-op", func(t *testing.T) {
		session := NewSession(testLogger())
		session.SetCurrent(ctx, nil)
		assert.Nil(t, session.Current())
	})
}

func TestSessionSendTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("without a wallet", func(t *testing.T) {
		session := NewSession(testLogger())
		_, err := session.SendTransaction(ctx, &solana.TransferEnvelope{}, nil)
		require.ErrorIs(t, err, ErrNoWallet)
	})

	t.Run("delegates to the current wallet", func(t *testing.T) {
		session := NewSession(testLogger())
		adapter := newStubAdapter()
		adapter.sendSig = solanago.Signature{1, 2, 3}
		session.SetCurrent(ctx, adapter)

		envelope := &solana.TransferEnvelope{MinContextSlot: 42}
		sig, err := session.SendTransaction(ctx, envelope, nil)
		require.NoError(t, err)
		assert.Equal(t, adapter.sendSig, sig)
		assert.Same(t, envelope, adapter.sent)
	})
}
