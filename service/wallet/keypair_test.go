package wallet

import (
	"context"
	"encoding/json"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirror520/first-web3/service/solana"
)

func TestNewKeypairAdapter(t *testing.T) {
	priv := solanago.NewWallet().PrivateKey

	t.Run("base58 key", func(t *testing.T) {
		adapter, err := NewKeypairAdapter(priv.String(), testLogger())
		require.NoError(t, err)
		assert.Equal(t, priv.PublicKey(), adapter.PublicKey())
	})

	t.Run("solana-keygen JSON array", func(t *testing.T) {
		ints := make([]int, len(priv))
		for i, b := range priv {
			ints[i] = int(b)
		}
		raw, err := json.Marshal(ints)
		require.NoError(t, err)

		adapter, err := NewKeypairAdapter(string(raw), testLogger())
		require.NoError(t, err)
		assert.Equal(t, priv.PublicKey(), adapter.PublicKey())
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := NewKeypairAdapter("[1,2,3]", testLogger())
		require.Error(t, err)
	})

	t.Run("not base58", func(t *testing.T) {
		_, err := NewKeypairAdapter("not-a-key!!", testLogger())
		require.Error(t, err)
	})
}

func TestKeypairAdapterConnect(t *testing.T) {
	adapter, err := NewKeypairAdapter(solanago.NewWallet().PrivateKey.String(), testLogger())
	require.NoError(t, err)

	events, unsubscribe := adapter.Connected()
	defer unsubscribe()

	require.NoError(t, adapter.Connect(context.Background()))
	assert.Equal(t, adapter.PublicKey(), receiveKey(t, events))
}

func TestKeypairAdapterSendTransaction(t *testing.T) {
	ctx := context.Background()
	priv := solanago.NewWallet().PrivateKey
	adapter, err := NewKeypairAdapter(priv.String(), testLogger())
	require.NoError(t, err)

	mock := solana.NewMockRPCClient()
	mock.GetLatestBlockhashFunc = func(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
		return &rpc.GetLatestBlockhashResult{
			RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: 321}},
			Value:      &rpc.LatestBlockhashResult{Blockhash: solanago.Hash{9}},
		}, nil
	}

	var gotOpts rpc.TransactionOpts
	var gotTx *solanago.Transaction
	wantSig := solanago.Signature{7}
	mock.SendTransactionWithOptsFunc = func(ctx context.Context, tx *solanago.Transaction, opts rpc.TransactionOpts) (solanago.Signature, error) {
		gotTx = tx
		gotOpts = opts
		return wantSig, nil
	}

	resolver := solana.NewResolver("", nil, testLogger(),
		solana.WithDialer(func(string) solana.RPCClient { return mock }),
	)
	conn, err := resolver.Connect(ctx, solana.Devnet)
	require.NoError(t, err)

	client := solana.NewClient(nil, testLogger())
	envelope, err := client.BuildTransfer(ctx, conn, solana.BuildTransferParams{
		Source:      solanago.NewWallet().PublicKey(),
		Destination: solanago.NewWallet().PublicKey(),
		AmountRaw:   1_000,
		Owner:       adapter.PublicKey(),
	})
	require.NoError(t, err)

	sig, err := adapter.SendTransaction(ctx, envelope, conn)
	require.NoError(t, err)
	assert.Equal(t, wantSig, sig)

	// The submitted transaction is signed by the keypair and pinned to the
	// slot the blockhash was fetched at.
	require.NotNil(t, gotTx)
	require.NoError(t, gotTx.VerifySignatures())
	require.NotNil(t, gotOpts.MinContextSlot)
	assert.Equal(t, uint64(321), *gotOpts.MinContextSlot)
	assert.Equal(t, rpc.CommitmentProcessed, gotOpts.PreflightCommitment)
}
