package solana

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnection(mock *MockRPCClient) *Connection {
	return &Connection{cluster: Devnet, endpoint: rpc.DevNet_RPC, rpc: mock}
}

func TestGetBalance(t *testing.T) {
	client := NewClient(nil, testLogger())
	pubkey := solana.NewWallet().PublicKey()

	t.Run("converts lamports to SOL", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetBalanceFunc = func(ctx context.Context, acc solana.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
			return &rpc.GetBalanceResult{Value: 2_500_000_000}, nil
		}

		balance, err := client.GetBalance(context.Background(), testConnection(mock), pubkey)
		require.NoError(t, err)
		assert.Equal(t, 2.5, balance)
	})

	t.Run("classifies fetch failure", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetBalanceFunc = func(ctx context.Context, acc solana.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
			return nil, assert.AnError
		}

		_, err := client.GetBalance(context.Background(), testConnection(mock), pubkey)
		require.Error(t, err)
		assert.Equal(t, KindFetch, KindOf(err))
	})
}

func TestRequestAirdrop(t *testing.T) {
	client := NewClient(nil, testLogger())
	pubkey := solana.NewWallet().PublicKey()

	t.Run("passes lamports through", func(t *testing.T) {
		mock := NewMockRPCClient()
		var gotLamports uint64
		mock.RequestAirdropFunc = func(ctx context.Context, acc solana.PublicKey, lamports uint64, c rpc.CommitmentType) (solana.Signature, error) {
			gotLamports = lamports
			return solana.Signature{1}, nil
		}

		sig, err := client.RequestAirdrop(context.Background(), testConnection(mock), pubkey, 1_000_000_000)
		require.NoError(t, err)
		assert.NotEqual(t, solana.Signature{}, sig)
		assert.Equal(t, uint64(1_000_000_000), gotLamports)
	})

	t.Run("classifies submit failure", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.RequestAirdropFunc = func(ctx context.Context, acc solana.PublicKey, lamports uint64, c rpc.CommitmentType) (solana.Signature, error) {
			return solana.Signature{}, assert.AnError
		}

		_, err := client.RequestAirdrop(context.Background(), testConnection(mock), pubkey, 1)
		require.Error(t, err)
		assert.Equal(t, KindSubmit, KindOf(err))
	})
}

func TestConfirmTransaction(t *testing.T) {
	sig := solana.Signature{42}

	newFastClient := func() *Client {
		c := NewClient(nil, testLogger())
		c.confirmPollInterval = 5 * time.Millisecond
		return c
	}

	t.Run("confirmed status returns nil", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetSignatureStatusesFunc = func(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			return &rpc.GetSignatureStatusesResult{
				Value: []*rpc.SignatureStatusesResult{
					{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
				},
			}, nil
		}

		err := newFastClient().ConfirmTransaction(context.Background(), testConnection(mock), sig, time.Second)
		require.NoError(t, err)
	})

	t.Run("polls until confirmed", func(t *testing.T) {
		mock := NewMockRPCClient()
		calls := 0
		mock.GetSignatureStatusesFunc = func(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			calls++
			if calls < 3 {
				return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
			}
			return &rpc.GetSignatureStatusesResult{
				Value: []*rpc.SignatureStatusesResult{
					{ConfirmationStatus: rpc.ConfirmationStatusFinalized},
				},
			}, nil
		}

		err := newFastClient().ConfirmTransaction(context.Background(), testConnection(mock), sig, time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, calls, 3)
	})

	t.Run("chain-reported error becomes a confirm error", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetSignatureStatusesFunc = func(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			return &rpc.GetSignatureStatusesResult{
				Value: []*rpc.SignatureStatusesResult{
					{Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
				},
			}, nil
		}

		err := newFastClient().ConfirmTransaction(context.Background(), testConnection(mock), sig, time.Second)
		require.Error(t, err)
		assert.Equal(t, KindConfirm, KindOf(err))
		assert.Contains(t, err.Error(), "transaction failed")
	})

	t.Run("times out when the signature never lands", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetSignatureStatusesFunc = func(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
		}

		err := newFastClient().ConfirmTransaction(context.Background(), testConnection(mock), sig, 30*time.Millisecond)
		require.Error(t, err)
		assert.Equal(t, KindConfirm, KindOf(err))
	})

	t.Run("status fetch failure is a fetch error", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetSignatureStatusesFunc = func(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			return nil, assert.AnError
		}

		err := newFastClient().ConfirmTransaction(context.Background(), testConnection(mock), sig, time.Second)
		require.Error(t, err)
		assert.Equal(t, KindFetch, KindOf(err))
	})
}
