package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedCluster(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("empty before first save", func(t *testing.T) {
		_, err := store.GetSelectedCluster(ctx)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and read back", func(t *testing.T) {
		require.NoError(t, store.SetSelectedCluster(ctx, "devnet"))

		cluster, err := store.GetSelectedCluster(ctx)
		require.NoError(t, err)
		assert.Equal(t, "devnet", cluster)
	})

	t.Run("replace previous selection", func(t *testing.T) {
		require.NoError(t, store.SetSelectedCluster(ctx, "mainnet-beta"))

		cluster, err := store.GetSelectedCluster(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mainnet-beta", cluster)
	})
}

func TestCreateTransfer(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("create SOL transfer", func(t *testing.T) {
		params := CreateTransferParams{
			Signature:     "sig123",
			WalletAddress: "wallet123",
			Destination:   "dest123",
			Mint:          nil,
			AmountRaw:     1_000_000_000,
			Cluster:       "devnet",
			Slot:          12345,
			Status:        "submitted",
		}

		transfer, err := store.CreateTransfer(ctx, params)
		require.NoError(t, err)
		require.NotNil(t, transfer)

		assert.Equal(t, params.Signature, transfer.Signature)
		assert.Equal(t, params.WalletAddress, transfer.WalletAddress)
		assert.Equal(t, params.Destination, transfer.Destination)
		assert.Nil(t, transfer.Mint)
		assert.Equal(t, params.AmountRaw, transfer.AmountRaw)
		assert.Equal(t, "submitted", transfer.Status)
		assert.WithinDuration(t, time.Now(), transfer.CreatedAt, 5*time.Second)
	})

	t.Run("create SPL token transfer", func(t *testing.T) {
		tokenMint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" // USDC
		params := CreateTransferParams{
			Signature:     "sig456",
			WalletAddress: "wallet123",
			Destination:   "dest456",
			Mint:          &tokenMint,
			AmountRaw:     1_000_000, // 1 USDC (6 decimals)
			Cluster:       "devnet",
			Slot:          12346,
			Status:        "submitted",
		}

		transfer, err := store.CreateTransfer(ctx, params)
		require.NoError(t, err)
		require.NotNil(t, transfer)
		require.NotNil(t, transfer.Mint)
		assert.Equal(t, tokenMint, *transfer.Mint)
	})

	t.Run("duplicate signature and cluster", func(t *testing.T) {
		params := CreateTransferParams{
			Signature:     "sig123", // Already exists
			WalletAddress: "wallet456",
			Destination:   "dest789",
			AmountRaw:     1,
			Cluster:       "devnet",
			Slot:          12347,
			Status:        "submitted",
		}

		_, err := store.CreateTransfer(ctx, params)
		require.Error(t, err)
	})

	t.Run("same signature on another cluster", func(t *testing.T) {
		params := CreateTransferParams{
			Signature:     "sig123",
			WalletAddress: "wallet123",
			Destination:   "dest123",
			AmountRaw:     1,
			Cluster:       "testnet",
			Slot:          12348,
			Status:        "submitted",
		}

		_, err := store.CreateTransfer(ctx, params)
		require.NoError(t, err)
	})
}

func TestUpdateTransferStatus(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	_, err := store.CreateTransfer(ctx, CreateTransferParams{
		Signature:     "sig-confirm",
		WalletAddress: "wallet123",
		Destination:   "dest123",
		AmountRaw:     500,
		Cluster:       "devnet",
		Slot:          100,
		Status:        "submitted",
	})
	require.NoError(t, err)

	t.Run("mark confirmed", func(t *testing.T) {
		require.NoError(t, store.UpdateTransferStatus(ctx, "sig-confirm", "devnet", "confirmed"))

		transfer, err := store.GetTransfer(ctx, "sig-confirm", "devnet")
		require.NoError(t, err)
		assert.Equal(t, "confirmed", transfer.Status)
	})

	t.Run("unknown signature", func(t *testing.T) {
		err := store.UpdateTransferStatus(ctx, "no-such-sig", "devnet", "confirmed")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListTransfersByWallet(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	for i, sig := range []string{"sig-a", "sig-b", "sig-c"} {
		_, err := store.CreateTransfer(ctx, CreateTransferParams{
			Signature:     sig,
			WalletAddress: "wallet123",
			Destination:   "dest123",
			AmountRaw:     int64(i + 1),
			Cluster:       "devnet",
			Slot:          int64(100 + i),
			Status:        "submitted",
		})
		require.NoError(t, err)
	}
	// One on another cluster that must not leak into the devnet listing.
	_, err := store.CreateTransfer(ctx, CreateTransferParams{
		Signature:     "sig-other",
		WalletAddress: "wallet123",
		Destination:   "dest123",
		AmountRaw:     99,
		Cluster:       "testnet",
		Slot:          200,
		Status:        "submitted",
	})
	require.NoError(t, err)

	t.Run("list with pagination", func(t *testing.T) {
		transfers, err := store.ListTransfersByWallet(ctx, ListTransfersByWalletParams{
			WalletAddress: "wallet123",
			Cluster:       "devnet",
			Limit:         2,
			Offset:        0,
		})
		require.NoError(t, err)
		assert.Len(t, transfers, 2)

		transfers, err = store.ListTransfersByWallet(ctx, ListTransfersByWalletParams{
			WalletAddress: "wallet123",
			Cluster:       "devnet",
			Limit:         10,
			Offset:        2,
		})
		require.NoError(t, err)
		assert.Len(t, transfers, 1)
	})

	t.Run("unknown wallet returns empty", func(t *testing.T) {
		transfers, err := store.ListTransfersByWallet(ctx, ListTransfersByWalletParams{
			WalletAddress: "nobody",
			Cluster:       "devnet",
			Limit:         10,
		})
		require.NoError(t, err)
		assert.Empty(t, transfers)
	})
}
