package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirror520/first-web3/service/solana"
)

func TestRemoteAdapterConnect(t *testing.T) {
	ctx := context.Background()
	signerKey := solanago.NewWallet().PublicKey()

	t.Run("fetches and announces the signer's key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "POST", r.Method)
			require.Equal(t, "/api/v1/connect", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"public_key": signerKey.String()})
		}))
		defer srv.Close()

		adapter := NewRemoteAdapter(srv.URL, srv.Client(), testLogger())
		events, unsubscribe := adapter.Connected()
		defer unsubscribe()

		require.NoError(t, adapter.Connect(ctx))
		assert.Equal(t, signerKey, adapter.PublicKey())
		assert.Equal(t, signerKey, receiveKey(t, events))
	})

	t.Run("surfaces the signer's error message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "signer locked"})
		}))
		defer srv.Close()

		adapter := NewRemoteAdapter(srv.URL, srv.Client(), testLogger())
		err := adapter.Connect(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signer locked")
	})

	t.Run("rejects an invalid key from the signer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"public_key": "garbage"})
		}))
		defer srv.Close()

		adapter := NewRemoteAdapter(srv.URL, srv.Client(), testLogger())
		require.Error(t, adapter.Connect(ctx))
	})
}

func TestRemoteAdapterSendTransaction(t *testing.T) {
	ctx := context.Background()
	owner := solanago.NewWallet().PublicKey()
	wantSig := solanago.Signature{5}

	mock := solana.NewMockRPCClient()
	mock.GetLatestBlockhashFunc = func(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
		return &rpc.GetLatestBlockhashResult{
			RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: 654}},
			Value:      &rpc.LatestBlockhashResult{Blockhash: solanago.Hash{3}},
		}, nil
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
		AmountRaw:   500,
		Owner:       owner,
	})
	require.NoError(t, err)

	var gotBody struct {
		Message        string `json:"message"`
		Endpoint       string `json:"endpoint"`
		MinContextSlot uint64 `json:"min_context_slot"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sign-and-send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"signature": wantSig.String()})
	}))
	defer srv.Close()

	adapter := NewRemoteAdapter(srv.URL, srv.Client(), testLogger())
	sig, err := adapter.SendTransaction(ctx, envelope, conn)
	require.NoError(t, err)
	assert.Equal(t, wantSig, sig)

	// The signer receives the serialized unsigned message, the endpoint to
	// submit against, and the slot pin.
	wantMessage, err := envelope.Tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(wantMessage), gotBody.Message)
	assert.Equal(t, conn.Endpoint(), gotBody.Endpoint)
	assert.Equal(t, uint64(654), gotBody.MinContextSlot)
}

func TestRemoteAdapterDisconnect(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, "/api/v1/disconnect", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	adapter := NewRemoteAdapter(srv.URL, srv.Client(), testLogger())
	require.NoError(t, adapter.Disconnect(context.Background()))
	assert.True(t, called)
}
