package solana

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountWithData(raw []byte) *rpc.GetAccountInfoResult {
	data := rpc.DataBytesOrJSONFromBytes(raw)
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Data: data}}
}

func TestSNSResolverResolve(t *testing.T) {
	pubkey := solana.NewWallet().PublicKey()
	domainKey := solana.NewWallet().PublicKey()

	favouriteKey, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("favourite_domain"), pubkey.Bytes()},
		nameOffersProgramID,
	)
	require.NoError(t, err)

	reverseKey, _, err := solana.FindProgramAddress(
		[][]byte{hashName(domainKey.String()), reverseLookupClass.Bytes(), make([]byte, solana.PublicKeyLength)},
		nameProgramID,
	)
	require.NoError(t, err)

	favouriteRecord := append([]byte{0}, domainKey.Bytes()...)

	reverseRecord := make([]byte, nameRegistryHeaderLen+4)
	binary.LittleEndian.PutUint32(reverseRecord[nameRegistryHeaderLen:], uint32(len("alice")))
	reverseRecord = append(reverseRecord, "alice"...)

	t.Run("resolves the favourite domain", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetAccountInfoFunc = func(ctx context.Context, acc solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			switch acc {
			case favouriteKey:
				return accountWithData(favouriteRecord), nil
			case reverseKey:
				return accountWithData(reverseRecord), nil
			default:
				return &rpc.GetAccountInfoResult{Value: nil}, nil
			}
		}

		resolver := NewSNSResolver(testLogger())
		name, err := resolver.Resolve(context.Background(), testConnection(mock), pubkey)
		require.NoError(t, err)
		assert.Equal(t, "alice.sol", name)
	})

	t.Run("no favourite domain registered", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetAccountInfoFunc = func(ctx context.Context, acc solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			return &rpc.GetAccountInfoResult{Value: nil}, nil
		}

		resolver := NewSNSResolver(testLogger())
		_, err := resolver.Resolve(context.Background(), testConnection(mock), pubkey)
		require.Error(t, err)
	})

	t.Run("missing reverse record", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetAccountInfoFunc = func(ctx context.Context, acc solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			if acc == favouriteKey {
				return accountWithData(favouriteRecord), nil
			}
			return &rpc.GetAccountInfoResult{Value: nil}, nil
		}

		resolver := NewSNSResolver(testLogger())
		_, err := resolver.Resolve(context.Background(), testConnection(mock), pubkey)
		require.Error(t, err)
	})
}

func TestDisplayName(t *testing.T) {
	pubkey := solana.NewWallet().PublicKey()

	t.Run("falls back to the truncated key", func(t *testing.T) {
		mock := NewMockRPCClient()
		mock.GetAccountInfoFunc = func(ctx context.Context, acc solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			return nil, assert.AnError
		}

		name := DisplayName(context.Background(), NewSNSResolver(testLogger()), testConnection(mock), pubkey, testLogger())
		assert.Equal(t, pubkey.String()[:10]+"...", name)
	})
}

func TestTruncateKey(t *testing.T) {
	pubkey := solana.NewWallet().PublicKey()
	got := TruncateKey(pubkey)
	assert.Len(t, got, 13)
	assert.Equal(t, pubkey.String()[:10], got[:10])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSubmit, KindOf(newError(KindSubmit, assert.AnError)))
	assert.Equal(t, KindFetch, KindOf(assert.AnError))
	assert.Equal(t, "submit", KindSubmit.String())
}
