package account

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirror520/first-web3/service/solana"
	"github.com/mirror520/first-web3/service/wallet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubNames is a NameResolver with a fixed outcome.
type stubNames struct {
	name string
	err  error
}

func (s *stubNames) Resolve(ctx context.Context, conn *solana.Connection, pubkey solanago.PublicKey) (string, error) {
	return s.name, s.err
}

func balanceResult(lamports uint64) *rpc.GetBalanceResult {
	return &rpc.GetBalanceResult{Value: lamports}
}

type fixture struct {
	resolver *solana.Resolver
	session  *wallet.Session
	syncer   *Syncer
	cancel   context.CancelFunc
}

// newFixture wires a syncer to a real session and resolver, with Run
// already started. dial maps endpoint URLs to mock RPC clients.
func newFixture(t *testing.T, names solana.NameResolver, dial func(string) solana.RPCClient) *fixture {
	t.Helper()
	logger := testLogger()

	resolver := solana.NewResolver("", nil, logger, solana.WithDialer(dial))
	session := wallet.NewSession(logger)
	client := solana.NewClient(nil, logger)
	syncer := NewSyncer(client, names, session, resolver, 0, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go syncer.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{resolver: resolver, session: session, syncer: syncer, cancel: cancel}
}

// connectWallet binds a fresh keypair to the session and returns its pubkey.
func (f *fixture) connectWallet(t *testing.T) solanago.PublicKey {
	t.Helper()
	adapter, err := wallet.NewKeypairAdapter(solanago.NewWallet().PrivateKey.String(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	f.session.SetCurrent(ctx, adapter)
	require.NoError(t, adapter.Connect(ctx))
	return adapter.PublicKey()
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestSyncerResolvesOnWalletChange(t *testing.T) {
	mock := solana.NewMockRPCClient()
	mock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return balanceResult(5 * solana.LamportsPerSOL), nil
	}
	f := newFixture(t, &stubNames{name: "alice.sol"}, func(string) solana.RPCClient { return mock })

	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)

	pubkey := f.connectWallet(t)

	eventually(t, func() bool { return f.syncer.View().State == Ready })

	view := f.syncer.View()
	assert.Equal(t, pubkey.String(), view.Wallet)
	assert.Equal(t, "devnet", view.Cluster)
	assert.Equal(t, "alice.sol", view.DisplayName)
	require.NotNil(t, view.Balance)
	assert.Equal(t, 5.0, *view.Balance)
}

func TestSyncerFallsBackToTruncatedKey(t *testing.T) {
	mock := solana.NewMockRPCClient()
	mock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return balanceResult(0), nil
	}
	f := newFixture(t, &stubNames{err: assert.AnError}, func(string) solana.RPCClient { return mock })

	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)

	pubkey := f.connectWallet(t)

	eventually(t, func() bool { return f.syncer.View().State == Ready })

	view := f.syncer.View()
	assert.Equal(t, pubkey.String()[:10]+"...", view.DisplayName)
}

func TestSyncerBalanceFailureLeavesBalanceAbsent(t *testing.T) {
	mock := solana.NewMockRPCClient()
	mock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return nil, assert.AnError
	}
	f := newFixture(t, &stubNames{name: "bob.sol"}, func(string) solana.RPCClient { return mock })

	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)

	f.connectWallet(t)

	eventually(t, func() bool { return f.syncer.View().State == Ready })

	view := f.syncer.View()
	assert.Equal(t, "bob.sol", view.DisplayName)
	assert.Nil(t, view.Balance)
}

func TestSyncerWaitsForFirstConnection(t *testing.T) {
	mock := solana.NewMockRPCClient()
	mock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return balanceResult(solana.LamportsPerSOL), nil
	}
	f := newFixture(t, &stubNames{name: "carol.sol"}, func(string) solana.RPCClient { return mock })

	// Wallet binds before any cluster connection exists.
	f.connectWallet(t)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Idle, f.syncer.View().State)

	// The first connection event starts resolution.
	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)

	eventually(t, func() bool { return f.syncer.View().State == Ready })
	assert.Equal(t, "carol.sol", f.syncer.View().DisplayName)
}

func TestSyncerDiscardsStaleResults(t *testing.T) {
	release := make(chan struct{})

	// The devnet balance lookup stalls until released; testnet answers
	// immediately. Switching clusters mid-flight supersedes the stalled
	// lookup, whose late completion must not disturb the fresh view.
	devnetMock := solana.NewMockRPCClient()
	devnetMock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		<-release
		return balanceResult(1 * solana.LamportsPerSOL), nil
	}
	testnetMock := solana.NewMockRPCClient()
	testnetMock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return balanceResult(2 * solana.LamportsPerSOL), nil
	}

	dial := func(url string) solana.RPCClient {
		if url == rpc.TestNet_RPC {
			return testnetMock
		}
		return devnetMock
	}
	f := newFixture(t, &stubNames{name: "dave.sol"}, dial)

	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)

	f.connectWallet(t)

	// The devnet resolution is in flight, blocked on its balance lookup.
	eventually(t, func() bool { return f.syncer.View().State == Resolving })

	// Switching clusters starts a new epoch.
	_, err = f.resolver.Connect(context.Background(), solana.Testnet)
	require.NoError(t, err)

	eventually(t, func() bool {
		v := f.syncer.View()
		return v.State == Ready && v.Cluster == "testnet"
	})
	view := f.syncer.View()
	require.NotNil(t, view.Balance)
	assert.Equal(t, 2.0, *view.Balance)

	// Let the superseded lookup land; it must be discarded silently.
	close(release)
	time.Sleep(100 * time.Millisecond)

	view = f.syncer.View()
	assert.Equal(t, Ready, view.State)
	assert.Equal(t, "testnet", view.Cluster)
	require.NotNil(t, view.Balance)
	assert.Equal(t, 2.0, *view.Balance)
}

func TestSyncerReset(t *testing.T) {
	mock := solana.NewMockRPCClient()
	mock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return balanceResult(solana.LamportsPerSOL), nil
	}
	f := newFixture(t, &stubNames{name: "erin.sol"}, func(string) solana.RPCClient { return mock })

	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)
	f.connectWallet(t)
	eventually(t, func() bool { return f.syncer.View().State == Ready })

	f.syncer.Reset()

	view := f.syncer.View()
	assert.Equal(t, Idle, view.State)
	assert.Empty(t, view.Wallet)
	assert.Nil(t, view.Balance)
}

func TestSyncerPublishesViewUpdates(t *testing.T) {
	mock := solana.NewMockRPCClient()
	mock.GetBalanceFunc = func(ctx context.Context, acc solanago.PublicKey, c rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
		return balanceResult(3 * solana.LamportsPerSOL), nil
	}
	f := newFixture(t, &stubNames{name: "frank.sol"}, func(string) solana.RPCClient { return mock })

	updates, unsubscribe := f.syncer.Updates()
	defer unsubscribe()

	_, err := f.resolver.Connect(context.Background(), solana.Devnet)
	require.NoError(t, err)
	f.connectWallet(t)

	sawResolving := false
	deadline := time.After(2 * time.Second)
	for {
		select {
		case view := <-updates:
			if view.State == Resolving {
				sawResolving = true
			}
			if view.State == Ready {
				assert.True(t, sawResolving, "Ready must be preceded by Resolving")
				assert.Equal(t, "frank.sol", view.DisplayName)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for Ready view update")
		}
	}
}
