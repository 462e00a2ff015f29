package solana

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrMockNotConfigured is returned by MockRPCClient methods with no
// configured function.
var ErrMockNotConfigured = errors.New("mock: not configured")

// MockRPCClient is a mock implementation of RPCClient for testing.
// Configure behavior per method via the function fields; unconfigured
// methods return ErrMockNotConfigured. Call counts are tracked per method.
type MockRPCClient struct {
	mu    sync.Mutex
	calls map[string]int

	GetVersionFunc              func(ctx context.Context) (*rpc.GetVersionResult, error)
	GetBalanceFunc              func(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetAccountInfoFunc          func(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountsByOwnerFunc func(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	GetLatestBlockhashFunc      func(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	RequestAirdropFunc          func(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)
	GetSignatureStatusesFunc    func(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	SendTransactionWithOptsFunc func(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// NewMockRPCClient creates a mock whose GetVersion succeeds, which is
// enough to pass the resolver's liveness check.
func NewMockRPCClient() *MockRPCClient {
	return &MockRPCClient{
		calls: make(map[string]int),
		GetVersionFunc: func(ctx context.Context) (*rpc.GetVersionResult, error) {
			return &rpc.GetVersionResult{SolanaCore: "mock"}, nil
		},
	}
}

// CallCount returns how many times the named method was invoked.
func (m *MockRPCClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockRPCClient) count(method string) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	m.mu.Unlock()
}

func (m *MockRPCClient) GetVersion(ctx context.Context) (*rpc.GetVersionResult, error) {
	m.count("GetVersion")
	if m.GetVersionFunc == nil {
		return nil, ErrMockNotConfigured
	}
	return m.GetVersionFunc(ctx)
}

func (m *MockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	m.count("GetBalance")
	if m.GetBalanceFunc == nil {
		return nil, ErrMockNotConfigured
	}
	return m.GetBalanceFunc(ctx, account, commitment)
}

func (m *MockRPCClient) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	m.count("GetAccountInfo")
	if m.GetAccountInfoFunc == nil {
		return nil, ErrMockNotConfigured
	}
	return m.GetAccountInfoFunc(ctx, account)
}

func (m *MockRPCClient) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	m.count("GetTokenAccountsByOwner")
	if m.GetTokenAccountsByOwnerFunc == nil {
		return nil, ErrMockNotConfigured
	}
	return m.GetTokenAccountsByOwnerFunc(ctx, owner, conf, opts)
}

func (m *MockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.count("GetLatestBlockhash")
	if m.GetLatestBlockhashFunc == nil {
		return nil, ErrMockNotConfigured
	}
	return m.GetLatestBlockhashFunc(ctx, commitment)
}

func (m *MockRPCClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	m.count("RequestAirdrop")
	if m.RequestAirdropFunc == nil {
		return solana.Signature{}, ErrMockNotConfigured
	}
	return m.RequestAirdropFunc(ctx, account, lamports, commitment)
}

func (m *MockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.count("GetSignatureStatuses")
	if m.GetSignatureStatusesFunc == nil {
		return nil, ErrMockNotConfigured
	}
	return m.GetSignatureStatusesFunc(ctx, searchTransactionHistory, signatures...)
}

func (m *MockRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.count("SendTransactionWithOpts")
	if m.SendTransactionWithOptsFunc == nil {
		return solana.Signature{}, ErrMockNotConfigured
	}
	return m.SendTransactionWithOptsFunc(ctx, tx, opts)
}
