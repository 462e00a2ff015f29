// Package account derives the dashboard's account view (display name and
// balance) from the current wallet and connection, keeping it consistent
// while asynchronous lookups complete in arbitrary order.
package account

import (
	"context"
	"log/slog"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/mirror520/first-web3/service/metrics"
	"github.com/mirror520/first-web3/service/pubsub"
	"github.com/mirror520/first-web3/service/solana"
)

// State is the sync core's lifecycle state.
type State int

const (
	// Idle means no wallet is bound.
	Idle State = iota
	// Resolving means lookups for the current epoch are in flight.
	Resolving
	// Ready means the last resolution completed and is still current.
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// View is the derived, read-only projection shown in the account panel.
// Balance is nil while unknown (still resolving, or the fetch failed).
type View struct {
	Wallet      string
	Cluster     string
	DisplayName string
	Balance     *float64
	State       State
}

// epoch identifies one resolution cycle: the (wallet, connection) pair it
// was issued under plus a generation counter. A lookup result is applied
// only if its epoch is still the current one; staleness is detected here
// rather than by cancelling requests, because the RPC collaborator offers
// no cancellation.
type epoch struct {
	generation uint64
	wallet     solanago.PublicKey
	conn       *solana.Connection
}

// WalletSource supplies wallet-changed events. *wallet.Session satisfies it.
type WalletSource interface {
	Changes() (<-chan solanago.PublicKey, func())
}

// ConnectionSource supplies the active connection and its replacement
// events. *solana.Resolver satisfies it.
type ConnectionSource interface {
	Current() *solana.Connection
	Changes() (<-chan *solana.Connection, func())
}

// Syncer is the account sync core. It re-derives the view exactly once per
// relevant upstream change and never interleaves stale and fresh values.
type Syncer struct {
	client  *solana.Client
	names   solana.NameResolver
	wallets WalletSource
	conns   ConnectionSource
	metrics *metrics.Metrics
	logger  *slog.Logger

	// resolveTimeout bounds one resolution cycle. Zero leaves lookups
	// unbounded, in which case a lookup that never resolves keeps the
	// core in Resolving until the next trigger.
	resolveTimeout time.Duration

	mu          sync.Mutex
	generation  uint64
	wallet      *solanago.PublicKey
	conn        *solana.Connection
	view        View
	nameDone    bool
	balanceDone bool

	updates *pubsub.Stream[View]

	walletCh     <-chan solanago.PublicKey
	unsubWallets func()
	connCh       <-chan *solana.Connection
	unsubConns   func()
}

// NewSyncer creates the sync core. If m is nil, no metrics will be recorded.
func NewSyncer(
	client *solana.Client,
	names solana.NameResolver,
	wallets WalletSource,
	conns ConnectionSource,
	resolveTimeout time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Syncer {
	s := &Syncer{
		client:         client,
		names:          names,
		wallets:        wallets,
		conns:          conns,
		metrics:        m,
		logger:         logger,
		resolveTimeout: resolveTimeout,
		view:           View{State: Idle},
		updates:        pubsub.NewStream[View](),
	}
	// Subscribe eagerly so no event published between construction and
	// Run is lost.
	s.walletCh, s.unsubWallets = wallets.Changes()
	s.connCh, s.unsubConns = conns.Changes()
	return s
}

// Run processes wallet and connection changes until ctx is done. Event
// handlers run in delivery order; only the lookups they fire may complete
// out of order.
func (s *Syncer) Run(ctx context.Context) {
	defer s.unsubWallets()
	defer s.unsubConns()

	for {
		select {
		case <-ctx.Done():
			return
		case pubkey, ok := <-s.walletCh:
			if !ok {
				return
			}
			s.onWalletChanged(ctx, pubkey)
		case conn, ok := <-s.connCh:
			if !ok {
				return
			}
			s.onConnectionChanged(ctx, conn)
		}
	}
}

// onWalletChanged binds the new wallet and starts a resolution cycle. With
// no connection yet, the wallet is recorded and resolution waits for the
// first connection-changed event.
func (s *Syncer) onWalletChanged(ctx context.Context, pubkey solanago.PublicKey) {
	s.mu.Lock()
	s.wallet = &pubkey
	if s.conn == nil {
		s.conn = s.conns.Current()
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.logger.DebugContext(ctx, "wallet bound before any connection, resolution deferred",
			"wallet", pubkey.String(),
		)
		return
	}

	s.resolve(ctx)
}

// onConnectionChanged records the replaced connection and, when a wallet
// is bound, re-derives the view against it. Without a wallet there is
// nothing to derive.
func (s *Syncer) onConnectionChanged(ctx context.Context, conn *solana.Connection) {
	s.mu.Lock()
	s.conn = conn
	bound := s.wallet != nil
	s.mu.Unlock()

	if !bound {
		return
	}

	s.resolve(ctx)
}

// resolve starts a new epoch: it captures the current (wallet, connection)
// pair, moves to Resolving, and fires the display-name and balance lookups
// concurrently. Each completion re-checks its epoch before touching the
// view, so a superseded lookup is discarded silently no matter when it
// lands.
func (s *Syncer) resolve(ctx context.Context) {
	s.mu.Lock()
	if s.wallet == nil || s.conn == nil {
		// A concurrent Reset cleared the session.
		s.mu.Unlock()
		return
	}
	s.generation++
	ep := epoch{
		generation: s.generation,
		wallet:     *s.wallet,
		conn:       s.conn,
	}
	s.view = View{
		Wallet:  ep.wallet.String(),
		Cluster: ep.conn.Cluster().String(),
		State:   Resolving,
	}
	s.nameDone = false
	s.balanceDone = false
	view := s.view
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "resolving account view",
		"wallet", ep.wallet.String(),
		"cluster", ep.conn.Cluster(),
		"generation", ep.generation,
	)
	s.updates.Publish(view)

	lookupCtx := ctx
	var cancel context.CancelFunc
	if s.resolveTimeout > 0 {
		lookupCtx, cancel = context.WithTimeout(ctx, s.resolveTimeout)
	}

	var pending sync.WaitGroup
	pending.Add(2)

	go func() {
		defer pending.Done()
		name := solana.DisplayName(lookupCtx, s.names, ep.conn, ep.wallet, s.logger)
		s.apply(ep, "name", func(v *View) {
			v.DisplayName = name
			s.nameDone = true
		})
	}()

	go func() {
		defer pending.Done()
		balance, err := s.client.GetBalance(lookupCtx, ep.conn, ep.wallet)
		s.apply(ep, "balance", func(v *View) {
			if err == nil {
				v.Balance = &balance
			}
			// On failure the balance stays absent; the next trigger is
			// the retry path.
			s.balanceDone = true
		})
	}()

	if cancel != nil {
		go func() {
			pending.Wait()
			cancel()
		}()
	}
}

// apply mutates the view on behalf of a completed lookup, unless a newer
// epoch has started since the lookup was issued.
func (s *Syncer) apply(ep epoch, kind string, mutate func(*View)) {
	s.mu.Lock()

	if ep.generation != s.generation {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordStaleResultDiscarded(kind)
		}
		s.logger.Debug("discarding stale lookup result",
			"kind", kind,
			"generation", ep.generation,
			"current_generation", s.generation,
		)
		return
	}

	mutate(&s.view)
	if s.nameDone && s.balanceDone {
		s.view.State = Ready
	}
	view := s.view
	s.mu.Unlock()

	if view.State == Ready && s.metrics != nil {
		s.metrics.RecordAccountResolution(view.Cluster)
	}
	s.updates.Publish(view)
}

// Refresh starts a new resolution cycle for the currently bound wallet
// and connection, if both exist. Callers use it after an operation that
// changed the balance, such as a confirmed airdrop or transfer.
func (s *Syncer) Refresh(ctx context.Context) {
	s.mu.Lock()
	ready := s.wallet != nil && s.conn != nil
	s.mu.Unlock()

	if !ready {
		return
	}
	s.resolve(ctx)
}

// View returns a copy of the current account view.
func (s *Syncer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Updates returns a subscription to view changes.
func (s *Syncer) Updates() (<-chan View, func()) {
	return s.updates.Subscribe()
}

// Reset clears the bound wallet and returns the view to Idle. Called when
// the session is cleared; clearing is not broadcast upstream, so the
// server invokes this directly.
func (s *Syncer) Reset() {
	s.mu.Lock()
	s.generation++
	s.wallet = nil
	s.view = View{State: Idle}
	s.nameDone = false
	s.balanceDone = false
	view := s.view
	s.mu.Unlock()

	s.updates.Publish(view)
}
