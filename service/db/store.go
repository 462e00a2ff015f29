// Package db persists the dashboard's durable state: the selected cluster
// (so a restart reconnects where the user left off) and the history of
// transfers submitted through this instance.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirror520/first-web3/service/metrics"
)

// ErrNotFound is returned when a query matches no rows.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Transfer represents one submitted transfer in our system.
type Transfer struct {
	Signature     string
	WalletAddress string // owner/sender wallet
	Destination   string
	Mint          *string // nil for native SOL
	AmountRaw     int64
	Cluster       string
	Slot          int64
	Status        string // submitted, confirmed, failed
	CreatedAt     time.Time
}

// CreateTransferParams contains the parameters for recording a transfer.
type CreateTransferParams struct {
	Signature     string
	WalletAddress string
	Destination   string
	Mint          *string
	AmountRaw     int64
	Cluster       string
	Slot          int64
	Status        string
}

// ListTransfersByWalletParams contains pagination parameters.
type ListTransfersByWalletParams struct {
	WalletAddress string
	Cluster       string
	Limit         int32
	Offset        int32
}

// GetSelectedCluster returns the persisted cluster selection, or
// ErrNotFound if none has been saved yet.
func (s *Store) GetSelectedCluster(ctx context.Context) (string, error) {
	start := time.Now()
	var cluster string
	err := s.pool.QueryRow(ctx,
		`SELECT cluster FROM preferences WHERE id = 1`,
	).Scan(&cluster)
	s.record("select", "preferences", start, err)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return cluster, nil
}

// SetSelectedCluster persists the cluster selection, replacing any
// previous value.
func (s *Store) SetSelectedCluster(ctx context.Context, cluster string) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO preferences (id, cluster, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET cluster = $1, updated_at = now()`,
		cluster,
	)
	s.record("upsert", "preferences", start, err)
	return err
}

// CreateTransfer inserts a new transfer record.
func (s *Store) CreateTransfer(ctx context.Context, params CreateTransferParams) (*Transfer, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO transfers
		   (signature, wallet_address, destination, mint, amount_raw, cluster, slot, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 RETURNING signature, wallet_address, destination, mint, amount_raw, cluster, slot, status, created_at`,
		params.Signature,
		params.WalletAddress,
		params.Destination,
		params.Mint,
		params.AmountRaw,
		params.Cluster,
		params.Slot,
		params.Status,
	)

	transfer, err := scanTransfer(row)
	s.record("insert", "transfers", start, err)
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// UpdateTransferStatus records the confirmation outcome for a transfer.
func (s *Store) UpdateTransferStatus(ctx context.Context, signature, cluster, status string) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE transfers SET status = $3 WHERE signature = $1 AND cluster = $2`,
		signature, cluster, status,
	)
	s.record("update", "transfers", start, err)

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTransfer retrieves a transfer by its signature and cluster.
func (s *Store) GetTransfer(ctx context.Context, signature, cluster string) (*Transfer, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx,
		`SELECT signature, wallet_address, destination, mint, amount_raw, cluster, slot, status, created_at
		 FROM transfers
		 WHERE signature = $1 AND cluster = $2`,
		signature, cluster,
	)

	transfer, err := scanTransfer(row)
	s.record("select", "transfers", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// ListTransfersByWallet retrieves transfers for a wallet with pagination,
// most recent first.
func (s *Store) ListTransfersByWallet(ctx context.Context, params ListTransfersByWalletParams) ([]*Transfer, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT signature, wallet_address, destination, mint, amount_raw, cluster, slot, status, created_at
		 FROM transfers
		 WHERE wallet_address = $1 AND cluster = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		params.WalletAddress,
		params.Cluster,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		s.record("select", "transfers", start, err)
		return nil, err
	}
	defer rows.Close()

	transfers := make([]*Transfer, 0)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			s.record("select", "transfers", start, err)
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	err = rows.Err()
	s.record("select", "transfers", start, err)
	if err != nil {
		return nil, err
	}

	return transfers, nil
}

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var t Transfer
	err := row.Scan(
		&t.Signature,
		&t.WalletAddress,
		&t.Destination,
		&t.Mint,
		&t.AmountRaw,
		&t.Cluster,
		&t.Slot,
		&t.Status,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) record(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}
