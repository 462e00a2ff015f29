package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/mirror520/first-web3/service/account"
	"github.com/mirror520/first-web3/service/config"
	"github.com/mirror520/first-web3/service/db"
	"github.com/mirror520/first-web3/service/metrics"
	natspkg "github.com/mirror520/first-web3/service/nats"
	"github.com/mirror520/first-web3/service/solana"
	"github.com/mirror520/first-web3/service/wallet"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB

	// maxAirdropSOL is the per-request cap; public faucets reject more.
	maxAirdropSOL = 2.0

	defaultTransferListLimit = 50
	maxTransferListLimit     = 500
)

// handleGetNetwork returns the active cluster connection.
// GET /api/v1/network
func handleGetNetwork(resolver *solana.Resolver, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn := resolver.Current()
		if conn == nil {
			writeJSON(w, map[string]any{"connected": false}, http.StatusOK)
			return
		}

		writeJSON(w, map[string]any{
			"connected": true,
			"cluster":   conn.Cluster().String(),
			"endpoint":  conn.Endpoint(),
		}, http.StatusOK)
	})
}

// handleSetNetwork switches the active cluster and persists the selection.
// PUT /api/v1/network
func handleSetNetwork(resolver *solana.Resolver, store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Cluster string `json:"cluster"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		cluster, err := solana.ParseCluster(req.Cluster)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := resolver.Connect(r.Context(), cluster)
		if err != nil {
			logger.Error("cluster connect failed", "cluster", cluster, "error", err)
			writeError(w, fmt.Sprintf("failed to connect to %s", cluster), http.StatusBadGateway)
			return
		}

		if store != nil {
			if err := store.SetSelectedCluster(r.Context(), cluster.String()); err != nil {
				// The connection swap already happened; losing persistence
				// only affects the next restart.
				logger.Warn("failed to persist cluster selection", "cluster", cluster, "error", err)
			}
		}

		writeJSON(w, map[string]any{
			"connected": true,
			"cluster":   conn.Cluster().String(),
			"endpoint":  conn.Endpoint(),
		}, http.StatusOK)
	})
}

// handleConnectSession attaches a wallet to the session. The request
// carries either a private key (local signing) or the base URL of a
// remote signer service.
// POST /api/v1/session
func handleConnectSession(session *wallet.Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PrivateKey string `json:"private_key,omitempty"`
			SignerURL  string `json:"signer_url,omitempty"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var adapter wallet.Adapter
		switch {
		case req.PrivateKey != "":
			a, err := wallet.NewKeypairAdapter(req.PrivateKey, logger)
			if err != nil {
				writeError(w, "invalid private key", http.StatusBadRequest)
				return
			}
			adapter = a
		case req.SignerURL != "":
			adapter = wallet.NewRemoteAdapter(req.SignerURL, nil, logger)
		default:
			writeError(w, "either private_key or signer_url is required", http.StatusBadRequest)
			return
		}

		// Attach before Connect so the wallet-changed event is observed.
		session.SetCurrent(r.Context(), adapter)
		if err := adapter.Connect(r.Context()); err != nil {
			session.SetCurrent(r.Context(), nil)
			logger.Error("wallet connect failed", "adapter", adapter.Name(), "error", err)
			writeError(w, "failed to connect wallet", http.StatusBadGateway)
			return
		}

		logger.Info("wallet connected",
			"adapter", adapter.Name(),
			"public_key", adapter.PublicKey().String(),
		)

		writeJSON(w, map[string]any{
			"adapter":    adapter.Name(),
			"public_key": adapter.PublicKey().String(),
		}, http.StatusOK)
	})
}

// handleDisconnectSession detaches the current wallet and returns the
// account view to idle.
// DELETE /api/v1/session
func handleDisconnectSession(session *wallet.Session, syncer *account.Syncer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.SetCurrent(r.Context(), nil)
		syncer.Reset()

		logger.Info("wallet disconnected")
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleGetAccount returns the current account view.
// GET /api/v1/account
func handleGetAccount(syncer *account.Syncer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view := syncer.View()
		writeJSON(w, accountViewResponse(view), http.StatusOK)
	})
}

// handleListTokens lists the session wallet's token accounts on the active
// cluster. Metadata enrichment runs in the background; pass wait_ms to
// block for up to that long before rendering, otherwise unresolved tokens
// use the truncated-mint fallback.
// GET /api/v1/tokens
func handleListTokens(client *solana.Client, resolver *solana.Resolver, session *wallet.Session, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adapter := session.Current()
		if adapter == nil {
			writeError(w, "no wallet connected", http.StatusConflict)
			return
		}
		conn := resolver.Current()
		if conn == nil {
			writeError(w, "not connected to a cluster", http.StatusConflict)
			return
		}

		list, err := client.ListTokenAccounts(r.Context(), conn, adapter.PublicKey())
		if err != nil {
			logger.Error("failed to list token accounts", "error", err)
			writeError(w, "failed to list token accounts", http.StatusBadGateway)
			return
		}

		if waitMS, _ := strconv.Atoi(r.URL.Query().Get("wait_ms")); waitMS > 0 {
			waitCtx, cancel := context.WithTimeout(r.Context(), time.Duration(waitMS)*time.Millisecond)
			list.Wait(waitCtx)
			cancel()
		}

		resp := make([]tokenResponse, len(list.Accounts))
		fallbacks := 0
		for i, a := range list.Accounts {
			resp[i] = tokenToResponse(a)
			if a.Descriptor() == nil {
				fallbacks++
			}
		}
		if m != nil {
			m.RecordTokenAccountsListed(conn.Cluster().String(), len(resp))
			for i := 0; i < fallbacks; i++ {
				m.RecordTokenEnrichmentFallback(conn.Cluster().String())
			}
		}

		writeJSON(w, map[string]any{
			"cluster": conn.Cluster().String(),
			"owner":   adapter.PublicKey().String(),
			"tokens":  resp,
		}, http.StatusOK)
	})
}

// handleCreateTransfer builds, signs and submits a token transfer, records
// it, and confirms it in the background.
// POST /api/v1/transfers
func handleCreateTransfer(
	client *solana.Client,
	resolver *solana.Resolver,
	session *wallet.Session,
	store *db.Store,
	publisher natspkg.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *slog.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Destination string `json:"destination"`
			Mint        string `json:"mint"`
			AmountRaw   uint64 `json:"amount_raw"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		destWallet, err := solanago.PublicKeyFromBase58(req.Destination)
		if err != nil {
			writeError(w, "invalid destination address", http.StatusBadRequest)
			return
		}
		mint, err := solanago.PublicKeyFromBase58(req.Mint)
		if err != nil {
			writeError(w, "invalid mint address", http.StatusBadRequest)
			return
		}
		if req.AmountRaw == 0 {
			writeError(w, "amount_raw must be positive", http.StatusBadRequest)
			return
		}

		adapter := session.Current()
		if adapter == nil {
			writeError(w, "no wallet connected", http.StatusConflict)
			return
		}
		conn := resolver.Current()
		if conn == nil {
			writeError(w, "not connected to a cluster", http.StatusConflict)
			return
		}
		owner := adapter.PublicKey()
		cluster := conn.Cluster().String()

		source, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			writeError(w, "failed to derive source token account", http.StatusBadRequest)
			return
		}

		balance, err := client.TokenAccountBalance(r.Context(), conn, source)
		if err != nil {
			logger.Error("failed to read source balance", "error", err)
			writeError(w, "failed to read source balance", http.StatusBadGateway)
			return
		}
		if req.AmountRaw > balance {
			writeError(w, "amount exceeds source balance", http.StatusUnprocessableEntity)
			return
		}

		destination, setup, err := client.PrepareDestination(r.Context(), conn, owner, mint, destWallet)
		if err != nil {
			logger.Error("failed to prepare destination", "error", err)
			writeError(w, "failed to prepare destination", http.StatusBadGateway)
			return
		}

		envelope, err := client.BuildTransfer(r.Context(), conn, solana.BuildTransferParams{
			Source:            source,
			Destination:       destination,
			AmountRaw:         req.AmountRaw,
			Owner:             owner,
			SetupInstructions: setup,
		})
		if err != nil {
			if m != nil {
				m.RecordTransferBuilt(cluster, "error")
			}
			logger.Error("failed to build transfer", "error", err)
			writeError(w, "failed to build transfer", http.StatusBadGateway)
			return
		}
		if m != nil {
			m.RecordTransferBuilt(cluster, "success")
		}

		sig, err := session.SendTransaction(r.Context(), envelope, conn)
		if err != nil {
			if m != nil {
				m.RecordTransferSubmitted(cluster, "error")
			}
			logger.Error("failed to submit transfer", "error", err)
			writeError(w, "failed to submit transfer", http.StatusBadGateway)
			return
		}
		if m != nil {
			m.RecordTransferSubmitted(cluster, "success")
		}

		logger.Info("transfer submitted",
			"signature", sig.String(),
			"owner", owner.String(),
			"destination", destWallet.String(),
			"mint", mint.String(),
			"amount_raw", req.AmountRaw,
		)

		mintStr := mint.String()
		if store != nil {
			_, err := store.CreateTransfer(r.Context(), db.CreateTransferParams{
				Signature:     sig.String(),
				WalletAddress: owner.String(),
				Destination:   destWallet.String(),
				Mint:          &mintStr,
				AmountRaw:     int64(req.AmountRaw),
				Cluster:       cluster,
				Slot:          int64(envelope.MinContextSlot),
				Status:        "submitted",
			})
			if err != nil {
				logger.Warn("failed to record transfer", "signature", sig.String(), "error", err)
			}
		}

		event := &natspkg.TransferEvent{
			Signature:     sig.String(),
			Slot:          envelope.MinContextSlot,
			WalletAddress: owner.String(),
			Destination:   destWallet.String(),
			Mint:          mintStr,
			AmountRaw:     req.AmountRaw,
			Cluster:       cluster,
			Status:        "submitted",
			PublishedAt:   time.Now().UTC(),
		}
		if publisher != nil {
			if err := publisher.PublishTransfer(r.Context(), event); err != nil {
				logger.Warn("failed to publish transfer event", "signature", sig.String(), "error", err)
			}
		}

		// Confirmation outlives the request.
		confirmCtx := context.WithoutCancel(r.Context())
		go confirmTransfer(confirmCtx, client, conn, sig, event, store, publisher, m, cfg.ConfirmTimeout, logger)

		writeJSON(w, map[string]any{
			"signature":        sig.String(),
			"min_context_slot": envelope.MinContextSlot,
			"status":           "submitted",
		}, http.StatusAccepted)
	})
}

// confirmTransfer waits for the signature to confirm, then updates the
// stored record and publishes the outcome.
func confirmTransfer(
	ctx context.Context,
	client *solana.Client,
	conn *solana.Connection,
	sig solanago.Signature,
	event *natspkg.TransferEvent,
	store *db.Store,
	publisher natspkg.Publisher,
	m *metrics.Metrics,
	timeout time.Duration,
	logger *slog.Logger,
) {
	cluster := conn.Cluster().String()
	start := time.Now()
	err := client.ConfirmTransaction(ctx, conn, sig, timeout)

	status := "confirmed"
	if err != nil {
		status = "failed"
		logger.Error("transfer confirmation failed", "signature", sig.String(), "error", err)
	} else {
		logger.Info("transfer confirmed", "signature", sig.String())
	}
	if m != nil {
		m.RecordConfirmation(cluster, status, time.Since(start).Seconds())
	}

	if store != nil {
		if err := store.UpdateTransferStatus(ctx, sig.String(), cluster, status); err != nil {
			logger.Warn("failed to update transfer status", "signature", sig.String(), "error", err)
		}
	}

	if publisher != nil {
		outcome := *event
		outcome.Status = status
		outcome.PublishedAt = time.Now().UTC()
		if err := publisher.PublishTransfer(ctx, &outcome); err != nil {
			logger.Warn("failed to publish transfer outcome", "signature", sig.String(), "error", err)
		}
	}
}

// handleListTransfers lists recorded transfers for a wallet on the active
// cluster.
// GET /api/v1/transfers?wallet={address}&limit={n}&offset={n}
func handleListTransfers(store *db.Store, resolver *solana.Resolver, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "transfer history is not configured", http.StatusNotImplemented)
			return
		}

		walletAddr := r.URL.Query().Get("wallet")
		if _, err := solanago.PublicKeyFromBase58(walletAddr); err != nil {
			writeError(w, "invalid wallet address", http.StatusBadRequest)
			return
		}

		cluster := r.URL.Query().Get("cluster")
		if cluster == "" {
			conn := resolver.Current()
			if conn == nil {
				writeError(w, "not connected to a cluster", http.StatusConflict)
				return
			}
			cluster = conn.Cluster().String()
		}

		limit := defaultTransferListLimit
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = min(v, maxTransferListLimit)
		}
		offset := 0
		if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
			offset = v
		}

		transfers, err := store.ListTransfersByWallet(r.Context(), db.ListTransfersByWalletParams{
			WalletAddress: walletAddr,
			Cluster:       cluster,
			Limit:         int32(limit),
			Offset:        int32(offset),
		})
		if err != nil {
			logger.Error("failed to list transfers", "wallet", walletAddr, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]transferResponse, len(transfers))
		for i, t := range transfers {
			resp[i] = transferToResponse(t)
		}

		writeJSON(w, map[string]any{
			"wallet":    walletAddr,
			"cluster":   cluster,
			"transfers": resp,
		}, http.StatusOK)
	})
}

// handleAirdrop requests an airdrop for the session wallet, capped at
// maxAirdropSOL per request.
// POST /api/v1/airdrop
func handleAirdrop(client *solana.Client, resolver *solana.Resolver, session *wallet.Session, syncer *account.Syncer, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SOL float64 `json:"sol"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.SOL <= 0 {
			req.SOL = 1
		}
		if req.SOL > maxAirdropSOL {
			req.SOL = maxAirdropSOL
		}

		adapter := session.Current()
		if adapter == nil {
			writeError(w, "no wallet connected", http.StatusConflict)
			return
		}
		conn := resolver.Current()
		if conn == nil {
			writeError(w, "not connected to a cluster", http.StatusConflict)
			return
		}
		cluster := conn.Cluster().String()
		if cluster == solana.MainBeta.String() {
			writeError(w, "airdrops are not available on mainnet-beta", http.StatusBadRequest)
			return
		}

		lamports := uint64(req.SOL * solana.LamportsPerSOL)
		sig, err := client.RequestAirdrop(r.Context(), conn, adapter.PublicKey(), lamports)
		if err != nil {
			if m != nil {
				m.RecordAirdropRequested(cluster, "error")
			}
			logger.Error("airdrop request failed", "error", err)
			writeError(w, "airdrop request failed", http.StatusBadGateway)
			return
		}
		if m != nil {
			m.RecordAirdropRequested(cluster, "success")
		}

		logger.Info("airdrop requested",
			"signature", sig.String(),
			"wallet", adapter.PublicKey().String(),
			"lamports", lamports,
		)

		// Once confirmed, re-derive the account view so the balance
		// reflects the credit.
		confirmCtx := context.WithoutCancel(r.Context())
		go func() {
			if err := client.ConfirmTransaction(confirmCtx, conn, sig, cfg.ConfirmTimeout); err != nil {
				logger.Warn("airdrop confirmation failed", "signature", sig.String(), "error", err)
				return
			}
			syncer.Refresh(confirmCtx)
		}()

		writeJSON(w, map[string]any{
			"signature": sig.String(),
			"lamports":  lamports,
		}, http.StatusAccepted)
	})
}

// Response shapes

type tokenResponse struct {
	Pubkey      string  `json:"pubkey"`
	Mint        string  `json:"mint"`
	Display     string  `json:"display"`
	AmountRaw   uint64  `json:"amount_raw"`
	Amount      float64 `json:"amount"`
	Decimals    uint8   `json:"decimals"`
	Token2022   bool    `json:"token_2022"`
	Enriched    bool    `json:"enriched"`
	ProgramID   string  `json:"program_id"`
	OwnerWallet string  `json:"owner"`
}

func tokenToResponse(a *solana.TokenAccount) tokenResponse {
	return tokenResponse{
		Pubkey:      a.Pubkey.String(),
		Mint:        a.Mint.String(),
		Display:     a.DisplayMint(),
		AmountRaw:   a.AmountRaw,
		Amount:      a.DisplayAmount(),
		Decimals:    a.Decimals(),
		Token2022:   a.IsToken2022(),
		Enriched:    a.Descriptor() != nil,
		ProgramID:   a.ProgramID.String(),
		OwnerWallet: a.Owner.String(),
	}
}

type transferResponse struct {
	Signature   string    `json:"signature"`
	Wallet      string    `json:"wallet"`
	Destination string    `json:"destination"`
	Mint        *string   `json:"mint,omitempty"`
	AmountRaw   int64     `json:"amount_raw"`
	Cluster     string    `json:"cluster"`
	Slot        int64     `json:"slot"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func transferToResponse(t *db.Transfer) transferResponse {
	return transferResponse{
		Signature:   t.Signature,
		Wallet:      t.WalletAddress,
		Destination: t.Destination,
		Mint:        t.Mint,
		AmountRaw:   t.AmountRaw,
		Cluster:     t.Cluster,
		Slot:        t.Slot,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
	}
}

func accountViewResponse(view account.View) map[string]any {
	resp := map[string]any{
		"state": view.State.String(),
	}
	if view.Wallet != "" {
		resp["wallet"] = view.Wallet
		resp["cluster"] = view.Cluster
		resp["display_name"] = view.DisplayName
	}
	if view.Balance != nil {
		resp["balance"] = *view.Balance
	}
	return resp
}

// Helpers

// decodeJSON decodes the request body into v with a size limit.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
