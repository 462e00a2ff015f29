// Package client is the HTTP client for the dashboard service API. The CLI
// is built on it; other Go programs can use it directly.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Network is the active cluster connection as reported by the server.
type Network struct {
	Connected bool   `json:"connected"`
	Cluster   string `json:"cluster,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// SessionInfo describes the wallet bound to the server's session.
type SessionInfo struct {
	Adapter   string `json:"adapter"`
	PublicKey string `json:"public_key"`
}

// AccountView is the server's current account view. Balance is absent while
// the balance has not resolved.
type AccountView struct {
	State       string   `json:"state"`
	Wallet      string   `json:"wallet,omitempty"`
	Cluster     string   `json:"cluster,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Balance     *float64 `json:"balance,omitempty"`
}

// Token is one token holding of the session wallet.
type Token struct {
	Pubkey    string  `json:"pubkey"`
	Mint      string  `json:"mint"`
	Display   string  `json:"display"`
	AmountRaw uint64  `json:"amount_raw"`
	Amount    float64 `json:"amount"`
	Decimals  uint8   `json:"decimals"`
	Token2022 bool    `json:"token_2022"`
	Enriched  bool    `json:"enriched"`
	ProgramID string  `json:"program_id"`
	Owner     string  `json:"owner"`
}

// TokenList is the token listing for the session wallet.
type TokenList struct {
	Cluster string  `json:"cluster"`
	Owner   string  `json:"owner"`
	Tokens  []Token `json:"tokens"`
}

// TransferReceipt acknowledges a submitted transfer. Confirmation happens
// asynchronously; watch the event stream or poll the transfer list for the
// outcome.
type TransferReceipt struct {
	Signature      string `json:"signature"`
	MinContextSlot uint64 `json:"min_context_slot"`
	Status         string `json:"status"`
}

// Transfer is a recorded transfer.
type Transfer struct {
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

// AirdropReceipt acknowledges a requested airdrop.
type AirdropReceipt struct {
	Signature string `json:"signature"`
	Lamports  uint64 `json:"lamports"`
}

// Event is one server-sent event from the dashboard stream.
type Event struct {
	Type string
	Data json.RawMessage
}

// Client is the HTTP client for the dashboard service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new dashboard service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetNetwork returns the active cluster connection.
func (c *Client) GetNetwork(ctx context.Context) (*Network, error) {
	var out Network
	if err := c.do(ctx, "GET", "/api/v1/network", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetNetwork switches the server to the named cluster.
func (c *Client) SetNetwork(ctx context.Context, cluster string) (*Network, error) {
	var out Network
	err := c.do(ctx, "PUT", "/api/v1/network", map[string]any{"cluster": cluster}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("cluster switched", "cluster", out.Cluster)
	return &out, nil
}

// ConnectKeypair binds a local keypair wallet to the server session. The
// private key travels to the server; only use this against a server you
// operate.
func (c *Client) ConnectKeypair(ctx context.Context, privateKey string) (*SessionInfo, error) {
	var out SessionInfo
	err := c.do(ctx, "POST", "/api/v1/session", map[string]any{"private_key": privateKey}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectRemote binds a remote-signer wallet to the server session.
func (c *Client) ConnectRemote(ctx context.Context, signerURL string) (*SessionInfo, error) {
	var out SessionInfo
	err := c.do(ctx, "POST", "/api/v1/session", map[string]any{"signer_url": signerURL}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Disconnect clears the server's wallet session.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, "DELETE", "/api/v1/session", nil, http.StatusNoContent, nil)
}

// GetAccount returns the current account view.
func (c *Client) GetAccount(ctx context.Context) (*AccountView, error) {
	var out AccountView
	if err := c.do(ctx, "GET", "/api/v1/account", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTokens lists the session wallet's token accounts. A positive wait
// blocks the server for up to that long while token metadata resolves.
func (c *Client) ListTokens(ctx context.Context, wait time.Duration) (*TokenList, error) {
	path := "/api/v1/tokens"
	if wait > 0 {
		path += "?wait_ms=" + strconv.FormatInt(wait.Milliseconds(), 10)
	}

	var out TokenList
	if err := c.do(ctx, "GET", path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransfer submits a token transfer of amountRaw raw units to the
// destination wallet.
func (c *Client) CreateTransfer(ctx context.Context, destination, mint string, amountRaw uint64) (*TransferReceipt, error) {
	reqBody := map[string]any{
		"destination": destination,
		"mint":        mint,
		"amount_raw":  amountRaw,
	}

	var out TransferReceipt
	if err := c.do(ctx, "POST", "/api/v1/transfers", reqBody, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTransfers lists recorded transfers for a wallet. Cluster may be empty
// to use the server's active cluster; limit and offset may be zero for the
// server defaults.
func (c *Client) ListTransfers(ctx context.Context, walletAddr, cluster string, limit, offset int) ([]Transfer, error) {
	q := url.Values{}
	q.Set("wallet", walletAddr)
	if cluster != "" {
		q.Set("cluster", cluster)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out struct {
		Transfers []Transfer `json:"transfers"`
	}
	if err := c.do(ctx, "GET", "/api/v1/transfers?"+q.Encode(), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Transfers, nil
}

// RequestAirdrop requests an airdrop of sol SOL for the session wallet.
// The server caps the amount.
func (c *Client) RequestAirdrop(ctx context.Context, sol float64) (*AirdropReceipt, error) {
	var out AirdropReceipt
	err := c.do(ctx, "POST", "/api/v1/airdrop", map[string]any{"sol": sol}, http.StatusAccepted, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamEvents subscribes to the server's event stream, optionally filtered
// to one wallet address. Events arrive on the returned channel until ctx is
// canceled or the stream breaks; the channel is closed either way.
func (c *Client) StreamEvents(ctx context.Context, walletAddr string) (<-chan Event, error) {
	path := "/api/v1/stream/events"
	if walletAddr != "" {
		path += "?wallet=" + url.QueryEscape(walletAddr)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The default client times streaming responses out; use a dedicated
	// one without a deadline.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.parseErrorResponse(resp)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var current Event
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
			case line == "":
				// Blank line ends a frame. Keepalive comments carry no data.
				if current.Data != nil {
					select {
					case events <- current:
					case <-ctx.Done():
						return
					}
				}
				current = Event{}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.logger.Warn("event stream closed", "error", err)
		}
	}()

	return events, nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Any status other than wantStatus is surfaced as an error.
func (c *Client) do(ctx context.Context, method, path string, reqBody any, wantStatus int, out any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
