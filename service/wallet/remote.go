package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/mirror520/first-web3/service/pubsub"
	"github.com/mirror520/first-web3/service/solana"
)

// RemoteAdapter is a wallet that delegates signing and submission to an
// external signer service over HTTP. The private key never enters this
// process; the service receives the serialized unsigned transaction plus
// the submission options and returns the signature.
type RemoteAdapter struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	pub       solanago.PublicKey
	connected *pubsub.Stream[solanago.PublicKey]
}

// NewRemoteAdapter creates a wallet backed by a remote signer service.
func NewRemoteAdapter(baseURL string, httpClient *http.Client, logger *slog.Logger) *RemoteAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteAdapter{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		connected:  pubsub.NewStream[solanago.PublicKey](),
	}
}

func (a *RemoteAdapter) Name() string { return "remote" }

func (a *RemoteAdapter) PublicKey() solanago.PublicKey { return a.pub }

// Connect asks the signer service for its public key and announces it.
func (a *RemoteAdapter) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/v1/connect", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return a.parseErrorResponse(resp)
	}

	var body struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	pub, err := solanago.PublicKeyFromBase58(body.PublicKey)
	if err != nil {
		return fmt.Errorf("signer returned invalid public key %q: %w", body.PublicKey, err)
	}

	a.pub = pub
	a.logger.DebugContext(ctx, "remote wallet connected", "pubkey", pub.String())
	a.connected.Publish(pub)
	return nil
}

// Disconnect releases the signer session. Best-effort on the remote side.
func (a *RemoteAdapter) Disconnect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/v1/disconnect", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return a.parseErrorResponse(resp)
	}
	return nil
}

func (a *RemoteAdapter) Connected() (<-chan solanago.PublicKey, func()) {
	return a.connected.Subscribe()
}

// SendTransaction serializes the unsigned envelope and has the signer
// service sign and submit it against the connection's endpoint.
func (a *RemoteAdapter) SendTransaction(ctx context.Context, envelope *solana.TransferEnvelope, conn *solana.Connection) (solanago.Signature, error) {
	raw, err := envelope.Tx.Message.MarshalBinary()
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to serialize message: %w", err)
	}

	reqBody := map[string]interface{}{
		"message":          base64.StdEncoding.EncodeToString(raw),
		"endpoint":         conn.Endpoint(),
		"min_context_slot": envelope.MinContextSlot,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/v1/sign-and-send", bytes.NewReader(body))
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return solanago.Signature{}, a.parseErrorResponse(resp)
	}

	var result struct {
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to decode response: %w", err)
	}

	sig, err := solanago.SignatureFromBase58(result.Signature)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("signer returned invalid signature %q: %w", result.Signature, err)
	}

	a.logger.InfoContext(ctx, "transaction submitted via remote signer",
		"signature", sig.String(),
	)
	return sig, nil
}

// parseErrorResponse attempts to parse an error response from the signer.
func (a *RemoteAdapter) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("signer request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("signer request failed: %s", errResp.Error)
}
