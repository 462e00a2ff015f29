package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// Token-2022 (token extensions) program.
	token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// SPL token account layout offsets. The record is fixed-layout; token-2022
// accounts carry extension data after the base record.
const (
	tokenAccountMintOffset   = 0
	tokenAccountOwnerOffset  = 32
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = 72

	// Mint layout: mint_authority option (4+32), supply (8), then decimals.
	mintDecimalsOffset = 44
	mintMinLen         = 45

	// Token-2022 mints pad the base record to the account length, store an
	// account-type byte, then TLV extension entries.
	mintBaseLen           = 82
	accountTypeOffset     = 165
	extensionTokenMetadata = 19
)

// defaultDecimals is assumed while a token's descriptor has not resolved.
const defaultDecimals = 9

// TokenDescriptor describes a mint: its decimal precision plus optional
// on-chain metadata. Fetched lazily per account; listing never waits on it.
type TokenDescriptor struct {
	Mint     solana.PublicKey
	Decimals uint8
	Symbol   string // empty when no metadata resolved
	Name     string // empty when no metadata resolved
}

// TokenAccount is a token holding owned by the wallet, decoded from the
// raw on-chain record. The descriptor is attached asynchronously after the
// account is listed; readers must tolerate observing it later.
type TokenAccount struct {
	Pubkey    solana.PublicKey
	ProgramID solana.PublicKey // owning token program, decides the enrichment path
	Mint      solana.PublicKey
	Owner     solana.PublicKey
	AmountRaw uint64

	descriptor atomic.Pointer[TokenDescriptor]
}

// IsToken2022 reports whether the account belongs to the token extensions
// program rather than the legacy token program.
func (a *TokenAccount) IsToken2022() bool {
	return a.ProgramID.Equals(token2022ProgramID)
}

// Descriptor returns the attached descriptor, or nil while enrichment is
// pending or failed.
func (a *TokenAccount) Descriptor() *TokenDescriptor {
	return a.descriptor.Load()
}

// Decimals returns the mint's decimal precision, defaulting to 9 while the
// descriptor is absent.
func (a *TokenAccount) Decimals() uint8 {
	if d := a.Descriptor(); d != nil {
		return d.Decimals
	}
	return defaultDecimals
}

// DisplayAmount converts the raw amount into display units.
func (a *TokenAccount) DisplayAmount() float64 {
	return float64(a.AmountRaw) / pow10(a.Decimals())
}

// DisplayMint returns the token symbol when metadata resolved, otherwise a
// truncated-mint placeholder.
func (a *TokenAccount) DisplayMint() string {
	if d := a.Descriptor(); d != nil && d.Symbol != "" {
		return d.Symbol
	}
	return "Unknown (" + a.Mint.String()[:10] + "...)"
}

func pow10(n uint8) float64 {
	out := 1.0
	for i := uint8(0); i < n; i++ {
		out *= 10
	}
	return out
}

// decodeTokenAccount decodes the fixed SPL token account layout.
func decodeTokenAccount(pubkey, programID solana.PublicKey, data []byte) (*TokenAccount, error) {
	if len(data) < tokenAccountMinLen {
		return nil, fmt.Errorf("token account %s: %d bytes, want at least %d", pubkey, len(data), tokenAccountMinLen)
	}

	return &TokenAccount{
		Pubkey:    pubkey,
		ProgramID: programID,
		Mint:      solana.PublicKeyFromBytes(data[tokenAccountMintOffset : tokenAccountMintOffset+32]),
		Owner:     solana.PublicKeyFromBytes(data[tokenAccountOwnerOffset : tokenAccountOwnerOffset+32]),
		AmountRaw: binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]),
	}, nil
}

// decodeMintDecimals extracts the decimal precision from a raw mint record.
func decodeMintDecimals(data []byte) (uint8, error) {
	if len(data) < mintMinLen {
		return 0, fmt.Errorf("mint record: %d bytes, want at least %d", len(data), mintMinLen)
	}
	return data[mintDecimalsOffset], nil
}

// decodeMintMetadata scans the token-2022 TLV extensions of a mint record
// for the token-metadata extension and decodes symbol and name. Returns
// empty strings when the extension is absent; absence is not an error.
func decodeMintMetadata(data []byte) (symbol, name string) {
	if len(data) <= accountTypeOffset+1 {
		return "", ""
	}

	tlv := data[accountTypeOffset+1:]
	for len(tlv) >= 4 {
		extType := binary.LittleEndian.Uint16(tlv[0:2])
		extLen := int(binary.LittleEndian.Uint16(tlv[2:4]))
		if len(tlv) < 4+extLen {
			return "", ""
		}

		if extType == extensionTokenMetadata {
			return decodeTokenMetadataFields(tlv[4 : 4+extLen])
		}

		tlv = tlv[4+extLen:]
	}

	return "", ""
}

// decodeTokenMetadataFields decodes the token-metadata extension value:
// update authority (32), mint (32), then length-prefixed name, symbol, uri.
func decodeTokenMetadataFields(v []byte) (symbol, name string) {
	offset := 64
	name, offset, ok := readString(v, offset)
	if !ok {
		return "", ""
	}
	symbol, _, ok = readString(v, offset)
	if !ok {
		return "", name
	}
	return symbol, name
}

// readString reads a u32 length-prefixed UTF-8 string at offset.
func readString(v []byte, offset int) (string, int, bool) {
	if len(v) < offset+4 {
		return "", offset, false
	}
	n := int(binary.LittleEndian.Uint32(v[offset : offset+4]))
	offset += 4
	if len(v) < offset+n {
		return "", offset, false
	}
	return string(v[offset : offset+n]), offset + n, true
}

// TokenAccountList is the result of a token listing. Accounts are fully
// listed before enrichment starts; Wait blocks until every descriptor
// fetch has settled (tests and batch callers use it, the serving path does
// not).
type TokenAccountList struct {
	Accounts []*TokenAccount

	wg sync.WaitGroup
}

// Wait blocks until enrichment of every listed account has finished or ctx
// is done.
func (l *TokenAccountList) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListTokenAccounts queries the owner's holdings under both token programs
// and decodes them. Enrichment (mint decimals, token-2022 metadata) is
// fired after all accounts are decoded and attaches descriptors in the
// background; the listing itself never blocks on it.
func (c *Client) ListTokenAccounts(ctx context.Context, conn *Connection, owner solana.PublicKey) (*TokenAccountList, error) {
	list := &TokenAccountList{}

	// Order between the two result sets does not matter; within each set
	// the RPC-provided order is preserved.
	for _, programID := range []solana.PublicKey{solana.TokenProgramID, token2022ProgramID} {
		accounts, err := c.listByProgram(ctx, conn, owner, programID)
		if err != nil {
			return nil, err
		}
		list.Accounts = append(list.Accounts, accounts...)
	}

	c.logger.DebugContext(ctx, "listed token accounts",
		"owner", owner.String(),
		"count", len(list.Accounts),
	)

	// Enrichment outlives the request that triggered the listing.
	enrichCtx := context.WithoutCancel(ctx)
	for _, account := range list.Accounts {
		list.wg.Add(1)
		go func(account *TokenAccount) {
			defer list.wg.Done()
			c.enrich(enrichCtx, conn, account)
		}(account)
	}

	return list, nil
}

func (c *Client) listByProgram(ctx context.Context, conn *Connection, owner, programID solana.PublicKey) ([]*TokenAccount, error) {
	start := time.Now()
	out, err := conn.rpc.GetTokenAccountsByOwner(ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	c.record(conn, "GetTokenAccountsByOwner", start, err)
	if err != nil {
		return nil, newError(KindFetch, err)
	}

	accounts := make([]*TokenAccount, 0, len(out.Value))
	for _, raw := range out.Value {
		account, err := decodeTokenAccount(raw.Pubkey, raw.Account.Owner, raw.Account.Data.GetBinary())
		if err != nil {
			// A malformed record should not hide the rest of the listing.
			c.logger.WarnContext(ctx, "skipping undecodable token account",
				"pubkey", raw.Pubkey.String(),
				"error", err,
			)
			continue
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// TokenAccountBalance reads a single token account and returns its raw
// balance. Transfer amounts are checked against this value before an
// envelope is built.
func (c *Client) TokenAccountBalance(ctx context.Context, conn *Connection, tokenAccount solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := conn.rpc.GetAccountInfo(ctx, tokenAccount)
	c.record(conn, "GetAccountInfo", start, err)
	if err != nil {
		return 0, newError(KindFetch, err)
	}
	if out.Value == nil {
		return 0, newError(KindFetch, fmt.Errorf("token account %s does not exist", tokenAccount))
	}

	account, err := decodeTokenAccount(tokenAccount, out.Value.Owner, out.Value.Data.GetBinary())
	if err != nil {
		return 0, newError(KindFetch, err)
	}
	return account.AmountRaw, nil
}

// enrich fetches the account's mint record and attaches a descriptor. For
// legacy accounts only the decimals are read; token-2022 mints also carry
// optional metadata in their extension data. Failure leaves the descriptor
// absent, which readers treat as "still pending".
func (c *Client) enrich(ctx context.Context, conn *Connection, account *TokenAccount) {
	start := time.Now()
	out, err := conn.rpc.GetAccountInfo(ctx, account.Mint)
	c.record(conn, "GetAccountInfo", start, err)
	if err != nil || out.Value == nil {
		c.logger.DebugContext(ctx, "mint lookup failed, descriptor stays absent",
			"mint", account.Mint.String(),
			"error", err,
		)
		return
	}

	data := out.Value.Data.GetBinary()
	decimals, err := decodeMintDecimals(data)
	if err != nil {
		c.logger.WarnContext(ctx, "undecodable mint record",
			"mint", account.Mint.String(),
			"error", err,
		)
		return
	}

	descriptor := &TokenDescriptor{
		Mint:     account.Mint,
		Decimals: decimals,
	}

	if account.IsToken2022() {
		// Metadata lives in the mint's extension TLVs; absence is normal.
		descriptor.Symbol, descriptor.Name = decodeMintMetadata(data)
	}

	account.descriptor.Store(descriptor)
}
