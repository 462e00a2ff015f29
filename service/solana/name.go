package solana

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	// SPL Name Service program.
	nameProgramID = solana.MustPublicKeyFromBase58("namesLPneVptA9Z5rqUDD9tMTWEJwofgaYwp8cawRkX")

	// Bonfida name-offers program; owns the favourite-domain records.
	nameOffersProgramID = solana.MustPublicKeyFromBase58("85iDfUvr3HJyLM2zcq5BXSiDvUWfw6cSE1FfNBo8Ap29")

	// Class key under which reverse-lookup records are registered.
	reverseLookupClass = solana.MustPublicKeyFromBase58("33m47vH6Eav6jr5Ry86XjhRft2jRBLDnDgPSHoquXi2Z")
)

// nameHashPrefix is prepended to every name before hashing, per the SPL
// name service derivation scheme.
const nameHashPrefix = "SPL Name Service"

// nameRegistryHeaderLen is the fixed NameRegistryState header (parent,
// owner, class) preceding record data.
const nameRegistryHeaderLen = 96

// NameResolver resolves a wallet public key to a human-readable name.
// Resolution failure is expected (most keys have no registered name) and is
// handled by the caller, not treated as exceptional.
type NameResolver interface {
	Resolve(ctx context.Context, conn *Connection, pubkey solana.PublicKey) (string, error)
}

// SNSResolver resolves names through the SPL name service: it reads the
// wallet's favourite-domain record, then the domain's reverse-lookup record
// to recover the registered name.
type SNSResolver struct {
	logger *slog.Logger
}

// NewSNSResolver creates a name resolver backed by the SPL name service.
func NewSNSResolver(logger *slog.Logger) *SNSResolver {
	return &SNSResolver{logger: logger}
}

// Resolve returns the wallet's favourite domain as "name.sol".
func (r *SNSResolver) Resolve(ctx context.Context, conn *Connection, pubkey solana.PublicKey) (string, error) {
	favourite, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("favourite_domain"), pubkey.Bytes()},
		nameOffersProgramID,
	)
	if err != nil {
		return "", fmt.Errorf("derive favourite domain record: %w", err)
	}

	domainKey, err := r.readFavourite(ctx, conn, favourite)
	if err != nil {
		return "", err
	}

	name, err := r.reverseLookup(ctx, conn, domainKey)
	if err != nil {
		return "", err
	}

	return name + ".sol", nil
}

// readFavourite reads the favourite-domain record and extracts the domain's
// name account key. Layout: 1-byte tag followed by the 32-byte key.
func (r *SNSResolver) readFavourite(ctx context.Context, conn *Connection, record solana.PublicKey) (solana.PublicKey, error) {
	out, err := conn.rpc.GetAccountInfo(ctx, record)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("favourite domain record: %w", err)
	}
	if out.Value == nil {
		return solana.PublicKey{}, fmt.Errorf("no favourite domain registered")
	}

	data := out.Value.Data.GetBinary()
	if len(data) < 1+solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("favourite domain record too short: %d bytes", len(data))
	}

	return solana.PublicKeyFromBytes(data[1 : 1+solana.PublicKeyLength]), nil
}

// reverseLookup reads the reverse record of a domain account and decodes
// the registered name.
func (r *SNSResolver) reverseLookup(ctx context.Context, conn *Connection, domainKey solana.PublicKey) (string, error) {
	hashed := hashName(domainKey.String())

	reverseKey, _, err := solana.FindProgramAddress(
		[][]byte{hashed, reverseLookupClass.Bytes(), make([]byte, solana.PublicKeyLength)},
		nameProgramID,
	)
	if err != nil {
		return "", fmt.Errorf("derive reverse record: %w", err)
	}

	out, err := conn.rpc.GetAccountInfo(ctx, reverseKey)
	if err != nil {
		return "", fmt.Errorf("reverse record: %w", err)
	}
	if out.Value == nil {
		return "", fmt.Errorf("no reverse record for domain %s", domainKey)
	}

	data := out.Value.Data.GetBinary()
	if len(data) < nameRegistryHeaderLen+4 {
		return "", fmt.Errorf("reverse record too short: %d bytes", len(data))
	}

	body := data[nameRegistryHeaderLen:]
	nameLen := binary.LittleEndian.Uint32(body[:4])
	if int(nameLen) > len(body)-4 {
		return "", fmt.Errorf("reverse record name length %d exceeds data", nameLen)
	}

	return string(body[4 : 4+nameLen]), nil
}

// hashName derives the SPL name service hash of a name.
func hashName(name string) []byte {
	sum := sha256.Sum256([]byte(nameHashPrefix + name))
	return sum[:]
}

// DisplayName resolves a human-readable name for the wallet, degrading to
// the truncated key on any failure. It always returns a non-empty string;
// the degradation is logged at debug level because it is the common case
// for unregistered keys.
func DisplayName(ctx context.Context, resolver NameResolver, conn *Connection, pubkey solana.PublicKey, logger *slog.Logger) string {
	start := time.Now()
	name, err := resolver.Resolve(ctx, conn, pubkey)
	if err != nil {
		logger.DebugContext(ctx, "name resolution degraded to truncated key",
			"wallet", pubkey.String(),
			"elapsed", time.Since(start),
			"reason", err,
		)
		return TruncateKey(pubkey)
	}
	return name
}
