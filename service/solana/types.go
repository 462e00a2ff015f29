package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// ErrorKind classifies collaborator failures into the finite vocabulary the
// presentation layer understands. Raw RPC errors never leave this package
// unclassified.
type ErrorKind int

const (
	// KindConnect covers unreachable endpoints and failed liveness checks.
	KindConnect ErrorKind = iota
	// KindFetch covers balance and listing fetch failures. These surface
	// as absent values and are not retried automatically.
	KindFetch
	// KindSubmit covers transaction submission failures.
	KindSubmit
	// KindConfirm covers a chain-reported error on a confirmed signature.
	KindConfirm
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindFetch:
		return "fetch"
	case KindSubmit:
		return "submit"
	case KindConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// Error wraps a collaborator failure with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError classifies err under kind.
func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the classification of err, or KindFetch if err carries none.
func KindOf(err error) ErrorKind {
	if se, ok := err.(*Error); ok {
		return se.Kind
	}
	return KindFetch
}

// TransferEnvelope carries an unsigned transaction plus the submission
// options it must be sent with. The blockhash inside the transaction and
// MinContextSlot originate from the same RPC response, so the envelope can
// never pin a slot that disagrees with its blockhash. An envelope is
// immutable once built and consumed exactly once by the signing wallet.
type TransferEnvelope struct {
	Tx *solana.Transaction

	// MinContextSlot is the slot the blockhash was fetched at. Submission
	// pins this slot so the transaction is never evaluated against an
	// older state than the one the blockhash came from.
	MinContextSlot uint64
}

// TruncateKey renders pk as its first 10 base58 characters plus an
// ellipsis. Used as the display fallback whenever name resolution fails.
func TruncateKey(pk solana.PublicKey) string {
	return pk.String()[:10] + "..."
}
