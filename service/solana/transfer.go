package solana

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// SPL Associated Token Account program
	associatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// FindAssociatedTokenAddress derives the ATA PDA for (owner, mint).
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (ata solana.PublicKey, bump uint8, err error) {
	// Seeds: [owner, token_program, mint]
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			solana.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		associatedTokenProgramID,
	)
}

// NewCreateAssociatedTokenAccountIx builds an instruction to create an ATA.
// Account order (ATA program):
// 0. payer (signer, writable)
// 1. ata (writable)
// 2. owner (read-only)
// 3. mint (read-only)
// 4. system_program
// 5. token_program
// 6. rent_sysvar
func NewCreateAssociatedTokenAccountIx(
	payer solana.PublicKey,
	ata solana.PublicKey,
	owner solana.PublicKey,
	mint solana.PublicKey,
) solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}

	// ATA create instruction data is empty.
	return solana.NewInstruction(associatedTokenProgramID, accounts, nil)
}

// NewTokenTransferIx builds a SPL Token transfer instruction.
// Instruction layout:
// byte 0:    3 (Transfer)
// bytes 1-8: amount in raw units, little-endian u64
func NewTokenTransferIx(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], amount)

	accounts := []*solana.AccountMeta{
		{PublicKey: source, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

// BuildTransferParams contains parameters for assembling a token transfer.
type BuildTransferParams struct {
	Source      solana.PublicKey // source token account
	Destination solana.PublicKey // destination token account
	AmountRaw   uint64           // raw units, not display units
	Owner       solana.PublicKey // owner of the source account; fee payer

	// SetupInstructions run before the transfer, e.g. creating the
	// destination associated token account.
	SetupInstructions []solana.Instruction
}

// BuildTransfer assembles an unsigned transfer envelope. The blockhash and
// the envelope's MinContextSlot come from one GetLatestBlockhash response;
// fetching them separately could pair a blockhash with a slot from a
// different fork state.
func (c *Client) BuildTransfer(ctx context.Context, conn *Connection, params BuildTransferParams) (*TransferEnvelope, error) {
	start := time.Now()
	recent, err := conn.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	c.record(conn, "GetLatestBlockhash", start, err)
	if err != nil {
		return nil, newError(KindFetch, err)
	}

	instructions := append([]solana.Instruction{}, params.SetupInstructions...)
	instructions = append(instructions, NewTokenTransferIx(
		params.Source,
		params.Destination,
		params.Owner,
		params.AmountRaw,
	))

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(params.Owner),
	)
	if err != nil {
		return nil, newError(KindSubmit, err)
	}

	c.logger.DebugContext(ctx, "built transfer envelope",
		"source", params.Source.String(),
		"destination", params.Destination.String(),
		"amount_raw", params.AmountRaw,
		"min_context_slot", recent.Context.Slot,
	)

	return &TransferEnvelope{
		Tx:             tx,
		MinContextSlot: recent.Context.Slot,
	}, nil
}

// PrepareDestination resolves the destination wallet's associated token
// account for mint and, when it does not exist yet, returns a setup
// instruction creating it (payer = owner).
func (c *Client) PrepareDestination(ctx context.Context, conn *Connection, owner, mint, destWallet solana.PublicKey) (solana.PublicKey, []solana.Instruction, error) {
	ata, _, err := FindAssociatedTokenAddress(destWallet, mint)
	if err != nil {
		return solana.PublicKey{}, nil, newError(KindSubmit, err)
	}

	start := time.Now()
	out, err := conn.rpc.GetAccountInfo(ctx, ata)
	c.record(conn, "GetAccountInfo", start, err)
	if err != nil || out.Value == nil {
		// Missing account and fetch failure both take the create path;
		// creating an existing ATA fails at submission, while skipping a
		// missing one would strand the transfer.
		return ata, []solana.Instruction{
			NewCreateAssociatedTokenAccountIx(owner, ata, destWallet, mint),
		}, nil
	}

	return ata, nil, nil
}
