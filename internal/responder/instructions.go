package responder

import (
	"encoding/binary"
	"fmt"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"

	"github.com/gagliardetto/solana-go"
)

var (
	// SPL Associated Token Account program
	associatedTokenProgramID = solana.MustPublicKeyFromBase58(constants.AssociatedTokenProgram)
	// SPL Memo program (v2)
	memoProgramID = solana.MustPublicKeyFromBase58(constants.MemoProgram)
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

// NewTransferCheckedIx builds a SPL Token TransferChecked instruction.
// Account order:
// 0. source (writable)
// 1. mint (read-only)
// 2. destination (writable)
// 3. owner (signer)
func NewTransferCheckedIx(
	source solana.PublicKey,
	mint solana.PublicKey,
	destination solana.PublicKey,
	owner solana.PublicKey,
	amount uint64,
	decimals uint8,
) solana.Instruction {
	// TokenProgram instruction layout:
	// u8: instruction index (12 = TransferChecked)
	// u64: amount
	// u8: decimals
	data := make([]byte, 1+8+1)
	data[0] = constants.TokenIxTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	accounts := []*solana.AccountMeta{
		{PublicKey: source, IsSigner: false, IsWritable: true},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

// NewMemoIx builds a SPL Memo instruction. The memo program verifies every
// listed account signed the transaction, so the signer must also sign.
func NewMemoIx(signer solana.PublicKey, memo string) solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: signer, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(memoProgramID, accounts, []byte(memo))
}

// NewSystemTransferIx builds a SystemProgram transfer instruction.
func NewSystemTransferIx(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	// SystemProgram instruction layout:
	// u32: instruction index (2 = Transfer)
	// u64: lamports
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	accounts := []*solana.AccountMeta{
		{PublicKey: from, IsSigner: true, IsWritable: true},
		{PublicKey: to, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(solana.SystemProgramID, accounts, data)
}

// NewTokenSyncNativeIx builds a SPL Token SyncNative instruction.
func NewTokenSyncNativeIx(nativeAccount solana.PublicKey) solana.Instruction {
	data := []byte{constants.TokenIxSyncNative}
	accounts := []*solana.AccountMeta{
		{PublicKey: nativeAccount, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

// NewTokenCloseAccountIx builds a SPL Token CloseAccount instruction.
func NewTokenCloseAccountIx(account, destination, owner solana.PublicKey) solana.Instruction {
	data := []byte{constants.TokenIxCloseAccount}
	accounts := []*solana.AccountMeta{
		{PublicKey: account, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

func requirePubkey(pk solana.PublicKey, name string) error {
	if pk.IsZero() {
		return fmt.Errorf("%s is zero", name)
	}
	return nil
}
