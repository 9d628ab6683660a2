package responder

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPubkey(t *testing.T) solana.PublicKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return solana.PrivateKey(priv).PublicKey()
}

func TestFindAssociatedTokenAddress(t *testing.T) {
	owner := newTestPubkey(t)
	mint := newTestPubkey(t)

	ata1, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.False(t, ata1.IsZero())

	// Deterministic for the same inputs
	ata2, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, ata1, ata2)

	// Different mint, different address
	ata3, _, err := FindAssociatedTokenAddress(owner, newTestPubkey(t))
	require.NoError(t, err)
	assert.NotEqual(t, ata1, ata3)
}

func TestNewCreateAssociatedTokenAccountIx(t *testing.T) {
	payer := newTestPubkey(t)
	ata := newTestPubkey(t)
	owner := newTestPubkey(t)
	mint := newTestPubkey(t)

	ix := NewCreateAssociatedTokenAccountIx(payer, ata, owner, mint)

	assert.Equal(t, associatedTokenProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 7)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, owner, accounts[2].PublicKey)
	assert.Equal(t, mint, accounts[3].PublicKey)
	assert.Equal(t, solana.SystemProgramID, accounts[4].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[5].PublicKey)
	assert.Equal(t, solana.SysVarRentPubkey, accounts[6].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestNewTransferCheckedIx(t *testing.T) {
	source := newTestPubkey(t)
	mint := newTestPubkey(t)
	dest := newTestPubkey(t)
	owner := newTestPubkey(t)

	ix := NewTransferCheckedIx(source, mint, dest, owner, 1_000_000, 6)

	assert.Equal(t, solana.TokenProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 10)
	assert.Equal(t, uint8(12), data[0])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint8(6), data[9])

	accounts := ix.Accounts()
	require.Len(t, accounts, 4)
	assert.Equal(t, source, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, mint, accounts[1].PublicKey)
	assert.Equal(t, dest, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsWritable)
	assert.Equal(t, owner, accounts[3].PublicKey)
	assert.True(t, accounts[3].IsSigner)
}

func TestNewMemoIx(t *testing.T) {
	signer := newTestPubkey(t)

	ix := NewMemoIx(signer, "Analysis: hello")

	assert.Equal(t, memoProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("Analysis: hello"), data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, signer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
}

func TestNewSystemTransferIx(t *testing.T) {
	from := newTestPubkey(t)
	to := newTestPubkey(t)

	ix := NewSystemTransferIx(from, to, 42_000)

	assert.Equal(t, solana.SystemProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(42_000), binary.LittleEndian.Uint64(data[4:12]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].IsSigner)
}

func TestNewTokenSyncNativeIx(t *testing.T) {
	account := newTestPubkey(t)

	ix := NewTokenSyncNativeIx(account)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{17}, data)
	require.Len(t, ix.Accounts(), 1)
}

func TestNewTokenCloseAccountIx(t *testing.T) {
	account := newTestPubkey(t)
	dest := newTestPubkey(t)
	owner := newTestPubkey(t)

	ix := NewTokenCloseAccountIx(account, dest, owner)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, owner, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)
}

func TestRequirePubkey(t *testing.T) {
	assert.NoError(t, requirePubkey(newTestPubkey(t), "owner"))

	err := requirePubkey(solana.PublicKey{}, "owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner is zero")
}
