package ledger

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"
	"github.com/prometheus88/Simple-PFT-Node/internal/rpc"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	tokenProgramID      = solana.MustPublicKeyFromBase58(constants.TokenProgram)
	token2022ProgramID  = solana.MustPublicKeyFromBase58(constants.Token2022Program)
	memoProgramID       = solana.MustPublicKeyFromBase58(constants.MemoProgram)
	memoProgramLegacyID = solana.MustPublicKeyFromBase58(constants.MemoProgramLegacy)
)

// tokenTransfer is one SPL transfer instruction, decompiled.
type tokenTransfer struct {
	source      solana.PublicKey
	destination solana.PublicKey
	mint        solana.PublicKey // zero for plain Transfer, which names no mint
	authority   solana.PublicKey
	amount      uint64
	decimals    uint8
}

// ParsePayment decodes a raw base64 transaction payload and flattens it into
// a Payment: the first token transfer addressed to dest (any transfer when
// dest is zero) plus memo text. Memos carrying the reply correlation tag go
// to ReplyTag instead of Memo. Returns nil when the transaction moves no
// tokens and carries no memo.
func ParsePayment(signature string, result *rpc.TransactionResult, dest solana.PublicKey) (*models.Payment, error) {
	if result == nil || len(result.Transaction) == 0 {
		return nil, fmt.Errorf("empty transaction result")
	}

	raw, err := base64.StdEncoding.DecodeString(result.Transaction[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction payload: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	p := &models.Payment{
		Signature: signature,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		p.BlockTime = time.Unix(*result.BlockTime, 0).UTC()
	}
	if result.Meta != nil && result.Meta.Err != nil {
		p.Failed = true
	}

	keys := tx.Message.AccountKeys
	haveTransfer := false

	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			continue
		}
		programID := keys[inst.ProgramIDIndex]

		switch {
		case programID.Equals(tokenProgramID) || programID.Equals(token2022ProgramID):
			tr, ok := parseTokenTransfer(inst, keys)
			if !ok {
				continue
			}
			if !dest.IsZero() && !tr.destination.Equals(dest) {
				continue
			}
			if haveTransfer {
				continue // first matching transfer wins
			}
			haveTransfer = true
			p.From = tr.authority.String()
			p.Source = tr.source.String()
			p.Destination = tr.destination.String()
			if !tr.mint.IsZero() {
				p.Mint = tr.mint.String()
			}
			p.Amount = tr.amount
			p.Decimals = tr.decimals

		case programID.Equals(memoProgramID) || programID.Equals(memoProgramLegacyID):
			memo := parseMemo(inst.Data)
			switch {
			case memo == "":
			case strings.HasPrefix(memo, constants.ReplyTagPrefix):
				if p.ReplyTag == "" {
					p.ReplyTag = memo
				}
			case p.Memo == "":
				p.Memo = memo
			}
		}
	}

	if !haveTransfer && p.Memo == "" && p.ReplyTag == "" {
		return nil, nil
	}
	return p, nil
}

// parseTokenTransfer decompiles a Transfer or TransferChecked instruction.
// Account layouts:
//
//	Transfer        [source, destination, authority]
//	TransferChecked [source, mint, destination, authority]
func parseTokenTransfer(inst solana.CompiledInstruction, keys []solana.PublicKey) (tokenTransfer, bool) {
	var tr tokenTransfer
	if len(inst.Data) == 0 {
		return tr, false
	}

	key := func(i int) (solana.PublicKey, bool) {
		if i >= len(inst.Accounts) {
			return solana.PublicKey{}, false
		}
		idx := int(inst.Accounts[i])
		if idx >= len(keys) {
			return solana.PublicKey{}, false
		}
		return keys[idx], true
	}

	switch inst.Data[0] {
	case constants.TokenIxTransfer:
		if len(inst.Data) < 9 {
			return tr, false
		}
		src, ok1 := key(0)
		dst, ok2 := key(1)
		auth, ok3 := key(2)
		if !ok1 || !ok2 || !ok3 {
			return tr, false
		}
		tr.amount = binary.LittleEndian.Uint64(inst.Data[1:9])
		tr.source, tr.destination, tr.authority = src, dst, auth
		return tr, true

	case constants.TokenIxTransferChecked:
		if len(inst.Data) < 10 {
			return tr, false
		}
		src, ok1 := key(0)
		mint, ok2 := key(1)
		dst, ok3 := key(2)
		auth, ok4 := key(3)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return tr, false
		}
		tr.amount = binary.LittleEndian.Uint64(inst.Data[1:9])
		tr.decimals = inst.Data[9]
		tr.source, tr.mint, tr.destination, tr.authority = src, mint, dst, auth
		return tr, true
	}

	return tr, false
}

// parseMemo extracts memo text. Memo instruction data is the raw UTF-8
// bytes; anything not decodable as text is discarded.
func parseMemo(data []byte) string {
	if len(data) == 0 || !utf8.Valid(data) || bytes.ContainsRune(data, 0) {
		return ""
	}
	return strings.TrimSpace(string(data))
}
