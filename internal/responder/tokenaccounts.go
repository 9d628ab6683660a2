package responder

import (
	"context"
	"fmt"

	"github.com/prometheus88/Simple-PFT-Node/internal/wallet"

	"github.com/gagliardetto/solana-go"
)

// ResolvedTokenAccount describes the token account a reply should land on,
// plus any instructions needed to make it usable (e.g. create the ATA).
type ResolvedTokenAccount struct {
	Account solana.PublicKey
	Created bool // true if PreIxs will create the account in this transaction
	PreIxs  []solana.Instruction
}

// TokenAccountResolver maps an owner wallet to its token account for a mint.
type TokenAccountResolver interface {
	Resolve(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (*ResolvedTokenAccount, error)
}

// DefaultTokenAccountResolver resolves the owner's ATA for a given mint and,
// when the account does not exist yet, emits a create instruction paid for
// by the node wallet.
type DefaultTokenAccountResolver struct {
	w *wallet.Wallet
}

func NewDefaultTokenAccountResolver(w *wallet.Wallet) *DefaultTokenAccountResolver {
	return &DefaultTokenAccountResolver{w: w}
}

func (r *DefaultTokenAccountResolver) Resolve(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (*ResolvedTokenAccount, error) {
	if r == nil || r.w == nil {
		return nil, fmt.Errorf("token account resolver: wallet is nil")
	}

	ata, _, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	exists, err := r.w.AccountExists(ctx, ata)
	if err != nil {
		return nil, err
	}
	if exists {
		return &ResolvedTokenAccount{Account: ata, Created: false}, nil
	}

	// Recipient has no token account yet; the node pays the rent.
	createATA := NewCreateAssociatedTokenAccountIx(r.w.PublicKey(), ata, owner, mint)
	return &ResolvedTokenAccount{
		Account: ata,
		Created: true,
		PreIxs:  []solana.Instruction{createATA},
	}, nil
}
