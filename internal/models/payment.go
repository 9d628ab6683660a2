// ============================================================================
// models/payment.go
// ============================================================================
package models

import "time"

// Payment is one token transfer observed on the ledger, flattened from the
// raw transaction into the fields the node acts on.
type Payment struct {
	Signature   string    `json:"signature"`
	Slot        uint64    `json:"slot"`
	BlockTime   time.Time `json:"block_time"`
	From        string    `json:"from"`        // owner wallet of the sending token account
	Source      string    `json:"source"`      // sending token account
	Destination string    `json:"destination"` // receiving token account
	Mint        string    `json:"mint"`
	Amount      uint64    `json:"amount"` // raw units, not UI amount
	Decimals    uint8     `json:"decimals"`
	Memo        string    `json:"memo,omitempty"`
	ReplyTag    string    `json:"reply_tag,omitempty"` // "re:<signature>" correlation memo
	Failed      bool      `json:"failed,omitempty"`    // on-chain execution error
}

// UIAmount converts the raw amount using the transfer's decimals.
func (p *Payment) UIAmount() float64 {
	v := float64(p.Amount)
	for i := uint8(0); i < p.Decimals; i++ {
		v /= 10
	}
	return v
}
