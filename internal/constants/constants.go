package constants

import "time"

// Solana program addresses
const (
	SystemProgram          = "11111111111111111111111111111111"
	TokenProgram           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022Program       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	// SPL memo v2 and the legacy memo program. Both appear in the wild;
	// incoming payments are parsed against either.
	MemoProgram       = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	MemoProgramLegacy = "Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo"
	SysVarRent        = "SysvarRent111111111111111111111111111111111"
	WrappedSOLMint    = "So11111111111111111111111111111111111111112"
)

// SPL token instruction indexes (first data byte)
const (
	TokenIxTransfer        = 3
	TokenIxCloseAccount    = 9
	TokenIxTransferChecked = 12
	TokenIxSyncNative      = 17
)

// Memo limits
const (
	// MaxMemoBytes caps the analysis text embedded in a reply memo.
	// Larger memos risk exceeding the transaction size limit once the
	// transfer and reply-tag instructions are included.
	MaxMemoBytes = 512
)

// ReplyTagPrefix marks the second memo instruction of every reply with the
// signature of the incoming payment it answers. The dedup rebuild scan keys
// on this tag.
const ReplyTagPrefix = "re:"

// Redis keys
const (
	RedisKeyRecentResponses = "responses:recent"
	RedisKeyNodeStatus      = "node:status"
	RedisKeyDedupPrefix     = "dedup:"
)

// NATS stream layout
const (
	NatsStreamName    = "PFT_RESPONSES"
	NatsSubjectPrefix = "responses"
)

// Limits
const (
	MaxRecentResponses = 100
	SignatureBatchSize = 25
)

// Rate limiting
const (
	DelayBetweenTxFetch = 200 * time.Millisecond // Delay between getTransaction calls during backfill
)
