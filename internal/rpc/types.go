package rpc

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// SignatureInfo represents a transaction signature from getSignaturesForAddress
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	Err       interface{} `json:"err"`
	BlockTime int64       `json:"blockTime"`
	Memo      *string     `json:"memo"`
}

// SignaturesResponse is the response from getSignaturesForAddress
type SignaturesResponse struct {
	Result []SignatureInfo `json:"result"`
	Error  *RPCError       `json:"error"`
}

// TransactionMeta contains metadata about an executed transaction
type TransactionMeta struct {
	Err interface{} `json:"err"`
	Fee uint64      `json:"fee"`
}

// TransactionResult contains the raw transaction payload and its metadata.
// Transaction is the [payload, encoding] pair returned for base64 encoding.
type TransactionResult struct {
	Slot        uint64           `json:"slot"`
	BlockTime   *int64           `json:"blockTime"`
	Meta        *TransactionMeta `json:"meta"`
	Transaction []string         `json:"transaction"`
}

// TransactionResponse is the response from getTransaction
type TransactionResponse struct {
	Result *TransactionResult `json:"result"`
	Error  *RPCError          `json:"error"`
}
