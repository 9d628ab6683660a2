package ledger

import "github.com/prometheus88/Simple-PFT-Node/internal/config"

// Built-in public fallback, used when no better endpoint is reachable.
const (
	PublicRPCURL = "https://api.mainnet-beta.solana.com"
	PublicWSURL  = "wss://api.mainnet-beta.solana.com"
)

// Endpoint is one RPC/WebSocket pair the node can bind a session to.
type Endpoint struct {
	Name   string
	RPCURL string
	WSURL  string
	Rank   int
}

// Endpoints builds the ranked endpoint list: local node first, then the
// configured remote, then the public fallback. Entries missing either URL
// are skipped.
func Endpoints(cfg *config.Config) []Endpoint {
	var eps []Endpoint
	if cfg.LocalRPCURL != "" && cfg.LocalWSURL != "" {
		eps = append(eps, Endpoint{Name: "local", RPCURL: cfg.LocalRPCURL, WSURL: cfg.LocalWSURL, Rank: 0})
	}
	if cfg.RPCURL != "" && cfg.WSURL != "" {
		eps = append(eps, Endpoint{Name: "configured", RPCURL: cfg.RPCURL, WSURL: cfg.WSURL, Rank: 1})
	}
	eps = append(eps, Endpoint{Name: "public", RPCURL: PublicRPCURL, WSURL: PublicWSURL, Rank: 2})
	return eps
}

// PrimaryRPCURL returns the RPC URL of the best-ranked endpoint, for
// one-shot tools that do not need session management.
func PrimaryRPCURL(cfg *config.Config) string {
	return Endpoints(cfg)[0].RPCURL
}
