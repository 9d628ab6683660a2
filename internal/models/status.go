// ============================================================================
// models/status.go
// ============================================================================
package models

import "time"

// NodeStatus is the live operational snapshot published by the monitor loop
// and served by the HTTP API.
type NodeStatus struct {
	State         string    `json:"state"`
	Endpoint      string    `json:"endpoint"`
	Wallet        string    `json:"wallet"`
	Mint          string    `json:"mint"`
	Processed     uint64    `json:"processed"`
	Responded     uint64    `json:"responded"`
	Skipped       uint64    `json:"skipped"`
	LastSignature string    `json:"last_signature,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
