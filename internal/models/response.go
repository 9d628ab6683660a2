// ============================================================================
// models/response.go
// ============================================================================
package models

import "time"

// AnalysisResult is the outcome of running a memo through the analysis
// backend. OK=false means the backend failed or returned nothing usable;
// callers decide whether to retry or drop the payment.
type AnalysisResult struct {
	Text     string        `json:"text"`
	Model    string        `json:"model,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	OK       bool          `json:"ok"`
}

// ResponseRecord ties a reply transaction to the payment it answers.
type ResponseRecord struct {
	RequestSignature  string    `json:"request_signature"`
	ResponseSignature string    `json:"response_signature"`
	From              string    `json:"from"`
	RequestMemo       string    `json:"request_memo"`
	ResponseMemo      string    `json:"response_memo"`
	AnalysisOK        bool      `json:"analysis_ok"`
	RespondedAt       time.Time `json:"responded_at"`
}
