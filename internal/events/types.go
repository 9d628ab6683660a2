package events

import (
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"
)

// ResponseEvent is published to JetStream whenever the node answers a
// payment. The subject is "responses.{recipient_wallet}".
type ResponseEvent struct {
	RequestSignature  string    `json:"request_signature"`
	ResponseSignature string    `json:"response_signature"`
	Recipient         string    `json:"recipient"`
	RequestMemo       string    `json:"request_memo"`
	ResponseMemo      string    `json:"response_memo"`
	AnalysisOK        bool      `json:"analysis_ok"`
	RespondedAt       time.Time `json:"responded_at"`
	PublishedAt       time.Time `json:"published_at"`
}

// FromRecord converts a stored response record into a publishable event.
func FromRecord(rec *models.ResponseRecord) *ResponseEvent {
	return &ResponseEvent{
		RequestSignature:  rec.RequestSignature,
		ResponseSignature: rec.ResponseSignature,
		Recipient:         rec.From,
		RequestMemo:       rec.RequestMemo,
		ResponseMemo:      rec.ResponseMemo,
		AnalysisOK:        rec.AnalysisOK,
		RespondedAt:       rec.RespondedAt,
		PublishedAt:       time.Now().UTC(),
	}
}
