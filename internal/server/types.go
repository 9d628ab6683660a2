package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// AnalyzeRequest represents an ad-hoc memo analysis request
type AnalyzeRequest struct {
	Memo string `json:"memo"` // Memo text to analyze
}

// AnalyzeResponse represents the result of an ad-hoc memo analysis
type AnalyzeResponse struct {
	Analysis string `json:"analysis"` // Analysis text
	Model    string `json:"model"`    // Backend model that produced it
	TookMs   int64  `json:"took_ms"`  // Execution time in milliseconds
}
