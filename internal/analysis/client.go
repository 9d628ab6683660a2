package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ClientConfig holds configuration for the analysis backend.
type ClientConfig struct {
	// OpenAI-compatible API settings.
	APIKey string
	// Optional base URL for OpenAI-compatible providers (e.g. OpenRouter).
	BaseURL string
	// Model name, e.g. "gpt-4o-mini".
	Model string

	// Per-request deadline.
	Timeout time.Duration

	// Longest memo (in runes) fed into the prompt; longer input is clipped.
	MaxMemoRunes int

	Logger *logrus.Logger
}

// Client analyzes payment memos with an LLM.
type Client struct {
	llm          llms.Model
	model        string
	timeout      time.Duration
	maxMemoRunes int
	logger       *logrus.Logger
}

// NewClient creates an analysis client with its own LLM backend.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxMemoRunes <= 0 {
		cfg.MaxMemoRunes = 2000
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"model":   cfg.Model,
		"timeout": cfg.Timeout,
	}).Info("initialized analysis client")

	return &Client{
		llm:          llm,
		model:        cfg.Model,
		timeout:      cfg.Timeout,
		maxMemoRunes: cfg.MaxMemoRunes,
		logger:       cfg.Logger,
	}, nil
}

// Analyze runs a memo through the model and returns the analysis text.
// Backend failures and timeouts are not propagated as errors; the result
// carries OK=false and the caller decides whether to retry.
func (c *Client) Analyze(ctx context.Context, memo string) *models.AnalysisResult {
	start := time.Now()

	memo = clipRunes(memo, c.maxMemoRunes)

	prompt := fmt.Sprintf(`
You are analyzing transaction memos sent to an automated payment node.
Extract key information and intentions from the memo and answer concisely.

Rules:
- Respond in plain text, no markdown or code fences.
- Keep the answer short; it travels back inside a transaction memo.
- If the memo is a question, answer it. Otherwise summarise what the
  sender appears to want.

Memo:
%s
`, memo)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(
		reqCtx,
		c.llm,
		prompt,
		llms.WithMaxTokens(512),
	)
	if err != nil {
		c.logger.WithError(err).WithField("duration", time.Since(start)).Warn("memo analysis failed")
		return &models.AnalysisResult{
			Model:    c.model,
			Duration: time.Since(start),
			OK:       false,
		}
	}

	text := sanitizeText(resp)
	if text == "" {
		c.logger.WithField("duration", time.Since(start)).Warn("memo analysis returned empty text")
		return &models.AnalysisResult{
			Model:    c.model,
			Duration: time.Since(start),
			OK:       false,
		}
	}

	c.logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"chars":    len(text),
	}).Debug("memo analyzed")

	return &models.AnalysisResult{
		Text:     text,
		Model:    c.model,
		Duration: time.Since(start),
		OK:       true,
	}
}

// sanitizeText strips code fences and surrounding whitespace from LLM output.
func sanitizeText(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 && idx < 16 {
			// Drop a language tag like "```text"
			s = s[idx+1:]
		}
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}

// clipRunes shortens s to at most n runes without splitting a character.
func clipRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
