package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeLLM stands in for the OpenAI backend in tests.
type fakeLLM struct {
	response  string
	err       error
	delay     time.Duration
	gotPrompt string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if tc, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.gotPrompt = tc.Text
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return f.response, f.err
}

func newTestClient(llm llms.Model) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &Client{
		llm:          llm,
		model:        "test-model",
		timeout:      time.Second,
		maxMemoRunes: 2000,
		logger:       logger,
	}
}

func TestAnalyze_Success(t *testing.T) {
	fake := &fakeLLM{response: "The sender greets the node."}
	c := newTestClient(fake)

	result := c.Analyze(context.Background(), "hello there")

	require.True(t, result.OK)
	assert.Equal(t, "The sender greets the node.", result.Text)
	assert.Equal(t, "test-model", result.Model)
	assert.Contains(t, fake.gotPrompt, "hello there")
}

func TestAnalyze_StripsCodeFence(t *testing.T) {
	fake := &fakeLLM{response: "```text\nJust a greeting.\n```"}
	c := newTestClient(fake)

	result := c.Analyze(context.Background(), "hi")
	require.True(t, result.OK)
	assert.Equal(t, "Just a greeting.", result.Text)
}

func TestAnalyze_BackendError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("rate limited")}
	c := newTestClient(fake)

	result := c.Analyze(context.Background(), "hello")

	assert.False(t, result.OK)
	assert.Empty(t, result.Text)
	assert.Equal(t, "test-model", result.Model)
}

func TestAnalyze_EmptyResponse(t *testing.T) {
	fake := &fakeLLM{response: "   \n  "}
	c := newTestClient(fake)

	result := c.Analyze(context.Background(), "hello")
	assert.False(t, result.OK)
}

func TestAnalyze_Timeout(t *testing.T) {
	fake := &fakeLLM{response: "too late", delay: 500 * time.Millisecond}
	c := newTestClient(fake)
	c.timeout = 50 * time.Millisecond

	start := time.Now()
	result := c.Analyze(context.Background(), "hello")

	assert.False(t, result.OK)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestAnalyze_ClipsLongMemo(t *testing.T) {
	fake := &fakeLLM{response: "ok"}
	c := newTestClient(fake)
	c.maxMemoRunes = 5

	result := c.Analyze(context.Background(), "héllo wörld this should be clipped")

	require.True(t, result.OK)
	assert.Contains(t, fake.gotPrompt, "héllo")
	assert.NotContains(t, fake.gotPrompt, "wörld")
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain answer", "plain answer"},
		{"  padded  ", "padded"},
		{"```\nfenced\n```", "fenced"},
		{"```text\nwith tag\n```", "with tag"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeText(tt.in))
	}
}

func TestClipRunes(t *testing.T) {
	assert.Equal(t, "héllo", clipRunes("héllo", 10))
	assert.Equal(t, "hél", clipRunes("héllo", 3))
	assert.Equal(t, "héllo", clipRunes("héllo", 0))
	assert.Equal(t, "", clipRunes("", 5))
	if !strings.HasSuffix(clipRunes("日本語テスト", 3), "語") {
		t.Fatalf("rune clip split a character")
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
