package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates an sdkClient pointing at a local test server.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
		),
	}
}

func TestCreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"name": "Acme Inc"}`},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":                10,
				"output_tokens":               5,
				"cache_creation_input_tokens": 0,
				"cache_read_input_tokens":     0,
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Research Acme Inc"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"name": "Acme Inc"}`, resp.Text())
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
	assert.Equal(t, int64(5), resp.Usage.OutputTokens)
}

func TestCreateMessageSendsWebSearchTool(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id": "msg_test_002", "type": "message", "role": "assistant",
			"content":     []map[string]any{{"type": "text", "text": "ok"}},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 512,
		Messages:  []Message{{Role: "user", Content: "Find the company website"}},
		WebSearch: &WebSearchOptions{MaxUses: 3},
	})
	require.NoError(t, err)

	tools, ok := gotBody["tools"].([]any)
	require.True(t, ok, "request must carry a tools array")
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "web_search", tool["name"])
	assert.Equal(t, float64(3), tool["max_uses"])
}

func TestCreateMessageError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "create message")
}

func TestMessageResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "server_tool_use", Text: ""},
		{Type: "text", Text: "part one "},
		{Type: "web_search_tool_result"},
		{Type: "text", Text: "part two"},
	}}
	assert.Equal(t, "part one part two", resp.Text())
}

func TestMessageResponseCitedURLs(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", CitedURLs: []string{"https://a.example", "https://b.example"}},
		{Type: "text", CitedURLs: []string{"https://a.example", ""}},
	}}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, resp.CitedURLs())
}

func TestToSDKMessages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
}

func TestToSDKSystemBlocks(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "plain", blocks[0].Text)
	assert.Equal(t, "cached", blocks[1].Text)
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, usage.EstimateCost("claude-sonnet-4-5"), 1e-9)
	assert.InDelta(t, 4.8, usage.EstimateCost("claude-haiku-4-5"), 1e-9)
	assert.Zero(t, usage.EstimateCost("mystery-model"))
}

func TestEstimateCostDatedSnapshot(t *testing.T) {
	// Dated snapshot IDs price the same as their model family.
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, usage.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
	assert.InDelta(t, 4.8, usage.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Zero(t, usage.EstimateCost("mystery-model-20250101"))
}

func TestEstimateCostWithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              100_000,
		OutputTokens:             10_000,
		CacheCreationInputTokens: 50_000,
		CacheReadInputTokens:     200_000,
	}
	// sonnet: 0.3 + 0.15 + 50k*3*1.25/1M + 200k*3*0.1/1M
	want := 0.3 + 0.15 + 0.1875 + 0.06
	assert.InDelta(t, want, usage.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
}
