package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"legiscribe-backend/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{
						{"text": text},
					},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func newTestBackend(serverURL string) *gateway.GeminiBackend {
	return gateway.NewGeminiBackend("test-key",
		gateway.GeminiWithEndpoint(serverURL+"/v1beta/models/%s:generateContent"))
}

func TestGeminiGenerate_Text(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse(`{"summary": "ok"}`))
	}))
	defer server.Close()

	backend := newTestBackend(server.URL)

	out, err := backend.Generate(context.Background(), gateway.Request{
		Operation:    "summarizeBill",
		Prompt:       "Summarize: Section 1.",
		OutputSchema: map[string]interface{}{"type": "object"},
		Temperature:  0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary": "ok"}`, out)

	// Without tools the structured output config is sent
	cfg := gotBody["generationConfig"].(map[string]interface{})
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.NotNil(t, cfg["responseSchema"])
	assert.InDelta(t, 0.3, cfg["temperature"].(float64), 1e-9)
}

func TestGeminiGenerate_MissingAPIKey(t *testing.T) {
	backend := gateway.NewGeminiBackend("")

	_, err := backend.Generate(context.Background(), gateway.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, gateway.StatusUnauthorized, gateway.StatusOf(err))
}

func TestGeminiGenerate_HTTPStatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       gateway.Status
		retryable  bool
	}{
		{"rate limited", http.StatusTooManyRequests, gateway.StatusRateLimited, true},
		{"service unavailable", http.StatusServiceUnavailable, gateway.StatusUnavailable, true},
		{"bad gateway", http.StatusBadGateway, gateway.StatusUnavailable, true},
		{"gateway timeout", http.StatusGatewayTimeout, gateway.StatusUnavailable, true},
		{"internal error", http.StatusInternalServerError, gateway.StatusUnavailable, true},
		{"bad request", http.StatusBadRequest, gateway.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, gateway.StatusUnauthorized, false},
		{"forbidden", http.StatusForbidden, gateway.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "provider error", tt.statusCode)
			}))
			defer server.Close()

			backend := newTestBackend(server.URL)
			_, err := backend.Generate(context.Background(), gateway.Request{Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.want, gateway.StatusOf(err))
			assert.Equal(t, tt.retryable, gateway.IsRetryable(err))
		})
	}
}

func TestGeminiGenerate_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	backend := newTestBackend(server.URL)
	_, err := backend.Generate(context.Background(), gateway.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, gateway.StatusUnavailable, gateway.StatusOf(err))
}

func TestGeminiGenerate_BlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"promptFeedback": map[string]interface{}{"blockReason": "SAFETY"},
		})
	}))
	defer server.Close()

	backend := newTestBackend(server.URL)
	_, err := backend.Generate(context.Background(), gateway.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, gateway.StatusInvalidOutput, gateway.StatusOf(err))
}

func TestGeminiGenerate_ToolRoundTrip(t *testing.T) {
	var calls int
	var toolResponseSeen bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		// Tool-using requests must not carry a structured response schema
		cfg := body["generationConfig"].(map[string]interface{})
		assert.Nil(t, cfg["responseSchema"])
		assert.NotNil(t, body["tools"])

		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"candidates": []map[string]interface{}{
					{
						"content": map[string]interface{}{
							"role": "model",
							"parts": []map[string]interface{}{
								{"functionCall": map[string]interface{}{
									"name": "searchTheWeb",
									"args": map[string]interface{}{"query": "river bill reaction"},
								}},
							},
						},
					},
				},
			})
			return
		}

		// The follow-up request must carry the tool result back to the model
		contents := body["contents"].([]interface{})
		for _, c := range contents {
			content := c.(map[string]interface{})
			if content["role"] == "function" {
				toolResponseSeen = true
			}
		}

		json.NewEncoder(w).Encode(textResponse(`{"overallSentiment": "Mixed"}`))
	}))
	defer server.Close()

	var gotQuery string
	tool := gateway.Tool{
		Name:        "searchTheWeb",
		Description: "Searches the web.",
		InputSchema: map[string]interface{}{"type": "object"},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			gotQuery, _ = args["query"].(string)
			return []string{"result"}, nil
		},
	}

	backend := newTestBackend(server.URL)
	out, err := backend.Generate(context.Background(), gateway.Request{
		Operation:    "analyzePublicSentiment",
		Prompt:       "Analyze sentiment.",
		OutputSchema: map[string]interface{}{"type": "object"},
		Tools:        []gateway.Tool{tool},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"overallSentiment": "Mixed"}`, out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "river bill reaction", gotQuery)
	assert.True(t, toolResponseSeen)
}

func TestGeminiGenerate_UndeclaredToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"role": "model",
						"parts": []map[string]interface{}{
							{"functionCall": map[string]interface{}{
								"name": "deleteEverything",
								"args": map[string]interface{}{},
							}},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	backend := newTestBackend(server.URL)
	_, err := backend.Generate(context.Background(), gateway.Request{
		Prompt: "x",
		Tools: []gateway.Tool{{
			Name: "searchTheWeb",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return nil, nil
			},
		}},
	})
	require.Error(t, err)
	assert.Equal(t, gateway.StatusInvalidOutput, gateway.StatusOf(err))
}

func TestGeminiGenerate_ToolRoundsExhausted(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"role": "model",
						"parts": []map[string]interface{}{
							{"functionCall": map[string]interface{}{
								"name": "searchTheWeb",
								"args": map[string]interface{}{"query": "again"},
							}},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	backend := newTestBackend(server.URL)
	_, err := backend.Generate(context.Background(), gateway.Request{
		Prompt: "x",
		Tools: []gateway.Tool{{
			Name: "searchTheWeb",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return "nothing found", nil
			},
		}},
	})
	require.Error(t, err)
	assert.Equal(t, gateway.StatusInvalidOutput, gateway.StatusOf(err))
	assert.Contains(t, err.Error(), "tool rounds")
	// The model keeps calling the tool, so the backend stops at the bound
	assert.Equal(t, 4, calls)
}

func TestGeminiGenerate_CustomModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-pro")
		json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer server.Close()

	backend := gateway.NewGeminiBackend("test-key",
		gateway.GeminiWithModel("gemini-2.5-pro"),
		gateway.GeminiWithEndpoint(server.URL+"/v1beta/models/%s:generateContent"))

	_, err := backend.Generate(context.Background(), gateway.Request{Prompt: "x"})
	require.NoError(t, err)
}
