package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

	// maxToolRounds bounds tool-invocation round-trips per request
	maxToolRounds = 4
)

// GeminiBackend calls the Gemini generateContent API over HTTP
type GeminiBackend struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// GeminiOption configures a GeminiBackend
type GeminiOption func(*GeminiBackend)

// GeminiWithModel sets the model identifier
func GeminiWithModel(model string) GeminiOption {
	return func(b *GeminiBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// GeminiWithHTTPClient sets a custom HTTP client
func GeminiWithHTTPClient(c *http.Client) GeminiOption {
	return func(b *GeminiBackend) {
		b.httpClient = c
	}
}

// GeminiWithEndpoint overrides the API endpoint template (used in tests)
func GeminiWithEndpoint(endpoint string) GeminiOption {
	return func(b *GeminiBackend) {
		b.endpoint = endpoint
	}
}

// NewGeminiBackend creates a Gemini backend with the given API key
func NewGeminiBackend(apiKey string, opts ...GeminiOption) *GeminiBackend {
	b := &GeminiBackend{
		apiKey:   apiKey,
		model:    defaultGeminiModel,
		endpoint: defaultGeminiEndpoint,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiToolDecl struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature      float64                `json:"temperature"`
	ResponseMIMEType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	Tools            []geminiToolDecl       `json:"tools,omitempty"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Generate sends the rendered prompt to Gemini, running tool-invocation
// round-trips locally until the model produces its final answer.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	if b.apiKey == "" {
		return "", NewError(StatusUnauthorized, fmt.Errorf("GEMINI_API_KEY not set"))
	}

	contents := []geminiContent{
		{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
	}

	cfg := geminiGenerationConfig{Temperature: req.Temperature}
	var toolDecls []geminiToolDecl
	if len(req.Tools) > 0 {
		// The API rejects a structured responseSchema combined with tool
		// declarations, so tool-using operations rely on the local schema
		// validation in the Gateway instead.
		decls := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		toolDecls = []geminiToolDecl{{FunctionDeclarations: decls}}
	} else {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.OutputSchema
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := b.call(ctx, geminiRequest{
			Contents:         contents,
			Tools:            toolDecls,
			GenerationConfig: cfg,
		})
		if err != nil {
			return "", err
		}

		call, content := findFunctionCall(resp)
		if call == nil {
			return collectText(resp)
		}

		tool := findTool(req.Tools, call.Name)
		if tool == nil {
			return "", NewError(StatusInvalidOutput, fmt.Errorf("model called undeclared tool %q", call.Name))
		}

		result, err := tool.Handler(ctx, call.Args)
		if err != nil {
			return "", fmt.Errorf("tool %s: %w", call.Name, err)
		}

		contents = append(contents, content)
		contents = append(contents, geminiContent{
			Role: "function",
			Parts: []geminiPart{{
				FunctionResponse: &geminiFunctionResponse{
					Name:     call.Name,
					Response: map[string]interface{}{"result": result},
				},
			}},
		})
	}

	return "", NewError(StatusInvalidOutput, fmt.Errorf("model did not produce a final answer within %d tool rounds", maxToolRounds))
}

// call executes a single generateContent request
func (b *GeminiBackend) call(ctx context.Context, reqBody geminiRequest) (*geminiResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewError(StatusUnknown, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf(b.endpoint, b.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, NewError(StatusUnknown, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(StatusUnavailable, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(StatusUnavailable, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus(resp.StatusCode, bodyBytes)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		log.Printf("Failed to decode Gemini response. Body: %s", truncateForLog(bodyBytes))
		return nil, NewError(StatusInvalidOutput, fmt.Errorf("failed to decode response: %w", err))
	}

	if apiResp.Error.Message != "" {
		return nil, NewError(StatusUnknown, fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code))
	}

	if apiResp.PromptFeedback.BlockReason != "" {
		return nil, NewError(StatusInvalidOutput, fmt.Errorf("API blocked prompt: %s", apiResp.PromptFeedback.BlockReason))
	}

	if len(apiResp.Candidates) == 0 {
		log.Printf("Gemini returned no candidates. Body: %s", truncateForLog(bodyBytes))
		return nil, NewError(StatusInvalidOutput, fmt.Errorf("API returned no candidates"))
	}

	return &apiResp, nil
}

// findFunctionCall returns the first function call in the response along
// with its enclosing content, or nil if the model answered with text
func findFunctionCall(resp *geminiResponse) (*geminiFunctionCall, geminiContent) {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				return part.FunctionCall, candidate.Content
			}
		}
	}
	return nil, geminiContent{}
}

// collectText concatenates the text parts of all candidates
func collectText(resp *geminiResponse) (string, error) {
	var sb strings.Builder
	for i, candidate := range resp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" {
				continue
			}
			sb.WriteString(part.Text)
		}
	}

	result := sb.String()
	if result == "" {
		return "", NewError(StatusInvalidOutput, fmt.Errorf("API returned empty content"))
	}

	return result, nil
}

func findTool(tools []Tool, name string) *Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

func truncateForLog(b []byte) string {
	if len(b) > 1000 {
		return string(b[:1000]) + "..."
	}
	return string(b)
}
