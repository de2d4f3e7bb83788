// Package gateway is a uniform call interface to a hosted language model.
// It renders a prompt template, sends it with an output schema and optional
// tool declarations, and validates the model's answer against the schema.
// Retry policy lives with the caller, not here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolFunc executes a tool call locally and returns the value handed back
// to the model
type ToolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool is a named function the model may invoke during generation
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     ToolFunc
}

// Request is a single generation request to the backend
type Request struct {
	Operation    string
	Prompt       string
	OutputSchema map[string]interface{}
	Tools        []Tool
	Temperature  float64
}

// Backend executes one generation request against a model provider and
// returns the raw response text. Implementations handle tool-invocation
// round-trips internally.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Gateway validates model output against per-operation schemas
type Gateway struct {
	backend Backend
}

// New creates a Gateway over the given backend
func New(backend Backend) *Gateway {
	return &Gateway{backend: backend}
}

// Invoke renders the prompt template with the given inputs, runs the
// backend, and returns the schema-validated JSON output.
func (g *Gateway) Invoke(
	ctx context.Context,
	operation string,
	promptTemplate string,
	inputs map[string]string,
	outputSchema map[string]interface{},
	temperature float64,
	tools ...Tool,
) (json.RawMessage, error) {
	prompt := RenderTemplate(promptTemplate, inputs)

	raw, err := g.backend.Generate(ctx, Request{
		Operation:    operation,
		Prompt:       prompt,
		OutputSchema: outputSchema,
		Tools:        tools,
		Temperature:  temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	raw = stripCodeFences(raw)
	if strings.TrimSpace(raw) == "" {
		return nil, NewError(StatusInvalidOutput, fmt.Errorf("%s: model returned empty output", operation))
	}

	if err := validateAgainstSchema(outputSchema, []byte(raw)); err != nil {
		return nil, NewError(StatusInvalidOutput, fmt.Errorf("%s: %w", operation, err))
	}

	return json.RawMessage(raw), nil
}

// RenderTemplate substitutes input fields verbatim into the template.
// Both {{{name}}} and {{name}} markers are recognized, matching the
// prompt-file contract. No escaping is applied.
func RenderTemplate(template string, inputs map[string]string) string {
	rendered := template
	for name, value := range inputs {
		rendered = strings.ReplaceAll(rendered, "{{{"+name+"}}}", value)
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered
}

// validateAgainstSchema validates data against the schema map: required
// fields present, correct primitive types, enums constrained
func validateAgainstSchema(schemaMap map[string]interface{}, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("output does not match schema: %w", err)
	}
	return nil
}

// stripCodeFences removes a surrounding markdown code fence the model may
// wrap JSON output in
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
