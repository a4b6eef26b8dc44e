// Package llm detects which LLM provider produced a span, estimates the
// token cost of replaying it, and re-executes the call against the live
// provider API during a replay run.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider identifies which LLM vendor a span's call targets.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderUnknown   Provider = "unknown"
)

const charsPerToken = 4
const minEstimatedTokens = 100

// executionTimeout bounds a single provider call; both OpenAI and Anthropic
// calls are given the same budget.
const executionTimeout = 120 * time.Second

const (
	defaultOpenAIModel    = "gpt-4o"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens      = 4096
)

// perMillionTokenRate holds USD cost per million tokens, input and output,
// for each known provider. Not environment-configurable: "configurable"
// here means isolated in one place, not plumbed through process config.
var perMillionTokenRate = map[Provider]struct{ Input, Output float64 }{
	ProviderOpenAI:    {Input: 2.50, Output: 10.00},
	ProviderAnthropic: {Input: 3.00, Output: 15.00},
}

// DetectProvider infers a span's LLM provider, trying in order: a substring
// match against the span name, a model-name prefix match in the input, and
// finally an OpenAI-shaped messages-array heuristic. Returns ProviderUnknown
// if none of these identify a vendor.
func DetectProvider(spanName string, input map[string]any) Provider {
	if p := providerFromName(spanName); p != ProviderUnknown {
		return p
	}

	if input == nil {
		return ProviderUnknown
	}

	if model, ok := stringField(input, "model"); ok {
		lower := strings.ToLower(model)
		switch {
		case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
			return ProviderOpenAI
		case strings.HasPrefix(lower, "claude"):
			return ProviderAnthropic
		}
	}

	if messages, ok := input["messages"].([]any); ok && len(messages) > 0 {
		if msg, ok := messages[0].(map[string]any); ok {
			if _, hasRole := msg["role"]; hasRole {
				return ProviderOpenAI
			}
		}
	}

	return ProviderUnknown
}

// providerFromName matches the span-name substring heuristic: "openai",
// "gpt" or "chatgpt" anywhere in the name means OpenAI; "anthropic" or
// "claude" means Anthropic.
func providerFromName(name string) Provider {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "openai"), strings.Contains(lower, "gpt"), strings.Contains(lower, "chatgpt"):
		return ProviderOpenAI
	case strings.Contains(lower, "anthropic"), strings.Contains(lower, "claude"):
		return ProviderAnthropic
	default:
		return ProviderUnknown
	}
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// EstimateCost estimates the USD cost of re-executing one LLM call, using a
// character-based token approximation: input tokens are the character count
// of the extracted prompt text divided by charsPerToken (floored at
// minEstimatedTokens), and output tokens are assumed to be half the input.
func EstimateCost(provider Provider, input map[string]any) float64 {
	if len(input) == 0 {
		return 0
	}
	text := extractText(input)
	inputTokens := len(text) / charsPerToken
	if inputTokens < minEstimatedTokens {
		inputTokens = minEstimatedTokens
	}
	outputTokens := inputTokens / 2

	rate, ok := perMillionTokenRate[provider]
	if !ok {
		rate = perMillionTokenRate[ProviderOpenAI]
	}
	inputCost := float64(inputTokens) / 1_000_000 * rate.Input
	outputCost := float64(outputTokens) / 1_000_000 * rate.Output
	return inputCost + outputCost
}

func extractText(input map[string]any) string {
	var parts []string
	if messages, ok := input["messages"].([]any); ok {
		for _, m := range messages {
			if msg, ok := m.(map[string]any); ok {
				switch content := msg["content"].(type) {
				case string:
					parts = append(parts, content)
				case []any:
					for _, item := range content {
						if part, ok := item.(map[string]any); ok {
							if text, ok := stringField(part, "text"); ok {
								parts = append(parts, text)
							}
						}
					}
				}
			}
		}
	}
	if prompt, ok := stringField(input, "prompt"); ok {
		parts = append(parts, prompt)
	}
	return strings.Join(parts, " ")
}

// Credentials holds the decrypted provider API key used for a live call.
type Credentials struct {
	APIKey string
}

// Result is the normalised shape every provider call returns, regardless of
// the wire format of the underlying API.
type Result struct {
	Provider Provider       `json:"provider"`
	Model    string         `json:"model"`
	Content  string         `json:"content"`
	Usage    map[string]any `json:"usage"`
	Raw      map[string]any `json:"raw"`
}

// Executor re-executes an LLM span against the live provider API.
type Executor struct {
	client *http.Client
}

// New returns an Executor using the given HTTP client, or http.DefaultClient
// if client is nil.
func New(client *http.Client) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Executor{client: client}
}

// Execute re-runs an LLM call and returns the provider's response normalised
// to {provider, model, content, usage, raw}.
func (e *Executor) Execute(ctx context.Context, provider Provider, creds Credentials, input map[string]any) (Result, error) {
	switch provider {
	case ProviderOpenAI:
		return e.callOpenAI(ctx, creds, input)
	case ProviderAnthropic:
		return e.callAnthropic(ctx, creds, input)
	default:
		return Result{}, fmt.Errorf("llm: cannot re-execute unknown provider")
	}
}

func (e *Executor) callOpenAI(ctx context.Context, creds Credentials, input map[string]any) (Result, error) {
	payload := map[string]any{}
	if model, ok := stringField(input, "model"); ok {
		payload["model"] = model
	} else {
		payload["model"] = defaultOpenAIModel
	}
	if messages, ok := input["messages"]; ok {
		payload["messages"] = messages
	} else {
		payload["messages"] = []map[string]any{{"role": "user", "content": fmt.Sprintf("%v", input)}}
	}
	for _, key := range []string{"temperature", "max_tokens", "top_p", "stop"} {
		if v, ok := input[key]; ok {
			payload[key] = v
		}
	}

	data, err := e.post(ctx, "https://api.openai.com/v1/chat/completions", creds.APIKey, "Bearer", payload)
	if err != nil {
		return Result{}, err
	}

	content := ""
	if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				content, _ = stringField(message, "content")
			}
		}
	}
	model, _ := stringField(data, "model")
	usage, _ := data["usage"].(map[string]any)
	return Result{Provider: ProviderOpenAI, Model: model, Content: content, Usage: usage, Raw: data}, nil
}

func (e *Executor) callAnthropic(ctx context.Context, creds Credentials, input map[string]any) (Result, error) {
	payload := map[string]any{}
	if model, ok := stringField(input, "model"); ok {
		payload["model"] = model
	} else {
		payload["model"] = defaultAnthropicModel
	}
	if maxTokens, ok := input["max_tokens"]; ok {
		payload["max_tokens"] = maxTokens
	} else {
		payload["max_tokens"] = defaultMaxTokens
	}

	if messages, ok := input["messages"].([]any); ok {
		var anthropicMessages []any
		for _, m := range messages {
			msg, ok := m.(map[string]any)
			if !ok {
				continue
			}
			if role, _ := stringField(msg, "role"); role == "system" {
				payload["system"], _ = stringField(msg, "content")
				continue
			}
			anthropicMessages = append(anthropicMessages, msg)
		}
		if len(anthropicMessages) == 0 {
			anthropicMessages = []any{map[string]any{"role": "user", "content": fmt.Sprintf("%v", input)}}
		}
		payload["messages"] = anthropicMessages
	} else {
		payload["messages"] = []any{map[string]any{"role": "user", "content": fmt.Sprintf("%v", input)}}
	}

	for _, key := range []string{"temperature", "top_p", "stop_sequences"} {
		if v, ok := input[key]; ok {
			payload[key] = v
		}
	}

	data, err := e.post(ctx, "https://api.anthropic.com/v1/messages", creds.APIKey, "x-api-key", payload)
	if err != nil {
		return Result{}, err
	}

	var content strings.Builder
	if parts, ok := data["content"].([]any); ok {
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if kind, _ := stringField(part, "type"); kind == "text" {
				text, _ := stringField(part, "text")
				content.WriteString(text)
			}
		}
	}
	model, _ := stringField(data, "model")
	usage, _ := data["usage"].(map[string]any)
	return Result{Provider: ProviderAnthropic, Model: model, Content: content.String(), Usage: usage, Raw: data}, nil
}

func (e *Executor) post(ctx context.Context, url, apiKey, authScheme string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch authScheme {
	case "Bearer":
		req.Header.Set("Authorization", "Bearer "+apiKey)
	case "x-api-key":
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	}

	ctx, cancel := context.WithTimeout(ctx, executionTimeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return out, nil
}
