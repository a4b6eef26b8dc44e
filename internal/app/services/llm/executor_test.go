package llm

import "testing"

func TestDetectProviderBySpanName(t *testing.T) {
	cases := []struct {
		name     string
		spanName string
		expected Provider
	}{
		{"openai literal", "openai-call", ProviderOpenAI},
		{"gpt substring", "chat.gpt-completion", ProviderOpenAI},
		{"chatgpt substring", "chatgpt_request", ProviderOpenAI},
		{"anthropic literal", "anthropic-call", ProviderAnthropic},
		{"claude substring", "claude-completion", ProviderAnthropic},
		{"unrelated name", "fetch-documents", ProviderUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DetectProvider(c.spanName, nil); got != c.expected {
				t.Fatalf("expected %v, got %v", c.expected, got)
			}
		})
	}
}

func TestDetectProviderByModelPrefix(t *testing.T) {
	cases := []struct {
		name     string
		input    map[string]any
		expected Provider
	}{
		{"gpt prefix", map[string]any{"model": "gpt-4o"}, ProviderOpenAI},
		{"claude prefix", map[string]any{"model": "claude-3-opus"}, ProviderAnthropic},
		{"messages with role", map[string]any{"messages": []any{map[string]any{"role": "user"}}}, ProviderOpenAI},
		{"nothing recognisable", map[string]any{"foo": "bar"}, ProviderUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DetectProvider("", c.input); got != c.expected {
				t.Fatalf("expected %v, got %v", c.expected, got)
			}
		})
	}
}

func TestDetectProviderPrefersSpanNameOverInput(t *testing.T) {
	got := DetectProvider("anthropic-span", map[string]any{"model": "gpt-4o"})
	if got != ProviderAnthropic {
		t.Fatalf("expected span-name heuristic to win, got %v", got)
	}
}

func TestEstimateCostFloorsAtMinimumTokens(t *testing.T) {
	cost := EstimateCost(ProviderOpenAI, map[string]any{"prompt": "hi"})
	// 100 input tokens (floor) + 50 output tokens, OpenAI rates.
	expected := (100.0/1_000_000)*2.50 + (50.0/1_000_000)*10.00
	if diff := cost - expected; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected cost %v, got %v", expected, cost)
	}
}

func TestEstimateCostScalesWithPromptLength(t *testing.T) {
	shortCost := EstimateCost(ProviderAnthropic, map[string]any{"prompt": "hi"})
	longPrompt := make([]byte, 4000)
	for i := range longPrompt {
		longPrompt[i] = 'a'
	}
	longCost := EstimateCost(ProviderAnthropic, map[string]any{"prompt": string(longPrompt)})
	if longCost <= shortCost {
		t.Fatalf("expected longer prompt to cost more: short=%v long=%v", shortCost, longCost)
	}
}
