package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"autodev/internal/logging"
	"autodev/internal/router"
)

// GeminiProvider is a hosted-API Provider backed by
// google.golang.org/genai, grounded directly on the teacher's
// internal/embedding/genai.go client-construction pattern (same SDK,
// same APIKey-based genai.ClientConfig) — repurposed here for text
// generation rather than embeddings.
type GeminiProvider struct {
	mu     sync.Mutex
	client *genai.Client
	model  string
	cost   float64
}

// NewGeminiProvider constructs a Gemini-backed provider. An empty apiKey
// makes IsAvailable return false rather than erroring, so the router can
// skip it without the caller needing a separate feature flag.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	p := &GeminiProvider{model: model, cost: 0.30}
	if apiKey == "" {
		return p
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		logging.Get(logging.CategoryProvider).Warnw("gemini client construction failed", "error", err)
		return p
	}
	p.client = client
	return p
}

func (g *GeminiProvider) Name() string             { return "gemini" }
func (g *GeminiProvider) Tier() router.Tier        { return router.Large }
func (g *GeminiProvider) CostPer1KTokens() float64 { return g.cost }

func (g *GeminiProvider) IsAvailable(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client != nil
}

func (g *GeminiProvider) Supports(v router.Variant) bool {
	switch v {
	case router.VariantCodeGeneration, router.VariantCodeReview, router.VariantQuestion:
		return true
	default:
		return false
	}
}

func (g *GeminiProvider) Complete(ctx context.Context, task router.Task) (router.TaskResult, error) {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client == nil {
		return router.TaskResult{}, &router.ProviderError{Class: router.ErrClassPermanent, Err: fmt.Errorf("gemini: no client configured")}
	}

	prompt := taskPrompt(task)
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return router.TaskResult{}, classifyGeminiError(err)
	}

	return router.TaskResult{Text: strings.TrimSpace(resp.Text()), Provider: g.Name()}, nil
}

func (g *GeminiProvider) CompleteStreaming(ctx context.Context, task router.Task, onChunk func(router.StreamChunk)) (router.TaskResult, error) {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client == nil {
		return router.TaskResult{}, &router.ProviderError{Class: router.ErrClassPermanent, Err: fmt.Errorf("gemini: no client configured")}
	}

	prompt := taskPrompt(task)
	var full strings.Builder

	for chunk, err := range client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), nil) {
		if err != nil {
			return router.TaskResult{}, classifyGeminiError(err)
		}
		text := chunk.Text()
		full.WriteString(text)
		onChunk(router.StreamChunk{Text: text})
	}
	onChunk(router.StreamChunk{Done: true})

	return router.TaskResult{Text: strings.TrimSpace(full.String()), Provider: g.Name()}, nil
}

func classifyGeminiError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate"):
		return &router.ProviderError{Class: router.ErrClassRateLimited, RetryAfter: 20, Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "5") && strings.Contains(msg, "unavailable"):
		return &router.ProviderError{Class: router.ErrClassTransient, Err: err}
	default:
		return &router.ProviderError{Class: router.ErrClassPermanent, Err: err}
	}
}
