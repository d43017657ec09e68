// Package providers holds the concrete LLM Router backends. Per
// SPEC_FULL.md §1, the body of each provider's remote call is an external
// leaf; what this repository owns is the Provider contract they satisfy
// and the process-boundary plumbing (subprocess invocation, HTTP client
// construction, retries) around that call.
package providers

import (
	"context"
	"regexp"
	"strings"

	"autodev/internal/router"
)

// Heuristic is the NoLLM provider: pure regex/string matching, cost 0,
// instant. It answers Classification tasks and CodeReview tasks
// without a network call.
type Heuristic struct {
	todoPattern *regexp.Regexp
}

func NewHeuristic() *Heuristic {
	return &Heuristic{todoPattern: regexp.MustCompile(`(?i)\b(TODO|FIXME|XXX|HACK)\b`)}
}

func (h *Heuristic) Name() string              { return "heuristic" }
func (h *Heuristic) Tier() router.Tier         { return router.NoLLM }
func (h *Heuristic) CostPer1KTokens() float64  { return 0 }
func (h *Heuristic) IsAvailable(ctx context.Context) bool { return true }

func (h *Heuristic) Supports(v router.Variant) bool {
	switch v {
	case router.VariantClassification, router.VariantCodeReview:
		return true
	default:
		return false
	}
}

func (h *Heuristic) Complete(ctx context.Context, task router.Task) (router.TaskResult, error) {
	switch task.Variant {
	case router.VariantClassification:
		return router.TaskResult{Text: h.classify(task.Text), Provider: h.Name()}, nil
	case router.VariantCodeReview:
		return router.TaskResult{Text: h.review(task.ReviewCode), Provider: h.Name()}, nil
	default:
		return router.TaskResult{}, router.ErrUnsupported
	}
}

func (h *Heuristic) CompleteStreaming(ctx context.Context, task router.Task, onChunk func(router.StreamChunk)) (router.TaskResult, error) {
	result, err := h.Complete(ctx, task)
	if err != nil {
		return result, err
	}
	onChunk(router.StreamChunk{Text: result.Text, Done: true})
	return result, nil
}

func (h *Heuristic) classify(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "bug") || strings.Contains(lower, "error") || strings.Contains(lower, "fail"):
		return "bug-report"
	case strings.Contains(lower, "add") || strings.Contains(lower, "implement") || strings.Contains(lower, "feature"):
		return "feature-request"
	case strings.Contains(lower, "refactor") || strings.Contains(lower, "cleanup"):
		return "refactor"
	default:
		return "general"
	}
}

func (h *Heuristic) review(code string) string {
	if h.todoPattern.MatchString(code) {
		return "flagged: contains TODO/FIXME markers"
	}
	if strings.Contains(code, "panic(\"not implemented\")") {
		return "flagged: incomplete implementation"
	}
	return "no heuristic issues found"
}
