package providers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"autodev/internal/logging"
	"autodev/internal/router"
)

// CLIProvider invokes a locally-installed CLI tool as a subprocess LLM
// backend (e.g. `claude -p`). It is grounded on the teacher's
// internal/tactile/executor.go SafeExecutor: a timeout context, SIGTERM
// on expiry, and a grace window before SIGKILL — the same discipline
// spec.md §5 mandates for validator subprocesses under cancellation.
type CLIProvider struct {
	name       string
	binPath    string
	tier       router.Tier
	cost       float64
	timeout    time.Duration
	killGrace  time.Duration
	argsFn     func(task router.Task) []string
}

// NewCLIProvider constructs a CLI-backed provider. argsFn builds the
// argv tail (after binPath) for a given Task.
func NewCLIProvider(name, binPath string, tier router.Tier, cost float64, argsFn func(router.Task) []string) *CLIProvider {
	return &CLIProvider{
		name:      name,
		binPath:   binPath,
		tier:      tier,
		cost:      cost,
		timeout:   60 * time.Second,
		killGrace: 5 * time.Second,
		argsFn:    argsFn,
	}
}

func (c *CLIProvider) Name() string             { return c.name }
func (c *CLIProvider) Tier() router.Tier        { return c.tier }
func (c *CLIProvider) CostPer1KTokens() float64 { return c.cost }

func (c *CLIProvider) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(c.binPath)
	return err == nil
}

func (c *CLIProvider) Supports(v router.Variant) bool {
	switch v {
	case router.VariantCodeGeneration, router.VariantCodeReview, router.VariantQuestion:
		return true
	default:
		return false
	}
}

func (c *CLIProvider) Complete(ctx context.Context, task router.Task) (router.TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := c.argsFn(task)
	cmd := exec.Command(c.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := logging.Get(logging.CategoryProvider)
	log.Debugw("invoking CLI provider", "provider", c.name, "args", args)

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return router.TaskResult{}, &router.ProviderError{Class: router.ErrClassPermanent, Err: fmt.Errorf("%s: start: %w", c.name, err)}
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return router.TaskResult{}, classifyCLIError(c.name, err, stderr.String())
		}
		return router.TaskResult{Text: strings.TrimSpace(stdout.String()), Provider: c.name}, nil
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(c.killGrace):
			_ = cmd.Process.Kill()
			<-done
		}
		return router.TaskResult{}, &router.ProviderError{Class: router.ErrClassTransient, Err: fmt.Errorf("%s: timed out after %s", c.name, c.timeout)}
	}
}

func (c *CLIProvider) CompleteStreaming(ctx context.Context, task router.Task, onChunk func(router.StreamChunk)) (router.TaskResult, error) {
	result, err := c.Complete(ctx, task)
	if err != nil {
		return result, err
	}
	onChunk(router.StreamChunk{Text: result.Text, Done: true})
	return result, nil
}

func classifyCLIError(name string, err error, stderr string) error {
	lowerStderr := strings.ToLower(stderr)
	switch {
	case strings.Contains(lowerStderr, "rate limit") || strings.Contains(lowerStderr, "429"):
		return &router.ProviderError{Class: router.ErrClassRateLimited, RetryAfter: 30, Err: fmt.Errorf("%s: %s", name, stderr)}
	case strings.Contains(lowerStderr, "timeout") || strings.Contains(lowerStderr, "connection"):
		return &router.ProviderError{Class: router.ErrClassTransient, Err: fmt.Errorf("%s: %w", name, err)}
	default:
		return &router.ProviderError{Class: router.ErrClassPermanent, Err: fmt.Errorf("%s: %w: %s", name, err, stderr)}
	}
}

// ClaudeCLIArgs builds the argv tail for invoking the Claude Code CLI as
// a single-completion subprocess LLM, per the teacher's ClaudeCLIConfig
// contract: the prompt is passed with -p and the run is limited to one
// turn with --max-turns 1. No flag restricting tool use is passed.
func ClaudeCLIArgs(model string) func(router.Task) []string {
	return func(task router.Task) []string {
		prompt := taskPrompt(task)
		args := []string{"-p", prompt, "--max-turns", "1"}
		if model != "" {
			args = append(args, "--model", model)
		}
		return args
	}
}

func taskPrompt(task router.Task) string {
	switch task.Variant {
	case router.VariantCodeGeneration:
		return fmt.Sprintf("%s\n\ncontext:\n%s", task.GenSpec, task.GenContext)
	case router.VariantCodeReview:
		return fmt.Sprintf("review the following code against requirements %v:\n%s", task.ReviewRequirements, task.ReviewCode)
	default:
		return task.Text
	}
}
