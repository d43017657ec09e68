package executor

import (
	"context"
	"fmt"
	"time"

	aerrors "autodev/internal/errors"
	"autodev/internal/execshell"
	"autodev/internal/gatekeeper"
	"autodev/internal/logging"
	"autodev/internal/metrics"
	"autodev/internal/rollback"
	"autodev/internal/router"
)

// ValidatorKind tags what a Validator checks, so a failure can be mapped
// onto the right error-taxonomy Kind.
type ValidatorKind string

const (
	ValidatorCompile  ValidatorKind = "Compile"
	ValidatorTest     ValidatorKind = "Test"
	ValidatorLint     ValidatorKind = "Lint"
	ValidatorSecurity ValidatorKind = "Security"
)

// Validator is one post-write check the executor runs before accepting an
// increment, per spec.md §4.D's compile -> test -> security/pattern check
// pipeline.
type Validator struct {
	Kind    ValidatorKind
	Command string
	Args    func(targetPath string) []string
}

func (v Validator) errorKind() aerrors.Kind {
	switch v.Kind {
	case ValidatorCompile:
		return aerrors.CompileFail
	case ValidatorTest:
		return aerrors.TestFail
	default:
		return aerrors.ValidationFail
	}
}

// Config controls how the executor runs increments.
type Config struct {
	Language                string
	Validators              []Validator
	MaxAttemptsPerIncrement int
	KeepCheckpoints         int
	SkipValidation          bool // `--skip-validation`: write gatekeeper-approved changes without running Validators
}

// DefaultGoValidators is the validator pipeline for Go targets: compile
// (go build), test (go test), then a gofmt check standing in for lint.
func DefaultGoValidators() []Validator {
	return []Validator{
		{Kind: ValidatorCompile, Command: "go", Args: func(string) []string { return []string{"build", "./..."} }},
		{Kind: ValidatorTest, Command: "go", Args: func(string) []string { return []string{"test", "./..."} }},
		{Kind: ValidatorLint, Command: "gofmt", Args: func(p string) []string { return []string{"-l", p} }},
	}
}

// Outcome is the terminal result of one increment attempt.
type Outcome string

const (
	OutcomeSuccess        Outcome = "Success"
	OutcomeRejected       Outcome = "Rejected"
	OutcomeNeedsApproval  Outcome = "NeedsApproval"
	OutcomeCompileFail    Outcome = "CompileFail"
	OutcomeTestFail       Outcome = "TestFail"
	OutcomeValidationFail Outcome = "ValidationFail"
	OutcomeProviderFail   Outcome = "ProviderFail"
	OutcomeSkipped        Outcome = "Skipped"
)

// AttemptResult records what happened to one Increment.
type AttemptResult struct {
	Increment Increment
	Outcome   Outcome
	Attempts  int
	Err       error
}

// Executor drives Increments through the generate/check/write/validate
// loop, composing the Gatekeeper, the Rollback Manager, and the LLM
// Router. None of those three depend on this package, so each is testable
// in isolation; Executor is the glue.
type Executor struct {
	cfg      Config
	router   *router.Router
	gate     *gatekeeper.Gatekeeper
	rollback *rollback.Manager
	shell    *execshell.Executor
}

// New constructs an Executor from its four collaborators.
func New(cfg Config, r *router.Router, gate *gatekeeper.Gatekeeper, rb *rollback.Manager, shell *execshell.Executor) *Executor {
	if cfg.MaxAttemptsPerIncrement <= 0 {
		cfg.MaxAttemptsPerIncrement = 3
	}
	if cfg.KeepCheckpoints <= 0 {
		cfg.KeepCheckpoints = 20
	}
	return &Executor{cfg: cfg, router: r, gate: gate, rollback: rb, shell: shell}
}

// Run executes every Increment in a Plan's topological order, skipping the
// transitive closure of any Increment whose dependency failed, per spec.md
// §4.D's "a failed increment's dependents are never attempted" invariant.
func (e *Executor) Run(ctx context.Context, plan *Plan) ([]AttemptResult, error) {
	if plan.IsEmpty() {
		return nil, nil
	}

	byID := make(map[string]*Increment, len(plan.Increments))
	for i := range plan.Increments {
		byID[plan.Increments[i].ID] = &plan.Increments[i]
	}

	failed := make(map[string]bool)
	var results []AttemptResult

	for _, id := range plan.Order {
		inc := byID[id]

		if dependencyFailed(inc, failed) {
			inc.Status = StatusSkipped
			failed[id] = true
			results = append(results, AttemptResult{Increment: *inc, Outcome: OutcomeSkipped})
			continue
		}

		res := e.runIncrement(ctx, *inc)
		inc.Status = statusFor(res.Outcome)
		if res.Outcome != OutcomeSuccess {
			failed[id] = true
		}
		results = append(results, res)

		if ctx.Err() != nil {
			break
		}
	}

	return results, nil
}

func dependencyFailed(inc *Increment, failed map[string]bool) bool {
	for _, dep := range inc.DependsOn {
		if failed[dep] {
			return true
		}
	}
	return false
}

func statusFor(o Outcome) IncrementStatus {
	if o == OutcomeSuccess {
		return StatusSucceeded
	}
	if o == OutcomeSkipped {
		return StatusSkipped
	}
	return StatusFailed
}

// runIncrement drives a single Increment through up to
// MaxAttemptsPerIncrement rounds of generate -> gatekeeper-check ->
// checkpoint -> write -> validate -> rollback-or-complete.
func (e *Executor) runIncrement(ctx context.Context, inc Increment) AttemptResult {
	log := logging.Get(logging.CategoryExecutor)

	var lastErr error
	var lastOutcome Outcome = OutcomeProviderFail

	for attempt := 1; attempt <= e.cfg.MaxAttemptsPerIncrement; attempt++ {
		record := AttemptRecord{StartedAt: time.Now()}
		inc.Attempts = append(inc.Attempts, record)
		recordIdx := len(inc.Attempts) - 1

		outcome, logLine, err := e.attemptOnce(ctx, inc, attempt)
		lastOutcome, lastErr = outcome, err

		inc.Attempts[recordIdx].EndedAt = time.Now()
		inc.Attempts[recordIdx].Result = outcome
		if logLine != "" {
			inc.Attempts[recordIdx].Logs = append(inc.Attempts[recordIdx].Logs, logLine)
		}
		if err != nil {
			inc.Attempts[recordIdx].Logs = append(inc.Attempts[recordIdx].Logs, err.Error())
		}

		metrics.IncrementOutcomes.WithLabelValues(string(outcome)).Inc()

		if outcome == OutcomeSuccess {
			log.Infow("increment succeeded", "id", inc.ID, "attempt", attempt)
			_ = e.rollback.CleanupOldCheckpoints(e.cfg.KeepCheckpoints)
			return AttemptResult{Increment: inc, Outcome: outcome, Attempts: attempt}
		}

		if outcome == OutcomeRejected || outcome == OutcomeNeedsApproval || outcome == OutcomeProviderFail {
			// The Gatekeeper's verdict doesn't change between retries of
			// the same content, and a provider failure never wrote
			// anything; a fresh generation might still succeed, so we
			// loop, but there is nothing to roll back.
			log.Warnw("increment attempt produced no write", "id", inc.ID, "attempt", attempt, "outcome", outcome, "reason", err)
			continue
		}

		log.Warnw("increment attempt failed after writing, rolled back", "id", inc.ID, "attempt", attempt, "outcome", outcome, "error", err)
	}

	return AttemptResult{Increment: inc, Outcome: lastOutcome, Attempts: e.cfg.MaxAttemptsPerIncrement, Err: lastErr}
}

// attemptOnce runs one generate -> gatekeeper-check -> checkpoint -> write ->
// validate -> rollback-on-failure round for an increment, per spec.md §4.D
// steps 3-6. The LLM's response can describe several FileChanges (multiple
// create/modify blocks); every change in the batch must clear the
// Gatekeeper before any of them is written, so a rejection of one file never
// leaves a partial write behind, and the checkpoint is scoped to the actual
// set of paths this attempt is about to touch rather than just the
// increment's nominal target, so a multi-file generation rolls back cleanly.
func (e *Executor) attemptOnce(ctx context.Context, inc Increment, attempt int) (Outcome, string, error) {
	prompt := buildGenerationPrompt(inc)
	task := router.Task{
		Variant:    router.VariantCodeGeneration,
		GenSpec:    prompt,
		GenContext: fmt.Sprintf("target_path=%s requirement=%s attempt=%d", inc.TargetPath, inc.Requirement.ID, attempt),
	}

	result, err := e.router.Dispatch(ctx, task)
	if err != nil {
		return OutcomeProviderFail, "", err
	}

	changes := parseResponse(result.Text, inc.TargetPath)
	rendered := formatChanges(changes)

	for _, change := range changes {
		decision := e.gate.Validate(change, len(changes))
		switch decision.Outcome {
		case gatekeeper.Rejected:
			return OutcomeRejected, rendered, fmt.Errorf("gatekeeper: %s: %s", change.Path, decision.Reason)
		case gatekeeper.NeedsApproval:
			return OutcomeNeedsApproval, rendered, fmt.Errorf("gatekeeper: %s: %s", change.Path, decision.Reason)
		}
	}

	checkpointID := fmt.Sprintf("%s-attempt%d", inc.Fingerprint(), attempt)
	cp, err := e.rollback.CreateCheckpoint(checkpointID, pathsTouched(changes))
	if err != nil {
		return OutcomeProviderFail, rendered, err
	}

	for _, change := range changes {
		if err := applyChange(change); err != nil {
			if rbErr := e.rollback.RollbackTo(cp.ID); rbErr != nil {
				return OutcomeValidationFail, rendered, aerrors.Wrap(aerrors.RollbackFailed, "executor: rollback after failed apply also failed", rbErr)
			}
			return OutcomeValidationFail, rendered, err
		}
	}

	if e.cfg.SkipValidation {
		return OutcomeSuccess, rendered, nil
	}

	outcome, verr := e.validate(ctx, inc)
	if outcome != OutcomeSuccess {
		if rbErr := e.rollback.RollbackTo(cp.ID); rbErr != nil {
			return OutcomeValidationFail, rendered, aerrors.Wrap(aerrors.RollbackFailed, "executor: rollback after failed validation also failed", rbErr)
		}
	}
	return outcome, rendered, verr
}

// validate runs every configured Validator in order, stopping at the first
// failure (compile before test before lint, matching spec.md §4.D's "don't
// run tests against code that doesn't compile" ordering note).
func (e *Executor) validate(ctx context.Context, inc Increment) (Outcome, error) {
	for _, v := range e.cfg.Validators {
		res, err := e.shell.Run(ctx, v.Command, v.Args(inc.TargetPath)...)
		if err != nil {
			return outcomeFor(v.Kind), err
		}
		if !res.Passed() {
			return outcomeFor(v.Kind), fmt.Errorf("%s: exit %d: %s", v.Command, res.ExitCode, firstNonEmpty(res.Stderr, res.Stdout))
		}
	}
	return OutcomeSuccess, nil
}

func outcomeFor(kind ValidatorKind) Outcome {
	switch kind {
	case ValidatorCompile:
		return OutcomeCompileFail
	case ValidatorTest:
		return OutcomeTestFail
	default:
		return OutcomeValidationFail
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// EstimatedDuration returns a rough wall-clock estimate for a Plan's
// critical path, assuming perAttempt time per increment on it —
// used by the Self-Dev Orchestrator to decide whether a plan fits inside
// one cycle.
func EstimatedDuration(plan *Plan, perAttempt time.Duration) time.Duration {
	return time.Duration(len(plan.CriticalPath)) * perAttempt
}
