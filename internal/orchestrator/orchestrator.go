package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	aerrors "autodev/internal/errors"
	"autodev/internal/eventlog"
	"autodev/internal/executor"
	"autodev/internal/logging"
	"autodev/internal/metrics"
	"autodev/internal/rollback"
	"autodev/internal/specification"
)

// TaskSource supplies the next Specification to work on. The natural-
// language parser that produces Specifications is out of scope for this
// repository (SPEC_FULL.md §1); the orchestrator only ever consumes this
// interface.
type TaskSource interface {
	Next(ctx context.Context) (*specification.Specification, error)
}

// PendingChange is a completed planning+development pass awaiting a
// Reviewing-phase decision (automatic in SemiAutonomous/FullyAutonomous,
// operator-driven in Observation/Assisted).
type PendingChange struct {
	ID        string
	Spec      *specification.Specification
	Plan      *executor.Plan
	Results   []executor.AttemptResult
	CreatedAt time.Time
	Decided   bool
	Approved  bool
}

// SuccessCount returns how many increments in this change set succeeded.
func (p PendingChange) SuccessCount() int {
	n := 0
	for _, r := range p.Results {
		if r.Outcome == executor.OutcomeSuccess {
			n++
		}
	}
	return n
}

// Status is a point-in-time snapshot for `self-dev status`.
type Status struct {
	State             State
	Mode              Mode
	Paused            bool
	ChangesToday      int
	MaxChangesPerDay  int
	PendingChanges    int
	LastError         string
}

// Config controls cycle cadence and the daily change budget.
type Config struct {
	Mode             Mode
	CycleInterval    time.Duration
	MaxChangesPerDay int
	Language         string
}

// Orchestrator drives the self-development cycle, owning the single
// authoritative daily-change counter (spec.md §9 open question 1: this is
// the one place that counter lives — the Gatekeeper's own per-session
// counter is a separate, lower-level bound).
type Orchestrator struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	paused bool

	source   TaskSource
	executor *executor.Executor
	rollback *rollback.Manager
	events   *eventlog.Log

	dailyCount   int
	dailyResetAt time.Time

	pending map[string]*PendingChange
	order   []string

	lastErr error

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs an Orchestrator in the Idle state.
func New(cfg Config, source TaskSource, exec *executor.Executor, rb *rollback.Manager, events *eventlog.Log) *Orchestrator {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 5 * time.Minute
	}
	return &Orchestrator{
		cfg:          cfg,
		state:        StateIdle,
		source:       source,
		executor:     exec,
		rollback:     rb,
		events:       events,
		dailyResetAt: nextLocalMidnight(time.Now()),
		pending:      make(map[string]*PendingChange),
	}
}

func nextLocalMidnight(from time.Time) time.Time {
	y, m, d := from.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, from.Location())
}

func (o *Orchestrator) resetDailyBudgetIfNeeded(now time.Time) {
	if now.Before(o.dailyResetAt) {
		return
	}
	o.dailyCount = 0
	o.dailyResetAt = nextLocalMidnight(now)
	metrics.ChangesWrittenToday.Set(0)
}

func (o *Orchestrator) transition(to State) error {
	if !CanTransition(o.state, to) {
		return &transitionError{From: o.state, To: to}
	}
	o.events.Emit(eventlog.EventStateTransition, map[string]interface{}{"from": string(o.state), "to": string(to)})
	logging.Get(logging.CategoryOrchestrator).Infow("state transition", "from", o.state, "to", to)
	o.state = to
	return nil
}

// Start begins the cycle loop in a background goroutine. Calling Start
// while already running is a no-op.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.stopCh != nil {
		o.mu.Unlock()
		return
	}
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	stopCh := o.stopCh
	doneCh := o.doneCh
	o.mu.Unlock()

	go o.loop(ctx, stopCh, doneCh)
}

func (o *Orchestrator) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(o.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			// paused is observed only at the top of each tick: a pause
			// mid-cycle does not interrupt work already in flight, per
			// spec.md §9 open question 3.
			o.mu.Lock()
			paused := o.paused
			o.mu.Unlock()
			if paused {
				continue
			}
			if err := o.RunOnce(ctx); err != nil {
				o.mu.Lock()
				o.lastErr = err
				o.mu.Unlock()
				logging.Get(logging.CategoryOrchestrator).Errorw("cycle failed", "error", err)
			}
		}
	}
}

// Stop halts the cycle loop and waits for the in-flight tick, if any, to
// finish, then returns to Idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	stopCh := o.stopCh
	doneCh := o.doneCh
	o.stopCh = nil
	o.doneCh = nil
	o.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// Pause sets the paused flag; it takes effect at the next tick boundary.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
}

// Resume clears the paused flag.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
}

// EmergencyStop immediately rolls back every outstanding checkpoint,
// clears the pending-change queue, and forces the state machine to Idle
// regardless of what it was doing. This is the one control operation that
// bypasses the transition table — an emergency stop must always succeed.
func (o *Orchestrator) EmergencyStop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var firstErr error
	for _, id := range o.rollback.OutstandingCheckpoints() {
		if err := o.rollback.RollbackTo(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.pending = make(map[string]*PendingChange)
	o.order = nil
	o.state = StateIdle
	o.paused = false

	o.events.Emit(eventlog.EventEmergencyStop, map[string]interface{}{"rollback_error": errString(firstErr)})

	if firstErr != nil {
		return aerrors.Wrap(aerrors.RollbackFailed, "orchestrator: emergency stop rollback incomplete", firstErr)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetStatus returns a point-in-time snapshot.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:            o.state,
		Mode:             o.cfg.Mode,
		Paused:           o.paused,
		ChangesToday:     o.dailyCount,
		MaxChangesPerDay: o.cfg.MaxChangesPerDay,
		PendingChanges:   len(o.pending),
		LastError:        errString(o.lastErr),
	}
}

// ReviewChanges returns every undecided PendingChange, oldest first.
func (o *Orchestrator) ReviewChanges() []PendingChange {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PendingChange, 0, len(o.order))
	for _, id := range o.order {
		if pc, ok := o.pending[id]; ok && !pc.Decided {
			out = append(out, *pc)
		}
	}
	return out
}

// Approve marks a PendingChange approved; its successful increments count
// against the daily budget.
func (o *Orchestrator) Approve(id string) error {
	return o.decide(id, true)
}

// Reject marks a PendingChange rejected; nothing it wrote counts against
// the daily budget, but the writes themselves are not automatically rolled
// back here — Reject is a review-time decision, not a new rollback trigger.
func (o *Orchestrator) Reject(id string) error {
	return o.decide(id, false)
}

func (o *Orchestrator) decide(id string, approve bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	pc, ok := o.pending[id]
	if !ok {
		return fmt.Errorf("orchestrator: no pending change %q", id)
	}
	pc.Decided = true
	pc.Approved = approve

	if approve {
		o.resetDailyBudgetIfNeeded(time.Now())
		o.dailyCount += pc.SuccessCount()
		metrics.ChangesWrittenToday.Set(float64(o.dailyCount))
		o.events.Emit(eventlog.EventChangeApproved, map[string]interface{}{"id": id, "increments": pc.SuccessCount()})
	} else {
		o.events.Emit(eventlog.EventChangeRejected, map[string]interface{}{"id": id})
	}
	return nil
}

// SetMaxChangesPerDay updates the daily budget ceiling at runtime.
func (o *Orchestrator) SetMaxChangesPerDay(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.MaxChangesPerDay = n
}

// SetMode overrides the autonomy mode at runtime, e.g. from a `--mode` CLI
// flag that takes precedence over the safety-preset default. Takes effect
// on the next cycle; a cycle already past the approval gate is unaffected.
func (o *Orchestrator) SetMode(m Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Mode = m
}

// dailyBudgetExceeded reports whether the counter has reached the ceiling;
// a ceiling of 0 or less means unbounded.
func (o *Orchestrator) dailyBudgetExceeded() bool {
	if o.cfg.MaxChangesPerDay <= 0 {
		return false
	}
	return o.dailyCount >= o.cfg.MaxChangesPerDay
}

// ExecuteTask runs exactly one cycle against a specific Specification,
// bypassing TaskSource — used by `self-dev run` for a synchronous
// one-shot invocation outside the ticking loop.
func (o *Orchestrator) ExecuteTask(ctx context.Context, spec *specification.Specification) (*PendingChange, error) {
	return o.runCycle(ctx, spec)
}

// RunOnce pulls the next Specification from the TaskSource and runs one
// full cycle. It's also what the ticking loop calls.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	o.mu.Lock()
	o.resetDailyBudgetIfNeeded(time.Now())
	exceeded := o.dailyBudgetExceeded()
	o.mu.Unlock()

	if exceeded {
		o.events.Emit(eventlog.EventDailyBudgetHit, nil)
		return aerrors.New(aerrors.DailyBudgetExceeded, "orchestrator: daily change budget exhausted")
	}

	spec, err := o.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch next specification: %w", err)
	}
	if spec == nil {
		return nil // nothing to do this cycle
	}

	_, err = o.runCycle(ctx, spec)
	return err
}

func (o *Orchestrator) runCycle(ctx context.Context, spec *specification.Specification) (*PendingChange, error) {
	o.mu.Lock()
	if err := o.transition(StateAnalyzing); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.mu.Unlock()

	o.mu.Lock()
	if err := o.transition(StatePlanning); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.mu.Unlock()

	plan, err := executor.Plan(spec, o.cfg.Language)
	if err != nil {
		o.forceIdle()
		return nil, aerrors.Wrap(aerrors.PlanningError, "orchestrator: planning failed", err)
	}

	o.events.Emit(eventlog.EventPlanStarted, map[string]interface{}{"increments": len(plan.Increments)})

	o.mu.Lock()
	if err := o.transition(StateDeveloping); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.mu.Unlock()

	var results []executor.AttemptResult
	if o.cfg.Mode.CanWrite() {
		results, err = o.executor.Run(ctx, plan)
		if err != nil {
			o.forceIdle()
			return nil, err
		}
	}

	o.mu.Lock()
	if err := o.transition(StateTesting); err == nil {
		_ = o.transition(StateReviewing)
	}
	o.mu.Unlock()

	o.events.Emit(eventlog.EventPlanCompleted, map[string]interface{}{"increments": len(results)})

	pc := &PendingChange{
		ID:        fmt.Sprintf("%s-%s", spec.ContentHash[:12], uuid.NewString()),
		Spec:      spec,
		Plan:      plan,
		Results:   results,
		CreatedAt: time.Now(),
	}

	o.mu.Lock()
	o.enqueue(pc)
	o.mu.Unlock()

	autoApprove := !o.cfg.Mode.RequiresApprovalGate()
	if o.cfg.Mode == ModeSemiAutonomous {
		for _, r := range results {
			if r.Outcome == executor.OutcomeNeedsApproval {
				autoApprove = false
			}
		}
	}
	if autoApprove {
		_ = o.decide(pc.ID, true)
		o.mu.Lock()
		if err := o.transition(StateDeploying); err == nil {
			_ = o.transition(StateMonitoring)
			_ = o.transition(StateLearning)
		}
		o.state = StateIdle
		o.mu.Unlock()
	}

	return pc, nil
}

func (o *Orchestrator) forceIdle() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// enqueue adds a PendingChange, honoring the mode's queue capacity by
// evicting the oldest undecided entry when FullyAutonomous's bound of 1 is
// exceeded, per spec.md §4.E's backpressure note.
func (o *Orchestrator) enqueue(pc *PendingChange) {
	cap := o.cfg.Mode.QueueCapacity()
	if cap > 0 {
		for len(o.order) >= cap {
			oldest := o.order[0]
			o.order = o.order[1:]
			delete(o.pending, oldest)
		}
	}
	o.pending[pc.ID] = pc
	o.order = append(o.order, pc.ID)
}
