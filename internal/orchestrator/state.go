// Package orchestrator implements the Self-Dev Orchestrator (spec.md
// §4.E): the finite-state machine that cycles through
// Analyzing -> Planning -> Developing -> Testing -> Reviewing -> Deploying
// -> Monitoring -> Learning, composing the Gatekeeper, Rollback Manager,
// LLM Router, and Incremental Executor into one supervised loop. Grounded
// on the teacher's internal/session/executor.go OODA-style Process loop:
// a single observe/act cycle gated by a safety check at its one
// consequential boundary, generalized here to a full named state machine.
package orchestrator

import "fmt"

// State is one node of the orchestrator's finite-state machine.
type State string

const (
	StateIdle      State = "Idle"
	StateAnalyzing State = "Analyzing"
	StatePlanning  State = "Planning"
	StateDeveloping State = "Developing"
	StateTesting   State = "Testing"
	StateReviewing State = "Reviewing"
	StateDeploying State = "Deploying"
	StateMonitoring State = "Monitoring"
	StateLearning  State = "Learning"
)

// allowedTransitions is the closed transition table; any edge not listed
// here is rejected. Idle is both the start state and the state Stop always
// returns to. Every non-terminal state can transition to Idle directly,
// matching an emergency-stop or a clean Stop interrupting mid-cycle.
var allowedTransitions = map[State][]State{
	StateIdle:       {StateAnalyzing},
	StateAnalyzing:  {StatePlanning, StateIdle},
	StatePlanning:   {StateDeveloping, StateIdle},
	StateDeveloping: {StateTesting, StateIdle},
	StateTesting:    {StateReviewing, StateDeveloping, StateIdle},
	StateReviewing:  {StateDeploying, StateIdle},
	StateDeploying:  {StateMonitoring, StateIdle},
	StateMonitoring: {StateLearning, StateIdle},
	StateLearning:   {StateIdle},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionError is returned when the orchestrator attempts an illegal
// state transition — a programming error in the cycle driver, never an
// expected runtime condition.
type transitionError struct {
	From, To State
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("orchestrator: illegal transition %s -> %s", e.From, e.To)
}
