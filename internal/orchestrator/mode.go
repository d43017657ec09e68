package orchestrator

// Mode governs how much the orchestrator is allowed to do without a human
// in the loop, per spec.md §4.E.
type Mode string

const (
	// ModeObservation never writes, only plans and reports; the pending
	// change queue is purely advisory and unbounded.
	ModeObservation Mode = "Observation"

	// ModeAssisted plans and generates changes but always stops at
	// Reviewing for an operator's Approve/Reject; queue is unbounded so
	// nothing is dropped while the operator catches up.
	ModeAssisted Mode = "Assisted"

	// ModeSemiAutonomous auto-approves NeedsApproval==Approved changes but
	// still surfaces anything the Gatekeeper marks NeedsApproval.
	ModeSemiAutonomous Mode = "SemiAutonomous"

	// ModeFullyAutonomous proceeds through Deploying without a human
	// checkpoint as long as the Gatekeeper approves and the daily budget
	// isn't exhausted; queue is bounded to 1 so a stalled operator can't
	// let unreviewed changes pile up.
	ModeFullyAutonomous Mode = "FullyAutonomous"
)

// RequiresApprovalGate reports whether a mode must pause at Reviewing for
// an explicit Approve/Reject control operation before Deploying.
func (m Mode) RequiresApprovalGate() bool {
	return m == ModeObservation || m == ModeAssisted
}

// QueueCapacity returns the PendingChange queue's bound for a mode, or -1
// for unbounded.
func (m Mode) QueueCapacity() int {
	if m == ModeFullyAutonomous {
		return 1
	}
	return -1
}

// CanWrite reports whether this mode is permitted to write to disk at all;
// Observation mode plans and reviews but never reaches Deploying.
func (m Mode) CanWrite() bool {
	return m != ModeObservation
}
