package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMode_RequiresApprovalGate(t *testing.T) {
	assert.True(t, ModeObservation.RequiresApprovalGate())
	assert.True(t, ModeAssisted.RequiresApprovalGate())
	assert.False(t, ModeSemiAutonomous.RequiresApprovalGate())
	assert.False(t, ModeFullyAutonomous.RequiresApprovalGate())
}

func TestMode_QueueCapacity(t *testing.T) {
	assert.Equal(t, -1, ModeObservation.QueueCapacity())
	assert.Equal(t, -1, ModeAssisted.QueueCapacity())
	assert.Equal(t, -1, ModeSemiAutonomous.QueueCapacity())
	assert.Equal(t, 1, ModeFullyAutonomous.QueueCapacity())
}

func TestMode_CanWrite(t *testing.T) {
	assert.False(t, ModeObservation.CanWrite())
	assert.True(t, ModeAssisted.CanWrite())
	assert.True(t, ModeSemiAutonomous.CanWrite())
	assert.True(t, ModeFullyAutonomous.CanWrite())
}
