package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionHappyPath(t *testing.T) {
	for i := 0; i+1 < len(Pipeline); i++ {
		assert.True(t, CanTransition(Pipeline[i], Pipeline[i+1]), "%s -> %s", Pipeline[i], Pipeline[i+1])
	}
}

func TestCanTransitionRejectsSkipsAndBackwards(t *testing.T) {
	cases := []struct {
		from, to DeploymentStatus
	}{
		{DeploymentStatusStarting, DeploymentStatusUploading},
		{DeploymentStatusBuilding, DeploymentStatusUploading},
		{DeploymentStatusBuilding, DeploymentStatusBuilding},
		{DeploymentStatusLive, DeploymentStatusFailed},
		{DeploymentStatusFailed, DeploymentStatusStarting},
		{DeploymentStatusBuildFailed, DeploymentStatusDeploying},
	}
	for _, tc := range cases {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestFailureReachableFromAnyInFlightState(t *testing.T) {
	for _, s := range Pipeline[:len(Pipeline)-1] {
		assert.True(t, CanTransition(s, DeploymentStatusFailed))
		assert.True(t, CanTransition(s, DeploymentStatusBuildFailed))
		assert.True(t, CanTransition(s, DeploymentStatusDeployFailed))
	}
}

func TestCloneDetachesPointers(t *testing.T) {
	id := "i-123"
	d := NewDeployment("d-1", "https://github.com/acme/widget", "widget-abc123")
	d.ComputeInstanceID = &id

	c := d.Clone()
	*c.ComputeInstanceID = "i-999"

	assert.Equal(t, "i-123", *d.ComputeInstanceID)
	assert.Equal(t, DeploymentStatusStarting, c.Status)
}
