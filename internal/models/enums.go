package models

// DeploymentStatus enum
type DeploymentStatus string

const (
	DeploymentStatusStarting        DeploymentStatus = "starting"
	DeploymentStatusCreatingCompute DeploymentStatus = "creating_compute"
	DeploymentStatusUploading       DeploymentStatus = "uploading"
	DeploymentStatusBuilding        DeploymentStatus = "building"
	DeploymentStatusDeploying       DeploymentStatus = "deploying"
	DeploymentStatusLive            DeploymentStatus = "live"
	DeploymentStatusFailed          DeploymentStatus = "failed"
	DeploymentStatusBuildFailed     DeploymentStatus = "build_failed"
	DeploymentStatusDeployFailed    DeploymentStatus = "deploy_failed"
)

// Pipeline is the happy-path order of deployment statuses.
var Pipeline = []DeploymentStatus{
	DeploymentStatusStarting,
	DeploymentStatusCreatingCompute,
	DeploymentStatusUploading,
	DeploymentStatusBuilding,
	DeploymentStatusDeploying,
	DeploymentStatusLive,
}

// Rank returns the position of s in Pipeline, or -1 for failure states.
func (s DeploymentStatus) Rank() int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// IsFailure reports whether s is one of the failure terminals.
func (s DeploymentStatus) IsFailure() bool {
	switch s {
	case DeploymentStatusFailed, DeploymentStatusBuildFailed, DeploymentStatusDeployFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further automatic transition happens from s.
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentStatusLive || s.IsFailure()
}

// CanTransition allows exactly one step forward along Pipeline, or a jump to a
// failure terminal from any non-terminal status.
func CanTransition(from, to DeploymentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to.IsFailure() {
		return true
	}
	fromRank, toRank := from.Rank(), to.Rank()
	return fromRank >= 0 && toRank == fromRank+1
}
