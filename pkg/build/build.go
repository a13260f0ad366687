// Package build starts CodeBuild builds for deployment archives and waits for them to finish.
package build

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

// ErrPollTimeout means the build was still running when the caller stopped waiting.
// It is unrelated to the build service's own TIMED_OUT status.
var ErrPollTimeout = errors.New("timed out waiting for build")

// CodeBuildAPI is the subset of the CodeBuild client the runner needs.
type CodeBuildAPI interface {
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
}

type StartRequest struct {
	ProjectName    string
	SourceBucket   string
	SourceKey      string
	ArtifactBucket string
	ArtifactPath   string
	ArtifactName   string
	Variables      map[string]string
}

// Outcome is the last observed state of a finished build.
type Outcome struct {
	BuildID string
	Status  string
}

// FailedError is returned when a build ends in any state other than SUCCEEDED.
type FailedError struct {
	BuildID string
	Status  string
	Message string
}

func (e *FailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("build %s finished with status %s", e.BuildID, e.Status)
	}
	return fmt.Sprintf("build %s finished with status %s: %s", e.BuildID, e.Status, e.Message)
}

type Runner struct {
	client CodeBuildAPI
}

func New(client CodeBuildAPI) *Runner {
	return &Runner{client: client}
}

// NewFromConfig builds a Runner on a real CodeBuild client.
func NewFromConfig(cfg aws.Config) *Runner {
	return New(codebuild.NewFromConfig(cfg))
}

// Start kicks off a build of the archive at SourceBucket/SourceKey and returns the build id.
func (r *Runner) Start(ctx context.Context, req StartRequest) (string, error) {
	if req.ProjectName == "" {
		return "", fmt.Errorf("build project cannot be empty")
	}

	input := &codebuild.StartBuildInput{
		ProjectName:            aws.String(req.ProjectName),
		SourceTypeOverride:     types.SourceTypeS3,
		SourceLocationOverride: aws.String(req.SourceBucket + "/" + req.SourceKey),
		ArtifactsOverride: &types.ProjectArtifacts{
			Type:          types.ArtifactsTypeS3,
			Location:      aws.String(req.ArtifactBucket),
			Path:          aws.String(req.ArtifactPath),
			Name:          aws.String(req.ArtifactName),
			Packaging:     types.ArtifactPackagingZip,
			NamespaceType: types.ArtifactNamespaceNone,
		},
		EnvironmentVariablesOverride: envOverrides(req.Variables),
	}

	out, err := r.client.StartBuild(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to start build for project %s: %w", req.ProjectName, err)
	}
	if out.Build == nil || out.Build.Id == nil {
		return "", fmt.Errorf("no build returned from CodeBuild")
	}
	return *out.Build.Id, nil
}

// PollUntilTerminal checks the build every interval until it finishes or timeout elapses.
// A successful build returns its Outcome; every other terminal status is a *FailedError.
func (r *Runner) PollUntilTerminal(ctx context.Context, buildID string, interval, timeout time.Duration) (Outcome, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		b, err := r.get(ctx, buildID)
		if err != nil {
			return Outcome{}, err
		}

		switch b.BuildStatus {
		case types.StatusTypeSucceeded:
			return Outcome{BuildID: buildID, Status: string(b.BuildStatus)}, nil
		case types.StatusTypeFailed, types.StatusTypeFault, types.StatusTypeStopped, types.StatusTypeTimedOut:
			return Outcome{BuildID: buildID, Status: string(b.BuildStatus)}, &FailedError{
				BuildID: buildID,
				Status:  string(b.BuildStatus),
				Message: firstPhaseMessage(b.Phases),
			}
		}

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-deadline.C:
			return Outcome{}, fmt.Errorf("build %s: %w", buildID, ErrPollTimeout)
		case <-ticker.C:
		}
	}
}

func (r *Runner) get(ctx context.Context, buildID string) (types.Build, error) {
	out, err := r.client.BatchGetBuilds(ctx, &codebuild.BatchGetBuildsInput{Ids: []string{buildID}})
	if err != nil {
		return types.Build{}, fmt.Errorf("failed to get build %s: %w", buildID, err)
	}
	if len(out.Builds) == 0 {
		return types.Build{}, fmt.Errorf("build %s not found", buildID)
	}
	return out.Builds[0], nil
}

func firstPhaseMessage(phases []types.BuildPhase) string {
	for _, phase := range phases {
		for _, c := range phase.Contexts {
			if msg := aws.ToString(c.Message); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func envOverrides(vars map[string]string) []types.EnvironmentVariable {
	if len(vars) == 0 {
		return nil
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]types.EnvironmentVariable, 0, len(names))
	for _, name := range names {
		env = append(env, types.EnvironmentVariable{
			Name:  aws.String(name),
			Value: aws.String(vars[name]),
			Type:  types.EnvironmentVariableTypePlaintext,
		})
	}
	return env
}
