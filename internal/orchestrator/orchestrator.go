// Package orchestrator drives a repository from URL to a live instance.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deployra/launcher/internal/events"
	"github.com/deployra/launcher/internal/metrics"
	"github.com/deployra/launcher/internal/models"
	"github.com/deployra/launcher/internal/packager"
	"github.com/deployra/launcher/internal/registry"
	"github.com/deployra/launcher/internal/utils"
	"github.com/deployra/launcher/pkg/build"
	"github.com/deployra/launcher/pkg/compute"
	"github.com/deployra/launcher/pkg/github"
	"github.com/deployra/launcher/pkg/invoke"
	"github.com/deployra/launcher/pkg/storage"
	pkgutils "github.com/deployra/launcher/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const managedByTag = "launcher"

type Packager interface {
	Package(ctx context.Context, url string, opts packager.Options) (*packager.Archive, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error
	Bucket() string
}

type Provisioner interface {
	Create(ctx context.Context, req compute.CreateRequest) (compute.CreateResult, error)
	AwaitRunning(ctx context.Context, instanceID string, maxWait time.Duration) error
	Describe(ctx context.Context, instanceID string) (compute.Instance, error)
	Terminate(ctx context.Context, instanceID string) error
}

type BuildRunner interface {
	Start(ctx context.Context, req build.StartRequest) (string, error)
	PollUntilTerminal(ctx context.Context, buildID string, interval, timeout time.Duration) (build.Outcome, error)
}

type DeployInvoker interface {
	Invoke(ctx context.Context, req invoke.Request) (invoke.Response, error)
}

// RepositoryChecker looks a repository up before any resource is spent on it.
type RepositoryChecker interface {
	CheckDeployable(ctx context.Context, owner, repo string) (*github.Repository, error)
}

// ReadinessProbe waits until url answers.
type ReadinessProbe func(ctx context.Context, url string, maxWait time.Duration) error

type Dependencies struct {
	Registry  *registry.Registry
	Packager  Packager
	Store     ArtifactStore
	Compute   Provisioner
	Builder   BuildRunner
	Invoker   DeployInvoker
	Preflight RepositoryChecker
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Log       *zap.Logger

	Probe ReadinessProbe
	Sleep func(ctx context.Context, d time.Duration) error
}

type Orchestrator struct {
	Dependencies
	settings Settings
	slots    *semaphore.Weighted
}

func New(deps Dependencies, settings Settings) *Orchestrator {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	deps.Log = deps.Log.Named("orchestrator")
	if deps.Probe == nil {
		deps.Probe = func(ctx context.Context, url string, maxWait time.Duration) error {
			return compute.ProbeReady(ctx, nil, url, maxWait)
		}
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	o := &Orchestrator{Dependencies: deps, settings: settings.withDefaults()}
	if o.settings.MaxConcurrent > 0 {
		o.slots = semaphore.NewWeighted(int64(o.settings.MaxConcurrent))
	}
	return o
}

func (o *Orchestrator) Get(ctx context.Context, id string) (models.Deployment, error) {
	return o.Registry.Get(ctx, id)
}

func (o *Orchestrator) List(ctx context.Context) ([]models.Deployment, error) {
	return o.Registry.List(ctx)
}

// Delete tears down the deployment's instance and forgets the record.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.Registry.Delete(ctx, id); err != nil {
		return err
	}
	o.Log.Info("deployment deleted", zap.String("deployment_id", id))
	return nil
}

// Deploy runs the whole pipeline for rawURL synchronously. On failure the
// returned record, when non-nil, carries the last status and the error text.
func (o *Orchestrator) Deploy(ctx context.Context, rawURL string) (*models.Deployment, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return nil, validationError("Please provide a GitHub URL")
	}
	if !pkgutils.ValidateRepositoryURL(url) {
		return nil, validationError("Invalid GitHub URL format")
	}

	branch, err := o.preflight(ctx, url)
	if err != nil {
		return nil, err
	}

	// Wait for a free slot before any record or instance exists.
	if o.slots != nil {
		if err := o.slots.Acquire(ctx, 1); err != nil {
			return nil, &Error{Kind: KindAborted, Err: err}
		}
		defer o.slots.Release(1)
	}

	d := models.NewDeployment(utils.GenerateDeploymentID(), url, utils.GenerateSubdomain(url))
	if err := o.Registry.Create(ctx, d); err != nil {
		return nil, &Error{Kind: KindAborted, DeploymentID: d.ID, Err: err}
	}
	o.announce(ctx, d)

	log := o.Log.With(zap.String("deployment_id", d.ID))
	log.Info("deployment started", zap.String("source_url", url), zap.String("subdomain", d.Subdomain))

	run := &pipeline{o: o, id: d.ID, subdomain: d.Subdomain, url: url, branch: branch, log: log}
	final, err := run.execute(ctx)
	if err != nil {
		return final, err
	}
	log.Info("deployment live", zap.String("result_url", utils.PtrValue(final.ResultURL, "")))
	return final, nil
}

// preflight returns the default branch when the GitHub check is enabled.
// Only a definitive answer about the repository blocks the deployment.
func (o *Orchestrator) preflight(ctx context.Context, url string) (string, error) {
	if o.Preflight == nil {
		return "", nil
	}
	owner, repo, ok := pkgutils.ParseRepository(url)
	if !ok {
		return "", validationError("Invalid GitHub URL format")
	}
	r, err := o.Preflight.CheckDeployable(ctx, owner, repo)
	if err != nil {
		if github.IsRejection(err) {
			return "", &Error{Kind: KindValidation, Err: err}
		}
		o.Log.Warn("repository preflight unavailable, continuing",
			zap.String("repository", owner+"/"+repo),
			zap.Error(err))
		return "", nil
	}
	return r.DefaultBranch, nil
}

func (o *Orchestrator) announce(ctx context.Context, d models.Deployment) {
	o.Metrics.DeploymentStatus(string(d.Status))
	if err := events.PublishStatus(ctx, o.Publisher, &d); err != nil {
		o.Log.Warn("failed to publish status",
			zap.String("deployment_id", d.ID),
			zap.String("status", string(d.Status)),
			zap.Error(err))
	}
}

// pipeline is the state of one Deploy call.
type pipeline struct {
	o         *Orchestrator
	id        string
	subdomain string
	url       string
	branch    string
	log       *zap.Logger

	instanceID    string
	publicAddress string
	current       models.Deployment
}

func (p *pipeline) execute(ctx context.Context) (*models.Deployment, error) {
	steps := []struct {
		status models.DeploymentStatus
		stage  string
		run    func(context.Context) *Error
	}{
		{models.DeploymentStatusCreatingCompute, "provision", p.provision},
		{models.DeploymentStatusUploading, "upload", p.upload},
		{models.DeploymentStatusBuilding, "build", p.build},
		{models.DeploymentStatusDeploying, "deploy", p.deploy},
	}

	for _, step := range steps {
		if err := p.transition(ctx, step.status); err != nil {
			return p.abort(ctx, err)
		}
		start := time.Now()
		stepErr := step.run(ctx)
		p.o.Metrics.ObserveStage(step.stage, time.Since(start))
		if stepErr != nil {
			return p.fail(ctx, stepErr)
		}
	}

	resultURL := "http://" + p.publicAddress
	if err := p.transition(ctx, models.DeploymentStatusLive, func(d *models.Deployment) error {
		d.ResultURL = utils.Ptr(resultURL)
		return nil
	}); err != nil {
		return p.abort(ctx, err)
	}
	out := p.current
	return &out, nil
}

func (p *pipeline) provision(ctx context.Context) *Error {
	s := p.o.settings
	res, err := p.o.Compute.Create(ctx, compute.CreateRequest{
		TemplateID:      s.LaunchTemplateID,
		TemplateVersion: s.LaunchTemplateVersion,
		ClientToken:     p.id,
		Tags: map[string]string{
			s.InstanceTagKey: p.id,
			"Name":           p.subdomain,
			"ManagedBy":      managedByTag,
		},
	})
	if err != nil {
		return p.err(KindProvision, err)
	}
	p.instanceID = res.InstanceID
	if err := p.record(ctx, func(d *models.Deployment) error {
		d.ComputeInstanceID = utils.Ptr(res.InstanceID)
		return nil
	}); err != nil {
		return err
	}
	p.log.Info("instance created", zap.String("instance_id", res.InstanceID))

	if err := p.o.Compute.AwaitRunning(ctx, res.InstanceID, s.InstanceRunningWait); err != nil {
		return p.err(KindProvision, err)
	}
	inst, err := p.o.Compute.Describe(ctx, res.InstanceID)
	if err != nil {
		return p.err(KindProvision, err)
	}
	if inst.PublicAddress == "" {
		return p.err(KindProvision, fmt.Errorf("instance %s has no public address", res.InstanceID))
	}
	p.publicAddress = inst.PublicAddress
	if err := p.record(ctx, func(d *models.Deployment) error {
		d.PublicAddress = utils.Ptr(inst.PublicAddress)
		return nil
	}); err != nil {
		return err
	}

	if s.ReadinessPath != "" {
		probeURL := "http://" + inst.PublicAddress + ensureLeadingSlash(s.ReadinessPath)
		p.log.Info("waiting for instance readiness", zap.String("probe_url", probeURL))
		if err := p.o.Probe(ctx, probeURL, s.ReadinessTimeout); err != nil {
			return p.err(KindProvision, err)
		}
		return nil
	}

	p.log.Info("instance running, settling", zap.Duration("settle", s.SettleWait))
	if err := p.o.Sleep(ctx, s.SettleWait); err != nil {
		return p.err(KindProvision, err)
	}
	return nil
}

func (p *pipeline) upload(ctx context.Context) *Error {
	archive, err := p.o.Packager.Package(ctx, p.url, packager.Options{DeploymentID: p.id, Branch: p.branch})
	if err != nil {
		return p.err(KindPackaging, err)
	}
	defer func() {
		if err := archive.Release(); err != nil {
			p.log.Warn("failed to remove work directory", zap.Error(err))
		}
	}()

	f, err := archive.Open()
	if err != nil {
		return p.err(KindPackaging, err)
	}
	defer f.Close()

	key := storage.SourceKey(p.o.settings.ArtifactPrefix, p.id)
	if err := p.o.Store.Put(ctx, key, f, archive.Size); err != nil {
		return p.err(KindUpload, err)
	}
	p.log.Info("source uploaded", zap.String("artifact_key", key), zap.Int64("bytes", archive.Size))

	return p.record(ctx, func(d *models.Deployment) error {
		d.ArtifactKey = utils.Ptr(key)
		return nil
	})
}

func (p *pipeline) build(ctx context.Context) *Error {
	s := p.o.settings
	bucket := p.o.Store.Bucket()
	buildID, err := p.o.Builder.Start(ctx, build.StartRequest{
		ProjectName:    s.BuildProject,
		SourceBucket:   bucket,
		SourceKey:      storage.SourceKey(s.ArtifactPrefix, p.id),
		ArtifactBucket: bucket,
		ArtifactPath:   storage.BuildPath(s.ArtifactPrefix, p.id),
		ArtifactName:   storage.BuildObjectName(),
		Variables:      map[string]string{"DEPLOYMENT_ID": p.id},
	})
	if err != nil {
		return p.err(KindBuild, err)
	}
	if err := p.record(ctx, func(d *models.Deployment) error {
		d.BuildID = utils.Ptr(buildID)
		return nil
	}); err != nil {
		return err
	}
	p.log.Info("build started", zap.String("build_id", buildID))

	if _, err := p.o.Builder.PollUntilTerminal(ctx, buildID, s.BuildPollInterval, s.BuildTimeout); err != nil {
		return p.err(KindBuild, err)
	}
	p.log.Info("build succeeded", zap.String("build_id", buildID))
	return nil
}

func (p *pipeline) deploy(ctx context.Context) *Error {
	resp, err := p.o.Invoker.Invoke(ctx, invoke.Request{
		DeploymentID:   p.id,
		ArtifactBucket: p.o.Store.Bucket(),
		ArtifactKey:    storage.BuildKey(p.o.settings.ArtifactPrefix, p.id),
		TagKey:         p.o.settings.InstanceTagKey,
	})
	if err != nil {
		return p.err(KindDeploy, err)
	}
	p.log.Info("deploy function finished", zap.Int("status_code", resp.StatusCode), zap.String("message", resp.Message))
	return nil
}

func (p *pipeline) transition(ctx context.Context, status models.DeploymentStatus, edits ...registry.Mutator) *Error {
	d, err := p.o.Registry.Transition(ctx, p.id, status, edits...)
	if err != nil {
		return p.err(KindAborted, err)
	}
	p.current = d
	p.o.announce(ctx, d)
	return nil
}

// record applies field edits without a status change.
func (p *pipeline) record(ctx context.Context, edit registry.Mutator) *Error {
	d, err := p.o.Registry.Update(ctx, p.id, edit)
	if err != nil {
		return p.err(KindAborted, err)
	}
	p.current = d
	return nil
}

func (p *pipeline) err(kind Kind, err error) *Error {
	if errors.Is(err, registry.ErrNotFound) {
		kind = KindAborted
	}
	return &Error{Kind: kind, DeploymentID: p.id, Err: err}
}

// fail moves the record to the failure status matching the error and returns it.
func (p *pipeline) fail(ctx context.Context, failure *Error) (*models.Deployment, error) {
	if failure.Kind == KindAborted {
		return p.abort(ctx, failure)
	}

	// Bookkeeping must land even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	status := failureStatus(failure.Kind)
	message := failure.Err.Error()

	p.log.Error("deployment failed",
		zap.String("kind", string(failure.Kind)),
		zap.String("status", string(status)),
		zap.Error(failure.Err))

	d, err := p.o.Registry.Transition(ctx, p.id, status, func(d *models.Deployment) error {
		d.Error = utils.Ptr(message)
		return nil
	})
	if errors.Is(err, registry.ErrNotFound) {
		return p.abort(ctx, &Error{Kind: KindAborted, DeploymentID: p.id, Err: err})
	}
	if err != nil {
		p.log.Warn("failed to record failure", zap.Error(err))
	} else {
		p.current = d
		p.o.announce(ctx, d)
	}

	if p.o.settings.TerminateOnFailure && p.instanceID != "" {
		p.terminate(ctx, p.instanceID, "instance terminated after failure")
	}

	out := p.current
	return &out, failure
}

func (p *pipeline) terminate(ctx context.Context, instanceID, msg string) {
	ctx = context.WithoutCancel(ctx)
	if err := p.o.Compute.Terminate(ctx, instanceID); err != nil {
		p.log.Warn("failed to terminate instance", zap.String("instance_id", instanceID), zap.Error(err))
		return
	}
	p.log.Info(msg, zap.String("instance_id", instanceID))
}

// abort ends a pipeline whose record is gone. A concurrent delete may have read
// the record before the instance id landed, so the instance is terminated here
// as well; termination is idempotent.
func (p *pipeline) abort(ctx context.Context, failure *Error) (*models.Deployment, error) {
	p.log.Warn("deployment aborted", zap.Error(failure.Err))
	if p.instanceID != "" {
		p.terminate(ctx, p.instanceID, "instance terminated after abort")
	}
	return nil, failure
}

func failureStatus(kind Kind) models.DeploymentStatus {
	switch kind {
	case KindBuild:
		return models.DeploymentStatusBuildFailed
	case KindDeploy:
		return models.DeploymentStatusDeployFailed
	default:
		return models.DeploymentStatusFailed
	}
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
