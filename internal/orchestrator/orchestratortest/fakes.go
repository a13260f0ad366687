// Package orchestratortest provides in-memory collaborators for exercising the
// orchestrator without a cloud account.
package orchestratortest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/deployra/launcher/internal/config"
	"github.com/deployra/launcher/internal/orchestrator"
	"github.com/deployra/launcher/internal/packager"
	"github.com/deployra/launcher/internal/registry"
	"github.com/deployra/launcher/pkg/build"
	"github.com/deployra/launcher/pkg/compute"
	"github.com/deployra/launcher/pkg/invoke"
	"go.uber.org/zap"
)

// Cloner writes a small static site instead of cloning.
type Cloner struct {
	mu       sync.Mutex
	Err      error
	Branches []string
}

func (c *Cloner) Clone(_ context.Context, dir, _, branch string) error {
	c.mu.Lock()
	c.Branches = append(c.Branches, branch)
	c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hello</h1>"), 0o644)
}

type Compute struct {
	mu        sync.Mutex
	Delay     time.Duration
	CreateErr error
	Address   string
	// OnCreate runs after an instance is created, outside the lock.
	OnCreate   func(instanceID string)
	Created    []compute.CreateRequest
	Terminated []string
	next       int
}

func (c *Compute) Create(_ context.Context, req compute.CreateRequest) (compute.CreateResult, error) {
	c.mu.Lock()
	if c.CreateErr != nil {
		c.mu.Unlock()
		return compute.CreateResult{}, c.CreateErr
	}
	c.Created = append(c.Created, req)
	c.next++
	id := fmt.Sprintf("i-%04d", c.next)
	hook := c.OnCreate
	c.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return compute.CreateResult{InstanceID: id}, nil
}

func (c *Compute) AwaitRunning(ctx context.Context, _ string, _ time.Duration) error {
	return pause(ctx, c.Delay)
}

func (c *Compute) Describe(_ context.Context, id string) (compute.Instance, error) {
	addr := c.Address
	if addr == "" {
		addr = "203.0.113.10"
	}
	return compute.Instance{ID: id, State: "running", PublicAddress: addr}, nil
}

func (c *Compute) Terminate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Terminated = append(c.Terminated, id)
	return nil
}

func (c *Compute) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Created)
}

func (c *Compute) TerminatedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Terminated...)
}

type Store struct {
	mu      sync.Mutex
	PutErr  error
	Objects map[string][]byte
}

func (s *Store) Put(_ context.Context, key string, body io.ReadSeeker, _ int64) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Objects == nil {
		s.Objects = map[string][]byte{}
	}
	s.Objects[key] = data
	return nil
}

func (s *Store) Bucket() string { return "artifacts" }

func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Objects))
	for k := range s.Objects {
		keys = append(keys, k)
	}
	return keys
}

type Builder struct {
	mu      sync.Mutex
	Delay   time.Duration
	Status  string
	Message string
	Started []build.StartRequest
}

func (b *Builder) Start(_ context.Context, req build.StartRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Started = append(b.Started, req)
	return "launcher-build:" + req.Variables["DEPLOYMENT_ID"], nil
}

func (b *Builder) PollUntilTerminal(ctx context.Context, id string, _, _ time.Duration) (build.Outcome, error) {
	if err := pause(ctx, b.Delay); err != nil {
		return build.Outcome{}, err
	}
	status := b.Status
	if status == "" {
		status = "SUCCEEDED"
	}
	if status != "SUCCEEDED" {
		return build.Outcome{BuildID: id, Status: status}, &build.FailedError{BuildID: id, Status: status, Message: b.Message}
	}
	return build.Outcome{BuildID: id, Status: status}, nil
}

type Invoker struct {
	mu    sync.Mutex
	Err   error
	Calls []invoke.Request
}

func (i *Invoker) Invoke(_ context.Context, req invoke.Request) (invoke.Response, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Calls = append(i.Calls, req)
	if i.Err != nil {
		return invoke.Response{}, i.Err
	}
	return invoke.Response{StatusCode: 200, Message: "deployed"}, nil
}

func (i *Invoker) CallCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.Calls)
}

// Env is a fully wired orchestrator over fakes.
type Env struct {
	Orchestrator *orchestrator.Orchestrator
	Registry     *registry.Registry
	Cloner       *Cloner
	Compute      *Compute
	Store        *Store
	Builder      *Builder
	Invoker      *Invoker
	WorkDir      string
}

// NewEnv builds an Env; modify lets a test adjust settings before wiring.
func NewEnv(t testing.TB, modify func(*orchestrator.Settings)) *Env {
	t.Helper()
	env := &Env{
		Cloner:  &Cloner{},
		Compute: &Compute{},
		Store:   &Store{},
		Builder: &Builder{},
		Invoker: &Invoker{},
		WorkDir: t.TempDir(),
	}
	env.Registry = registry.New(registry.NewMemoryStore(), env.Compute, config.TerminationStrict, zap.NewNop())

	settings := orchestrator.Settings{
		LaunchTemplateID: "lt-test",
		ArtifactPrefix:   "deployments",
		BuildProject:     "launcher-build",
		InstanceTagKey:   "DeploymentId",
	}
	if modify != nil {
		modify(&settings)
	}

	env.Orchestrator = orchestrator.New(orchestrator.Dependencies{
		Registry: env.Registry,
		Packager: packager.New(env.Cloner, env.WorkDir, time.Minute, nil),
		Store:    env.Store,
		Compute:  env.Compute,
		Builder:  env.Builder,
		Invoker:  env.Invoker,
		Sleep:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}, settings)
	return env
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ErrBoom is a generic collaborator failure.
var ErrBoom = errors.New("boom")
