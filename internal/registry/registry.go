package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deployra/launcher/internal/config"
	"github.com/deployra/launcher/internal/models"
)

// Terminator destroys a compute instance. Terminating an already-gone instance must succeed.
type Terminator interface {
	Terminate(ctx context.Context, instanceID string) error
}

// Registry is the deployment bookkeeping used by the orchestrator and the HTTP layer.
type Registry struct {
	Store
	terminator Terminator
	policy     config.TerminationPolicy
	log        *zap.Logger
}

func New(store Store, terminator Terminator, policy config.TerminationPolicy, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if policy == "" {
		policy = config.TerminationStrict
	}
	return &Registry{
		Store:      store,
		terminator: terminator,
		policy:     policy,
		log:        log.Named("registry"),
	}
}

// Transition moves a record to status, applying extra edits in the same atomic update.
func (r *Registry) Transition(ctx context.Context, id string, status models.DeploymentStatus, edits ...Mutator) (models.Deployment, error) {
	return r.Update(ctx, id, func(d *models.Deployment) error {
		if !models.CanTransition(d.Status, status) {
			return fmt.Errorf("illegal status transition %s -> %s for %s", d.Status, status, id)
		}
		for _, edit := range edits {
			if err := edit(d); err != nil {
				return err
			}
		}
		d.Status = status
		return nil
	})
}

// Delete terminates the record's compute instance, if any, then removes the record.
// Under the strict policy a termination failure aborts the delete and keeps the record.
func (r *Registry) Delete(ctx context.Context, id string) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if d.ComputeInstanceID != nil && *d.ComputeInstanceID != "" && r.terminator != nil {
		instanceID := *d.ComputeInstanceID
		if err := r.terminator.Terminate(ctx, instanceID); err != nil {
			if r.policy == config.TerminationStrict {
				return fmt.Errorf("failed to terminate instance %s: %w", instanceID, err)
			}
			r.log.Warn("instance termination failed, removing record anyway",
				zap.String("deployment_id", id),
				zap.String("instance_id", instanceID),
				zap.Error(err))
		} else {
			r.log.Info("instance terminated", zap.String("deployment_id", id), zap.String("instance_id", instanceID))
		}
	}

	return r.Remove(ctx, id)
}
