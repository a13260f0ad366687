// Package registry keeps deployment records and serializes their mutation.
package registry

import (
	"context"
	"errors"

	"github.com/deployra/launcher/internal/models"
)

var (
	ErrNotFound      = errors.New("deployment not found")
	ErrAlreadyExists = errors.New("deployment already exists")
)

// Mutator edits a record in place. Returning an error discards the edit.
type Mutator func(d *models.Deployment) error

// Store is the record backend. Implementations must make Update atomic per id
// and return copies from Get and List.
type Store interface {
	Create(ctx context.Context, d models.Deployment) error
	Get(ctx context.Context, id string) (models.Deployment, error)
	List(ctx context.Context) ([]models.Deployment, error)
	Update(ctx context.Context, id string, mutate Mutator) (models.Deployment, error)
	Remove(ctx context.Context, id string) error
}
