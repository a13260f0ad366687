package deployments

import (
	"context"

	"github.com/deployra/launcher/internal/models"
	"go.uber.org/zap"
)

// Service is what the HTTP layer needs from the orchestrator.
type Service interface {
	Deploy(ctx context.Context, rawURL string) (*models.Deployment, error)
	Get(ctx context.Context, id string) (models.Deployment, error)
	List(ctx context.Context) ([]models.Deployment, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	svc Service
	log *zap.Logger
}

func New(svc Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log.Named("deployments")}
}
