package deployments

import (
	"errors"

	"github.com/deployra/launcher/internal/registry"
	"github.com/deployra/launcher/pkg/response"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// List returns every known deployment in creation order
func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.svc.List(c.UserContext())
	if err != nil {
		h.log.Error("failed to list deployments", zap.Error(err))
		return response.InternalServerError(c, "Failed to list deployments")
	}
	return response.Success(c, response.Body{
		"count":       len(list),
		"deployments": list,
	})
}

// Get returns a single deployment
func (h *Handler) Get(c *fiber.Ctx) error {
	id := c.Params("deploymentId")
	if id == "" {
		return response.BadRequest(c, "Deployment ID is required")
	}

	d, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return response.NotFound(c, "Deployment not found")
		}
		h.log.Error("failed to get deployment", zap.String("deployment_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to get deployment")
	}
	return response.Success(c, response.Body{"deployment": d})
}
