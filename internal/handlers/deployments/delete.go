package deployments

import (
	"errors"

	"github.com/deployra/launcher/internal/registry"
	"github.com/deployra/launcher/pkg/response"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Delete terminates the deployment's instance and removes the record
func (h *Handler) Delete(c *fiber.Ctx) error {
	id := c.Params("deploymentId")
	if id == "" {
		return response.BadRequest(c, "Deployment ID is required")
	}

	if err := h.svc.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return response.NotFound(c, "Deployment not found")
		}
		h.log.Error("failed to delete deployment", zap.String("deployment_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to delete deployment: "+err.Error())
	}
	return response.Success(c, response.Body{
		"message": "Deployment " + id + " deleted",
	})
}
