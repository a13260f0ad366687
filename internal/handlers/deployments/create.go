package deployments

import (
	"errors"

	"github.com/deployra/launcher/internal/orchestrator"
	"github.com/deployra/launcher/internal/utils"
	"github.com/deployra/launcher/pkg/response"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CreateRequest struct {
	GitHubURL string `json:"github_url"`
}

// Create runs a deployment to completion and reports where it is live
func (h *Handler) Create(c *fiber.Ctx) error {
	var req CreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	d, err := h.svc.Deploy(c.UserContext(), req.GitHubURL)
	if err != nil {
		var oe *orchestrator.Error
		if errors.As(err, &oe) && oe.Kind == orchestrator.KindValidation {
			return response.BadRequest(c, oe.Err.Error())
		}

		fields := response.Body{}
		if d != nil {
			fields["deployment_id"] = d.ID
			fields["status"] = d.Status
		} else if oe != nil && oe.DeploymentID != "" {
			fields["deployment_id"] = oe.DeploymentID
		}
		h.log.Error("deployment failed", zap.Error(err))
		return response.Error(c, fiber.StatusInternalServerError, "Deployment failed: "+err.Error(), fields)
	}

	return response.Accepted(c, response.Body{
		"message":        "Deployment is live",
		"deployment_id":  d.ID,
		"subdomain":      d.Subdomain,
		"status":         d.Status,
		"url":            utils.PtrValue(d.ResultURL, ""),
		"instance_id":    utils.PtrValue(d.ComputeInstanceID, ""),
		"public_address": utils.PtrValue(d.PublicAddress, ""),
	})
}
