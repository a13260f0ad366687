package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/deployra/launcher/internal/events"
	"github.com/deployra/launcher/internal/models"
	"github.com/deployra/launcher/internal/registry"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lookupTimeout = 5 * time.Second

// JoinDeploymentPayload represents the payload for following a deployment
type JoinDeploymentPayload struct {
	DeploymentID string `json:"deploymentId"`
}

// Lookup returns the current record of a deployment.
type Lookup func(ctx context.Context, id string) (models.Deployment, error)

// UpgradeMiddleware checks if the request is a WebSocket upgrade request
func UpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves websocket clients following deployment status.
type Handler struct {
	hub    *Hub
	lookup Lookup
	log    *zap.Logger
}

func NewHandler(hub *Hub, lookup Lookup, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{hub: hub, lookup: lookup, log: log}
}

// Serve runs the read loop of one connection.
func (h *Handler) Serve(c *websocket.Conn) {
	client := NewClient(uuid.NewString(), c)

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if err := h.hub.SendToClient(client, "connected", map[string]string{
		"clientId": client.ID,
	}); err != nil {
		h.log.Warn("failed to send connected event", zap.Error(err))
	}

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		h.handleMessage(client, msgBytes)
	}
}

func (h *Handler) handleMessage(client *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Debug("invalid websocket message", zap.String("client_id", client.ID), zap.Error(err))
		return
	}

	switch msg.Event {
	case "join":
		var payload JoinDeploymentPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DeploymentID == "" {
			h.hub.SendToClient(client, "error", map[string]string{
				"message": "Missing deploymentId",
			})
			return
		}
		h.join(client, payload.DeploymentID)

	case "leave":
		var payload JoinDeploymentPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		h.hub.LeaveRoom(client, events.DeploymentRoom(payload.DeploymentID))

	default:
		h.log.Debug("unknown websocket event", zap.String("event", msg.Event))
	}
}

func (h *Handler) join(client *Client, deploymentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	d, err := h.lookup(ctx, deploymentID)
	if err != nil {
		message := "Failed to load deployment"
		if errors.Is(err, registry.ErrNotFound) {
			message = "Deployment not found"
		}
		h.hub.SendToClient(client, "error", map[string]string{"message": message})
		return
	}

	room := events.DeploymentRoom(deploymentID)
	h.hub.JoinRoom(client, room)
	h.log.Debug("client joined deployment",
		zap.String("client_id", client.ID),
		zap.String("deployment_id", deploymentID),
		zap.Int("subscribers", h.hub.RoomSize(room)))

	// Late joiners get the current state straight away.
	if err := h.hub.SendToClient(client, events.EventDeploymentStatus, events.NewStatusPayload(&d)); err != nil {
		h.log.Warn("failed to send status snapshot", zap.String("client_id", client.ID), zap.Error(err))
	}
}
