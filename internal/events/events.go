// Package events fans deployment status changes out to websocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deployra/launcher/internal/models"
	"github.com/deployra/launcher/internal/utils"
)

// ChannelWebSocket is the Redis channel every API instance listens on.
const ChannelWebSocket = "websocket"

const EventDeploymentStatus = "deployment_status"

// Message is the envelope published on ChannelWebSocket.
type Message struct {
	RoomID string `json:"roomId"`
	Data   Data   `json:"data"`
}

type Data struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// StatusPayload is what subscribers of a deployment room receive on every transition.
type StatusPayload struct {
	DeploymentID string    `json:"deploymentId"`
	Status       string    `json:"status"`
	ResultURL    string    `json:"resultUrl,omitempty"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Broadcaster delivers an event to the local members of a room.
type Broadcaster interface {
	BroadcastToRoom(roomID, event string, payload interface{})
}

type Publisher interface {
	Publish(ctx context.Context, roomID, event string, payload interface{}) error
}

// DeploymentRoom names the room that follows one deployment.
func DeploymentRoom(deploymentID string) string {
	return "deployment:" + deploymentID
}

func NewStatusPayload(d *models.Deployment) StatusPayload {
	return StatusPayload{
		DeploymentID: d.ID,
		Status:       string(d.Status),
		ResultURL:    utils.PtrValue(d.ResultURL, ""),
		Error:        utils.PtrValue(d.Error, ""),
		UpdatedAt:    d.UpdatedAt,
	}
}

// PublishStatus announces the current state of d to its room.
func PublishStatus(ctx context.Context, p Publisher, d *models.Deployment) error {
	if p == nil || d == nil {
		return nil
	}
	return p.Publish(ctx, DeploymentRoom(d.ID), EventDeploymentStatus, NewStatusPayload(d))
}

// Encode builds the wire form of a Message.
func Encode(roomID, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(Message{RoomID: roomID, Data: Data{Event: event, Payload: raw}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal websocket message: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse websocket message: %w", err)
	}
	if msg.RoomID == "" || msg.Data.Event == "" {
		return Message{}, fmt.Errorf("websocket message missing room or event")
	}
	return msg, nil
}

// LocalPublisher hands events straight to an in-process broadcaster. It is used
// when no Redis is configured.
type LocalPublisher struct {
	b Broadcaster
}

func NewLocalPublisher(b Broadcaster) *LocalPublisher {
	return &LocalPublisher{b: b}
}

func (p *LocalPublisher) Publish(_ context.Context, roomID, event string, payload interface{}) error {
	if p.b == nil {
		return nil
	}
	p.b.BroadcastToRoom(roomID, event, payload)
	return nil
}
