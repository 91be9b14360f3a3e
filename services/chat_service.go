package services

import (
	"context"
	"strings"
	"time"

	"rescuelink/models"
	"rescuelink/utils"
)

// ChatChannel is one append-only message list, scoped to an emergency or a
// mission. The two kinds are never merged.
type ChatChannel interface {
	Fetch(ctx context.Context) ([]models.Message, error)
	Send(ctx context.Context, content string) (*models.Message, error)
}

type ChatService struct {
	emergencies *EmergencyService
	missions    *MissionService
	sender      string
}

// NewChatService tags outgoing messages with the sender role.
func NewChatService(emergencies *EmergencyService, missions *MissionService, sender string) *ChatService {
	return &ChatService{emergencies: emergencies, missions: missions, sender: sender}
}

func (cs *ChatService) EmergencyChannel(id models.ID) ChatChannel {
	return emergencyChannel{service: cs, id: id}
}

func (cs *ChatService) MissionChannel(id models.ID) ChatChannel {
	return missionChannel{service: cs, id: id}
}

func (cs *ChatService) request(content string) (models.SendMessageRequest, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.SendMessageRequest{}, utils.NewValidationError("Message content is required")
	}
	return models.SendMessageRequest{Content: content, Sender: cs.sender}, nil
}

// completeMessage fills fields a terse backend acknowledgement left out.
func completeMessage(msg *models.Message, req models.SendMessageRequest) {
	if msg.Content == "" {
		msg.Content = req.Content
	}
	if msg.Sender == "" {
		msg.Sender = req.Sender
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
}

type emergencyChannel struct {
	service *ChatService
	id      models.ID
}

func (c emergencyChannel) Fetch(ctx context.Context) ([]models.Message, error) {
	return c.service.emergencies.ListMessages(ctx, c.id)
}

func (c emergencyChannel) Send(ctx context.Context, content string) (*models.Message, error) {
	req, err := c.service.request(content)
	if err != nil {
		return nil, err
	}
	msg, err := c.service.emergencies.SendMessage(ctx, c.id, req)
	if err != nil {
		return nil, err
	}
	completeMessage(msg, req)
	if msg.EmergencyID == 0 {
		msg.EmergencyID = c.id
	}
	return msg, nil
}

type missionChannel struct {
	service *ChatService
	id      models.ID
}

func (c missionChannel) Fetch(ctx context.Context) ([]models.Message, error) {
	return c.service.missions.ListMessages(ctx, c.id)
}

func (c missionChannel) Send(ctx context.Context, content string) (*models.Message, error) {
	req, err := c.service.request(content)
	if err != nil {
		return nil, err
	}
	msg, err := c.service.missions.SendMessage(ctx, c.id, req)
	if err != nil {
		return nil, err
	}
	completeMessage(msg, req)
	if msg.MissionID == 0 {
		msg.MissionID = c.id
	}
	return msg, nil
}
