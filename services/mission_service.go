package services

import (
	"context"
	"fmt"

	"rescuelink/models"
	"rescuelink/utils"
)

// MissionService is the entity client for missions.
type MissionService struct {
	backend   *BackendClient
	validator *utils.ValidationService
}

func NewMissionService(backend *BackendClient, validator *utils.ValidationService) *MissionService {
	return &MissionService{backend: backend, validator: validator}
}

// CreateMission binds one emergency to a new mission; the backend starts it at ASSIGNED.
func (ms *MissionService) CreateMission(ctx context.Context, req models.CreateMissionRequest) (*models.Mission, error) {
	if err := ms.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.ResponderIDs == nil {
		req.ResponderIDs = []models.ID{}
	}

	var mission models.Mission
	if err := ms.backend.Post(ctx, "/mission", req, &mission); err != nil {
		return nil, err
	}
	return &mission, nil
}

func (ms *MissionService) ListMissions(ctx context.Context) ([]models.Mission, error) {
	var missions []models.Mission
	if err := ms.backend.Get(ctx, "/mission", &missions); err != nil {
		return nil, err
	}
	return missions, nil
}

// ListAssigned returns the missions of the calling responder.
func (ms *MissionService) ListAssigned(ctx context.Context) ([]models.Mission, error) {
	var missions []models.Mission
	if err := ms.backend.Get(ctx, "/missions/assigned", &missions); err != nil {
		return nil, err
	}
	return missions, nil
}

func (ms *MissionService) GetMission(ctx context.Context, id models.ID) (*models.Mission, error) {
	var mission models.Mission
	if err := ms.backend.Get(ctx, fmt.Sprintf("/mission/%d", id), &mission); err != nil {
		return nil, err
	}
	return &mission, nil
}

func (ms *MissionService) UpdateMissionStatus(ctx context.Context, id models.ID, status models.MissionStatus) error {
	req := models.UpdateMissionStatusRequest{Status: status}
	if err := ms.validator.Validate(req); err != nil {
		return err
	}
	return ms.backend.Patch(ctx, fmt.Sprintf("/mission/%d/status", id), req, nil)
}

func (ms *MissionService) ListMessages(ctx context.Context, id models.ID) ([]models.Message, error) {
	var messages []models.Message
	if err := ms.backend.Get(ctx, fmt.Sprintf("/mission/%d/messages", id), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (ms *MissionService) SendMessage(ctx context.Context, id models.ID, req models.SendMessageRequest) (*models.Message, error) {
	var message models.Message
	if err := ms.backend.Post(ctx, fmt.Sprintf("/mission/%d/messages", id), req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}
