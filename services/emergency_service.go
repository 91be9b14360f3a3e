package services

import (
	"context"
	"fmt"
	"strings"

	"rescuelink/models"
	"rescuelink/utils"
)

// EmergencyService is the entity client for emergency reports.
type EmergencyService struct {
	backend   *BackendClient
	validator *utils.ValidationService
}

func NewEmergencyService(backend *BackendClient, validator *utils.ValidationService) *EmergencyService {
	return &EmergencyService{backend: backend, validator: validator}
}

// SubmitReport creates a report; the backend defaults its status to RECEIVED.
func (es *EmergencyService) SubmitReport(ctx context.Context, req models.CreateEmergencyReportRequest) (*models.EmergencyReport, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := es.validator.Validate(req); err != nil {
		return nil, err
	}

	var report models.EmergencyReport
	if err := es.backend.Post(ctx, "/emergency-report", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns what the backend lets the caller see.
func (es *EmergencyService) ListReports(ctx context.Context) ([]models.EmergencyReport, error) {
	var reports []models.EmergencyReport
	if err := es.backend.Get(ctx, "/emergency-report", &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateStatus is not checked against the lifecycle; coordinators may set any status.
func (es *EmergencyService) UpdateStatus(ctx context.Context, id models.ID, status models.EmergencyStatus) error {
	req := models.UpdateEmergencyStatusRequest{Status: status}
	if err := es.validator.Validate(req); err != nil {
		return err
	}
	return es.backend.Patch(ctx, fmt.Sprintf("/emergency/%d/status", id), req, nil)
}

func (es *EmergencyService) UpdateUrgency(ctx context.Context, id models.ID, level int) error {
	req := models.UpdateUrgencyRequest{UrgencyLevel: level}
	if err := es.validator.Validate(req); err != nil {
		return err
	}
	return es.backend.Patch(ctx, fmt.Sprintf("/emergency/%d/urgency", id), req, nil)
}

func (es *EmergencyService) AssignResponders(ctx context.Context, id models.ID, responderIDs []models.ID) error {
	req := models.AssignRespondersRequest{ResponderIDs: responderIDs}
	if err := es.validator.Validate(req); err != nil {
		return err
	}
	return es.backend.Post(ctx, fmt.Sprintf("/emergency/%d/assign", id), req, nil)
}

func (es *EmergencyService) SendMessage(ctx context.Context, id models.ID, req models.SendMessageRequest) (*models.Message, error) {
	var message models.Message
	if err := es.backend.Post(ctx, fmt.Sprintf("/emergency/%d/message", id), req, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (es *EmergencyService) ListMessages(ctx context.Context, id models.ID) ([]models.Message, error) {
	var messages []models.Message
	if err := es.backend.Get(ctx, fmt.Sprintf("/emergency/%d/message", id), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
