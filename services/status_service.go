package services

import (
	"context"
	"time"

	"rescuelink/models"
	"rescuelink/utils"
)

// StatusService is the status transition controller for emergencies and
// missions. The backend is the source of truth: callers patch local state
// only after an update call returned successfully.
//
// Coordinators get the full menu of targets with no adjacency check.
// Responders may only move their mission to the immediate successor.
type StatusService struct {
	emergencies *EmergencyService
	missions    *MissionService
}

func NewStatusService(emergencies *EmergencyService, missions *MissionService) *StatusService {
	return &StatusService{emergencies: emergencies, missions: missions}
}

// EmergencyTransitions is the coordinator menu for emergencies.
func EmergencyTransitions() []models.EmergencyStatus {
	return append([]models.EmergencyStatus(nil), models.EmergencyStatuses...)
}

// MissionTransitions is the coordinator menu for missions.
func MissionTransitions() []models.MissionStatus {
	return append([]models.MissionStatus(nil), models.MissionStatuses...)
}

// NextMissionStatus returns the successor of current; ok is false for
// COMPLETED and unknown statuses.
func NextMissionStatus(current models.MissionStatus) (models.MissionStatus, bool) {
	for i, status := range models.MissionStatuses {
		if status == current && i+1 < len(models.MissionStatuses) {
			return models.MissionStatuses[i+1], true
		}
	}
	return "", false
}

// CanAdvanceMission is the enablement rule for responder controls: a target
// is reachable only from its immediate predecessor.
func CanAdvanceMission(current, target models.MissionStatus) bool {
	next, ok := NextMissionStatus(current)
	return ok && next == target
}

func ValidateResponderTransition(current, target models.MissionStatus) error {
	if !CanAdvanceMission(current, target) {
		return utils.NewInvalidTransitionError(string(current), string(target))
	}
	return nil
}

func (ss *StatusService) UpdateEmergencyStatus(ctx context.Context, id models.ID, status models.EmergencyStatus) error {
	return ss.emergencies.UpdateStatus(ctx, id, status)
}

// UpdateMissionStatus sends a coordinator transition without adjacency checks.
func (ss *StatusService) UpdateMissionStatus(ctx context.Context, id models.ID, status models.MissionStatus) error {
	return ss.missions.UpdateMissionStatus(ctx, id, status)
}

// AdvanceMission sends a responder transition. Nothing is sent when the
// target is not the immediate successor of current.
func (ss *StatusService) AdvanceMission(ctx context.Context, id models.ID, current, target models.MissionStatus) error {
	if err := ValidateResponderTransition(current, target); err != nil {
		return err
	}
	return ss.missions.UpdateMissionStatus(ctx, id, target)
}

// ApplyEmergencyStatus patches a local copy after a confirmed update.
// ResolvedAt is set once, on the first move to RESOLVED.
func ApplyEmergencyStatus(report *models.EmergencyReport, status models.EmergencyStatus, now time.Time) {
	report.Status = status
	if status == models.EmergencyStatusResolved && report.ResolvedAt == nil {
		t := now
		report.ResolvedAt = &t
	}
}

// ApplyMissionStatus patches a local copy after a confirmed update.
func ApplyMissionStatus(mission *models.Mission, status models.MissionStatus, now time.Time) {
	mission.Status = status
	if status == models.MissionStatusCompleted && mission.EndTime == nil {
		t := now
		mission.EndTime = &t
	}
}
