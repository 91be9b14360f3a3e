package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rescuelink/models"
	"rescuelink/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AssignmentService binds responders to emergencies, either directly or by
// spawning a mission. Coordinator only; the backend enforces that.
type AssignmentService struct {
	emergencies *EmergencyService
	missions    *MissionService
	concurrency int
}

func NewAssignmentService(emergencies *EmergencyService, missions *MissionService, concurrency int) *AssignmentService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AssignmentService{
		emergencies: emergencies,
		missions:    missions,
		concurrency: concurrency,
	}
}

// AssignmentResult reports a best-effort bulk assignment. Successful calls
// are never rolled back.
type AssignmentResult struct {
	Assigned []models.ID
	Failed   map[models.ID]error
}

// Err summarises failures as a PARTIAL_FAILURE error, nil when all succeeded.
func (r AssignmentResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for id, err := range r.Failed {
		errs = append(errs, fmt.Errorf("responder %d: %w", id, err))
	}
	return utils.NewPartialFailureError(
		fmt.Sprintf("%d of %d assignments failed", len(r.Failed), len(r.Failed)+len(r.Assigned)),
		errors.Join(errs...),
	)
}

// Assign issues one assignment call for the given responders.
func (as *AssignmentService) Assign(ctx context.Context, emergencyID models.ID, responderIDs ...models.ID) error {
	return as.emergencies.AssignResponders(ctx, emergencyID, responderIDs)
}

// AssignAll issues one call per AVAILABLE responder, with bounded
// parallelism. A failing call does not stop the others.
func (as *AssignmentService) AssignAll(ctx context.Context, emergencyID models.ID, responders []models.User) AssignmentResult {
	available := AvailableResponders(responders)
	result := AssignmentResult{Failed: make(map[models.ID]error)}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(as.concurrency)

	for _, responder := range available {
		responderID := responder.ID
		g.Go(func() error {
			err := as.emergencies.AssignResponders(ctx, emergencyID, []models.ID{responderID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[responderID] = err
				return nil
			}
			result.Assigned = append(result.Assigned, responderID)
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Failed) > 0 {
		logrus.WithFields(logrus.Fields{
			"emergency_id": emergencyID,
			"assigned":     len(result.Assigned),
			"failed":       len(result.Failed),
		}).Warn("Bulk assignment partially failed")
	}
	return result
}

// CreateMissionFromEmergency spawns a mission for the emergency.
func (as *AssignmentService) CreateMissionFromEmergency(ctx context.Context, emergencyID models.ID, responderIDs []models.ID, coordinatorID models.ID) (*models.Mission, error) {
	return as.missions.CreateMission(ctx, models.CreateMissionRequest{
		IncidentID:    emergencyID,
		ResponderIDs:  responderIDs,
		CoordinatorID: coordinatorID,
	})
}

// DispatchedAfterAssignment is the status an emergency displays after a
// confirmed assignment: RECEIVED moves to DISPATCHED, anything else is kept.
// No status call is made for it; the next refetch overwrites it.
func DispatchedAfterAssignment(status models.EmergencyStatus) models.EmergencyStatus {
	if status == models.EmergencyStatusReceived {
		return models.EmergencyStatusDispatched
	}
	return status
}
