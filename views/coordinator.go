package views

import (
	"context"
	"fmt"
	"strings"

	"rescuelink/models"
	"rescuelink/services"
	"rescuelink/utils"

	"golang.org/x/sync/errgroup"
)

// EmergencyFilter narrows the coordinator's emergency list. Zero values match
// everything; Search is a case-insensitive match on description and address.
type EmergencyFilter struct {
	Status  models.EmergencyStatus
	Urgency models.UrgencyLabel
	Search  string
}

func (f EmergencyFilter) Match(r models.EmergencyReport) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Urgency != "" && r.UrgencyLabel() != f.Urgency {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(r.Description), q) ||
			strings.Contains(strings.ToLower(r.Location.Address), q)
	}
	return true
}

// CoordinatorView is the dispatch dashboard.
type CoordinatorView struct {
	*base
	emergencies   []models.EmergencyReport
	responders    []models.User
	missions      []models.Mission
	emergencyChat thread
	missionChat   thread
}

func NewCoordinatorView(deps Deps) *CoordinatorView {
	return &CoordinatorView{base: newBase(deps, models.RoleCoordinator)}
}

// Mount guards the portal and loads the dashboard.
func (v *CoordinatorView) Mount(ctx context.Context, token string) (services.GuardDecision, error) {
	decision := v.guard(ctx, token)
	if decision.Outcome != services.GuardAllow {
		return decision, decision.Err
	}
	return decision, v.Refresh(ctx)
}

type dashboard struct {
	emergencies []models.EmergencyReport
	responders  []models.User
	missions    []models.Mission
}

// load fetches the three lists in parallel; one failure fails the load.
func (v *CoordinatorView) load(ctx context.Context, svc *services.SessionServices) (dashboard, error) {
	var d dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.emergencies, err = svc.Emergencies.ListReports(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.responders, err = svc.Users.ListResponders(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.missions, err = svc.Missions.ListMissions(gctx)
		return err
	})
	return d, g.Wait()
}

func (v *CoordinatorView) apply(d dashboard) error {
	return v.commit(func() {
		v.emergencies = d.emergencies
		v.responders = d.responders
		v.missions = d.missions
	})
}

// Refresh replaces every list with the backend's current state.
func (v *CoordinatorView) Refresh(ctx context.Context) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	defer v.begin("dashboard")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	d, err := v.load(opCtx, svc)
	if err != nil {
		return v.fail("Failed to load dashboard", err)
	}
	return v.apply(d)
}

func (v *CoordinatorView) Emergencies() []models.EmergencyReport {
	return v.Filtered(EmergencyFilter{})
}

func (v *CoordinatorView) Filtered(f EmergencyFilter) []models.EmergencyReport {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.EmergencyReport, 0, len(v.emergencies))
	for _, r := range v.emergencies {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (v *CoordinatorView) Responders() []models.User {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.User(nil), v.responders...)
}

func (v *CoordinatorView) Missions() []models.Mission {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.Mission(nil), v.missions...)
}

func (v *CoordinatorView) Metrics() models.DashboardMetrics {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var m models.DashboardMetrics
	for _, r := range v.emergencies {
		switch r.Status {
		case models.EmergencyStatusDispatched:
			m.Active++
		case models.EmergencyStatusInProgress:
			m.Active++
			m.InProgress++
		case models.EmergencyStatusResolved:
			m.Resolved++
		}
	}
	m.AvailableTeams = len(services.AvailableResponders(v.responders))
	return m
}

func (v *CoordinatorView) emergency(id models.ID) (models.EmergencyReport, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, r := range v.emergencies {
		if r.ID == id {
			return r, true
		}
	}
	return models.EmergencyReport{}, false
}

func (v *CoordinatorView) patchEmergency(id models.ID, patch func(r *models.EmergencyReport)) error {
	return v.commit(func() {
		for i := range v.emergencies {
			if v.emergencies[i].ID == id {
				patch(&v.emergencies[i])
			}
		}
	})
}

// UpdateEmergencyStatus sets any status; coordinators are not held to the
// lifecycle order.
func (v *CoordinatorView) UpdateEmergencyStatus(ctx context.Context, id models.ID, status models.EmergencyStatus) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	defer v.begin("status")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	if err := svc.Status.UpdateEmergencyStatus(opCtx, id, status); err != nil {
		return v.fail("Failed to update status", err)
	}
	now := v.deps.Now()
	if err := v.patchEmergency(id, func(r *models.EmergencyReport) {
		services.ApplyEmergencyStatus(r, status, now)
	}); err != nil {
		return err
	}
	v.notify("Status updated", fmt.Sprintf("Emergency #%d is now %s", id, status))
	return nil
}

func (v *CoordinatorView) UpdateMissionStatus(ctx context.Context, id models.ID, status models.MissionStatus) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	defer v.begin("mission_status")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	if err := svc.Status.UpdateMissionStatus(opCtx, id, status); err != nil {
		return v.fail("Failed to update mission status", err)
	}
	now := v.deps.Now()
	err = v.commit(func() {
		for i := range v.missions {
			if v.missions[i].ID == id {
				services.ApplyMissionStatus(&v.missions[i], status, now)
			}
		}
	})
	if err != nil {
		return err
	}
	v.notify("Mission updated", fmt.Sprintf("Mission #%d is now %s", id, status))
	return nil
}

// UpdateUrgency sets the urgency from its label.
func (v *CoordinatorView) UpdateUrgency(ctx context.Context, id models.ID, label models.UrgencyLabel) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	level, ok := models.UrgencyLevelFor(label)
	if !ok {
		return v.fail("Failed to update urgency", utils.NewValidationError(fmt.Sprintf("Unknown urgency %q", label)))
	}

	defer v.begin("urgency")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	if err := svc.Emergencies.UpdateUrgency(opCtx, id, level); err != nil {
		return v.fail("Failed to update urgency", err)
	}
	if err := v.patchEmergency(id, func(r *models.EmergencyReport) { r.UrgencyLevel = level }); err != nil {
		return err
	}
	v.notify("Urgency updated", fmt.Sprintf("Emergency #%d is now %s", id, label))
	return nil
}

// Assign binds responders to an emergency. A RECEIVED emergency is shown as
// DISPATCHED afterwards without a status call; the next refetch is
// authoritative.
func (v *CoordinatorView) Assign(ctx context.Context, emergencyID models.ID, responderIDs ...models.ID) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	if len(responderIDs) == 0 {
		return v.fail("Failed to assign responders", utils.NewValidationError("Select at least one responder"))
	}

	defer v.begin("assign")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	if err := svc.Assignment.Assign(opCtx, emergencyID, responderIDs...); err != nil {
		return v.fail("Failed to assign responders", err)
	}
	if err := v.patchEmergency(emergencyID, func(r *models.EmergencyReport) {
		r.Status = services.DispatchedAfterAssignment(r.Status)
	}); err != nil {
		return err
	}
	v.notify("Responders assigned", fmt.Sprintf("%d responder(s) assigned to emergency #%d", len(responderIDs), emergencyID))
	return nil
}

// AssignAll assigns every AVAILABLE responder, one call each, then refetches
// once. Successful calls are kept when others fail. Exactly one notification
// summarises the outcome.
func (v *CoordinatorView) AssignAll(ctx context.Context, emergencyID models.ID) (services.AssignmentResult, error) {
	svc, err := v.services()
	if err != nil {
		return services.AssignmentResult{}, err
	}
	responders := v.Responders()
	if len(services.AvailableResponders(responders)) == 0 {
		return services.AssignmentResult{}, v.fail("Failed to assign responders", utils.NewValidationError("No available responders"))
	}

	defer v.begin("assign_all")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	result := svc.Assignment.AssignAll(opCtx, emergencyID, responders)

	d, loadErr := v.load(opCtx, svc)
	if loadErr == nil {
		if err := v.apply(d); err != nil {
			return result, err
		}
	}

	if err := result.Err(); err != nil {
		return result, v.fail("Some assignments failed", err)
	}
	if loadErr != nil {
		return result, v.fail("Failed to load dashboard", loadErr)
	}
	v.notify("Responders assigned", fmt.Sprintf("%d responder(s) assigned to emergency #%d", len(result.Assigned), emergencyID))
	return result, nil
}

// CreateMission spawns a mission for an emergency, coordinated by the caller.
func (v *CoordinatorView) CreateMission(ctx context.Context, emergencyID models.ID, responderIDs ...models.ID) (*models.Mission, error) {
	svc, err := v.services()
	if err != nil {
		return nil, err
	}
	defer v.begin("create_mission")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	mission, err := svc.Assignment.CreateMissionFromEmergency(opCtx, emergencyID, responderIDs, svc.Session.UserID())
	if err != nil {
		return nil, v.fail("Failed to create mission", err)
	}
	if mission.IncidentRef() == 0 {
		mission.IncidentID = emergencyID
	}
	if mission.Status == "" {
		mission.Status = models.MissionStatusAssigned
	}

	err = v.commit(func() {
		v.missions = append(v.missions, *mission)
		for i := range v.emergencies {
			if v.emergencies[i].ID == emergencyID {
				m := *mission
				v.emergencies[i].Mission = &m
			}
		}
	})
	if err != nil {
		return nil, err
	}
	v.notify("Mission created", fmt.Sprintf("Mission #%d created for emergency #%d", mission.ID, emergencyID))
	return mission, nil
}

// SelectEmergency opens the emergency chat.
func (v *CoordinatorView) SelectEmergency(ctx context.Context, id models.ID) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	if _, ok := v.emergency(id); !ok {
		return v.fail("Failed to load messages", utils.NewNotFoundError("Emergency"))
	}
	return v.selectThread(ctx, &v.emergencyChat, id, svc.Chat.EmergencyChannel(id))
}

func (v *CoordinatorView) EmergencyMessages() (models.ID, []models.Message) {
	return v.threadState(&v.emergencyChat)
}

func (v *CoordinatorView) SendEmergencyMessage(ctx context.Context, content string) (*models.Message, error) {
	svc, err := v.services()
	if err != nil {
		return nil, err
	}
	return v.sendThread(ctx, &v.emergencyChat, content, svc.Chat.EmergencyChannel)
}

// SelectMission opens the mission chat.
func (v *CoordinatorView) SelectMission(ctx context.Context, id models.ID) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	return v.selectThread(ctx, &v.missionChat, id, svc.Chat.MissionChannel(id))
}

func (v *CoordinatorView) MissionMessages() (models.ID, []models.Message) {
	return v.threadState(&v.missionChat)
}

func (v *CoordinatorView) SendMissionMessage(ctx context.Context, content string) (*models.Message, error) {
	svc, err := v.services()
	if err != nil {
		return nil, err
	}
	return v.sendThread(ctx, &v.missionChat, content, svc.Chat.MissionChannel)
}
