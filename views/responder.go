package views

import (
	"context"
	"errors"
	"fmt"

	"rescuelink/models"
	"rescuelink/realtime"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/sirupsen/logrus"
)

// ResponderView shows a responder the missions they are on and lets them
// walk each one forward, one step at a time.
type ResponderView struct {
	*base
	missions []models.Mission
	chat     thread
	share    *services.LocationShare
}

func NewResponderView(deps Deps) *ResponderView {
	return &ResponderView{base: newBase(deps, models.RoleResponder)}
}

// Mount guards the portal, loads missions and starts the realtime feeds.
func (v *ResponderView) Mount(ctx context.Context, token string) (services.GuardDecision, error) {
	decision := v.guard(ctx, token)
	if decision.Outcome != services.GuardAllow {
		return decision, decision.Err
	}

	for _, feed := range v.deps.Feeds {
		feed := feed
		v.goBackground(func(ctx context.Context) {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.Debugf("Realtime feed stopped: %v", err)
			}
		})
	}

	return decision, v.Refresh(ctx)
}

// Refresh loads the responder's missions. Backends without
// /missions/assigned are served from /mission, filtered to the caller where
// the payload names the team.
func (v *ResponderView) Refresh(ctx context.Context) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	defer v.begin("missions")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	missions, err := svc.Missions.ListAssigned(opCtx)
	if utils.HasCode(err, utils.ErrCodeNotFound) {
		var all []models.Mission
		all, err = svc.Missions.ListMissions(opCtx)
		missions = ownMissions(all, svc.Session.UserID())
	}
	if err != nil {
		return v.fail("Failed to load missions", err)
	}
	return v.commit(func() { v.missions = missions })
}

// ownMissions drops missions whose team is known and excludes userID.
// Missions without a responder relation in the payload are kept.
func ownMissions(all []models.Mission, userID models.ID) []models.Mission {
	own := make([]models.Mission, 0, len(all))
	for _, m := range all {
		if len(m.AssignedResponders) == 0 || m.HasResponder(userID) {
			own = append(own, m)
		}
	}
	return own
}

func (v *ResponderView) Missions() []models.Mission {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.Mission(nil), v.missions...)
}

func (v *ResponderView) mission(id models.ID) (models.Mission, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, m := range v.missions {
		if m.ID == id {
			return m, true
		}
	}
	return models.Mission{}, false
}

// ControlEnabled reports whether the control for target is active on the
// given mission: only the immediate successor of its current status is.
func (v *ResponderView) ControlEnabled(missionID models.ID, target models.MissionStatus) bool {
	m, ok := v.mission(missionID)
	return ok && services.CanAdvanceMission(m.Status, target)
}

// Advance moves a mission to target. Nothing is sent unless target is the
// immediate successor; local state changes only after the backend agreed.
func (v *ResponderView) Advance(ctx context.Context, missionID models.ID, target models.MissionStatus) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	m, ok := v.mission(missionID)
	if !ok {
		return v.fail("Failed to update mission status", utils.NewNotFoundError("Mission"))
	}

	defer v.begin("advance")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	if err := svc.Status.AdvanceMission(opCtx, missionID, m.Status, target); err != nil {
		return v.fail("Failed to update mission status", err)
	}

	now := v.deps.Now()
	err = v.commit(func() {
		for i := range v.missions {
			if v.missions[i].ID == missionID {
				services.ApplyMissionStatus(&v.missions[i], target, now)
			}
		}
	})
	if err != nil {
		return err
	}
	v.notify("Mission updated", fmt.Sprintf("Mission #%d is now %s", missionID, target))
	return nil
}

// Select opens the mission chat and loads its messages.
func (v *ResponderView) Select(ctx context.Context, missionID models.ID) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	return v.selectThread(ctx, &v.chat, missionID, svc.Chat.MissionChannel(missionID))
}

func (v *ResponderView) Selected() models.ID {
	id, _ := v.threadState(&v.chat)
	return id
}

func (v *ResponderView) Messages() []models.Message {
	_, messages := v.threadState(&v.chat)
	return messages
}

// SendMessage posts to the selected mission's chat.
func (v *ResponderView) SendMessage(ctx context.Context, content string) (*models.Message, error) {
	svc, err := v.services()
	if err != nil {
		return nil, err
	}
	return v.sendThread(ctx, &v.chat, content, svc.Chat.MissionChannel)
}

// ToggleLocationSharing starts or stops the location watch and returns
// whether sharing is now on.
func (v *ResponderView) ToggleLocationSharing(ctx context.Context) (bool, error) {
	if _, err := v.services(); err != nil {
		return false, err
	}

	v.mu.Lock()
	share := v.share
	v.share = nil
	v.mu.Unlock()
	if share != nil {
		share.Stop()
		v.notify("Location sharing stopped", "")
		return false, nil
	}

	locator := v.deps.Services.Location
	if locator == nil {
		return false, v.fail("Location error", utils.NewGeolocationError("Geolocation is not supported", services.ErrPositionUnavailable))
	}
	share, err := locator.Share(v.ctx, func(err error) {
		v.fail("Location error", err)
	})
	if err != nil {
		return false, v.fail("Location error", err)
	}
	if err := v.commit(func() { v.share = share }); err != nil {
		share.Stop()
		return false, err
	}
	v.notify("Location sharing started", "")
	return true, nil
}

func (v *ResponderView) LocationSharing() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.share != nil
}

// CurrentPosition is the latest shared fix, if sharing produced one.
func (v *ResponderView) CurrentPosition() (services.Position, bool) {
	v.mu.RLock()
	share := v.share
	v.mu.RUnlock()
	if share == nil {
		return services.Position{}, false
	}
	return share.Latest()
}

// DistanceToIncident is the distance in meters from the latest shared fix
// to the mission's incident.
func (v *ResponderView) DistanceToIncident(missionID models.ID) (float64, bool) {
	m, ok := v.mission(missionID)
	if !ok || m.Incident == nil || !m.Incident.Location.HasCoordinates() {
		return 0, false
	}
	pos, ok := v.CurrentPosition()
	if !ok {
		return 0, false
	}
	loc := m.Incident.Location
	return utils.CalculateDistance(pos.Latitude, pos.Longitude, loc.Latitude, loc.Longitude), true
}

// Updates returns what the realtime feeds have received so far.
func (v *ResponderView) Updates() []realtime.Update {
	if v.deps.Updates == nil {
		return nil
	}
	return v.deps.Updates.Snapshot()
}

// Close stops location sharing and the feeds, then unmounts.
func (v *ResponderView) Close() {
	v.mu.Lock()
	share := v.share
	v.share = nil
	v.mu.Unlock()
	if share != nil {
		share.Stop()
	}
	v.base.Close()
}
