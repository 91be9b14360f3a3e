// controllers/responder_controller.go
package controllers

import (
	"rescuelink/models"
	"rescuelink/services"
	"rescuelink/utils"
	"rescuelink/views"

	"github.com/gin-gonic/gin"
)

type ResponderController struct {
	registry  *ViewRegistry
	validator *utils.ValidationService
}

func NewResponderController(registry *ViewRegistry, validator *utils.ValidationService) *ResponderController {
	return &ResponderController{
		registry:  registry,
		validator: validator,
	}
}

type AdvanceMissionRequest struct {
	Status models.MissionStatus `json:"status" validate:"required,mission_status"`
}

type missionControl struct {
	Status  models.MissionStatus `json:"status"`
	Enabled bool                 `json:"enabled"`
}

type responderMission struct {
	models.Mission
	Controls []missionControl `json:"controls"`
	// DistanceMeters is set while location sharing has a fix.
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

type locationPayload struct {
	Sharing  bool               `json:"sharing"`
	Position *services.Position `json:"position,omitempty"`
}

type threadPayload struct {
	MissionID models.ID        `json:"missionId"`
	Messages  []models.Message `json:"messages"`
}

func (rc *ResponderController) view(c *gin.Context) (*views.ResponderView, *views.NotificationLog, error) {
	return acquire(rc.registry, c, models.RoleResponder, views.NewResponderView)
}

func (rc *ResponderController) fail(c *gin.Context, log *views.NotificationLog, err error) {
	respond(c, rc.registry, models.RoleResponder, log, "", nil, err)
}

func (rc *ResponderController) missions(v *views.ResponderView) []responderMission {
	missions := v.Missions()
	out := make([]responderMission, 0, len(missions))
	for _, m := range missions {
		rm := responderMission{Mission: m}
		for _, status := range services.MissionTransitions() {
			rm.Controls = append(rm.Controls, missionControl{
				Status:  status,
				Enabled: v.ControlEnabled(m.ID, status),
			})
		}
		if d, ok := v.DistanceToIncident(m.ID); ok {
			rm.DistanceMeters = &d
		}
		out = append(out, rm)
	}
	return out
}

func (rc *ResponderController) location(v *views.ResponderView) locationPayload {
	payload := locationPayload{Sharing: v.LocationSharing()}
	if pos, ok := v.CurrentPosition(); ok {
		payload.Position = &pos
	}
	return payload
}

// GetMissions lists the missions assigned to the responder
// @Router /responder/missions [get]
func (rc *ResponderController) GetMissions(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	respond(c, rc.registry, models.RoleResponder, log, "Missions retrieved", rc.missions(v), nil)
}

// @Router /responder/refresh [post]
func (rc *ResponderController) Refresh(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	err = v.Refresh(c.Request.Context())
	respond(c, rc.registry, models.RoleResponder, log, "Missions refreshed", rc.missions(v), err)
}

// AdvanceMission moves a mission to the next step of its lifecycle
// @Router /responder/missions/{id}/status [post]
func (rc *ResponderController) AdvanceMission(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	var req AdvanceMissionRequest
	if err := bindJSON(c, rc.validator, &req); err != nil {
		rc.fail(c, log, err)
		return
	}

	err = v.Advance(c.Request.Context(), id, req.Status)
	respond(c, rc.registry, models.RoleResponder, log, "Mission status updated", rc.missions(v), err)
}

// GetMessages selects the mission thread and returns its messages
// @Router /responder/missions/{id}/messages [get]
func (rc *ResponderController) GetMessages(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	err = v.Select(c.Request.Context(), id)
	respond(c, rc.registry, models.RoleResponder, log, "Messages retrieved", threadPayload{MissionID: v.Selected(), Messages: v.Messages()}, err)
}

// SendMessage posts to the mission thread
// @Router /responder/missions/{id}/messages [post]
func (rc *ResponderController) SendMessage(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rc.fail(c, log, utils.NewBadRequestError("Invalid request body"))
		return
	}

	if v.Selected() != id {
		if err := v.Select(c.Request.Context(), id); err != nil {
			rc.fail(c, log, err)
			return
		}
	}
	_, err = v.SendMessage(c.Request.Context(), req.Content)
	respond(c, rc.registry, models.RoleResponder, log, "Message sent", threadPayload{MissionID: v.Selected(), Messages: v.Messages()}, err)
}

// @Router /responder/location [get]
func (rc *ResponderController) GetLocation(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	respond(c, rc.registry, models.RoleResponder, log, "Location status", rc.location(v), nil)
}

// ToggleLocation starts or stops location sharing
// @Router /responder/location/toggle [post]
func (rc *ResponderController) ToggleLocation(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	_, err = v.ToggleLocationSharing(c.Request.Context())
	respond(c, rc.registry, models.RoleResponder, log, "Location sharing updated", rc.location(v), err)
}

// GetUpdates returns the buffered realtime updates
// @Router /responder/updates [get]
func (rc *ResponderController) GetUpdates(c *gin.Context) {
	v, log, err := rc.view(c)
	if err != nil {
		rc.fail(c, log, err)
		return
	}
	respond(c, rc.registry, models.RoleResponder, log, "Updates retrieved", v.Updates(), nil)
}
