// controllers/coordinator_controller.go
package controllers

import (
	"strings"

	"rescuelink/models"
	"rescuelink/utils"
	"rescuelink/views"

	"github.com/gin-gonic/gin"
)

type CoordinatorController struct {
	registry  *ViewRegistry
	validator *utils.ValidationService
}

func NewCoordinatorController(registry *ViewRegistry, validator *utils.ValidationService) *CoordinatorController {
	return &CoordinatorController{
		registry:  registry,
		validator: validator,
	}
}

type UpdateUrgencyRequest struct {
	Urgency models.UrgencyLabel `json:"urgency" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
}

type ResponderIDsRequest struct {
	ResponderIDs []models.ID `json:"responderIds"`
}

type dashboardPayload struct {
	Emergencies []models.EmergencyReport `json:"emergencies"`
	Responders  []models.User            `json:"responders"`
	Missions    []models.Mission         `json:"missions"`
	Metrics     models.DashboardMetrics  `json:"metrics"`
}

type assignAllPayload struct {
	Assigned  []models.ID          `json:"assigned"`
	Failed    map[models.ID]string `json:"failed,omitempty"`
	Dashboard dashboardPayload     `json:"dashboard"`
}

type chatPayload struct {
	ThreadID models.ID        `json:"threadId"`
	Messages []models.Message `json:"messages"`
}

func (cc *CoordinatorController) view(c *gin.Context) (*views.CoordinatorView, *views.NotificationLog, error) {
	return acquire(cc.registry, c, models.RoleCoordinator, views.NewCoordinatorView)
}

func (cc *CoordinatorController) fail(c *gin.Context, log *views.NotificationLog, err error) {
	respond(c, cc.registry, models.RoleCoordinator, log, "", nil, err)
}

// filterFrom reads ?status=&urgency=&search= from the query string.
func filterFrom(c *gin.Context) views.EmergencyFilter {
	return views.EmergencyFilter{
		Status:  models.EmergencyStatus(strings.ToUpper(c.Query("status"))),
		Urgency: models.UrgencyLabel(strings.ToUpper(c.Query("urgency"))),
		Search:  c.Query("search"),
	}
}

func (cc *CoordinatorController) dashboard(c *gin.Context, v *views.CoordinatorView) dashboardPayload {
	return dashboardPayload{
		Emergencies: v.Filtered(filterFrom(c)),
		Responders:  v.Responders(),
		Missions:    v.Missions(),
		Metrics:     v.Metrics(),
	}
}

// withID resolves the view and the :id path parameter.
func (cc *CoordinatorController) withID(c *gin.Context) (*views.CoordinatorView, *views.NotificationLog, models.ID, bool) {
	v, log, err := cc.view(c)
	if err != nil {
		cc.fail(c, log, err)
		return nil, nil, 0, false
	}
	id, err := idParam(c, "id")
	if err != nil {
		cc.fail(c, log, err)
		return nil, nil, 0, false
	}
	return v, log, id, true
}

// GetDashboard returns the filtered emergencies, responders, missions and metrics
// @Router /coordinator/dashboard [get]
func (cc *CoordinatorController) GetDashboard(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		cc.fail(c, log, err)
		return
	}
	respond(c, cc.registry, models.RoleCoordinator, log, "Dashboard retrieved", cc.dashboard(c, v), nil)
}

// @Router /coordinator/refresh [post]
func (cc *CoordinatorController) Refresh(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		cc.fail(c, log, err)
		return
	}
	err = v.Refresh(c.Request.Context())
	respond(c, cc.registry, models.RoleCoordinator, log, "Dashboard refreshed", cc.dashboard(c, v), err)
}

// UpdateEmergencyStatus sets any emergency status
// @Router /coordinator/emergencies/{id}/status [patch]
func (cc *CoordinatorController) UpdateEmergencyStatus(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req models.UpdateEmergencyStatusRequest
	if err := bindJSON(c, cc.validator, &req); err != nil {
		cc.fail(c, log, err)
		return
	}
	err := v.UpdateEmergencyStatus(c.Request.Context(), id, req.Status)
	respond(c, cc.registry, models.RoleCoordinator, log, "Emergency status updated", cc.dashboard(c, v), err)
}

// UpdateUrgency re-rates an emergency
// @Router /coordinator/emergencies/{id}/urgency [patch]
func (cc *CoordinatorController) UpdateUrgency(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req UpdateUrgencyRequest
	if err := bindJSON(c, cc.validator, &req); err != nil {
		cc.fail(c, log, err)
		return
	}
	err := v.UpdateUrgency(c.Request.Context(), id, req.Urgency)
	respond(c, cc.registry, models.RoleCoordinator, log, "Urgency updated", cc.dashboard(c, v), err)
}

// Assign assigns the given responders to an emergency
// @Router /coordinator/emergencies/{id}/assign [post]
func (cc *CoordinatorController) Assign(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req models.AssignRespondersRequest
	if err := bindJSON(c, cc.validator, &req); err != nil {
		cc.fail(c, log, err)
		return
	}
	err := v.Assign(c.Request.Context(), id, req.ResponderIDs...)
	respond(c, cc.registry, models.RoleCoordinator, log, "Responders assigned", cc.dashboard(c, v), err)
}

// AssignAll assigns every available responder to an emergency
// @Router /coordinator/emergencies/{id}/assign-all [post]
func (cc *CoordinatorController) AssignAll(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	result, err := v.AssignAll(c.Request.Context(), id)

	payload := assignAllPayload{Assigned: result.Assigned, Dashboard: cc.dashboard(c, v)}
	if len(result.Failed) > 0 {
		payload.Failed = make(map[models.ID]string, len(result.Failed))
		for responderID, failure := range result.Failed {
			payload.Failed[responderID] = failure.Error()
		}
	}
	respond(c, cc.registry, models.RoleCoordinator, log, "Available responders assigned", payload, err)
}

// CreateMission opens a mission for an emergency
// @Router /coordinator/emergencies/{id}/mission [post]
func (cc *CoordinatorController) CreateMission(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req ResponderIDsRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, nil, &req); err != nil {
			cc.fail(c, log, err)
			return
		}
	}
	mission, err := v.CreateMission(c.Request.Context(), id, req.ResponderIDs...)
	respond(c, cc.registry, models.RoleCoordinator, log, "Mission created", mission, err)
}

// UpdateMissionStatus sets any mission status
// @Router /coordinator/missions/{id}/status [patch]
func (cc *CoordinatorController) UpdateMissionStatus(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req models.UpdateMissionStatusRequest
	if err := bindJSON(c, cc.validator, &req); err != nil {
		cc.fail(c, log, err)
		return
	}
	err := v.UpdateMissionStatus(c.Request.Context(), id, req.Status)
	respond(c, cc.registry, models.RoleCoordinator, log, "Mission status updated", cc.dashboard(c, v), err)
}

// @Router /coordinator/emergencies/{id}/messages [get]
func (cc *CoordinatorController) GetEmergencyMessages(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	err := v.SelectEmergency(c.Request.Context(), id)
	threadID, messages := v.EmergencyMessages()
	respond(c, cc.registry, models.RoleCoordinator, log, "Messages retrieved", chatPayload{ThreadID: threadID, Messages: messages}, err)
}

// @Router /coordinator/emergencies/{id}/messages [post]
func (cc *CoordinatorController) SendEmergencyMessage(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		cc.fail(c, log, utils.NewBadRequestError("Invalid request body"))
		return
	}
	if selected, _ := v.EmergencyMessages(); selected != id {
		if err := v.SelectEmergency(c.Request.Context(), id); err != nil {
			cc.fail(c, log, err)
			return
		}
	}
	_, err := v.SendEmergencyMessage(c.Request.Context(), req.Content)
	threadID, messages := v.EmergencyMessages()
	respond(c, cc.registry, models.RoleCoordinator, log, "Message sent", chatPayload{ThreadID: threadID, Messages: messages}, err)
}

// @Router /coordinator/missions/{id}/messages [get]
func (cc *CoordinatorController) GetMissionMessages(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	err := v.SelectMission(c.Request.Context(), id)
	threadID, messages := v.MissionMessages()
	respond(c, cc.registry, models.RoleCoordinator, log, "Messages retrieved", chatPayload{ThreadID: threadID, Messages: messages}, err)
}

// @Router /coordinator/missions/{id}/messages [post]
func (cc *CoordinatorController) SendMissionMessage(c *gin.Context) {
	v, log, id, ok := cc.withID(c)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		cc.fail(c, log, utils.NewBadRequestError("Invalid request body"))
		return
	}
	if selected, _ := v.MissionMessages(); selected != id {
		if err := v.SelectMission(c.Request.Context(), id); err != nil {
			cc.fail(c, log, err)
			return
		}
	}
	_, err := v.SendMissionMessage(c.Request.Context(), req.Content)
	threadID, messages := v.MissionMessages()
	respond(c, cc.registry, models.RoleCoordinator, log, "Message sent", chatPayload{ThreadID: threadID, Messages: messages}, err)
}
