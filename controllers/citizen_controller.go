// controllers/citizen_controller.go
package controllers

import (
	"rescuelink/models"
	"rescuelink/utils"
	"rescuelink/views"

	"github.com/gin-gonic/gin"
)

type CitizenController struct {
	registry  *ViewRegistry
	validator *utils.ValidationService
}

func NewCitizenController(registry *ViewRegistry, validator *utils.ValidationService) *CitizenController {
	return &CitizenController{
		registry:  registry,
		validator: validator,
	}
}

// UpdateDraftRequest patches the report being composed. Absent fields are
// left unchanged.
type UpdateDraftRequest struct {
	Description  *string          `json:"description"`
	UrgencyLevel *int             `json:"urgencyLevel"`
	Location     *models.Location `json:"location"`
}

type draftPayload struct {
	Draft     views.Draft `json:"draft"`
	CanSubmit bool        `json:"canSubmit"`
}

func (cc *CitizenController) view(c *gin.Context) (*views.CitizenView, *views.NotificationLog, error) {
	return acquire(cc.registry, c, models.RoleCitizen, views.NewCitizenView)
}

func (cc *CitizenController) draft(v *views.CitizenView) draftPayload {
	return draftPayload{Draft: v.Draft(), CanSubmit: v.CanSubmit()}
}

// GetReports returns the citizen's own reports, newest first
// @Router /citizen/reports [get]
func (cc *CitizenController) GetReports(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
		return
	}
	respond(c, cc.registry, models.RoleCitizen, log, "Reports retrieved", v.Reports(), nil)
}

// @Router /citizen/refresh [post]
func (cc *CitizenController) Refresh(c *gin.Context) {
	v, log, err := cc.view(c)
	if err == nil {
		err = v.Refresh(c.Request.Context())
	}
	var reports []models.EmergencyReport
	if v != nil {
		reports = v.Reports()
	}
	respond(c, cc.registry, models.RoleCitizen, log, "Reports refreshed", reports, err)
}

// @Router /citizen/draft [get]
func (cc *CitizenController) GetDraft(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
		return
	}
	respond(c, cc.registry, models.RoleCitizen, log, "Draft retrieved", cc.draft(v), nil)
}

// UpdateDraft edits the draft report
// @Router /citizen/draft [patch]
func (cc *CitizenController) UpdateDraft(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
		return
	}

	var req UpdateDraftRequest
	if err := bindJSON(c, nil, &req); err != nil {
		respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
		return
	}
	if req.Description != nil {
		v.SetDescription(*req.Description)
	}
	if req.UrgencyLevel != nil {
		if err := v.SetUrgency(*req.UrgencyLevel); err != nil {
			respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
			return
		}
	}
	if req.Location != nil {
		v.SetLocation(*req.Location)
	}
	respond(c, cc.registry, models.RoleCitizen, log, "Draft updated", cc.draft(v), nil)
}

// Locate fills the draft location from the current position
// @Router /citizen/locate [post]
func (cc *CitizenController) Locate(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
		return
	}
	_, err = v.Locate(c.Request.Context())
	respond(c, cc.registry, models.RoleCitizen, log, "Location detected", cc.draft(v), err)
}

// Submit sends the draft as a new emergency report
// @Router /citizen/reports [post]
func (cc *CitizenController) Submit(c *gin.Context) {
	v, log, err := cc.view(c)
	if err != nil {
		respond(c, cc.registry, models.RoleCitizen, log, "", nil, err)
		return
	}
	report, err := v.Submit(c.Request.Context())
	respond(c, cc.registry, models.RoleCitizen, log, "Emergency reported", report, err)
}
