package views

import (
	"context"
	"strings"
	"unicode/utf8"

	"rescuelink/models"
	"rescuelink/services"
	"rescuelink/utils"
)

// DefaultUrgencyLevel is the urgency of a fresh draft (HIGH).
const DefaultUrgencyLevel = 3

// Draft is the report being composed on the citizen portal.
type Draft struct {
	Description  string           `json:"description"`
	UrgencyLevel int              `json:"urgencyLevel"`
	Location     *models.Location `json:"location,omitempty"`
}

// CitizenView lets a citizen report emergencies and follow their own reports.
type CitizenView struct {
	*base
	reports []models.EmergencyReport
	draft   Draft
}

func NewCitizenView(deps Deps) *CitizenView {
	return &CitizenView{
		base:  newBase(deps, models.RoleCitizen),
		draft: Draft{UrgencyLevel: DefaultUrgencyLevel},
	}
}

// Mount guards the portal and loads the citizen's reports.
func (v *CitizenView) Mount(ctx context.Context, token string) (services.GuardDecision, error) {
	decision := v.guard(ctx, token)
	if decision.Outcome != services.GuardAllow {
		return decision, decision.Err
	}
	return decision, v.Refresh(ctx)
}

func (v *CitizenView) Refresh(ctx context.Context) error {
	svc, err := v.services()
	if err != nil {
		return err
	}
	defer v.begin("reports")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	reports, err := svc.Emergencies.ListReports(opCtx)
	if err != nil {
		return v.fail("Failed to load your reports", err)
	}
	return v.commit(func() { v.reports = reports })
}

func (v *CitizenView) Reports() []models.EmergencyReport {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.EmergencyReport(nil), v.reports...)
}

func (v *CitizenView) Draft() Draft {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d := v.draft
	if d.Location != nil {
		loc := *d.Location
		d.Location = &loc
	}
	return d
}

func (v *CitizenView) SetDescription(description string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft.Description = description
}

func (v *CitizenView) SetUrgency(level int) error {
	if level < models.MinUrgencyLevel || level > models.MaxUrgencyLevel {
		return utils.NewValidationError("Urgency level must be between 1 and 4")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft.UrgencyLevel = level
	return nil
}

// SetLocation fills the draft location directly, for clients that already
// know their position.
func (v *CitizenView) SetLocation(loc models.Location) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft.Location = &loc
}

// Locate runs the geolocation sub-flow and stores the result in the draft.
func (v *CitizenView) Locate(ctx context.Context) (*models.Location, error) {
	if _, err := v.services(); err != nil {
		return nil, err
	}
	locator := v.deps.Services.Location
	if locator == nil {
		return nil, v.fail("Location error", utils.NewGeolocationError("Geolocation is not supported", services.ErrPositionUnavailable))
	}

	defer v.begin("locate")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	loc, err := locator.Locate(opCtx)
	if err != nil {
		return nil, v.fail("Location error", err)
	}
	if err := v.commit(func() { v.draft.Location = loc }); err != nil {
		return nil, err
	}
	v.notify("Location detected", loc.Address)
	return loc, nil
}

// CanSubmit is true once the draft has coordinates and a description the
// report request accepts.
func (v *CitizenView) CanSubmit() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	description := strings.TrimSpace(v.draft.Description)
	return v.draft.Location != nil &&
		v.draft.Location.HasCoordinates() &&
		description != "" &&
		utf8.RuneCountInString(description) <= models.MaxDescriptionLength
}

// Submit sends the draft. On success the confirmed report is prepended to
// the list and the draft is reset; on failure the draft is kept.
func (v *CitizenView) Submit(ctx context.Context) (*models.EmergencyReport, error) {
	svc, err := v.services()
	if err != nil {
		return nil, err
	}
	if !v.CanSubmit() {
		return nil, v.fail("Missing information", utils.NewValidationError("Please provide a description and your location"))
	}

	draft := v.Draft()
	req := models.CreateEmergencyReportRequest{
		Description: strings.TrimSpace(draft.Description),
		Location: models.ReportLocation{
			Latitude:  draft.Location.Latitude,
			Longitude: draft.Location.Longitude,
			Address:   draft.Location.Address,
		},
		UrgencyLevel: draft.UrgencyLevel,
		CitizenID:    svc.Session.UserID(),
		Status:       models.EmergencyStatusReceived,
	}

	defer v.begin("submit")()
	opCtx, cancel := v.opContext(ctx)
	defer cancel()

	report, err := svc.Emergencies.SubmitReport(opCtx, req)
	if err != nil {
		return nil, v.fail("Failed to submit report", err)
	}

	if report.Status == "" {
		report.Status = models.EmergencyStatusReceived
	}
	if report.ReportedAt.IsZero() {
		report.ReportedAt = v.deps.Now()
	}
	if report.Description == "" {
		report.Description = req.Description
	}
	if report.UrgencyLevel == 0 {
		report.UrgencyLevel = req.UrgencyLevel
	}
	if !report.Location.HasCoordinates() {
		address := report.Location.Address
		if address == "" {
			address = req.Location.Address
		}
		report.Location = models.Location{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Address:   address,
		}
	}

	err = v.commit(func() {
		v.reports = append([]models.EmergencyReport{*report}, v.reports...)
		v.draft = Draft{UrgencyLevel: DefaultUrgencyLevel}
	})
	if err != nil {
		return nil, err
	}
	v.notify("Emergency reported", "Your report was received. Help is on the way.")
	return report, nil
}
