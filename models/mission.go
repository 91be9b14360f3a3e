package models

import "time"

type Mission struct {
	ID                 ID               `json:"id"`
	Incident           *EmergencyReport `json:"incident,omitempty"`
	IncidentID         ID               `json:"incidentId,omitempty"`
	AssignedResponders []User           `json:"assignedResponders,omitempty"`
	Coordinator        *User            `json:"coordinator,omitempty"`
	Status             MissionStatus    `json:"status"`
	StartTime          time.Time        `json:"startTime"`
	EndTime            *time.Time       `json:"endTime,omitempty"`
	Logs               []MissionLog     `json:"logs,omitempty"`
}

// IncidentRef resolves the linked emergency id from either representation.
func (m Mission) IncidentRef() ID {
	if m.Incident != nil && m.Incident.ID != 0 {
		return m.Incident.ID
	}
	return m.IncidentID
}

// HasResponder reports whether the given user is on the mission team.
func (m Mission) HasResponder(userID ID) bool {
	for _, r := range m.AssignedResponders {
		if r.ID == userID {
			return true
		}
	}
	return false
}

// MissionLog is one entry of the status-change audit trail.
type MissionLog struct {
	ID             ID        `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	Message        string    `json:"message"`
	StatusChangeTo string    `json:"statusChangeTo,omitempty"`
	User           *User     `json:"user,omitempty"`
}

type MissionStatus string

const (
	MissionStatusAssigned  MissionStatus = "ASSIGNED"
	MissionStatusEnRoute   MissionStatus = "EN_ROUTE"
	MissionStatusOnSite    MissionStatus = "ON_SITE"
	MissionStatusCompleted MissionStatus = "COMPLETED"
)

// MissionStatuses lists the lifecycle in order.
var MissionStatuses = []MissionStatus{
	MissionStatusAssigned,
	MissionStatusEnRoute,
	MissionStatusOnSite,
	MissionStatusCompleted,
}

func (s MissionStatus) Valid() bool {
	for _, status := range MissionStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type CreateMissionRequest struct {
	IncidentID    ID   `json:"incidentId" validate:"required"`
	ResponderIDs  []ID `json:"responderIds"`
	CoordinatorID ID   `json:"coordinatorId" validate:"required"`
}

type UpdateMissionStatusRequest struct {
	Status MissionStatus `json:"status" validate:"required,mission_status"`
}
