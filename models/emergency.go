package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Core EmergencyReport struct
type EmergencyReport struct {
	ID                 ID              `json:"id"`
	Description        string          `json:"description"`
	Location           Location        `json:"location"`
	UrgencyLevel       int             `json:"urgencyLevel"`
	Status             EmergencyStatus `json:"status"`
	ReportedAt         time.Time       `json:"reportedAt"`
	ResolvedAt         *time.Time      `json:"resolvedAt,omitempty"`
	CitizenID          ID              `json:"citizenId,omitempty"`
	Citizen            *User           `json:"citizen,omitempty"`
	MediaURL           string          `json:"mediaUrl,omitempty"`
	Mission            *Mission        `json:"mission,omitempty"`
	AssignedResponders []User          `json:"assignedResponders,omitempty"`
}

// UrgencyLabel returns the four-tier label for the report's urgency level.
func (r EmergencyReport) UrgencyLabel() UrgencyLabel {
	return UrgencyLabelFor(r.UrgencyLevel)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// UnmarshalJSON accepts the structured form as well as the legacy
// address-only string some backend versions return.
func (l *Location) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var address string
		if err := json.Unmarshal(data, &address); err != nil {
			return err
		}
		*l = Location{Address: address}
		return nil
	}

	type plain Location
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Location(p)
	return nil
}

// HasCoordinates reports whether a position was actually acquired.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Emergency Status Constants
type EmergencyStatus string

const (
	EmergencyStatusReceived   EmergencyStatus = "RECEIVED"
	EmergencyStatusDispatched EmergencyStatus = "DISPATCHED"
	EmergencyStatusInProgress EmergencyStatus = "IN_PROGRESS"
	EmergencyStatusResolved   EmergencyStatus = "RESOLVED"
)

// EmergencyStatuses lists the lifecycle in order.
var EmergencyStatuses = []EmergencyStatus{
	EmergencyStatusReceived,
	EmergencyStatusDispatched,
	EmergencyStatusInProgress,
	EmergencyStatusResolved,
}

func (s EmergencyStatus) Valid() bool {
	for _, status := range EmergencyStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Urgency
type UrgencyLabel string

const (
	UrgencyLow      UrgencyLabel = "LOW"
	UrgencyMedium   UrgencyLabel = "MEDIUM"
	UrgencyHigh     UrgencyLabel = "HIGH"
	UrgencyCritical UrgencyLabel = "CRITICAL"
)

const (
	MinUrgencyLevel = 1
	MaxUrgencyLevel = 4
)

// UrgencyLabelFor maps a level to its label: 4 and above is CRITICAL, 3 HIGH,
// 2 MEDIUM and everything else LOW.
func UrgencyLabelFor(level int) UrgencyLabel {
	switch {
	case level >= 4:
		return UrgencyCritical
	case level == 3:
		return UrgencyHigh
	case level == 2:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// UrgencyLevelFor is the inverse of UrgencyLabelFor. ok is false for an
// unknown label.
func UrgencyLevelFor(label UrgencyLabel) (level int, ok bool) {
	switch label {
	case UrgencyLow:
		return 1, true
	case UrgencyMedium:
		return 2, true
	case UrgencyHigh:
		return 3, true
	case UrgencyCritical:
		return 4, true
	}
	return 0, false
}

// Request DTOs

// MaxDescriptionLength bounds a report description, in characters.
const MaxDescriptionLength = 2000

type CreateEmergencyReportRequest struct {
	Description  string          `json:"description" validate:"required,max=2000"`
	Location     ReportLocation  `json:"location"`
	UrgencyLevel int             `json:"urgencyLevel" validate:"required,gte=1,lte=4"`
	CitizenID    ID              `json:"citizenId" validate:"required"`
	Status       EmergencyStatus `json:"status,omitempty"`
}

type ReportLocation struct {
	Latitude  float64 `json:"latitude" validate:"coordinate_lat"`
	Longitude float64 `json:"longitude" validate:"coordinate_lng"`
	Address   string  `json:"address,omitempty" validate:"max=500"`
}

type UpdateEmergencyStatusRequest struct {
	Status EmergencyStatus `json:"status" validate:"required,emergency_status"`
}

type UpdateUrgencyRequest struct {
	UrgencyLevel int `json:"urgencyLevel" validate:"required,gte=1,lte=4"`
}

type AssignRespondersRequest struct {
	ResponderIDs []ID `json:"responderIds" validate:"required,min=1"`
}
