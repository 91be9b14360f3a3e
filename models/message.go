package models

import "time"

// Message is an append-only chat entry scoped to one emergency or one
// mission. There is no edit or delete.
type Message struct {
	ID          ID        `json:"id"`
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	EmergencyID ID        `json:"emergencyId,omitempty"`
	MissionID   ID        `json:"missionId,omitempty"`
}

// Sender role tags
const (
	SenderCoordinator = "COORDINATOR"
	SenderResponder   = "RESPONDER"
	SenderCitizen     = "CITIZEN"
)

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
	Sender  string `json:"sender,omitempty"`
}
