package services

import (
	"rescuelink/models"
	"rescuelink/utils"
)

// Container holds the process-wide services. Entity clients are bound to a
// session with ForSession.
type Container struct {
	Backend           *BackendClient
	Validator         *utils.ValidationService
	Sessions          *SessionService
	Auth              *AuthService
	Location          *LocationService
	AssignConcurrency int
}

func NewContainer(backend *BackendClient, validator *utils.ValidationService, sessions *SessionService, location *LocationService, assignConcurrency int) *Container {
	return &Container{
		Backend:           backend,
		Validator:         validator,
		Sessions:          sessions,
		Auth:              NewAuthService(backend, sessions, validator),
		Location:          location,
		AssignConcurrency: assignConcurrency,
	}
}

// SessionServices are the entity clients authenticated as one session.
type SessionServices struct {
	Session     *Session
	Emergencies *EmergencyService
	Missions    *MissionService
	Users       *UserService
	Status      *StatusService
	Assignment  *AssignmentService
	Chat        *ChatService
}

func (c *Container) ForSession(session *Session) *SessionServices {
	backend := c.Backend.WithCredentials(session)
	emergencies := NewEmergencyService(backend, c.Validator)
	missions := NewMissionService(backend, c.Validator)

	return &SessionServices{
		Session:     session,
		Emergencies: emergencies,
		Missions:    missions,
		Users:       NewUserService(backend),
		Status:      NewStatusService(emergencies, missions),
		Assignment:  NewAssignmentService(emergencies, missions, c.AssignConcurrency),
		Chat:        NewChatService(emergencies, missions, senderFor(session.Role())),
	}
}

func senderFor(role models.Role) string {
	switch role {
	case models.RoleCoordinator:
		return models.SenderCoordinator
	case models.RoleResponder:
		return models.SenderResponder
	}
	return models.SenderCitizen
}
