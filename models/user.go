package models

import (
	"encoding/json"
	"strings"
)

type User struct {
	ID              ID              `json:"id"`
	Username        string          `json:"username,omitempty"`
	Email           string          `json:"email,omitempty"`
	FirstName       string          `json:"firstName,omitempty"`
	LastName        string          `json:"lastName,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	ProfilePicture  string          `json:"profilePicture,omitempty"`
	CIN             string          `json:"cin,omitempty"`
	Role            Role            `json:"role,omitempty"`
	ResponderRole   ResponderRole   `json:"responderRole,omitempty"`
	ResponderStatus ResponderStatus `json:"responderStatus,omitempty"`
}

// UnmarshalJSON also accepts the capitalised ResponderStatus key used by
// older user directory payloads.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		LegacyStatus ResponderStatus `json:"ResponderStatus"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ResponderStatus == "" && aux.LegacyStatus != "" {
		u.ResponderStatus = aux.LegacyStatus
	}
	return nil
}

// DisplayName prefers the full name, then the username, then the email.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

func (u User) IsResponder() bool {
	return u.Role == RoleResponder
}

func (u User) IsAvailable() bool {
	return u.IsResponder() && u.ResponderStatus == ResponderAvailable
}

// Role is fixed at registration. Decoding is case-insensitive because the
// backend and issued tokens disagree on casing.
type Role string

const (
	RoleCitizen     Role = "CITIZEN"
	RoleResponder   Role = "RESPONDER"
	RoleCoordinator Role = "COORDINATOR"
)

// NormalizeRole upper-cases and trims a raw role value.
func NormalizeRole(raw string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(raw)))
}

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleResponder, RoleCoordinator:
		return true
	}
	return false
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = NormalizeRole(s)
	return nil
}

type ResponderRole string

const (
	ResponderPolice      ResponderRole = "POLICE"
	ResponderFirefighter ResponderRole = "FIREFIGHTER"
	ResponderMedical     ResponderRole = "MEDICAL"
)

type ResponderStatus string

const (
	ResponderAvailable ResponderStatus = "AVAILABLE"
	ResponderOnDuty    ResponderStatus = "ON_DUTY"
	ResponderOffDuty   ResponderStatus = "OFF_DUTY"
)
