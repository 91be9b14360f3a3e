package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rescuelink/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenDecoder turns a stored bearer credential into validated claims. The
// backend issues and owns tokens; the decoder only needs the role and subject.
// When a secret is configured the HMAC signature is checked as well.
type TokenDecoder struct {
	secretKey []byte
	now       func() time.Time
}

// rawClaims mirrors the token payload before validation. The role claim is
// either a string or an array of strings, and the subject may be numeric, so
// jwt.RegisteredClaims is not embedded.
type rawClaims struct {
	Role      json.RawMessage  `json:"role"`
	UserID    json.RawMessage  `json:"userId,omitempty"`
	Subject   json.RawMessage  `json:"sub,omitempty"`
	Email     string           `json:"email,omitempty"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
}

func (c *rawClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *rawClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c *rawClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *rawClaims) GetIssuer() (string, error)                   { return "", nil }
func (c *rawClaims) GetSubject() (string, error)                  { return "", nil }
func (c *rawClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// SessionClaims is the explicitly typed result of a successful decode.
type SessionClaims struct {
	UserID    models.ID
	Email     string
	Role      models.Role
	ExpiresAt time.Time
}

var (
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrRoleMissing    = errors.New("role claim missing")
	ErrSubjectMissing = errors.New("user id claim missing")
)

func NewTokenDecoder(secretKey string) *TokenDecoder {
	d := &TokenDecoder{now: time.Now}
	if secretKey != "" {
		d.secretKey = []byte(secretKey)
	}
	return d
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

func (d *TokenDecoder) Decode(token string) (*SessionClaims, error) {
	token = StripBearer(token)
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims := &rawClaims{}
	var err error
	if d.secretKey != nil {
		_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return d.secretKey, nil
		}, jwt.WithTimeFunc(d.now))
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	// ParseUnverified skips claim validation, so expiry is checked here.
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(d.now()) {
		return nil, ErrTokenExpired
	}

	role, err := decodeRole(claims.Role)
	if err != nil {
		return nil, err
	}

	userID := decodeSubject(claims.UserID, claims.Subject)
	if userID <= 0 {
		return nil, ErrSubjectMissing
	}

	out := &SessionClaims{
		UserID: userID,
		Email:  claims.Email,
		Role:   role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func decodeRole(raw json.RawMessage) (models.Role, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrRoleMissing
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return validRole(single)
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return "", fmt.Errorf("%w: unsupported role claim", ErrTokenMalformed)
	}
	if len(many) == 0 {
		return "", ErrRoleMissing
	}
	return validRole(many[0])
}

func validRole(raw string) (models.Role, error) {
	role := models.NormalizeRole(raw)
	if role == "" {
		return "", ErrRoleMissing
	}
	// Unknown roles still decode; they simply never match a portal.
	return role, nil
}

func decodeSubject(userID, subject json.RawMessage) models.ID {
	for _, raw := range []json.RawMessage{userID, subject} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var id models.ID
		if err := json.Unmarshal(raw, &id); err != nil {
			continue
		}
		return id
	}
	return 0
}
