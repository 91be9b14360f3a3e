package services

import (
	"context"
	"errors"

	"rescuelink/models"
	"rescuelink/repositories"
	"rescuelink/utils"

	"github.com/sirupsen/logrus"
)

// GuardOutcome is the decision taken when a role-restricted view mounts.
type GuardOutcome int

const (
	GuardAllow GuardOutcome = iota
	// GuardRedirectLogin: no credential, or one that could not be decoded.
	GuardRedirectLogin
	// GuardRedirectLanding: a valid credential for a different portal.
	GuardRedirectLanding
)

func (o GuardOutcome) String() string {
	switch o {
	case GuardAllow:
		return "allow"
	case GuardRedirectLogin:
		return "redirect_login"
	case GuardRedirectLanding:
		return "redirect_landing"
	}
	return "unknown"
}

type GuardDecision struct {
	Outcome  GuardOutcome
	Location string // redirect target, empty when allowed
	Session  *Session
	Err      error
}

// Session is the established, validated credential context handed to views.
// It replaces ad hoc reads of stored tokens.
type Session struct {
	token  string
	claims utils.SessionClaims
}

func (s *Session) Claims() utils.SessionClaims { return s.claims }
func (s *Session) UserID() models.ID           { return s.claims.UserID }
func (s *Session) Role() models.Role           { return s.claims.Role }

// BearerToken implements CredentialSource.
func (s *Session) BearerToken(ctx context.Context) (string, error) {
	if s == nil || s.token == "" {
		return "", utils.NewUnauthenticatedError("No active session")
	}
	return s.token, nil
}

// SessionService centralises credential storage, decoding and the role guard.
type SessionService struct {
	tokens     repositories.TokenRepository
	decoder    *utils.TokenDecoder
	loginPath  string
	landingURL string
}

func NewSessionService(tokens repositories.TokenRepository, decoder *utils.TokenDecoder, loginPath, landingURL string) *SessionService {
	return &SessionService{
		tokens:     tokens,
		decoder:    decoder,
		loginPath:  loginPath,
		landingURL: landingURL,
	}
}

// WithTokens returns a copy that stores credentials in tokens. The gateway
// uses it to keep one credential record per browser session.
func (ss *SessionService) WithTokens(tokens repositories.TokenRepository) *SessionService {
	scoped := *ss
	scoped.tokens = tokens
	return &scoped
}

func (ss *SessionService) LoginPath() string  { return ss.loginPath }
func (ss *SessionService) LandingURL() string { return ss.landingURL }

// Store persists a freshly issued token pair.
func (ss *SessionService) Store(ctx context.Context, pair models.TokenPair) error {
	if err := ss.tokens.Set(ctx, models.AccessTokenKey, pair.AccessToken); err != nil {
		return err
	}
	if pair.RefreshToken != "" {
		return ss.tokens.Set(ctx, models.RefreshTokenKey, pair.RefreshToken)
	}
	return nil
}

// Clear removes every stored credential.
func (ss *SessionService) Clear(ctx context.Context) error {
	return ss.tokens.Delete(ctx, models.AccessTokenKey, models.RefreshTokenKey)
}

// Establish validates a raw token once and returns the typed session.
func (ss *SessionService) Establish(token string) (*Session, error) {
	claims, err := ss.decoder.Decode(token)
	if err != nil {
		return nil, utils.ServiceError{
			Code:       utils.ErrCodeAuthentication,
			Message:    "Invalid session token",
			StatusCode: 401,
			Cause:      err,
		}
	}
	return &Session{token: utils.StripBearer(token), claims: *claims}, nil
}

// Current establishes a session from the stored access token.
func (ss *SessionService) Current(ctx context.Context) (*Session, error) {
	token, err := ss.tokens.Get(ctx, models.AccessTokenKey)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return nil, utils.NewUnauthenticatedError("Not logged in")
		}
		return nil, err
	}
	return ss.Establish(token)
}

// Guard gates a portal on the stored credential. It never contacts the backend.
func (ss *SessionService) Guard(ctx context.Context, required models.Role) GuardDecision {
	token, err := ss.tokens.Get(ctx, models.AccessTokenKey)
	if err != nil {
		return GuardDecision{Outcome: GuardRedirectLogin, Location: ss.loginPath, Err: utils.NewUnauthenticatedError("Not logged in")}
	}

	decision := ss.GuardToken(token, required)
	if decision.Outcome == GuardRedirectLogin {
		if clearErr := ss.Clear(ctx); clearErr != nil {
			logrus.Warnf("Failed to clear undecodable credentials: %v", clearErr)
		}
	}
	return decision
}

// GuardToken applies the guard to an explicit token, as the gateway does for
// each request. Clearing storage is left to the caller.
func (ss *SessionService) GuardToken(token string, required models.Role) GuardDecision {
	if utils.StripBearer(token) == "" {
		return GuardDecision{Outcome: GuardRedirectLogin, Location: ss.loginPath, Err: utils.NewUnauthenticatedError("Not logged in")}
	}

	session, err := ss.Establish(token)
	if err != nil {
		logrus.Debugf("Rejecting undecodable token: %v", err)
		return GuardDecision{Outcome: GuardRedirectLogin, Location: ss.loginPath, Err: err}
	}

	if session.Role() != required {
		return GuardDecision{
			Outcome:  GuardRedirectLanding,
			Location: ss.landingURL,
			Err:      utils.NewForbiddenError("Sorry, this portal is not available for your role"),
		}
	}

	return GuardDecision{Outcome: GuardAllow, Session: session}
}

// StoredCredentials reads the access token from storage on every call, so a
// later login or logout is picked up without rebuilding clients.
func (ss *SessionService) StoredCredentials() CredentialSource {
	return storedCredentials{tokens: ss.tokens}
}

type storedCredentials struct {
	tokens repositories.TokenRepository
}

func (sc storedCredentials) BearerToken(ctx context.Context) (string, error) {
	token, err := sc.tokens.Get(ctx, models.AccessTokenKey)
	if err != nil {
		return "", err
	}
	return utils.StripBearer(token), nil
}
