package services

import (
	"context"

	"rescuelink/models"
	"rescuelink/utils"

	"github.com/sirupsen/logrus"
)

type AuthService struct {
	backend   *BackendClient
	sessions  *SessionService
	validator *utils.ValidationService
}

func NewAuthService(backend *BackendClient, sessions *SessionService, validator *utils.ValidationService) *AuthService {
	return &AuthService{
		backend:   backend,
		sessions:  sessions,
		validator: validator,
	}
}

// Login authenticates against the backend and persists the issued tokens.
// The returned session is already validated.
func (as *AuthService) Login(ctx context.Context, req models.LoginRequest) (*Session, *models.LoginResponse, error) {
	if err := as.validator.Validate(req); err != nil {
		return nil, nil, err
	}

	var resp models.LoginResponse
	if err := as.backend.Post(ctx, "/auth/login", req, &resp); err != nil {
		return nil, nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil, utils.NewUnauthenticatedError("Backend did not issue an access token")
	}

	session, err := as.sessions.Establish(resp.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	if err := as.sessions.Store(ctx, resp.TokenPair); err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": session.UserID(),
		"role":    session.Role(),
	}).Info("Logged in")
	return session, &resp, nil
}

// Register creates an account. Older backends only expose POST /user.
func (as *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := as.validator.Validate(req); err != nil {
		return nil, err
	}
	req.Role = string(models.NormalizeRole(req.Role))

	var user models.User
	err := as.backend.Post(ctx, "/auth/register", req, &user)
	if utils.HasCode(err, utils.ErrCodeNotFound) {
		err = as.backend.Post(ctx, "/user", req, &user)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout always clears local credentials, even when the backend call fails.
func (as *AuthService) Logout(ctx context.Context) error {
	callErr := as.backend.Post(ctx, "/auth/logout", nil, nil)
	if clearErr := as.sessions.Clear(ctx); clearErr != nil {
		return clearErr
	}
	if callErr != nil {
		logrus.Warnf("Backend logout failed, local credentials cleared anyway: %v", callErr)
	}
	return nil
}
