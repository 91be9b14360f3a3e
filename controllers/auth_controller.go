// controllers/auth_controller.go
package controllers

import (
	"net/http"

	"rescuelink/middleware"
	"rescuelink/models"
	"rescuelink/repositories"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionCookie names the gateway session whose credentials are kept
// server-side.
const SessionCookie = "rescuelink_sid"

type AuthController struct {
	container    *services.Container
	scopes       repositories.TokenScopes
	registry     *ViewRegistry
	secureCookie bool
}

func NewAuthController(container *services.Container, scopes repositories.TokenScopes, registry *ViewRegistry, secureCookie bool) *AuthController {
	return &AuthController{
		container:    container,
		scopes:       scopes,
		registry:     registry,
		secureCookie: secureCookie,
	}
}

// authFor binds the auth workflow to one gateway session's credential store.
func (ac *AuthController) authFor(sessionID string) *services.AuthService {
	sessions := ac.container.Sessions.WithTokens(ac.scopes.Scope(sessionID))
	backend := ac.container.Backend.WithCredentials(sessions.StoredCredentials())
	return services.NewAuthService(backend, sessions, ac.container.Validator)
}

// PortalPath is where a role lands after login.
func PortalPath(role models.Role) string {
	switch role {
	case models.RoleCoordinator:
		return "/coordinator"
	case models.RoleResponder:
		return "/responder"
	}
	return "/citizen"
}

// Login handles user authentication
// @Summary Login user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 401 {object} models.APIResponse
// @Router /login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	sessionID := uuid.New().String()
	session, resp, err := ac.authFor(sessionID).Login(c.Request.Context(), req)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"email":      req.Email,
		}).Warnf("Login failed: %v", err)
		utils.ServiceErrorResponse(c, err, nil)
		return
	}

	middleware.SetTokenCookie(c, resp.AccessToken, ac.secureCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sessionID, 0, "/", "", ac.secureCookie, true)

	utils.SuccessResponse(c, "Login successful", gin.H{
		"accessToken": resp.AccessToken,
		"user":        resp.User,
		"role":        session.Role(),
		"portal":      PortalPath(session.Role()),
	}, nil)
}

// Register creates an account on the backend
// @Summary Register a new user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	user, err := ac.container.Auth.Register(c.Request.Context(), req)
	if err != nil {
		logrus.Warnf("Registration failed: %v", err)
		utils.ServiceErrorResponse(c, err, nil)
		return
	}

	utils.CreatedResponse(c, "Account created successfully", user, nil)
}

// Logout clears the gateway session, its mounted views and the cookies. It
// succeeds even when the backend call fails.
// @Summary Logout user
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	if token := middleware.ExtractToken(c); token != "" {
		if session, err := ac.container.Sessions.Establish(token); err == nil {
			ac.registry.Drop(session.UserID())
		}
	}

	if sessionID, err := c.Cookie(SessionCookie); err == nil && sessionID != "" {
		if err := ac.authFor(sessionID).Logout(c.Request.Context()); err != nil {
			logrus.Warnf("Failed to clear gateway session: %v", err)
		}
	}

	middleware.ClearTokenCookie(c)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)

	utils.SuccessResponse(c, "Logged out", gin.H{
		"redirect": ac.container.Sessions.LoginPath(),
	}, nil)
}
