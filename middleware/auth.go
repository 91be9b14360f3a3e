package middleware

import (
	"net/http"
	"strings"

	"rescuelink/models"
	"rescuelink/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by PortalGuard
const (
	ContextSession = "session"
	ContextToken   = "accessToken"
)

// PortalGuard gates each portal on the caller's credential. It never calls
// the backend; the decision is taken from the token alone.
type PortalGuard struct {
	sessions *services.SessionService
	metrics  *Metrics
}

func NewPortalGuard(sessions *services.SessionService, metrics *Metrics) *PortalGuard {
	return &PortalGuard{
		sessions: sessions,
		metrics:  metrics,
	}
}

// Require admits only sessions of the given role. A missing or undecodable
// token clears the credential cookie and redirects to login; a valid token
// for another role redirects to the landing page.
func (pg *PortalGuard) Require(role models.Role) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := ExtractToken(c)
		decision := pg.sessions.GuardToken(token, role)
		pg.metrics.ObserveGuard(role, decision.Outcome)

		switch decision.Outcome {
		case services.GuardRedirectLogin:
			if token != "" {
				ClearTokenCookie(c)
			}
			logrus.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"portal":     role,
			}).Debug("Redirecting to login")
			c.Redirect(http.StatusFound, decision.Location)
			c.Abort()
			return

		case services.GuardRedirectLanding:
			logrus.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"portal":     role,
			}).Info("Portal not available for role, redirecting to landing page")
			c.Redirect(http.StatusFound, decision.Location)
			c.Abort()
			return
		}

		session := decision.Session
		c.Set(ContextSession, session)
		c.Set(ContextToken, token)
		c.Set("userID", session.UserID().String())
		c.Set("userEmail", session.Claims().Email)
		c.Set("userRole", string(session.Role()))

		c.Next()
	})
}

// ExtractToken reads the bearer header first, then the credential cookie.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}

	if token, err := c.Cookie(models.AccessTokenKey); err == nil {
		return token
	}

	return ""
}

// SetTokenCookie stores the access token for browser clients.
func SetTokenCookie(c *gin.Context, token string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(models.AccessTokenKey, token, 0, "/", "", secure, true)
}

func ClearTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(models.AccessTokenKey, "", -1, "/", "", false, true)
	c.SetCookie(models.RefreshTokenKey, "", -1, "/", "", false, true)
}

// GetSession returns the session admitted by PortalGuard.
func GetSession(c *gin.Context) (*services.Session, bool) {
	value, exists := c.Get(ContextSession)
	if !exists {
		return nil, false
	}
	session, ok := value.(*services.Session)
	return session, ok
}

// GetToken returns the raw token the session was built from.
func GetToken(c *gin.Context) string {
	return c.GetString(ContextToken)
}
