package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rescuelink/config"
	"rescuelink/middleware"
	"rescuelink/models"
	"rescuelink/repositories"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "gateway-secret"

type fakeBackend struct {
	*gin.Engine
	server *httptest.Server

	mu       sync.Mutex
	requests []string
	auth     map[string]string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fb := &fakeBackend{Engine: gin.New(), auth: make(map[string]string)}
	fb.Use(func(c *gin.Context) {
		request := c.Request.Method + " " + c.Request.URL.Path
		fb.mu.Lock()
		fb.requests = append(fb.requests, request)
		fb.auth[request] = c.GetHeader("Authorization")
		fb.mu.Unlock()
		c.Next()
	})
	fb.server = httptest.NewServer(fb.Engine)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) count(request string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, r := range fb.requests {
		if r == request {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) authorization(request string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.auth[request]
}

func token(t *testing.T, userID int, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type gateway struct {
	router   *gin.Engine
	registry *ViewRegistry
	metrics  *middleware.Metrics
}

// newGateway mirrors the production route table for the endpoints under test.
func newGateway(t *testing.T, fb *fakeBackend) *gateway {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		APIBaseURL:  fb.server.URL,
		LoginPath:   "/login",
		LandingURL:  "https://landing.example/",
		ViewIdleTTL: time.Minute,
	}
	validator := utils.NewValidationService()
	sessions := services.NewSessionService(repositories.NewMemoryTokenRepository(), utils.NewTokenDecoder(testSecret), cfg.LoginPath, cfg.LandingURL)
	backend := services.NewBackendClient(fb.server.URL, 5*time.Second, sessions.StoredCredentials())
	location := services.NewLocationService(services.StaticPositionProvider{Latitude: 48.85, Longitude: 2.35}, nil, time.Second)
	container := services.NewContainer(backend, validator, sessions, location, 2)

	metrics := middleware.NewMetrics()
	registry := NewViewRegistry(cfg.ViewIdleTTL, NewDepsFactory(cfg, container), metrics)
	t.Cleanup(registry.Close)
	guard := middleware.NewPortalGuard(sessions, metrics)

	auth := NewAuthController(container, repositories.NewMemoryTokenScopes(time.Minute), registry, false)
	citizen := NewCitizenController(registry, validator)
	responder := NewResponderController(registry, validator)
	coordinator := NewCoordinatorController(registry, validator)

	router := gin.New()
	router.POST("/login", auth.Login)
	router.POST("/logout", auth.Logout)

	c := router.Group("/citizen", guard.Require(models.RoleCitizen))
	c.GET("/reports", citizen.GetReports)
	c.POST("/reports", citizen.Submit)
	c.PATCH("/draft", citizen.UpdateDraft)

	r := router.Group("/responder", guard.Require(models.RoleResponder))
	r.GET("/missions", responder.GetMissions)
	r.POST("/missions/:id/status", responder.AdvanceMission)

	co := router.Group("/coordinator", guard.Require(models.RoleCoordinator))
	co.GET("/dashboard", coordinator.GetDashboard)
	co.POST("/emergencies/:id/assign-all", coordinator.AssignAll)
	co.PATCH("/emergencies/:id/urgency", coordinator.UpdateUrgency)

	return &gateway{router: router, registry: registry, metrics: metrics}
}

type envelope struct {
	Success       bool                  `json:"success"`
	Data          json.RawMessage       `json:"data"`
	Error         *models.APIError      `json:"error"`
	Notifications []models.Notification `json:"notifications"`
}

func (g *gateway) do(t *testing.T, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	var env envelope
	if w.Code != http.StatusFound {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestLoginMountsPortalAndLogoutDropsIt(t *testing.T) {
	fb := newFakeBackend(t)
	access := token(t, 1, "CITIZEN")
	fb.POST("/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"accessToken": access, "refreshToken": "refresh", "user": gin.H{"id": 1, "role": "CITIZEN"}})
	})
	fb.POST("/auth/logout", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	fb.GET("/emergency-report", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 4, "description": "Smoke", "status": "RECEIVED", "urgencyLevel": 2}})
	})
	g := newGateway(t, fb)

	w, env := g.do(t, http.MethodPost, "/login", "", models.LoginRequest{Email: "citizen@example.com", Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken string      `json:"accessToken"`
		Role        models.Role `json:"role"`
		Portal      string      `json:"portal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, access, login.AccessToken)
	assert.Equal(t, "/citizen", login.Portal)

	cookies := w.Result().Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{models.AccessTokenKey, SessionCookie}, names)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/citizen/reports", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		g.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, fb.count("GET /emergency-report"), "the mounted view is reused")
	assert.Equal(t, 1, g.registry.Len())

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, g.registry.Len())
	assert.Equal(t, "Bearer "+access, fb.authorization("POST /auth/logout"))
}

func TestGatewayRedirectsOtherRoles(t *testing.T) {
	fb := newFakeBackend(t)
	g := newGateway(t, fb)

	w, _ := g.do(t, http.MethodGet, "/coordinator/dashboard", token(t, 1, "CITIZEN"), nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://landing.example/", w.Header().Get("Location"))
	assert.Equal(t, 0, g.registry.Len())
	assert.Equal(t, 0, fb.count("GET /mission"))
}

func TestCitizenDraftAndSubmit(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/emergency-report", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	fb.POST("/emergency-report", func(c *gin.Context) {
		var req models.CreateEmergencyReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": 21, "description": req.Description, "urgencyLevel": req.UrgencyLevel, "status": "RECEIVED"})
	})
	g := newGateway(t, fb)
	bearer := token(t, 5, "CITIZEN")

	w, env := g.do(t, http.MethodPatch, "/citizen/draft", bearer, gin.H{"urgencyLevel": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, env = g.do(t, http.MethodPatch, "/citizen/draft", bearer, gin.H{
		"description":  "Collapsed wall",
		"urgencyLevel": 4,
		"location":     gin.H{"latitude": 48.85, "longitude": 2.35, "address": "Rue de Rivoli"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var draft draftPayload
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.True(t, draft.CanSubmit)
	assert.Equal(t, 4, draft.Draft.UrgencyLevel)

	w, env = g.do(t, http.MethodPost, "/citizen/reports", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.EmergencyReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, models.ID(21), report.ID)
	assert.Equal(t, models.UrgencyCritical, report.UrgencyLabel())
	require.Len(t, env.Notifications, 1)
	assert.Equal(t, models.VariantDefault, env.Notifications[0].Variant)

	_, env = g.do(t, http.MethodGet, "/citizen/reports", bearer, nil)
	var reports []models.EmergencyReport
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	require.Len(t, reports, 1)
	assert.Empty(t, env.Notifications, "notifications are delivered once")
}

func TestResponderSkipIsRejectedLocally(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/missions/assigned", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 5, "incidentId": 2, "status": "ASSIGNED"}})
	})
	fb.PATCH("/mission/:id/status", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	g := newGateway(t, fb)
	bearer := token(t, 7, "RESPONDER")

	w, env := g.do(t, http.MethodGet, "/responder/missions", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var missions []responderMission
	require.NoError(t, json.Unmarshal(env.Data, &missions))
	require.Len(t, missions, 1)
	enabled := map[models.MissionStatus]bool{}
	for _, control := range missions[0].Controls {
		enabled[control.Status] = control.Enabled
	}
	assert.True(t, enabled[models.MissionStatusEnRoute])
	assert.False(t, enabled[models.MissionStatusOnSite])

	w, env = g.do(t, http.MethodPost, "/responder/missions/5/status", bearer, gin.H{"status": "ON_SITE"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, utils.ErrCodeInvalidTransition, env.Error.Code)
	assert.Equal(t, 0, fb.count("PATCH /mission/5/status"))

	w, _ = g.do(t, http.MethodPost, "/responder/missions/5/status", bearer, gin.H{"status": "EN_ROUTE"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fb.count("PATCH /mission/5/status"))
}

func TestCoordinatorAssignAllReportsPartialFailure(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/emergency-report", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 2, "description": "Gas leak", "urgencyLevel": 4, "status": "RECEIVED"},
			{"id": 3, "description": "Flood", "urgencyLevel": 2, "status": "RESOLVED"},
		})
	})
	fb.GET("/user", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 7, "role": "RESPONDER", "responderStatus": "AVAILABLE"},
			{"id": 8, "role": "RESPONDER", "responderStatus": "AVAILABLE"},
		})
	})
	fb.GET("/mission", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	fb.POST("/emergency/:id/assign", func(c *gin.Context) {
		var req models.AssignRespondersRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.ResponderIDs) != 1 {
			c.Status(http.StatusBadRequest)
			return
		}
		if req.ResponderIDs[0] == 8 {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})
	g := newGateway(t, fb)
	bearer := token(t, 100, "COORDINATOR")

	w, env := g.do(t, http.MethodGet, "/coordinator/dashboard?status=received", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dashboard dashboardPayload
	require.NoError(t, json.Unmarshal(env.Data, &dashboard))
	assert.Len(t, dashboard.Emergencies, 1)
	assert.Equal(t, 2, dashboard.Metrics.AvailableTeams)

	w, env = g.do(t, http.MethodPost, "/coordinator/emergencies/2/assign-all", bearer, nil)
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Equal(t, utils.ErrCodePartialFailure, env.Error.Code)
	require.Len(t, env.Notifications, 1)
	assert.Equal(t, models.VariantDestructive, env.Notifications[0].Variant)

	w, env = g.do(t, http.MethodPatch, "/coordinator/emergencies/2/urgency", bearer, gin.H{"urgency": "SEVERE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.Notifications)
}
