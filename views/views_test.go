package views

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rescuelink/models"
	"rescuelink/realtime"
	"rescuelink/repositories"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testSecret = "views-secret"

type fakeBackend struct {
	*gin.Engine
	server *httptest.Server

	mu       sync.Mutex
	requests []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fb := &fakeBackend{Engine: gin.New()}
	fb.Use(func(c *gin.Context) {
		fb.mu.Lock()
		fb.requests = append(fb.requests, c.Request.Method+" "+c.Request.URL.Path)
		fb.mu.Unlock()
		c.Next()
	})
	fb.server = httptest.NewServer(fb.Engine)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) Requests() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.requests...)
}

func (fb *fakeBackend) count(request string) int {
	n := 0
	for _, r := range fb.Requests() {
		if r == request {
			n++
		}
	}
	return n
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

func newDeps(fb *fakeBackend, provider services.PositionProvider) (Deps, *NotificationLog) {
	validator := utils.NewValidationService()
	sessions := services.NewSessionService(repositories.NewMemoryTokenRepository(), utils.NewTokenDecoder(testSecret), "/login", "https://landing.example/")
	backend := services.NewBackendClient(fb.server.URL, 5*time.Second, nil)
	var location *services.LocationService
	if provider != nil {
		location = services.NewLocationService(provider, nil, time.Second)
	}
	log := NewNotificationLog()
	return Deps{
		Services: services.NewContainer(backend, validator, sessions, location, 2),
		Notifier: log,
	}, log
}

func destructive(notifications []models.Notification) int {
	n := 0
	for _, item := range notifications {
		if item.Variant == models.VariantDestructive {
			n++
		}
	}
	return n
}

func TestCitizenSubmitPrependsConfirmedReport(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/emergency-report", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 4, "description": "Old report", "status": "RESOLVED", "urgencyLevel": 1}})
	})
	var received models.CreateEmergencyReportRequest
	fb.POST("/emergency-report", func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&received))
		c.JSON(http.StatusCreated, gin.H{"id": 11, "description": received.Description, "urgencyLevel": received.UrgencyLevel, "status": "RECEIVED"})
	})

	deps, log := newDeps(fb, services.StaticPositionProvider{Latitude: 40.7, Longitude: -74.0})
	view := NewCitizenView(deps)
	defer view.Close()

	decision, err := view.Mount(context.Background(), token(t, 1, "CITIZEN"))
	require.NoError(t, err)
	require.Equal(t, services.GuardAllow, decision.Outcome)
	require.Len(t, view.Reports(), 1)

	view.SetDescription("Fire on Elm St")
	assert.False(t, view.CanSubmit())
	_, err = view.Locate(context.Background())
	require.NoError(t, err)
	require.True(t, view.CanSubmit())
	assert.Equal(t, DefaultUrgencyLevel, view.Draft().UrgencyLevel)

	report, err := view.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusReceived, report.Status)
	assert.Equal(t, models.UrgencyHigh, report.UrgencyLabel())
	assert.Equal(t, 40.7, report.Location.Latitude)
	assert.False(t, report.ReportedAt.IsZero())

	assert.Equal(t, models.ID(1), received.CitizenID)
	assert.Equal(t, -74.0, received.Location.Longitude)

	reports := view.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, models.ID(11), reports[0].ID)
	assert.Empty(t, view.Draft().Description)
	assert.Nil(t, view.Draft().Location)
	assert.Zero(t, destructive(log.All()))
}

func TestCitizenSubmitRequiresLocation(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/emergency-report", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })

	deps, log := newDeps(fb, nil)
	view := NewCitizenView(deps)
	defer view.Close()
	_, err := view.Mount(context.Background(), token(t, 1, "CITIZEN"))
	require.NoError(t, err)

	view.SetDescription("Smoke")
	_, err = view.Locate(context.Background())
	assert.True(t, utils.HasCode(err, utils.ErrCodeGeolocation))

	_, err = view.Submit(context.Background())
	assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))
	assert.Equal(t, 0, fb.count("POST /emergency-report"))
	assert.Equal(t, 2, destructive(log.All()))
	assert.Error(t, view.SetUrgency(5))
}

func TestCitizenShortDescriptionIsAccepted(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/emergency-report", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	fb.POST("/emergency-report", func(c *gin.Context) {
		var req models.CreateEmergencyReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": 12, "description": req.Description, "urgencyLevel": req.UrgencyLevel, "status": "RECEIVED"})
	})

	deps, log := newDeps(fb, services.StaticPositionProvider{Latitude: 40.7, Longitude: -74.0})
	view := NewCitizenView(deps)
	defer view.Close()
	_, err := view.Mount(context.Background(), token(t, 1, "CITIZEN"))
	require.NoError(t, err)
	_, err = view.Locate(context.Background())
	require.NoError(t, err)

	view.SetDescription(strings.Repeat("x", models.MaxDescriptionLength+1))
	assert.False(t, view.CanSubmit())

	view.SetDescription("ok")
	require.True(t, view.CanSubmit())
	report, err := view.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", report.Description)
	assert.Equal(t, 1, fb.count("POST /emergency-report"))
	assert.Zero(t, destructive(log.All()))
}

func TestWrongRoleRedirectsWithoutFetching(t *testing.T) {
	fb := newFakeBackend(t)
	deps, _ := newDeps(fb, nil)

	view := NewResponderView(deps)
	defer view.Close()
	decision, err := view.Mount(context.Background(), token(t, 1, "CITIZEN"))
	assert.Error(t, err)
	assert.Equal(t, services.GuardRedirectLanding, decision.Outcome)
	assert.Equal(t, "https://landing.example/", decision.Location)

	coordinator := NewCoordinatorView(deps)
	defer coordinator.Close()
	decision, _ = coordinator.Mount(context.Background(), "not-a-token")
	assert.Equal(t, services.GuardRedirectLogin, decision.Outcome)
	assert.Equal(t, "/login", decision.Location)

	assert.Empty(t, fb.Requests())
	assert.Empty(t, view.Missions())
	assert.True(t, utils.HasCode(view.Refresh(context.Background()), utils.ErrCodeAuthentication))
}

func coordinatorBackend(t *testing.T) *fakeBackend {
	fb := newFakeBackend(t)
	fb.GET("/emergency-report", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 2, "description": "Gas leak", "location": gin.H{"latitude": 40.7, "longitude": -74.0, "address": "5 Oak Ave"}, "urgencyLevel": 4, "status": "RECEIVED"},
			{"id": 3, "description": "Flooded basement", "location": "Riverside", "urgencyLevel": 2, "status": "IN_PROGRESS"},
			{"id": 4, "description": "Cat in tree", "urgencyLevel": 1, "status": "RESOLVED"},
			{"id": 5, "description": "Car crash", "urgencyLevel": 3, "status": "DISPATCHED"},
		})
	})
	fb.GET("/user", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 1, "role": "CITIZEN"},
			{"id": 7, "role": "RESPONDER", "responderStatus": "AVAILABLE"},
			{"id": 8, "role": "responder", "ResponderStatus": "AVAILABLE"},
			{"id": 9, "role": "RESPONDER", "responderStatus": "ON_DUTY"},
		})
	})
	fb.GET("/mission", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 30, "incidentId": 3, "status": "EN_ROUTE"}})
	})
	return fb
}

func mountCoordinator(t *testing.T, fb *fakeBackend) (*CoordinatorView, *NotificationLog) {
	deps, log := newDeps(fb, nil)
	view := NewCoordinatorView(deps)
	t.Cleanup(view.Close)
	_, err := view.Mount(context.Background(), token(t, 100, "COORDINATOR"))
	require.NoError(t, err)
	log.Drain()
	return view, log
}

func TestCoordinatorFiltersAndMetrics(t *testing.T) {
	view, _ := mountCoordinator(t, coordinatorBackend(t))

	metrics := view.Metrics()
	assert.Equal(t, models.DashboardMetrics{Active: 2, AvailableTeams: 2, InProgress: 1, Resolved: 1}, metrics)

	assert.Len(t, view.Filtered(EmergencyFilter{Status: models.EmergencyStatusReceived}), 1)
	assert.Len(t, view.Filtered(EmergencyFilter{Urgency: models.UrgencyCritical}), 1)
	byAddress := view.Filtered(EmergencyFilter{Search: "riverSIDE"})
	require.Len(t, byAddress, 1)
	assert.Equal(t, models.ID(3), byAddress[0].ID)
	assert.Len(t, view.Filtered(EmergencyFilter{Search: "crash", Status: models.EmergencyStatusResolved}), 0)
	assert.Len(t, view.Responders(), 3)
}

func TestCoordinatorAssignBumpsReceivedWithoutStatusCall(t *testing.T) {
	fb := coordinatorBackend(t)
	var body models.AssignRespondersRequest
	fb.POST("/emergency/:id/assign", func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, gin.H{})
	})
	view, log := mountCoordinator(t, fb)

	require.NoError(t, view.Assign(context.Background(), 2, 7))
	assert.Equal(t, []models.ID{7}, body.ResponderIDs)
	assert.Equal(t, models.EmergencyStatusDispatched, view.Filtered(EmergencyFilter{Search: "gas"})[0].Status)
	assert.Equal(t, 0, fb.count("PATCH /emergency/2/status"))

	require.NoError(t, view.Assign(context.Background(), 3, 8))
	assert.Equal(t, models.EmergencyStatusInProgress, view.Filtered(EmergencyFilter{Search: "flood"})[0].Status)

	notes := log.All()
	require.Len(t, notes, 2)
	assert.Equal(t, models.VariantDefault, notes[0].Variant)
}

func TestCoordinatorFailedStatusUpdateKeepsState(t *testing.T) {
	fb := coordinatorBackend(t)
	fb.PATCH("/emergency/:id/status", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "boom"})
	})
	view, log := mountCoordinator(t, fb)

	err := view.UpdateEmergencyStatus(context.Background(), 2, models.EmergencyStatusResolved)
	require.Error(t, err)

	report := view.Filtered(EmergencyFilter{Search: "gas"})[0]
	assert.Equal(t, models.EmergencyStatusReceived, report.Status)
	assert.Nil(t, report.ResolvedAt)

	notes := log.All()
	require.Len(t, notes, 1)
	assert.Equal(t, models.VariantDestructive, notes[0].Variant)
}

func TestCoordinatorStatusAndUrgencyUpdates(t *testing.T) {
	fb := coordinatorBackend(t)
	fb.PATCH("/emergency/:id/status", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	fb.PATCH("/emergency/:id/urgency", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	fb.PATCH("/mission/:id/status", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	view, log := mountCoordinator(t, fb)
	ctx := context.Background()

	// coordinators may skip straight to RESOLVED
	require.NoError(t, view.UpdateEmergencyStatus(ctx, 2, models.EmergencyStatusResolved))
	report := view.Filtered(EmergencyFilter{Search: "gas"})[0]
	assert.Equal(t, models.EmergencyStatusResolved, report.Status)
	assert.NotNil(t, report.ResolvedAt)

	require.NoError(t, view.UpdateUrgency(ctx, 3, models.UrgencyCritical))
	assert.Equal(t, 4, view.Filtered(EmergencyFilter{Search: "flood"})[0].UrgencyLevel)
	assert.Error(t, view.UpdateUrgency(ctx, 3, "SEVERE"))

	require.NoError(t, view.UpdateMissionStatus(ctx, 30, models.MissionStatusCompleted))
	assert.NotNil(t, view.Missions()[0].EndTime)
	assert.Equal(t, 1, destructive(log.All()))
}

func TestCoordinatorAssignAllRefetchesOnce(t *testing.T) {
	fb := coordinatorBackend(t)
	fb.POST("/emergency/:id/assign", func(c *gin.Context) {
		var req models.AssignRespondersRequest
		require.NoError(t, c.ShouldBindJSON(&req))
		if req.ResponderIDs[0] == 8 {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})
	view, log := mountCoordinator(t, fb)
	before := fb.count("GET /emergency-report")

	result, err := view.AssignAll(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, []models.ID{7}, result.Assigned)
	assert.Contains(t, result.Failed, models.ID(8))

	assert.Equal(t, 2, fb.count("POST /emergency/2/assign"))
	assert.Equal(t, before+1, fb.count("GET /emergency-report"))
	notes := log.All()
	require.Len(t, notes, 1)
	assert.Equal(t, models.VariantDestructive, notes[0].Variant)
}

func TestCoordinatorCreateMissionAndChat(t *testing.T) {
	fb := coordinatorBackend(t)
	var created models.CreateMissionRequest
	fb.POST("/mission", func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&created))
		c.JSON(http.StatusCreated, gin.H{"id": 31, "status": "ASSIGNED"})
	})
	fb.GET("/emergency/:id/message", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 1, "sender": "CITIZEN", "content": "Hurry"}})
	})
	fb.POST("/emergency/:id/message", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": 2})
	})
	view, _ := mountCoordinator(t, fb)
	ctx := context.Background()

	mission, err := view.CreateMission(ctx, 2, 7, 8)
	require.NoError(t, err)
	assert.Equal(t, models.ID(2), mission.IncidentRef())
	assert.Equal(t, models.ID(100), created.CoordinatorID)
	assert.Equal(t, []models.ID{7, 8}, created.ResponderIDs)
	assert.Len(t, view.Missions(), 2)

	require.NoError(t, view.SelectEmergency(ctx, 2))
	selected, messages := view.EmergencyMessages()
	assert.Equal(t, models.ID(2), selected)
	require.Len(t, messages, 1)

	msg, err := view.SendEmergencyMessage(ctx, "Team dispatched")
	require.NoError(t, err)
	assert.Equal(t, models.SenderCoordinator, msg.Sender)
	_, messages = view.EmergencyMessages()
	assert.Len(t, messages, 2)

	// mission chat is a separate thread
	_, missionMessages := view.MissionMessages()
	assert.Empty(t, missionMessages)
}

func responderBackend(t *testing.T, assigned bool) *fakeBackend {
	fb := newFakeBackend(t)
	missions := []gin.H{
		{"id": 40, "status": "ASSIGNED", "incident": gin.H{"id": 2, "location": gin.H{"latitude": 40.71, "longitude": -74.0}}, "assignedResponders": []gin.H{{"id": 7}}},
		{"id": 41, "status": "EN_ROUTE", "incidentId": 3, "assignedResponders": []gin.H{{"id": 8}}},
	}
	if assigned {
		fb.GET("/missions/assigned", func(c *gin.Context) { c.JSON(http.StatusOK, missions[:1]) })
	}
	fb.GET("/mission", func(c *gin.Context) { c.JSON(http.StatusOK, missions) })
	return fb
}

func TestResponderFallsBackToMissionList(t *testing.T) {
	fb := responderBackend(t, false)
	deps, log := newDeps(fb, nil)
	view := NewResponderView(deps)
	defer view.Close()

	_, err := view.Mount(context.Background(), token(t, 7, "RESPONDER"))
	require.NoError(t, err)
	missions := view.Missions()
	require.Len(t, missions, 1)
	assert.Equal(t, models.ID(40), missions[0].ID)
	assert.Equal(t, []string{"GET /missions/assigned", "GET /mission"}, fb.Requests())
	assert.Empty(t, log.All())
}

func TestResponderFallbackKeepsMissionsWithoutTeam(t *testing.T) {
	fb := newFakeBackend(t)
	fb.GET("/mission", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 40, "status": "ASSIGNED", "incidentId": 2},
			{"id": 41, "status": "EN_ROUTE", "incidentId": 3, "assignedResponders": []gin.H{{"id": 8}}},
		})
	})
	deps, log := newDeps(fb, nil)
	view := NewResponderView(deps)
	defer view.Close()

	_, err := view.Mount(context.Background(), token(t, 7, "RESPONDER"))
	require.NoError(t, err)
	missions := view.Missions()
	require.Len(t, missions, 1)
	assert.Equal(t, models.ID(40), missions[0].ID)
	assert.True(t, view.ControlEnabled(40, models.MissionStatusEnRoute))
	assert.Empty(t, log.All())
}

func TestResponderAdvanceIsAdjacentOnly(t *testing.T) {
	fb := responderBackend(t, true)
	fb.PATCH("/mission/:id/status", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	deps, log := newDeps(fb, nil)
	view := NewResponderView(deps)
	defer view.Close()
	_, err := view.Mount(context.Background(), token(t, 7, "RESPONDER"))
	require.NoError(t, err)

	assert.True(t, view.ControlEnabled(40, models.MissionStatusEnRoute))
	assert.False(t, view.ControlEnabled(40, models.MissionStatusOnSite))
	assert.False(t, view.ControlEnabled(40, models.MissionStatusCompleted))

	err = view.Advance(context.Background(), 40, models.MissionStatusOnSite)
	assert.True(t, utils.HasCode(err, utils.ErrCodeInvalidTransition))
	assert.Equal(t, 0, fb.count("PATCH /mission/40/status"))
	assert.Equal(t, 1, destructive(log.Drain()))

	require.NoError(t, view.Advance(context.Background(), 40, models.MissionStatusEnRoute))
	assert.Equal(t, models.MissionStatusEnRoute, view.Missions()[0].Status)
	assert.True(t, view.ControlEnabled(40, models.MissionStatusOnSite))
	assert.Equal(t, 1, fb.count("PATCH /mission/40/status"))
}

func TestResponderChatAndLocationSharing(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	fb := responderBackend(t, true)
	fb.GET("/mission/:id/messages", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	fb.POST("/mission/:id/messages", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": 5, "content": "On scene"})
	})

	provider := services.StaticPositionProvider{Latitude: 40.7, Longitude: -74.0, Interval: 5 * time.Millisecond}
	deps, _ := newDeps(fb, provider)
	deps.Updates = realtime.NewBuffer(8)
	view := NewResponderView(deps)
	_, err := view.Mount(context.Background(), token(t, 7, "RESPONDER"))
	require.NoError(t, err)

	_, err = view.SendMessage(context.Background(), "hello")
	assert.Error(t, err)

	require.NoError(t, view.Select(context.Background(), 40))
	msg, err := view.SendMessage(context.Background(), "On scene")
	require.NoError(t, err)
	assert.Equal(t, models.ID(40), msg.MissionID)
	assert.Equal(t, models.SenderResponder, msg.Sender)
	assert.Len(t, view.Messages(), 1)

	on, err := view.ToggleLocationSharing(context.Background())
	require.NoError(t, err)
	assert.True(t, on)
	require.Eventually(t, func() bool {
		_, ok := view.DistanceToIncident(40)
		return ok
	}, time.Second, 5*time.Millisecond)
	distance, _ := view.DistanceToIncident(40)
	assert.InDelta(t, 1112, distance, 5)

	assert.Empty(t, view.Updates())
	view.Close()
	assert.False(t, view.LocationSharing())

	fb.server.Close()
	goleak.VerifyNone(t, ignore)
}

func TestCloseDiscardsLateResponses(t *testing.T) {
	fb := newFakeBackend(t)
	arrived := make(chan struct{})
	var calls int32
	fb.GET("/emergency-report", func(c *gin.Context) {
		if atomic.AddInt32(&calls, 1) == 1 {
			c.JSON(http.StatusOK, []gin.H{})
			return
		}
		close(arrived)
		<-c.Request.Context().Done()
	})

	deps, log := newDeps(fb, nil)
	view := NewCitizenView(deps)
	_, err := view.Mount(context.Background(), token(t, 1, "CITIZEN"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- view.Refresh(context.Background()) }()
	<-arrived
	view.Close()

	assert.ErrorIs(t, <-done, utils.ErrViewClosed)
	assert.Empty(t, log.All())
	assert.ErrorIs(t, view.Refresh(context.Background()), utils.ErrViewClosed)
}
