// routes/routes.go
package routes

import (
	"rescuelink/config"
	"rescuelink/controllers"
	"rescuelink/middleware"
	"rescuelink/models"
	"rescuelink/repositories"
	"rescuelink/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Gateway is the assembled portal server.
type Gateway struct {
	Router   *gin.Engine
	Registry *controllers.ViewRegistry
	Metrics  *middleware.Metrics
}

// Close unmounts every view held by the gateway.
func (g *Gateway) Close() {
	g.Registry.Close()
}

// Controllers initialization
type Controllers struct {
	Auth        *controllers.AuthController
	Citizen     *controllers.CitizenController
	Responder   *controllers.ResponderController
	Coordinator *controllers.CoordinatorController
	Health      *controllers.HealthController
}

// SetupRoutes initializes all gateway routes
func SetupRoutes(cfg *config.Config, container *services.Container, redisClient *redis.Client) *Gateway {
	router := gin.New()
	metrics := middleware.NewMetrics()

	registry := controllers.NewViewRegistry(cfg.ViewIdleTTL, controllers.NewDepsFactory(cfg, container), metrics)
	ctrls := initializeControllers(cfg, container, redisClient, registry)
	guard := middleware.NewPortalGuard(container.Sessions, metrics)

	setupGlobalMiddleware(router, cfg, metrics)
	setupPublicRoutes(router, ctrls, metrics, redisClient)
	setupCitizenRoutes(router, ctrls.Citizen, guard, redisClient)
	setupResponderRoutes(router, ctrls.Responder, guard, redisClient)
	setupCoordinatorRoutes(router, ctrls.Coordinator, guard, redisClient)
	router.NoRoute(middleware.NoRoute)

	return &Gateway{
		Router:   router,
		Registry: registry,
		Metrics:  metrics,
	}
}

func initializeControllers(cfg *config.Config, container *services.Container, redisClient *redis.Client, registry *controllers.ViewRegistry) *Controllers {
	var scopes repositories.TokenScopes
	if redisClient != nil {
		scopes = repositories.NewRedisTokenScopes(redisClient, "gateway")
	} else {
		logrus.Info("No Redis configured, gateway sessions are kept in memory")
		scopes = repositories.NewMemoryTokenScopes(cfg.ViewIdleTTL)
	}

	return &Controllers{
		Auth:        controllers.NewAuthController(container, scopes, registry, !cfg.IsDevelopment()),
		Citizen:     controllers.NewCitizenController(registry, container.Validator),
		Responder:   controllers.NewResponderController(registry, container.Validator),
		Coordinator: controllers.NewCoordinatorController(registry, container.Validator),
		Health:      controllers.NewHealthController(redisClient, registry),
	}
}

// Global middleware setup
func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config, metrics *middleware.Metrics) {
	errorHandler := middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger())

	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(errorHandler.Handle())
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig([]string{cfg.LandingURL})))
	router.Use(metrics.Middleware())
}

// Public routes (no portal guard)
func setupPublicRoutes(router *gin.Engine, ctrls *Controllers, metrics *middleware.Metrics, redisClient *redis.Client) {
	router.GET("/health", ctrls.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.POST("/login", middleware.AuthRateLimit(redisClient), ctrls.Auth.Login)
	router.POST("/register", middleware.AuthRateLimit(redisClient), ctrls.Auth.Register)
	router.POST("/logout", ctrls.Auth.Logout)
}

func setupCitizenRoutes(router *gin.Engine, ctrl *controllers.CitizenController, guard *middleware.PortalGuard, redisClient *redis.Client) {
	citizen := router.Group("/citizen")
	citizen.Use(guard.Require(models.RoleCitizen))
	citizen.Use(middleware.PortalRateLimit(redisClient))
	{
		citizen.GET("/reports", ctrl.GetReports)
		citizen.POST("/reports", middleware.ReportRateLimit(redisClient), ctrl.Submit)
		citizen.POST("/refresh", ctrl.Refresh)
		citizen.GET("/draft", ctrl.GetDraft)
		citizen.PATCH("/draft", ctrl.UpdateDraft)
		citizen.POST("/locate", ctrl.Locate)
	}
}

func setupResponderRoutes(router *gin.Engine, ctrl *controllers.ResponderController, guard *middleware.PortalGuard, redisClient *redis.Client) {
	responder := router.Group("/responder")
	responder.Use(guard.Require(models.RoleResponder))
	responder.Use(middleware.PortalRateLimit(redisClient))
	{
		responder.GET("/missions", ctrl.GetMissions)
		responder.POST("/refresh", ctrl.Refresh)
		responder.POST("/missions/:id/status", ctrl.AdvanceMission)
		responder.GET("/missions/:id/messages", ctrl.GetMessages)
		responder.POST("/missions/:id/messages", ctrl.SendMessage)
		responder.GET("/location", ctrl.GetLocation)
		responder.POST("/location/toggle", ctrl.ToggleLocation)
		responder.GET("/updates", ctrl.GetUpdates)
	}
}

func setupCoordinatorRoutes(router *gin.Engine, ctrl *controllers.CoordinatorController, guard *middleware.PortalGuard, redisClient *redis.Client) {
	coordinator := router.Group("/coordinator")
	coordinator.Use(guard.Require(models.RoleCoordinator))
	coordinator.Use(middleware.PortalRateLimit(redisClient))
	{
		coordinator.GET("/dashboard", ctrl.GetDashboard)
		coordinator.POST("/refresh", ctrl.Refresh)

		emergencies := coordinator.Group("/emergencies/:id")
		emergencies.PATCH("/status", ctrl.UpdateEmergencyStatus)
		emergencies.PATCH("/urgency", ctrl.UpdateUrgency)
		emergencies.POST("/assign", ctrl.Assign)
		emergencies.POST("/assign-all", ctrl.AssignAll)
		emergencies.POST("/mission", ctrl.CreateMission)
		emergencies.GET("/messages", ctrl.GetEmergencyMessages)
		emergencies.POST("/messages", ctrl.SendEmergencyMessage)

		missions := coordinator.Group("/missions/:id")
		missions.PATCH("/status", ctrl.UpdateMissionStatus)
		missions.GET("/messages", ctrl.GetMissionMessages)
		missions.POST("/messages", ctrl.SendMissionMessage)
	}
}
