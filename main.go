package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rescuelink/config"
	"rescuelink/repositories"
	"rescuelink/routes"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg             *config.Config
	credentialsPath string
	latitude        float64
	longitude       float64
)

var rootCmd = &cobra.Command{
	Use:           "rescuelink",
	Short:         "RescueLink emergency response portals",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load environment variables
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
		cfg = config.Load()
		if cmd.Flags().Changed("lat") {
			cfg.DefaultLatitude = latitude
		}
		if cmd.Flags().Changed("lng") {
			cfg.DefaultLongitude = longitude
		}
		setupLogger(cfg)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal gateway",
	RunE:  runServe,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", repositories.DefaultCredentialsPath(), "Credentials file used when REDIS_URL is not set")
	rootCmd.PersistentFlags().Float64Var(&latitude, "lat", 0, "Latitude reported as the current position")
	rootCmd.PersistentFlags().Float64Var(&longitude, "lng", 0, "Longitude reported as the current position")

	rootCmd.AddCommand(serveCmd)
	addPortalCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// newContainer wires the shared services over tokens.
func newContainer(tokens repositories.TokenRepository) *services.Container {
	validator := utils.NewValidationService()
	sessions := services.NewSessionService(tokens, utils.NewTokenDecoder(cfg.JWTSecret), cfg.LoginPath, cfg.LandingURL)
	backend := services.NewBackendClient(cfg.APIBaseURL, cfg.HTTPTimeout, sessions.StoredCredentials())

	geocoder := services.NewGeocodeService(cfg.GeocoderURL, cfg.HTTPTimeout)
	provider := services.StaticPositionProvider{
		Latitude:  cfg.DefaultLatitude,
		Longitude: cfg.DefaultLongitude,
		Interval:  10 * time.Second,
	}
	location := services.NewLocationService(provider, geocoder, cfg.GeolocationTimeout)

	return services.NewContainer(backend, validator, sessions, location, cfg.AssignConcurrency)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Redis
	redis := config.InitRedis(cfg)
	if redis != nil {
		defer redis.Close()
	}

	// Gateway sessions keep their own credentials; the shared store stays empty.
	container := newContainer(repositories.NewMemoryTokenRepository())
	gateway := routes.SetupRoutes(cfg, container, redis)
	defer gateway.Close()

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        gateway.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"backend": cfg.APIBaseURL,
		}).Info("RescueLink gateway starting")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logrus.Info("Shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logrus.Info("Gateway shutdown complete")
	return nil
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
