package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/predictive-autoscaler/api/handlers"
	"github.com/OldStager01/predictive-autoscaler/api/middleware"
	"github.com/OldStager01/predictive-autoscaler/api/websocket"
	"github.com/OldStager01/predictive-autoscaler/internal/auth"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/config"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

const maxRequestBody = 64 << 10

// Dependencies are the read and write surfaces the API exposes.
type Dependencies struct {
	Status     handlers.StatusSource
	History    handlers.HistorySource
	Forecaster handlers.ForecastSource
	Decisions  handlers.DecisionSource
	Thresholds handlers.ThresholdStore
	Ready      handlers.ReadinessProbe
	Checks     map[string]handlers.Checker
	// Events feeds the websocket stream; nil disables it.
	Events <-chan *models.Event
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.APIConfig
	authService *auth.Service
	wsHub       *websocket.Hub
	wsBridge    *websocket.EventBridge
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.App.Mode == "test" {
		gin.SetMode(gin.TestMode)
	}

	apiCfg := cfg.API
	authService := auth.NewService(apiCfg.JWTSecret, apiCfg.JWTDuration).WithIssuer(apiCfg.JWTIssuer)

	s := &Server{
		router:      gin.New(),
		config:      apiCfg,
		authService: authService,
		wsHub:       websocket.NewHub(websocket.NewSettings(cfg.WebSocket)),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg, deps)

	if deps.Events != nil {
		s.wsBridge = websocket.NewEventBridge(s.wsHub, deps.Events)
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	cors := middleware.DefaultCORSConfig()
	if len(s.config.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = s.config.CORS.AllowedOrigins
	}
	if len(s.config.CORS.AllowedMethods) > 0 {
		cors.AllowMethods = s.config.CORS.AllowedMethods
	}
	if len(s.config.CORS.AllowedHeaders) > 0 {
		cors.AllowHeaders = s.config.CORS.AllowedHeaders
	}
	cors.AllowCredentials = s.config.CORS.AllowCredentials

	s.router.Use(gin.Recovery())
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.CORS(cors))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.RequestSizeLimit(maxRequestBody))
}

func (s *Server) setupRoutes(cfg *config.Config, deps Dependencies) {
	operators := make(auth.Operators, len(s.config.Operators))
	for _, op := range s.config.Operators {
		operators[op.Username] = op.PasswordHash
	}

	healthHandler := handlers.NewHealthHandler(deps.Ready, deps.Checks)
	authHandler := handlers.NewAuthHandler(operators, s.authService, cfg.App.Mode == "production")
	fleetHandler := handlers.NewFleetHandler(deps.Status, deps.History, deps.Forecaster)
	decisionHandler := handlers.NewDecisionHandler(deps.Decisions, s.config.DefaultLimit, s.config.MaxLimit)
	thresholdHandler := handlers.NewThresholdHandler(deps.Thresholds)

	// Public routes
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)
	s.router.POST("/auth/login", middleware.AuthRateLimiter(), authHandler.Login)

	writeLimits := middleware.NewEndpointRateLimiter()
	writeLimits.AddEndpoint(http.MethodPut, "/thresholds", 10, time.Minute)

	protected := s.router.Group("/")
	protected.Use(middleware.JWTAuth(s.authService), writeLimits.Middleware())
	{
		protected.GET("/status", fleetHandler.Status)
		protected.GET("/forecast", fleetHandler.Forecast)
		protected.GET("/history", fleetHandler.History)

		protected.GET("/decisions", decisionHandler.List)
		protected.GET("/decisions/stats", decisionHandler.Stats)
		protected.GET("/decisions/:id", decisionHandler.Get)

		protected.GET("/thresholds", thresholdHandler.Get)
		protected.PUT("/thresholds", thresholdHandler.Update)

		protected.GET("/ws", websocket.ServeWebSocket(s.wsHub))
	}
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.WithComponent("api").Infof("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}
	s.wsHub.Close()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
