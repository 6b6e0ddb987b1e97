package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"streamcast/internal/core/services"
	httphandlers "streamcast/internal/handlers/http"
	"streamcast/internal/infrastructure/directory"
	"streamcast/internal/infrastructure/middleware"
	"streamcast/internal/infrastructure/monitoring"
	wssignal "streamcast/internal/infrastructure/signal"
	"streamcast/pkg/config"
	"streamcast/pkg/logger"
	"streamcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/streamcast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing (no-op unless enabled)
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	iceServers := cfg.ICEServers()

	collector := monitoring.NewPrometheusCollector()
	roomDirectory := directory.New(cfg, log)

	registry := services.NewConnectionRegistry(iceServers, collector, log.Named("registry"))
	rooms := services.NewRoomManager(registry, log.Named("rooms"))
	signaling := services.NewSignalingRouter(registry, rooms, collector, log.Named("signaling"))
	relay := services.NewRelayHub(registry, rooms, collector, log.Named("relay"))
	stats := services.NewStatsAggregator(registry, rooms, cfg.Stats.Interval, log.Named("stats"))

	rooms.AddObserver(collector)
	rooms.AddObserver(stats)
	rooms.AddObserver(directory.NewRecorder(roomDirectory, log.Named("directory")))

	wsServer := wssignal.NewServer(wssignal.Config{
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		WriteTimeout:      cfg.WebSocket.WriteTimeout,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		ControlQueueSize:  cfg.WebSocket.ControlQueueSize,
		FrameQueueSize:    cfg.Relay.ViewerQueueSize,
		MessagesPerSecond: wsMessagesPerSecond(cfg),
		Burst:             cfg.RateLimiting.WebSocket.Burst,
	}, registry, rooms, signaling, relay, stats, log.Named("signal"))

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewAuthMiddleware(cfg))

	roomsHandler := httphandlers.NewRoomsHandler(roomDirectory, registry, iceServers, log.Named("http"))
	roomsHandler.SetupRoutes(router)
	router.GET("/health", roomsHandler.Health)
	router.GET("/ready", roomsHandler.Ready)
	router.GET("/ws", func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting streamcast server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down streamcast server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	stats.Close()

	if err := roomDirectory.Close(); err != nil {
		log.Errorw("Error closing room directory", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("streamcast server stopped")
}

func wsMessagesPerSecond(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}
