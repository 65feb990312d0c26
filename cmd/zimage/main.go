package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pyiy/zimage/internal/api"
	"github.com/pyiy/zimage/internal/config"
	"github.com/pyiy/zimage/internal/dispatch"
	"github.com/pyiy/zimage/internal/gradio"
	"github.com/pyiy/zimage/internal/history"
	"github.com/pyiy/zimage/internal/imagetool"
	"github.com/pyiy/zimage/internal/ledger"
	"github.com/pyiy/zimage/internal/logger"
	"github.com/pyiy/zimage/internal/provider"
	"github.com/pyiy/zimage/internal/scheduler"
	"github.com/pyiy/zimage/internal/store"
)

// customRecovery is a middleware that recovers from panics and handles http.ErrAbortHandler gracefully.
func customRecovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

func corsConfig(allowedOrigins []string) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	return corsCfg
}

func main() {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, warning, err := config.Load("config.yaml")
	if err != nil {
		// Use a temporary logger for startup errors
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Error("Error initializing store", "error", err)
		os.Exit(1)
	}
	log.Info("Store initialized", "type", cfg.Database.Type)

	lg := ledger.New(db, log)
	if cfg.Credentials != "" {
		// Config only seeds the store on first boot; the API owns the list
		// afterwards.
		if existing, err := lg.Credentials(); err == nil && len(existing) == 0 {
			if err := lg.SetCredentials(cfg.Credentials); err != nil {
				log.Error("Error seeding credentials", "error", err)
				os.Exit(1)
			}
			log.Info("Seeded credentials from config", "count", len(ledger.SplitCredentials(cfg.Credentials)))
		}
	}

	client := gradio.NewClient(log)
	generators := []provider.Generator{
		provider.NewTurboAdapter(client, cfg.Providers.TurboEndpoint, log),
		provider.NewFluxAdapter(client, cfg.Providers.FluxEndpoint, log),
		provider.NewQwenAdapter(client, cfg.Providers.QwenEndpoint, log),
		provider.NewHiDreamAdapter(client, cfg.Providers.HiDreamEndpoint, log),
	}
	upscaler := provider.NewUpscaler(client, cfg.Providers.UpscaleEndpoint, log)
	optimizer := provider.NewOptimizer(nil, cfg.Optimizer.Endpoint, cfg.Optimizer.Model, cfg.Optimizer.BasePrompt, log)

	dispatcher := dispatch.New(lg, generators, upscaler, optimizer, log)
	historyMgr := history.NewManager(db, log)

	sched := scheduler.New(db, historyMgr, log)
	if err := sched.Start(); err != nil {
		log.Error("Error starting scheduler", "error", err)
		os.Exit(1)
	}
	log.Info("Scheduler started")

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// Use our custom recovery middleware instead of the default one.
	router.Use(customRecovery(log))
	router.Use(cors.New(corsConfig(cfg.API.AllowedOrigins)))

	if cfg.Debug {
		// This uses the default gin logger, which is fine for development.
		router.Use(gin.Logger())
	}

	handler := api.NewHandler(dispatcher, historyMgr, lg, imagetool.NewConverter(), log)
	api.SetupRoutes(router, handler, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sched.Stop()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exiting")
}
