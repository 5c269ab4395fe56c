package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Vibez0-CONNECT/vibez/internal/config"
	"github.com/Vibez0-CONNECT/vibez/internal/database"
	"github.com/Vibez0-CONNECT/vibez/internal/middleware"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/codehash"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/identity"
	pkgredis "github.com/Vibez0-CONNECT/vibez/internal/pkg/redis"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/relay"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/relaysign"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	logger *zap.Logger
}

// New initializes the application: config → DB → Redis → security core → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	verifier, err := identity.NewVerifier(cfg.Identity.Secret)
	if err != nil {
		return nil, err
	}
	hasher, err := codehash.New([]byte(cfg.Security.ServerSecret))
	if err != nil {
		return nil, err
	}
	signer, err := relaysign.New([]byte(cfg.Security.ServerSecret), cfg.Relay.Freshness)
	if err != nil {
		return nil, err
	}
	relayClient := relay.New(cfg.Relay.Endpoint, signer, cfg.Relay.Timeout)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	app := &App{cfg: cfg, router: router, db: db, logger: logger}
	app.registerRoutes(rc, verifier, hasher, relayClient)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }
