package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Vibez0-CONNECT/vibez/internal/middleware"
	"github.com/Vibez0-CONNECT/vibez/internal/modules/account/device"
	"github.com/Vibez0-CONNECT/vibez/internal/modules/account/verification"
	"github.com/Vibez0-CONNECT/vibez/internal/modules/system"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/codehash"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/identity"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/ratelimit"
	pkgredis "github.com/Vibez0-CONNECT/vibez/internal/pkg/redis"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/relay"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/response"
)

// Per-concern window budgets. The coarse redis per-IP gate sits above these.
const (
	deviceLimitMax    = 30
	deviceLimitWindow = time.Minute
	codeLimitMax      = 5
	codeLimitWindow   = 10 * time.Minute
)

func (a *App) registerRoutes(rc *pkgredis.Client, verifier *identity.Verifier, hasher *codehash.Hasher, relayClient *relay.Client) {
	r := a.router
	authMW := middleware.Auth(verifier)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"ok": 1})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(rc.Raw()))

	account := api.Group("/account")

	deviceSvc := device.NewService(
		device.NewStore(a.db),
		ratelimit.New(deviceLimitMax, deviceLimitWindow),
		a.cfg.Devices.MaxPerUser,
		a.logger,
	)
	device.NewHandler(deviceSvc, a.logger).RegisterRoutes(account, authMW)

	verifySvc := verification.NewService(
		verification.NewStore(a.db),
		hasher,
		relayClient,
		ratelimit.New(codeLimitMax, codeLimitWindow),
		verification.Config{
			VerifyTTL:   a.cfg.Verification.VerifyTTL,
			ResetTTL:    a.cfg.Verification.ResetTTL,
			MaxAttempts: a.cfg.Verification.MaxAttempts,
			BindIP:      a.cfg.Verification.BindIP,
		},
		a.logger,
	)
	verification.NewHandler(verifySvc, a.logger).RegisterRoutes(account)

	system.NewHandler(a.logger).RegisterRoutes(api, authMW)
}
