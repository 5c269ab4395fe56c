package device

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/middleware"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/response"
)

const (
	// CookieName carries the previously issued device id back to us.
	CookieName   = "vibez_did"
	cookieMaxAge = 365 * 24 * 60 * 60
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/device", authMW)
	g.POST("/register", h.register)
	g.GET("", h.list)
	g.DELETE("/:deviceId", h.revoke)
}

type registerDTO struct {
	// DeviceClass is a hint only; the server re-derives the authoritative
	// class from request metadata.
	DeviceClass string `json:"device_class"`
}

func (h *Handler) register(c *gin.Context) {
	var dto registerDTO
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, "malformed body")
			return
		}
	}

	presented, _ := c.Cookie(CookieName)
	res, err := h.svc.Register(c.Request.Context(), RegisterInput{
		UserID:            middleware.CurrentUserID(c),
		Email:             middleware.CurrentEmail(c),
		PresentedDeviceID: presented,
		UserAgent:         c.Request.UserAgent(),
		IP:                c.ClientIP(),
		DeclaredClass:     dto.DeviceClass,
	})
	if err != nil {
		if !errors.Is(err, errs.ErrRateLimited) && !errors.Is(err, errs.ErrInvalidInput) {
			h.logger.Error("device registration failed",
				zap.String("user_id", middleware.CurrentUserID(c)),
				zap.Error(err))
		}
		response.FromError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, res.DeviceID, cookieMaxAge, "/", "", true, true)
	response.OK(c, res)
}

func (h *Handler) list(c *gin.Context) {
	devices, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.logger.Error("device list failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	data := make([]gin.H, 0, len(devices))
	for _, d := range devices {
		data = append(data, gin.H{
			"device_id":   d.DeviceID,
			"class":       d.Class,
			"login_at":    d.LoginAt,
			"last_active": d.LastActive,
		})
	}
	response.OK(c, gin.H{"data": data})
}

func (h *Handler) revoke(c *gin.Context) {
	err := h.svc.Revoke(c.Request.Context(), middleware.CurrentUserID(c), c.Param("deviceId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}
