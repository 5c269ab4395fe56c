package verification

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/response"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/verification")
	g.POST("/send", h.send)
	g.POST("/verify", h.verify)
}

type sendDTO struct {
	Email   string `json:"email" binding:"required"`
	Purpose string `json:"purpose"`
}

type verifyDTO struct {
	Email   string `json:"email" binding:"required"`
	Purpose string `json:"purpose"`
	Code    string `json:"code" binding:"required"`
}

func (h *Handler) send(c *gin.Context) {
	var dto sendDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "malformed body")
		return
	}

	err := h.svc.Issue(c.Request.Context(), dto.Email, purposeOf(dto.Purpose), c.ClientIP())
	if err != nil {
		if !errors.Is(err, errs.ErrInvalidInput) && !errors.Is(err, errs.ErrRateLimited) {
			h.logger.Error("code issue failed", zap.Error(err))
		}
		response.FromError(c, err)
		return
	}
	// Same shape whether or not the email is registered.
	response.OK(c, gin.H{"ok": 1})
}

func (h *Handler) verify(c *gin.Context) {
	var dto verifyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "malformed body")
		return
	}

	outcome, err := h.svc.Consume(c.Request.Context(), dto.Email, purposeOf(dto.Purpose), dto.Code, c.ClientIP())
	if err != nil && !errors.Is(err, errs.ErrInvalidInput) {
		h.logger.Error("code consume failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{
		"valid":  outcome == OutcomeValid,
		"reason": string(outcome),
	})
}

func purposeOf(raw string) models.VerificationPurpose {
	if raw == string(models.PurposeReset) {
		return models.PurposeReset
	}
	if raw == "" {
		return models.PurposeVerify
	}
	return models.VerificationPurpose(raw)
}
