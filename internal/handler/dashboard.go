package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/handler/dto"
	"github.com/fugitivebreach/arrow-api/internal/handler/middleware"
	"github.com/fugitivebreach/arrow-api/internal/identity"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
	"github.com/fugitivebreach/arrow-api/internal/service"
	"github.com/fugitivebreach/arrow-api/internal/storage/redis"
)

type DashboardHandler struct {
	keys     *service.KeyService
	linking  *service.LinkingService
	users    user.Repository
	cooldown *redis.Cooldown
	logger   *zap.Logger
}

func NewDashboardHandler(keys *service.KeyService, linking *service.LinkingService, users user.Repository, cooldown *redis.Cooldown, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		keys:     keys,
		linking:  linking,
		users:    users,
		cooldown: cooldown,
		logger:   logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) Me(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.Error(ierr.ErrUnauthorized)
		return
	}

	resp := dto.MeResponse{
		DiscordID: ident.DiscordID(),
		Username:  ident.Username(),
		Ephemeral: ident.Kind() == identity.KindEphemeral,
	}
	if u := ident.User(); u != nil {
		resp.Avatar = u.Avatar
		resp.IsBlacklisted = u.IsBlacklisted
		resp.APIKeys = make([]dto.APIKeyResponse, len(u.APIKeys))
		for i, k := range u.APIKeys {
			resp.APIKeys[i] = dto.APIKeyResponse{
				ID:         k.ID,
				Name:       k.Name,
				CreatedAt:  k.CreatedAt,
				LastUsed:   k.LastUsed,
				UsageCount: k.UsageCount,
				IsActive:   k.Active(),
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *DashboardHandler) GenerateKey(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.Error(ierr.ErrUnauthorized)
		return
	}

	var req dto.GenerateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	key, rec, err := h.keys.Generate(c.Request.Context(), ident.DiscordID(), ident.Username(), req.Name)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.GenerateAPIKeyResponse{
		ID:        rec.ID,
		Key:       key,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
	})
}

func (h *DashboardHandler) DeleteKey(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.Error(ierr.ErrUnauthorized)
		return
	}

	keyID, err := uuid.Parse(c.Param("keyID"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	if err := h.keys.Delete(c.Request.Context(), ident.DiscordID(), keyID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) GenerateVerificationCode(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.Error(ierr.ErrUnauthorized)
		return
	}

	code, err := h.linking.IssueCode(c.Request.Context(), ident.DiscordID(), ident.Username())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.VerificationCodeResponse{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	})
}

// UpdateCookie stores the user's Roblox session credential. A short
// per-user cooldown absorbs double submits from the dashboard form.
func (h *DashboardHandler) UpdateCookie(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.Error(ierr.ErrUnauthorized)
		return
	}

	allowed, err := h.cooldown.Try(c.Request.Context(), ident.DiscordID())
	if err != nil {
		h.logger.Warn("Cooldown check failed, allowing request", zap.Error(err))
	} else if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.APIErrorResponse{
			Code:    "COOLDOWN",
			Message: "Please wait a few seconds before updating the cookie again.",
		})
		return
	}

	var req dto.UpdateCookieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	cookie := &user.RobloxCookie{
		Value:     req.Cookie,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.users.SetRobloxCookie(c.Request.Context(), ident.DiscordID(), cookie); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
