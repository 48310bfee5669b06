package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/middleware"
	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

type AuthHandler struct {
	*BaseHandler
	authService services.AuthService
}

func NewAuthHandler(base *BaseHandler, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		authService: authService,
	}
}

// RegisterRoutes mounts /auth. Register and login are rate limited per IP.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, g Guards) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", g.RateLimit, h.Register)
		auth.POST("/login", g.RateLimit, h.Login)
		auth.POST("/logout", g.Auth, h.Logout)
		auth.GET("/me", g.Auth, h.Me)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	logger.CtxInfo(c.Request.Context(), "User registered", "user_id", resp.User.ID, "role", resp.User.Role)
	c.JSON(http.StatusCreated, gin.H{
		"message":   "User registered successfully",
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
		"user":      resp.User,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
		"user":      resp.User,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("User not authenticated"))
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
