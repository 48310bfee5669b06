package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
)

// InteractionHandler serves likes and comments on songs and posts.
type InteractionHandler struct {
	*BaseHandler
	interactions services.InteractionService
}

func NewInteractionHandler(base *BaseHandler, interactions services.InteractionService) *InteractionHandler {
	return &InteractionHandler{
		BaseHandler:  base,
		interactions: interactions,
	}
}

func (h *InteractionHandler) RegisterRoutes(r *gin.RouterGroup, g Guards) {
	likes := r.Group("/likes")
	{
		likes.POST("/toggle", g.Auth, h.ToggleLike)
		likes.GET("/interactions/:userId", h.Interactions)
	}

	comments := r.Group("/comments")
	{
		comments.POST("", g.Auth, h.CreateComment)
		comments.DELETE("/:commentId", g.Auth, h.DeleteComment)
		comments.GET("/:contentType/:contentId", g.OptionalAuth, h.ListComments)
	}
}

// --- Likes ---

func (h *InteractionHandler) ToggleLike(c *gin.Context) {
	var req dto.ToggleLikeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.interactions.ToggleLike(c.Request.Context(), h.Viewer(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InteractionHandler) Interactions(c *gin.Context) {
	resp, err := h.interactions.Interactions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// --- Comments ---

func (h *InteractionHandler) CreateComment(c *gin.Context) {
	var req dto.CreateCommentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	comment, err := h.interactions.CreateComment(c.Request.Context(), h.Viewer(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Comment added", "comment": comment})
}

func (h *InteractionHandler) ListComments(c *gin.Context) {
	resp, err := h.interactions.ListComments(
		c.Request.Context(),
		h.Viewer(c),
		c.Param("contentType"),
		c.Param("contentId"),
		ParseQueryInt(c, "page", 1),
		ParseQueryInt(c, "limit", 0),
	)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InteractionHandler) DeleteComment(c *gin.Context) {
	if err := h.interactions.DeleteComment(c.Request.Context(), h.Viewer(c), c.Param("commentId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
