package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

type PostHandler struct {
	*BaseHandler
	postService services.PostService
}

func NewPostHandler(base *BaseHandler, postService services.PostService) *PostHandler {
	return &PostHandler{
		BaseHandler: base,
		postService: postService,
	}
}

func (h *PostHandler) RegisterRoutes(r *gin.RouterGroup, g Guards) {
	posts := r.Group("/posts")
	{
		// Protected routes
		posts.POST("", g.Auth, h.Create)
		posts.PUT("/:postId", g.Auth, h.Update)
		posts.DELETE("/:postId", g.Auth, h.Delete)
		posts.PUT("/:postId/like", g.Auth, h.Like)
		posts.PUT("/:postId/unlike", g.Auth, h.Unlike)

		// Public routes, private posts only for their author
		posts.GET("", g.OptionalAuth, h.List)
		posts.GET("/user/:userId", g.OptionalAuth, h.ListByUser)
		posts.GET("/song/:songId", g.OptionalAuth, h.ListBySong)
		posts.GET("/challenge/:challengeId", g.OptionalAuth, h.ListByChallenge)
		posts.GET("/:postId", g.OptionalAuth, h.Get)
	}
}

// --- Writes ---

func (h *PostHandler) Create(c *gin.Context) {
	if _, ok := h.GetAndAuthorizeUserID(c); !ok {
		return
	}

	var req dto.CreatePostRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	media, closeMedia, ok := h.optionalMedia(c)
	if !ok {
		return
	}
	defer closeMedia()

	post, err := h.postService.Create(c.Request.Context(), h.Viewer(c), &req, media)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post": post})
}

func (h *PostHandler) Update(c *gin.Context) {
	var req dto.UpdatePostRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	media, closeMedia, ok := h.optionalMedia(c)
	if !ok {
		return
	}
	defer closeMedia()

	post, err := h.postService.Update(c.Request.Context(), h.Viewer(c), c.Param("postId"), &req, media)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully", "post": post})
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.postService.Delete(c.Request.Context(), h.Viewer(c), c.Param("postId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (h *PostHandler) Like(c *gin.Context) {
	resp, err := h.postService.Like(c.Request.Context(), h.Viewer(c), c.Param("postId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) Unlike(c *gin.Context) {
	resp, err := h.postService.Unlike(c.Request.Context(), h.Viewer(c), c.Param("postId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// optionalMedia opens the "media" part when the request carries one.
func (h *PostHandler) optionalMedia(c *gin.Context) (*dto.UploadFile, func(), bool) {
	header, err := c.FormFile("media")
	if err != nil {
		return nil, func() {}, true
	}
	media, closeMedia, err := openUpload(header)
	if err != nil {
		h.HandleServiceError(c, apperrors.InternalError(err))
		return nil, nil, false
	}
	return media, closeMedia, true
}

// --- Reads ---

func postCriteria(c *gin.Context) dto.PostCriteria {
	return dto.PostCriteria{
		Page:  ParseQueryInt(c, "page", 1),
		Limit: ParseQueryInt(c, "limit", 0),
	}
}

func (h *PostHandler) List(c *gin.Context) {
	resp, err := h.postService.List(c.Request.Context(), h.Viewer(c), postCriteria(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) ListByUser(c *gin.Context) {
	resp, err := h.postService.ListByUser(c.Request.Context(), h.Viewer(c), c.Param("userId"), postCriteria(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) ListBySong(c *gin.Context) {
	resp, err := h.postService.ListBySong(c.Request.Context(), h.Viewer(c), c.Param("songId"), postCriteria(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) ListByChallenge(c *gin.Context) {
	resp, err := h.postService.ListByChallenge(c.Request.Context(), h.Viewer(c), c.Param("challengeId"), postCriteria(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.postService.Get(c.Request.Context(), h.Viewer(c), c.Param("postId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}
