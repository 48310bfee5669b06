package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

type SongHandler struct {
	*BaseHandler
	songService services.SongService
}

func NewSongHandler(base *BaseHandler, songService services.SongService) *SongHandler {
	return &SongHandler{
		BaseHandler: base,
		songService: songService,
	}
}

func (h *SongHandler) RegisterRoutes(r *gin.RouterGroup, g Guards) {
	songs := r.Group("/songs")
	{
		// Protected routes
		songs.POST("/upload", g.Auth, h.Upload)
		songs.GET("", g.Auth, g.Entitlement, h.List)
		songs.POST("/:songId/stream", g.Auth, g.Entitlement, h.Stream)
		songs.GET("/:songId/download", g.Auth, g.Premium, h.Download)
		songs.PUT("/:songId", g.Auth, h.Update)
		songs.DELETE("/:songId", g.Auth, h.Delete)

		// Public routes, richer for signed-in callers
		songs.GET("/search", g.OptionalAuth, g.Entitlement, h.Search)
		songs.GET("/artist/:artistId", g.OptionalAuth, g.Entitlement, h.ListByArtist)
		songs.GET("/:songId", g.OptionalAuth, g.Entitlement, h.Get)
	}

	// Admin routes
	admin := r.Group("/admin/songs")
	admin.Use(g.Auth, g.Admin)
	{
		admin.PUT("/:songId/approval", h.SetApproval)
	}
}

// --- Upload ---

func (h *SongHandler) Upload(c *gin.Context) {
	if _, ok := h.GetAndAuthorizeUserID(c); !ok {
		return
	}

	var req dto.UploadSongRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	audioHeader, err := c.FormFile("audioFile")
	if err != nil {
		apperrors.HandleError(c, apperrors.FieldError("audioFile", "audio file is required"))
		return
	}
	audio, closeAudio, err := openUpload(audioHeader)
	if err != nil {
		h.HandleServiceError(c, apperrors.InternalError(err))
		return
	}
	defer closeAudio()

	var cover *dto.UploadFile
	if coverHeader, err := c.FormFile("coverImage"); err == nil {
		var closeCover func()
		cover, closeCover, err = openUpload(coverHeader)
		if err != nil {
			h.HandleServiceError(c, apperrors.InternalError(err))
			return
		}
		defer closeCover()
	}

	song, err := h.songService.Upload(c.Request.Context(), h.Viewer(c), &req, audio, cover)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Song uploaded successfully", "song": song})
}

func openUpload(fh *multipart.FileHeader) (*dto.UploadFile, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &dto.UploadFile{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}, func() { _ = f.Close() }, nil
}

// --- Reads ---

func (h *SongHandler) List(c *gin.Context) {
	criteria := dto.SongCriteria{
		Page:     ParseQueryInt(c, "page", 1),
		Limit:    ParseQueryInt(c, "limit", 0),
		Genre:    c.Query("genre"),
		Approved: ParseQueryBool(c, "approved"),
	}

	resp, err := h.songService.List(c.Request.Context(), h.Viewer(c), criteria)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SongHandler) Search(c *gin.Context) {
	songs, err := h.songService.Search(c.Request.Context(), h.Viewer(c), c.Query("q"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"songs": songs, "total": len(songs)})
}

func (h *SongHandler) ListByArtist(c *gin.Context) {
	songs, err := h.songService.ListByArtist(c.Request.Context(), h.Viewer(c), c.Param("artistId"), ParseQueryBool(c, "approved"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"songs": songs, "total": len(songs)})
}

func (h *SongHandler) Get(c *gin.Context) {
	song, err := h.songService.Get(c.Request.Context(), h.Viewer(c), c.Param("songId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"song": song})
}

// --- Playback ---

func (h *SongHandler) Stream(c *gin.Context) {
	resp, err := h.songService.Stream(c.Request.Context(), h.Viewer(c), c.Param("songId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SongHandler) Download(c *gin.Context) {
	resp, err := h.songService.DownloadURL(c.Request.Context(), h.Viewer(c), c.Param("songId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// --- Owner operations ---

func (h *SongHandler) Update(c *gin.Context) {
	var req dto.UpdateSongRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	song, err := h.songService.Update(c.Request.Context(), h.Viewer(c), c.Param("songId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Song updated successfully", "song": song})
}

func (h *SongHandler) Delete(c *gin.Context) {
	if err := h.songService.Delete(c.Request.Context(), h.Viewer(c), c.Param("songId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Song deleted successfully"})
}

type approvalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

func (h *SongHandler) SetApproval(c *gin.Context) {
	var req approvalRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.songService.SetApproval(c.Request.Context(), h.Viewer(c), c.Param("songId"), *req.Approved); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Song approval updated", "approved": *req.Approved})
}
