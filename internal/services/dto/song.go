package dto

import (
	"io"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// ---------------- Requests ----------------

// UploadSongRequest holds the multipart form fields of an upload.
type UploadSongRequest struct {
	Title       string `form:"title" json:"title" validate:"required,max=200"`
	Genre       string `form:"genre" json:"genre" validate:"omitempty,max=50"`
	Mood        string `form:"mood" json:"mood" validate:"omitempty,max=50"`
	Description string `form:"description" json:"description" validate:"omitempty,max=2000"`
	DurationSec int    `form:"durationSec" json:"durationSec" validate:"omitempty,min=0"`
	AccessLevel string `form:"accessLevel" json:"accessLevel" validate:"omitempty,access_level"`
}

type UpdateSongRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Genre       *string `json:"genre,omitempty" validate:"omitempty,max=50"`
	Mood        *string `json:"mood,omitempty" validate:"omitempty,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	DurationSec *int    `json:"durationSec,omitempty" validate:"omitempty,min=0"`
	SnippetURL  *string `json:"snippetUrl,omitempty" validate:"omitempty,url"`
	AccessLevel *string `json:"accessLevel,omitempty" validate:"omitempty,access_level"`
}

// UploadFile is one file part of a multipart request.
type UploadFile struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// ---------------- Responses ----------------

type ArtistSummary struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	StageName    string `json:"stageName,omitempty"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type SongResponse struct {
	ID           string             `json:"id"`
	ArtistID     string             `json:"artistId"`
	Artist       *ArtistSummary     `json:"artist,omitempty"`
	Title        string             `json:"title"`
	CoverImage   string             `json:"coverImage,omitempty"`
	AudioURL     string             `json:"audioUrl,omitempty"`
	SnippetURL   string             `json:"snippetUrl,omitempty"`
	Genre        string             `json:"genre,omitempty"`
	Mood         string             `json:"mood,omitempty"`
	Description  string             `json:"description,omitempty"`
	DurationSec  int                `json:"durationSec"`
	AccessLevel  models.AccessLevel `json:"accessLevel"`
	StreamsCount int64              `json:"streamsCount"`
	LikesCount   int64              `json:"likesCount"`
	IsApproved   bool               `json:"isApproved"`
	CreatedAt    time.Time          `json:"createdAt"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type SongListResponse struct {
	Songs      []*SongResponse `json:"songs"`
	Pagination Pagination      `json:"pagination"`
}

type StreamResponse struct {
	Message      string `json:"message"`
	StreamsCount int64  `json:"streamsCount"`
}

type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ---------------- Criteria ----------------

type SongCriteria struct {
	Page     int
	Limit    int
	Genre    string
	Approved *bool
}

// NewSongResponse hides the audio address of premium songs unless the
// caller may play them.
func NewSongResponse(s *models.Song, withAudio bool) *SongResponse {
	resp := &SongResponse{
		ID:           s.ID,
		ArtistID:     s.ArtistID,
		Title:        s.Title,
		CoverImage:   s.CoverImage,
		SnippetURL:   s.SnippetURL,
		Genre:        s.Genre,
		Mood:         s.Mood,
		Description:  s.Description,
		DurationSec:  s.DurationSec,
		AccessLevel:  s.AccessLevel,
		StreamsCount: s.StreamsCount,
		LikesCount:   s.LikesCount,
		IsApproved:   s.IsApproved,
		CreatedAt:    s.CreatedAt,
	}
	if withAudio {
		resp.AudioURL = s.AudioURL
	}
	if s.Artist != nil {
		resp.Artist = &ArtistSummary{
			ID:           s.Artist.ID,
			FullName:     s.Artist.FullName,
			StageName:    s.Artist.StageName,
			Email:        s.Artist.Email,
			ProfileImage: s.Artist.ProfileImage,
		}
	}
	return resp
}

// Pages rounds total/limit up.
func Pages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
