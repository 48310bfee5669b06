package dto

import (
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// ---------------- Requests ----------------

// CreatePostRequest holds the form fields of a new post. The media file,
// if any, travels as the "media" part.
type CreatePostRequest struct {
	Content            string `form:"content" json:"content" validate:"required,max=5000"`
	Visibility         string `form:"visibility" json:"visibility" validate:"omitempty,visibility"`
	RelatedSongID      string `form:"relatedSongId" json:"relatedSongId" validate:"omitempty,uuid"`
	RelatedChallengeID string `form:"relatedChallengeId" json:"relatedChallengeId" validate:"omitempty,uuid"`
	AIGenerated        bool   `form:"aiGenerated" json:"aiGenerated"`
}

type UpdatePostRequest struct {
	Content    *string `form:"content" json:"content,omitempty" validate:"omitempty,min=1,max=5000"`
	Visibility *string `form:"visibility" json:"visibility,omitempty" validate:"omitempty,visibility"`
}

type ToggleLikeRequest struct {
	ContentID   string `json:"contentId" validate:"required,uuid"`
	ContentType string `json:"contentType" validate:"required,content_type"`
}

type CreateCommentRequest struct {
	ContentID   string `json:"contentId" validate:"required,uuid"`
	ContentType string `json:"contentType" validate:"required,content_type"`
	Text        string `json:"text" validate:"required,max=2000"`
}

// ---------------- Responses ----------------

type AuthorSummary struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	StageName    string `json:"stageName,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type PostResponse struct {
	ID                 string            `json:"id"`
	AuthorID           string            `json:"authorId"`
	Author             *AuthorSummary    `json:"author,omitempty"`
	Content            string            `json:"content"`
	MediaURL           string            `json:"mediaUrl,omitempty"`
	MediaType          models.MediaType  `json:"mediaType"`
	Visibility         models.Visibility `json:"visibility"`
	LikesCount         int64             `json:"likesCount"`
	CommentsCount      int64             `json:"commentsCount"`
	RelatedSongID      *string           `json:"relatedSongId,omitempty"`
	RelatedChallengeID *string           `json:"relatedChallengeId,omitempty"`
	AIGenerated        bool              `json:"aiGenerated"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type PostListResponse struct {
	Posts      []*PostResponse `json:"posts"`
	Pagination Pagination      `json:"pagination"`
}

type LikeResponse struct {
	Message     string             `json:"message"`
	Liked       bool               `json:"liked"`
	ContentID   string             `json:"contentId"`
	ContentType models.ContentType `json:"contentType"`
}

type InteractionsResponse struct {
	UserID        string `json:"userId"`
	LikesCount    int64  `json:"likesCount"`
	CommentsCount int64  `json:"commentsCount"`
}

type CommentResponse struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	User        *AuthorSummary     `json:"user,omitempty"`
	ContentID   string             `json:"contentId"`
	ContentType models.ContentType `json:"contentType"`
	Text        string             `json:"text"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type CommentListResponse struct {
	Comments   []*CommentResponse `json:"comments"`
	Pagination Pagination         `json:"pagination"`
}

// ---------------- Criteria ----------------

type PostCriteria struct {
	Page  int
	Limit int
}

func newAuthorSummary(u *models.User) *AuthorSummary {
	if u == nil {
		return nil
	}
	return &AuthorSummary{
		ID:           u.ID,
		FullName:     u.FullName,
		StageName:    u.StageName,
		ProfileImage: u.ProfileImage,
	}
}

func NewPostResponse(p *models.Post) *PostResponse {
	return &PostResponse{
		ID:                 p.ID,
		AuthorID:           p.AuthorID,
		Author:             newAuthorSummary(p.Author),
		Content:            p.Content,
		MediaURL:           p.MediaURL,
		MediaType:          p.MediaType,
		Visibility:         p.Visibility,
		LikesCount:         p.LikesCount,
		CommentsCount:      p.CommentsCount,
		RelatedSongID:      p.RelatedSongID,
		RelatedChallengeID: p.RelatedChallengeID,
		AIGenerated:        p.AIGenerated,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func NewCommentResponse(c *models.Comment) *CommentResponse {
	return &CommentResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		User:        newAuthorSummary(c.User),
		ContentID:   c.ContentID,
		ContentType: c.ContentType,
		Text:        c.Text,
		CreatedAt:   c.CreatedAt,
	}
}
