package services

import (
	"context"
	"errors"
	"strings"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/internal/storage"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

const (
	defaultPostLimit = 10
	maxPostLimit     = 100
)

type PostService interface {
	Create(ctx context.Context, viewer Viewer, req *dto.CreatePostRequest, media *dto.UploadFile) (*dto.PostResponse, error)
	Get(ctx context.Context, viewer Viewer, postID string) (*dto.PostResponse, error)
	List(ctx context.Context, viewer Viewer, criteria dto.PostCriteria) (*dto.PostListResponse, error)
	ListByUser(ctx context.Context, viewer Viewer, userID string, criteria dto.PostCriteria) (*dto.PostListResponse, error)
	ListBySong(ctx context.Context, viewer Viewer, songID string, criteria dto.PostCriteria) (*dto.PostListResponse, error)
	ListByChallenge(ctx context.Context, viewer Viewer, challengeID string, criteria dto.PostCriteria) (*dto.PostListResponse, error)
	Update(ctx context.Context, viewer Viewer, postID string, req *dto.UpdatePostRequest, media *dto.UploadFile) (*dto.PostResponse, error)
	Delete(ctx context.Context, viewer Viewer, postID string) error
	Like(ctx context.Context, viewer Viewer, postID string) (*dto.LikeResponse, error)
	Unlike(ctx context.Context, viewer Viewer, postID string) (*dto.LikeResponse, error)
}

type postService struct {
	posts        repositories.PostRepository
	tx           repositories.Transactor
	storage      storage.Storage
	interactions InteractionService
	limits       UploadLimits
}

func NewPostService(
	posts repositories.PostRepository,
	tx repositories.Transactor,
	store storage.Storage,
	interactions InteractionService,
	limits UploadLimits,
) PostService {
	return &postService{
		posts:        posts,
		tx:           tx,
		storage:      store,
		interactions: interactions,
		limits:       limits,
	}
}

// ---------------- Writes ----------------

func (s *postService) Create(ctx context.Context, viewer Viewer, req *dto.CreatePostRequest, media *dto.UploadFile) (*dto.PostResponse, error) {
	if viewer.anonymous() {
		return nil, apperrors.NewUnauthorizedError("Authentication required to post")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.FieldError("content", "content is required")
	}

	post := &models.Post{
		AuthorID:    viewer.UserID,
		Content:     content,
		MediaType:   models.MediaTypeNone,
		Visibility:  models.VisibilityPublic,
		AIGenerated: req.AIGenerated,
	}
	if req.Visibility != "" {
		post.Visibility = models.Visibility(req.Visibility)
	}
	if req.RelatedSongID != "" {
		post.RelatedSongID = &req.RelatedSongID
	}
	if req.RelatedChallengeID != "" {
		post.RelatedChallengeID = &req.RelatedChallengeID
	}

	if media != nil {
		if err := s.attachMedia(ctx, post, media); err != nil {
			return nil, err
		}
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.removeMedia(ctx, post.MediaKey)
		return nil, apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "Post created", "post_id", post.ID, "author_id", post.AuthorID, "media_type", post.MediaType)
	return dto.NewPostResponse(post), nil
}

// Update replaces the media when a new file is sent; the old object is
// removed only after the row points at the new one.
func (s *postService) Update(ctx context.Context, viewer Viewer, postID string, req *dto.UpdatePostRequest, media *dto.UploadFile) (*dto.PostResponse, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !s.isOwnerOrAdmin(viewer, post) {
		return nil, apperrors.ErrNotPostOwner
	}

	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, apperrors.FieldError("content", "content cannot be empty")
		}
		post.Content = content
	}
	if req.Visibility != nil {
		post.Visibility = models.Visibility(*req.Visibility)
	}

	oldKey := post.MediaKey
	if media != nil {
		if err := s.attachMedia(ctx, post, media); err != nil {
			return nil, err
		}
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if media != nil {
			s.removeMedia(ctx, post.MediaKey)
		}
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, apperrors.ErrPostNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}
	if media != nil {
		s.removeMedia(ctx, oldKey)
	}
	return dto.NewPostResponse(post), nil
}

// Delete drops the post with its likes and comments, then its media.
func (s *postService) Delete(ctx context.Context, viewer Viewer, postID string) error {
	post, err := s.find(ctx, postID)
	if err != nil {
		return err
	}
	if !s.isOwnerOrAdmin(viewer, post) {
		return apperrors.ErrNotPostOwner
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.posts.Delete(ctx, postID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return apperrors.ErrPostNotFound
		}
		return apperrors.DatabaseError(err)
	}
	s.removeMedia(ctx, post.MediaKey)

	logger.CtxInfo(ctx, "Post deleted", "post_id", postID, "by", viewer.UserID)
	return nil
}

func (s *postService) Like(ctx context.Context, viewer Viewer, postID string) (*dto.LikeResponse, error) {
	return s.interactions.SetLiked(ctx, viewer, models.ContentTypePost, postID, true)
}

func (s *postService) Unlike(ctx context.Context, viewer Viewer, postID string) (*dto.LikeResponse, error) {
	return s.interactions.SetLiked(ctx, viewer, models.ContentTypePost, postID, false)
}

// ---------------- Reads ----------------

func (s *postService) Get(ctx context.Context, viewer Viewer, postID string) (*dto.PostResponse, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !canSeePost(viewer, post) {
		return nil, apperrors.ErrPostNotFound
	}
	return dto.NewPostResponse(post), nil
}

func (s *postService) List(ctx context.Context, viewer Viewer, criteria dto.PostCriteria) (*dto.PostListResponse, error) {
	return s.list(ctx, criteria, repositories.PostFilter{Visibilities: visibleTo(viewer, "")})
}

func (s *postService) ListByUser(ctx context.Context, viewer Viewer, userID string, criteria dto.PostCriteria) (*dto.PostListResponse, error) {
	return s.list(ctx, criteria, repositories.PostFilter{AuthorID: userID, Visibilities: visibleTo(viewer, userID)})
}

func (s *postService) ListBySong(ctx context.Context, viewer Viewer, songID string, criteria dto.PostCriteria) (*dto.PostListResponse, error) {
	return s.list(ctx, criteria, repositories.PostFilter{SongID: songID, Visibilities: visibleTo(viewer, "")})
}

func (s *postService) ListByChallenge(ctx context.Context, viewer Viewer, challengeID string, criteria dto.PostCriteria) (*dto.PostListResponse, error) {
	return s.list(ctx, criteria, repositories.PostFilter{ChallengeID: challengeID, Visibilities: visibleTo(viewer, "")})
}

func (s *postService) list(ctx context.Context, criteria dto.PostCriteria, filter repositories.PostFilter) (*dto.PostListResponse, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.Limit <= 0 {
		criteria.Limit = defaultPostLimit
	}
	if criteria.Limit > maxPostLimit {
		criteria.Limit = maxPostLimit
	}
	filter.Page = criteria.Page
	filter.PageSize = criteria.Limit

	posts, total, err := s.posts.FindWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	items := make([]*dto.PostResponse, 0, len(posts))
	for i := range posts {
		items = append(items, dto.NewPostResponse(&posts[i]))
	}
	return &dto.PostListResponse{
		Posts: items,
		Pagination: dto.Pagination{
			Page:  criteria.Page,
			Limit: criteria.Limit,
			Total: total,
			Pages: dto.Pages(total, criteria.Limit),
		},
	}, nil
}

// ---------------- Helpers ----------------

// canSeePost: public posts are open, followersOnly posts need a signed-in
// caller, private posts are for the author and moderators.
func canSeePost(viewer Viewer, post *models.Post) bool {
	switch post.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityFollowersOnly:
		return !viewer.anonymous()
	default:
		return !viewer.anonymous() &&
			(post.AuthorID == viewer.UserID || auth.HasPermission(viewer.Role, auth.PermPostsManageAny))
	}
}

// visibleTo lists the visibilities a feed may include. nil means all, for
// the author's own feed and for moderators.
func visibleTo(viewer Viewer, authorID string) []models.Visibility {
	if viewer.anonymous() {
		return []models.Visibility{models.VisibilityPublic}
	}
	if (authorID != "" && authorID == viewer.UserID) || auth.HasPermission(viewer.Role, auth.PermPostsManageAny) {
		return nil
	}
	return []models.Visibility{models.VisibilityPublic, models.VisibilityFollowersOnly}
}

func (s *postService) find(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, apperrors.ErrPostNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}
	return post, nil
}

func (s *postService) isOwnerOrAdmin(viewer Viewer, post *models.Post) bool {
	if viewer.anonymous() {
		return false
	}
	return post.AuthorID == viewer.UserID || auth.HasPermission(viewer.Role, auth.PermPostsManageAny)
}

// attachMedia stores the file and points post at it.
func (s *postService) attachMedia(ctx context.Context, post *models.Post, media *dto.UploadFile) error {
	mediaType, err := s.checkMedia(media)
	if err != nil {
		return err
	}
	key := storage.NewKey("posts/media", media.Filename)
	if err := s.storage.Save(ctx, key, media.Reader, media.ContentType); err != nil {
		return apperrors.InternalError(err)
	}
	post.MediaKey = key
	post.MediaURL = s.storage.URL(key)
	post.MediaType = mediaType
	return nil
}

func (s *postService) checkMedia(f *dto.UploadFile) (models.MediaType, error) {
	if s.limits.MaxSize > 0 && f.Size > s.limits.MaxSize {
		return "", apperrors.ErrFileTooLarge
	}
	ct := strings.ToLower(f.ContentType)
	if !s.limits.allows(ct) {
		return "", apperrors.ErrInvalidFileType
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.MediaTypeImage, nil
	case strings.HasPrefix(ct, "video/"):
		return models.MediaTypeVideo, nil
	case strings.HasPrefix(ct, "audio/"):
		return models.MediaTypeAudio, nil
	default:
		return "", apperrors.ErrInvalidFileType
	}
}

func (s *postService) removeMedia(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		logger.CtxWithError(ctx, "Failed to delete post media", err, "key", key)
	}
}
