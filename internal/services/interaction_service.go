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
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

const (
	defaultCommentLimit = 20
	maxCommentLimit     = 100
)

// errUnchanged rolls back a like transaction whose row was already in the
// wanted state.
var errUnchanged = errors.New("like unchanged")

// InteractionService owns likes and comments on songs and posts. Counters
// on the target move in the same transaction as the like or comment row.
type InteractionService interface {
	ToggleLike(ctx context.Context, viewer Viewer, req *dto.ToggleLikeRequest) (*dto.LikeResponse, error)
	SetLiked(ctx context.Context, viewer Viewer, contentType models.ContentType, contentID string, liked bool) (*dto.LikeResponse, error)
	Interactions(ctx context.Context, userID string) (*dto.InteractionsResponse, error)
	CreateComment(ctx context.Context, viewer Viewer, req *dto.CreateCommentRequest) (*dto.CommentResponse, error)
	ListComments(ctx context.Context, viewer Viewer, contentType, contentID string, page, limit int) (*dto.CommentListResponse, error)
	DeleteComment(ctx context.Context, viewer Viewer, commentID string) error
}

type interactionService struct {
	likes    repositories.LikeRepository
	comments repositories.CommentRepository
	posts    repositories.PostRepository
	users    repositories.UserRepository
	tx       repositories.Transactor
}

func NewInteractionService(
	likes repositories.LikeRepository,
	comments repositories.CommentRepository,
	posts repositories.PostRepository,
	users repositories.UserRepository,
	tx repositories.Transactor,
) InteractionService {
	return &interactionService{
		likes:    likes,
		comments: comments,
		posts:    posts,
		users:    users,
		tx:       tx,
	}
}

// ---------------- Likes ----------------

func (s *interactionService) ToggleLike(ctx context.Context, viewer Viewer, req *dto.ToggleLikeRequest) (*dto.LikeResponse, error) {
	contentType, err := parseContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	return s.like(ctx, viewer, contentType, req.ContentID, nil)
}

func (s *interactionService) SetLiked(ctx context.Context, viewer Viewer, contentType models.ContentType, contentID string, liked bool) (*dto.LikeResponse, error) {
	return s.like(ctx, viewer, contentType, contentID, &liked)
}

// like moves the target counter first, which locks the target row, then
// writes the like row. want nil flips the current state.
func (s *interactionService) like(ctx context.Context, viewer Viewer, contentType models.ContentType, contentID string, want *bool) (*dto.LikeResponse, error) {
	if viewer.anonymous() {
		return nil, apperrors.NewUnauthorizedError("Authentication required")
	}
	if err := s.checkTarget(ctx, viewer, contentType, contentID); err != nil {
		return nil, err
	}

	var liked bool
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if want != nil {
			liked = *want
		} else {
			exists, err := s.likes.Exists(ctx, viewer.UserID, contentType, contentID)
			if err != nil {
				return err
			}
			liked = !exists
		}

		delta := int64(-1)
		if liked {
			delta = 1
		}
		if err := s.likes.AdjustLikes(ctx, contentType, contentID, delta); err != nil {
			return err
		}

		if liked {
			err := s.likes.Create(ctx, &models.Like{UserID: viewer.UserID, ContentID: contentID, ContentType: contentType})
			if errors.Is(err, repositories.ErrAlreadyLiked) {
				return errUnchanged
			}
			return err
		}
		err := s.likes.Delete(ctx, viewer.UserID, contentType, contentID)
		if errors.Is(err, repositories.ErrLikeNotFound) {
			return errUnchanged
		}
		return err
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		if errors.Is(err, repositories.ErrContentNotFound) {
			return nil, apperrors.ErrContentNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}

	resp := &dto.LikeResponse{Message: "Like removed", Liked: liked, ContentID: contentID, ContentType: contentType}
	if liked {
		resp.Message = "Like added"
	}
	if err == nil {
		logger.CtxDebug(ctx, "Like updated", "user_id", viewer.UserID, "content_type", contentType, "content_id", contentID, "liked", liked)
	}
	return resp, nil
}

func (s *interactionService) Interactions(ctx context.Context, userID string) (*dto.InteractionsResponse, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}

	likes, err := s.likes.CountByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	comments, err := s.comments.CountByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return &dto.InteractionsResponse{UserID: userID, LikesCount: likes, CommentsCount: comments}, nil
}

// ---------------- Comments ----------------

func (s *interactionService) CreateComment(ctx context.Context, viewer Viewer, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	if viewer.anonymous() {
		return nil, apperrors.NewUnauthorizedError("Authentication required")
	}
	contentType, err := parseContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperrors.FieldError("text", "text is required")
	}
	if err := s.checkTarget(ctx, viewer, contentType, req.ContentID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		UserID:      viewer.UserID,
		ContentID:   req.ContentID,
		ContentType: contentType,
		Text:        text,
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.comments.AdjustComments(ctx, contentType, req.ContentID, 1); err != nil {
			return err
		}
		return s.comments.Create(ctx, comment)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrContentNotFound) {
			return nil, apperrors.ErrContentNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}

	if user, err := s.users.FindByID(ctx, viewer.UserID); err == nil {
		comment.User = user
	}
	return dto.NewCommentResponse(comment), nil
}

func (s *interactionService) ListComments(ctx context.Context, viewer Viewer, contentType, contentID string, page, limit int) (*dto.CommentListResponse, error) {
	ct, err := parseContentType(contentType)
	if err != nil {
		return nil, err
	}
	if err := s.checkTarget(ctx, viewer, ct, contentID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	if limit > maxCommentLimit {
		limit = maxCommentLimit
	}

	comments, total, err := s.comments.FindByContent(ctx, ct, contentID, page, limit)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	items := make([]*dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return &dto.CommentListResponse{
		Comments: items,
		Pagination: dto.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: dto.Pages(total, limit),
		},
	}, nil
}

// DeleteComment lets the commenter or a moderator remove a comment. A
// target that is already gone leaves nothing to decrement.
func (s *interactionService) DeleteComment(ctx context.Context, viewer Viewer, commentID string) error {
	if viewer.anonymous() {
		return apperrors.NewUnauthorizedError("Authentication required")
	}
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return apperrors.ErrCommentNotFound
		}
		return apperrors.DatabaseError(err)
	}
	if comment.UserID != viewer.UserID && !auth.HasPermission(viewer.Role, auth.PermPostsManageAny) {
		return apperrors.ErrNotCommentOwner
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.comments.Delete(ctx, commentID); err != nil {
			return err
		}
		err := s.comments.AdjustComments(ctx, comment.ContentType, comment.ContentID, -1)
		if errors.Is(err, repositories.ErrContentNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return apperrors.ErrCommentNotFound
		}
		return apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "Comment deleted", "comment_id", commentID, "by", viewer.UserID)
	return nil
}

// ---------------- Helpers ----------------

// checkTarget hides posts the viewer may not see. Missing targets surface
// from the counter update inside the transaction.
func (s *interactionService) checkTarget(ctx context.Context, viewer Viewer, contentType models.ContentType, contentID string) error {
	if contentType != models.ContentTypePost {
		return nil
	}
	post, err := s.posts.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return apperrors.ErrContentNotFound
		}
		return apperrors.DatabaseError(err)
	}
	if !canSeePost(viewer, post) {
		return apperrors.ErrContentNotFound
	}
	return nil
}

func parseContentType(raw string) (models.ContentType, error) {
	switch ct := models.ContentType(raw); ct {
	case models.ContentTypeSong, models.ContentTypePost:
		return ct, nil
	default:
		return "", apperrors.FieldError("contentType", "Must be one of: song, post")
	}
}
