package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/cache"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	Me(ctx context.Context, userID string) (*dto.MeResponse, error)
}

type AuthServiceImpl struct {
	userRepo      repositories.UserRepository
	tokens        *auth.TokenManager
	revocations   cache.TokenRevocationStore
	subscriptions subscription.Service
	now           func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepository,
	tokens *auth.TokenManager,
	revocations cache.TokenRevocationStore,
	subscriptions subscription.Service,
) AuthService {
	return &AuthServiceImpl{
		userRepo:      userRepo,
		tokens:        tokens,
		revocations:   revocations,
		subscriptions: subscriptions,
		now:           time.Now,
	}
}

// Register creates a listener or artist account and signs it in.
func (s *AuthServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.ErrWeakPassword
	}

	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	if err := auth.ValidateRole(role); err != nil {
		return nil, apperrors.FieldError("role", "must be one of user, artist")
	}
	stageName := strings.TrimSpace(req.StageName)
	if role == auth.RoleArtist && stageName == "" {
		return nil, apperrors.FieldError("stageName", "stageName is required for artists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.UserRole(role),
		StageName:    stageName,
		Bio:          req.Bio,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserAlreadyExists) {
			return nil, apperrors.ErrEmailAlreadyExists
		}
		return nil, apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "User registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

func (s *AuthServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.DatabaseError(err)
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.CtxWarn(ctx, "Failed login attempt", "user_id", user.ID)
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthServiceImpl) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return apperrors.ErrInvalidToken
	}
	expiresAt := s.now().Add(s.tokens.TTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return apperrors.InternalError(err)
	}
	logger.CtxInfo(ctx, "User logged out", "user_id", claims.UserID)
	return nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID string) (*dto.MeResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}

	ent, err := s.subscriptions.GetEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.MeResponse{
		User:        dto.NewUserResponse(user, s.now().UTC()),
		Entitlement: ent,
	}, nil
}

func (s *AuthServiceImpl) issue(user *models.User) (*dto.AuthResponse, error) {
	token, claims, err := s.tokens.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      dto.NewUserResponse(user, s.now().UTC()),
	}, nil
}
