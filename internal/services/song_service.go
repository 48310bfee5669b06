package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/internal/storage"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// DownloadURLTTL is the lifetime of a signed download link.
const DownloadURLTTL = 10 * time.Minute

const (
	defaultSongLimit = 10
	maxSongLimit     = 100
)

var errAuthRequiredForPremium = apperrors.NewUnauthorizedError("Authentication required for premium songs")

// Viewer is the caller of a song operation. A zero Viewer is anonymous.
// Entitlement, when already resolved by the caller, saves a lookup.
type Viewer struct {
	UserID      string
	Role        string
	Entitlement *subscription.Entitlement
}

func (v Viewer) anonymous() bool { return v.UserID == "" }

// UploadLimits bound the files accepted by Upload.
type UploadLimits struct {
	MaxSize      int64
	AllowedTypes []string
}

func (l UploadLimits) allows(contentType string) bool {
	if len(l.AllowedTypes) == 0 {
		return true
	}
	for _, t := range l.AllowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

// CoverProcessor re-encodes uploaded cover art as a bounded JPEG.
type CoverProcessor interface {
	Cover(r io.Reader) (io.Reader, error)
}

type SongService interface {
	Upload(ctx context.Context, viewer Viewer, req *dto.UploadSongRequest, audio *dto.UploadFile, cover *dto.UploadFile) (*dto.SongResponse, error)
	List(ctx context.Context, viewer Viewer, criteria dto.SongCriteria) (*dto.SongListResponse, error)
	Search(ctx context.Context, viewer Viewer, query string) ([]*dto.SongResponse, error)
	ListByArtist(ctx context.Context, viewer Viewer, artistID string, approved *bool) ([]*dto.SongResponse, error)
	Get(ctx context.Context, viewer Viewer, songID string) (*dto.SongResponse, error)
	Stream(ctx context.Context, viewer Viewer, songID string) (*dto.StreamResponse, error)
	DownloadURL(ctx context.Context, viewer Viewer, songID string) (*dto.DownloadResponse, error)
	Update(ctx context.Context, viewer Viewer, songID string, req *dto.UpdateSongRequest) (*dto.SongResponse, error)
	Delete(ctx context.Context, viewer Viewer, songID string) error
	SetApproval(ctx context.Context, viewer Viewer, songID string, approved bool) error
}

type songService struct {
	songRepo      repositories.SongRepository
	storage       storage.Storage
	subscriptions subscription.Service
	covers        CoverProcessor
	limits        UploadLimits
	now           func() time.Time
}

// NewSongService builds the service. covers may be nil, in which case cover
// art is stored as uploaded.
func NewSongService(
	songRepo repositories.SongRepository,
	store storage.Storage,
	subscriptions subscription.Service,
	covers CoverProcessor,
	limits UploadLimits,
) SongService {
	return &songService{
		songRepo:      songRepo,
		storage:       store,
		subscriptions: subscriptions,
		covers:        covers,
		limits:        limits,
		now:           time.Now,
	}
}

// ---------------- Upload ----------------

func (s *songService) Upload(ctx context.Context, viewer Viewer, req *dto.UploadSongRequest, audio *dto.UploadFile, cover *dto.UploadFile) (*dto.SongResponse, error) {
	if viewer.anonymous() {
		return nil, apperrors.NewUnauthorizedError("Authentication required to upload songs")
	}
	if !auth.HasPermission(viewer.Role, auth.PermSongsUpload) {
		return nil, apperrors.ErrInsufficientPermissions
	}
	if audio == nil {
		return nil, apperrors.FieldError("audioFile", "audio file is required")
	}
	if err := s.checkFile(audio, "audio/"); err != nil {
		return nil, err
	}
	if cover != nil {
		if err := s.checkFile(cover, "image/"); err != nil {
			return nil, err
		}
	}

	song := &models.Song{
		ArtistID:    viewer.UserID,
		Title:       strings.TrimSpace(req.Title),
		Genre:       req.Genre,
		Mood:        req.Mood,
		Description: req.Description,
		DurationSec: req.DurationSec,
		AccessLevel: models.AccessLevelFree,
		IsApproved:  true,
	}
	if req.AccessLevel != "" {
		song.AccessLevel = models.AccessLevel(req.AccessLevel)
	}

	song.AudioKey = storage.NewKey("songs/audio", audio.Filename)
	if err := s.storage.Save(ctx, song.AudioKey, audio.Reader, audio.ContentType); err != nil {
		return nil, apperrors.InternalError(err)
	}
	song.AudioURL = s.storage.URL(song.AudioKey)

	if cover != nil {
		body, contentType, filename, err := s.prepareCover(cover)
		if err != nil {
			s.removeMedia(ctx, song.AudioKey)
			return nil, err
		}
		song.CoverKey = storage.NewKey("songs/covers", filename)
		if err := s.storage.Save(ctx, song.CoverKey, body, contentType); err != nil {
			s.removeMedia(ctx, song.AudioKey)
			return nil, apperrors.InternalError(err)
		}
		song.CoverImage = s.storage.URL(song.CoverKey)
	}

	if err := s.songRepo.Create(ctx, song); err != nil {
		s.removeMedia(ctx, song.AudioKey, song.CoverKey)
		return nil, apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "Song uploaded", "song_id", song.ID, "artist_id", song.ArtistID, "access_level", song.AccessLevel)
	return dto.NewSongResponse(song, true), nil
}

// prepareCover returns what is actually stored for the cover upload.
func (s *songService) prepareCover(cover *dto.UploadFile) (io.Reader, string, string, error) {
	if s.covers == nil {
		return cover.Reader, cover.ContentType, cover.Filename, nil
	}
	body, err := s.covers.Cover(cover.Reader)
	if err != nil {
		return nil, "", "", apperrors.ErrInvalidFileType.WithError(err)
	}
	return body, "image/jpeg", "cover.jpg", nil
}

func (s *songService) checkFile(f *dto.UploadFile, kind string) error {
	if s.limits.MaxSize > 0 && f.Size > s.limits.MaxSize {
		return apperrors.ErrFileTooLarge
	}
	ct := strings.ToLower(f.ContentType)
	if !strings.HasPrefix(ct, kind) || !s.limits.allows(ct) {
		return apperrors.ErrInvalidFileType
	}
	return nil
}

// ---------------- Reads ----------------

func (s *songService) List(ctx context.Context, viewer Viewer, criteria dto.SongCriteria) (*dto.SongListResponse, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.Limit <= 0 {
		criteria.Limit = defaultSongLimit
	}
	if criteria.Limit > maxSongLimit {
		criteria.Limit = maxSongLimit
	}

	songs, total, err := s.songRepo.FindWithFilter(ctx, repositories.SongFilter{
		Genre:    criteria.Genre,
		Approved: criteria.Approved,
		Page:     criteria.Page,
		PageSize: criteria.Limit,
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	items, err := s.responses(ctx, viewer, songs)
	if err != nil {
		return nil, err
	}
	return &dto.SongListResponse{
		Songs: items,
		Pagination: dto.Pagination{
			Page:  criteria.Page,
			Limit: criteria.Limit,
			Total: total,
			Pages: dto.Pages(total, criteria.Limit),
		},
	}, nil
}

func (s *songService) Search(ctx context.Context, viewer Viewer, query string) ([]*dto.SongResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewBadRequestError("Query parameter 'q' is required")
	}
	songs, _, err := s.songRepo.FindWithFilter(ctx, repositories.SongFilter{Search: query})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return s.responses(ctx, viewer, songs)
}

func (s *songService) ListByArtist(ctx context.Context, viewer Viewer, artistID string, approved *bool) ([]*dto.SongResponse, error) {
	songs, _, err := s.songRepo.FindWithFilter(ctx, repositories.SongFilter{ArtistID: artistID, Approved: approved})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return s.responses(ctx, viewer, songs)
}

func (s *songService) Get(ctx context.Context, viewer Viewer, songID string) (*dto.SongResponse, error) {
	song, err := s.find(ctx, songID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, viewer, song); err != nil {
		return nil, err
	}
	return dto.NewSongResponse(song, true), nil
}

// ---------------- Playback ----------------

func (s *songService) Stream(ctx context.Context, viewer Viewer, songID string) (*dto.StreamResponse, error) {
	song, err := s.find(ctx, songID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, viewer, song); err != nil {
		return nil, err
	}

	count, err := s.songRepo.IncrementStreams(ctx, songID)
	if err != nil {
		if errors.Is(err, repositories.ErrSongNotFound) {
			return nil, apperrors.ErrSongNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}
	return &dto.StreamResponse{Message: "Stream recorded", StreamsCount: count}, nil
}

func (s *songService) DownloadURL(ctx context.Context, viewer Viewer, songID string) (*dto.DownloadResponse, error) {
	song, err := s.find(ctx, songID)
	if err != nil {
		return nil, err
	}
	if viewer.anonymous() {
		return nil, apperrors.NewUnauthorizedError("Authentication required")
	}
	// Downloads are a premium feature whatever the song's access level.
	if !s.isOwnerOrAdmin(viewer, song) {
		premium, err := s.premium(ctx, viewer)
		if err != nil {
			return nil, err
		}
		if !premium {
			return nil, apperrors.ErrPremiumRequired
		}
	}

	signed, err := s.storage.SignedURL(ctx, song.AudioKey, DownloadURLTTL)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.DownloadResponse{URL: signed, ExpiresAt: s.now().UTC().Add(DownloadURLTTL)}, nil
}

// ---------------- Owner operations ----------------

func (s *songService) Update(ctx context.Context, viewer Viewer, songID string, req *dto.UpdateSongRequest) (*dto.SongResponse, error) {
	song, err := s.find(ctx, songID)
	if err != nil {
		return nil, err
	}
	if !s.isOwnerOrAdmin(viewer, song) {
		return nil, apperrors.ErrNotSongOwner
	}

	if req.Title != nil {
		song.Title = strings.TrimSpace(*req.Title)
	}
	if req.Genre != nil {
		song.Genre = *req.Genre
	}
	if req.Mood != nil {
		song.Mood = *req.Mood
	}
	if req.Description != nil {
		song.Description = *req.Description
	}
	if req.DurationSec != nil {
		song.DurationSec = *req.DurationSec
	}
	if req.SnippetURL != nil {
		song.SnippetURL = *req.SnippetURL
	}
	if req.AccessLevel != nil {
		song.AccessLevel = models.AccessLevel(*req.AccessLevel)
	}

	if err := s.songRepo.Update(ctx, song); err != nil {
		if errors.Is(err, repositories.ErrSongNotFound) {
			return nil, apperrors.ErrSongNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}
	return dto.NewSongResponse(song, true), nil
}

// Delete removes the song row first; media left behind by a failed
// storage delete is only logged.
func (s *songService) Delete(ctx context.Context, viewer Viewer, songID string) error {
	song, err := s.find(ctx, songID)
	if err != nil {
		return err
	}
	if !s.isOwnerOrAdmin(viewer, song) {
		return apperrors.ErrNotSongOwner
	}

	if err := s.songRepo.Delete(ctx, songID); err != nil {
		if errors.Is(err, repositories.ErrSongNotFound) {
			return apperrors.ErrSongNotFound
		}
		return apperrors.DatabaseError(err)
	}
	s.removeMedia(ctx, song.AudioKey, song.CoverKey)

	logger.CtxInfo(ctx, "Song deleted", "song_id", songID, "by", viewer.UserID)
	return nil
}

func (s *songService) SetApproval(ctx context.Context, viewer Viewer, songID string, approved bool) error {
	if !auth.HasPermission(viewer.Role, auth.PermSongsApprove) {
		return apperrors.ErrInsufficientPermissions
	}
	if err := s.songRepo.SetApproved(ctx, songID, approved); err != nil {
		if errors.Is(err, repositories.ErrSongNotFound) {
			return apperrors.ErrSongNotFound
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

// ---------------- Helpers ----------------

func (s *songService) find(ctx context.Context, songID string) (*models.Song, error) {
	song, err := s.songRepo.FindByID(ctx, songID)
	if err != nil {
		if errors.Is(err, repositories.ErrSongNotFound) {
			return nil, apperrors.ErrSongNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}
	return song, nil
}

// checkAccess lets anyone play free songs. Premium songs need a signed-in
// caller with an active entitlement, unless the caller owns the song.
func (s *songService) checkAccess(ctx context.Context, viewer Viewer, song *models.Song) error {
	if song.AccessLevel != models.AccessLevelPremium {
		return nil
	}
	if viewer.anonymous() {
		return errAuthRequiredForPremium
	}
	if s.isOwnerOrAdmin(viewer, song) {
		return nil
	}
	premium, err := s.premium(ctx, viewer)
	if err != nil {
		return err
	}
	if !premium {
		return apperrors.ErrPremiumRequired
	}
	return nil
}

func (s *songService) premium(ctx context.Context, viewer Viewer) (bool, error) {
	if viewer.Entitlement != nil {
		return viewer.Entitlement.IsPremiumActive, nil
	}
	ent, err := s.subscriptions.GetEntitlement(ctx, viewer.UserID)
	if err != nil {
		return false, err
	}
	return ent.IsPremiumActive, nil
}

func (s *songService) isOwnerOrAdmin(viewer Viewer, song *models.Song) bool {
	if viewer.anonymous() {
		return false
	}
	return song.ArtistID == viewer.UserID || auth.HasPermission(viewer.Role, auth.PermSongsManageAny)
}

// responses resolves the caller's entitlement at most once per listing.
func (s *songService) responses(ctx context.Context, viewer Viewer, songs []models.Song) ([]*dto.SongResponse, error) {
	var premium *bool
	out := make([]*dto.SongResponse, 0, len(songs))
	for i := range songs {
		song := &songs[i]
		withAudio := song.AccessLevel != models.AccessLevelPremium || s.isOwnerOrAdmin(viewer, song)
		if !withAudio && !viewer.anonymous() {
			if premium == nil {
				p, err := s.premium(ctx, viewer)
				if err != nil {
					return nil, err
				}
				premium = &p
			}
			withAudio = *premium
		}
		out = append(out, dto.NewSongResponse(song, withAudio))
	}
	return out, nil
}

func (s *songService) removeMedia(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			logger.CtxWithError(ctx, "Failed to delete song media", err, "key", key)
		}
	}
}
