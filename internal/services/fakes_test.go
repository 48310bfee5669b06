package services

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
)

// ---------------- Users ----------------

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repositories.ErrUserAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) SetPremium(context.Context, string, time.Time) error { return nil }
func (f *fakeUsers) ClearPremium(context.Context, string) error          { return nil }
func (f *fakeUsers) ClearPremiumIfLapsed(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

// ---------------- Notifications ----------------

type fakeNotifications struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification
	tokens        map[string]*models.PushToken
	clock         time.Time
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{
		notifications: map[string]*models.Notification{},
		tokens:        map[string]*models.PushToken{},
		clock:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeNotifications) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	// Strictly increasing so ordering is deterministic.
	f.clock = f.clock.Add(time.Second)
	n.CreatedAt = f.clock
	cp := *n
	f.notifications[n.ID] = &cp
	return nil
}

func (f *fakeNotifications) FindForUser(_ context.Context, userID string, c repositories.NotificationCriteria) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Notification
	for _, n := range f.notifications {
		if n.UserID != userID || (c.UnreadOnly && n.IsRead) {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if c.Skip >= len(all) {
		return nil, total, nil
	}
	all = all[c.Skip:]
	if c.Limit > 0 && len(all) > c.Limit {
		all = all[:c.Limit]
	}
	return all, total, nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, id, userID string, at time.Time) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return nil, repositories.ErrNotificationNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	cp := *n
	return &cp, nil
}

func (f *fakeNotifications) MarkAllAsRead(_ context.Context, userID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			updated++
		}
	}
	return updated, nil
}

func (f *fakeNotifications) MarkPushSent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notifications[id]; ok {
		n.PushSent = true
	}
	return nil
}

func (f *fakeNotifications) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	delete(f.notifications, id)
	return nil
}

func (f *fakeNotifications) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, n := range f.notifications {
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			delete(f.notifications, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeNotifications) UpsertPushToken(_ context.Context, t *models.PushToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.tokens[t.Token]; ok {
		t.ID = existing.ID
	} else if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsActive = true
	cp := *t
	f.tokens[t.Token] = &cp
	return nil
}

func (f *fakeNotifications) DeactivatePushToken(_ context.Context, token, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[token]; ok && t.UserID == userID {
		t.IsActive = false
	}
	return nil
}

func (f *fakeNotifications) FindActivePushTokens(_ context.Context, userID string) ([]models.PushToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PushToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.IsActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (f *fakeNotifications) get(id string) *models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

func (f *fakeNotifications) forUser(userID string) []models.Notification {
	items, _, _ := f.FindForUser(context.Background(), userID, repositories.NotificationCriteria{})
	return items
}

// ---------------- Songs ----------------

type fakeSongs struct {
	mu    sync.Mutex
	songs map[string]*models.Song
	order []string
}

func newFakeSongs() *fakeSongs {
	return &fakeSongs{songs: map[string]*models.Song{}}
}

func (f *fakeSongs) Create(_ context.Context, s *models.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	f.songs[s.ID] = &cp
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSongs) FindByID(_ context.Context, id string) (*models.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.songs[id]
	if !ok {
		return nil, repositories.ErrSongNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSongs) FindWithFilter(_ context.Context, filter repositories.SongFilter) ([]models.Song, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Song
	// Newest first, like the gorm implementation.
	for i := len(f.order) - 1; i >= 0; i-- {
		s, ok := f.songs[f.order[i]]
		if !ok {
			continue
		}
		switch {
		case filter.Genre != "" && s.Genre != filter.Genre:
			continue
		case filter.Approved != nil && s.IsApproved != *filter.Approved:
			continue
		case filter.ArtistID != "" && s.ArtistID != filter.ArtistID:
			continue
		case filter.Search != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(filter.Search)):
			continue
		}
		out = append(out, *s)
	}
	total := int64(len(out))
	if filter.PageSize > 0 {
		start := (filter.Page - 1) * filter.PageSize
		if start >= len(out) {
			return nil, total, nil
		}
		out = out[start:]
		if len(out) > filter.PageSize {
			out = out[:filter.PageSize]
		}
	}
	return out, total, nil
}

func (f *fakeSongs) Update(_ context.Context, s *models.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.songs[s.ID]; !ok {
		return repositories.ErrSongNotFound
	}
	cp := *s
	f.songs[s.ID] = &cp
	return nil
}

func (f *fakeSongs) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.songs[id]; !ok {
		return repositories.ErrSongNotFound
	}
	delete(f.songs, id)
	return nil
}

func (f *fakeSongs) IncrementStreams(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.songs[id]
	if !ok {
		return 0, repositories.ErrSongNotFound
	}
	s.StreamsCount++
	return s.StreamsCount, nil
}

func (f *fakeSongs) SetApproved(_ context.Context, id string, approved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.songs[id]
	if !ok {
		return repositories.ErrSongNotFound
	}
	s.IsApproved = approved
	return nil
}

// ---------------- Posts, likes & comments ----------------

// contentStore backs the post, like and comment fakes so rows and counters
// move together. fakeTransactor rolls it back on error.
type contentStore struct {
	mu       sync.Mutex
	posts    map[string]*models.Post
	order    []string
	likes    []models.Like
	comments map[string]*models.Comment
	songs    *fakeSongs
	clock    time.Time
}

func newContentStore(songs *fakeSongs) *contentStore {
	return &contentStore{
		posts:    map[string]*models.Post{},
		comments: map[string]*models.Comment{},
		songs:    songs,
		clock:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick is called with mu held.
func (c *contentStore) tick() time.Time {
	c.clock = c.clock.Add(time.Second)
	return c.clock
}

func (c *contentStore) snapshot() func() {
	c.mu.Lock()
	posts := make(map[string]*models.Post, len(c.posts))
	for id, p := range c.posts {
		cp := *p
		posts[id] = &cp
	}
	order := append([]string(nil), c.order...)
	likes := append([]models.Like(nil), c.likes...)
	comments := make(map[string]*models.Comment, len(c.comments))
	for id, cm := range c.comments {
		cp := *cm
		comments[id] = &cp
	}
	c.mu.Unlock()

	c.songs.mu.Lock()
	songLikes := make(map[string]int64, len(c.songs.songs))
	for id, s := range c.songs.songs {
		songLikes[id] = s.LikesCount
	}
	c.songs.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.posts, c.order, c.likes, c.comments = posts, order, likes, comments
		c.mu.Unlock()

		c.songs.mu.Lock()
		defer c.songs.mu.Unlock()
		for id, n := range songLikes {
			if s, ok := c.songs.songs[id]; ok {
				s.LikesCount = n
			}
		}
	}
}

func (c *contentStore) adjust(contentType models.ContentType, id string, likes bool, delta int64) error {
	switch contentType {
	case models.ContentTypePost:
		c.mu.Lock()
		defer c.mu.Unlock()
		p, ok := c.posts[id]
		if !ok {
			return repositories.ErrContentNotFound
		}
		counter := &p.CommentsCount
		if likes {
			counter = &p.LikesCount
		}
		*counter += delta
		if *counter < 0 {
			*counter = 0
		}
		return nil
	case models.ContentTypeSong:
		c.songs.mu.Lock()
		defer c.songs.mu.Unlock()
		s, ok := c.songs.songs[id]
		if !ok {
			return repositories.ErrContentNotFound
		}
		if likes {
			s.LikesCount += delta
			if s.LikesCount < 0 {
				s.LikesCount = 0
			}
		}
		return nil
	default:
		return repositories.ErrContentNotFound
	}
}

type fakeTransactor struct {
	store *contentStore
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	restore := t.store.snapshot()
	if err := fn(ctx); err != nil {
		restore()
		return err
	}
	return nil
}

type fakePosts struct{ *contentStore }

func (f *fakePosts) Create(_ context.Context, p *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = f.tick()
	cp := *p
	f.posts[p.ID] = &cp
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakePosts) FindByID(_ context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) FindWithFilter(_ context.Context, filter repositories.PostFilter) ([]models.Post, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Post
	for i := len(f.order) - 1; i >= 0; i-- {
		p, ok := f.posts[f.order[i]]
		if !ok {
			continue
		}
		switch {
		case filter.AuthorID != "" && p.AuthorID != filter.AuthorID:
			continue
		case filter.SongID != "" && (p.RelatedSongID == nil || *p.RelatedSongID != filter.SongID):
			continue
		case filter.ChallengeID != "" && (p.RelatedChallengeID == nil || *p.RelatedChallengeID != filter.ChallengeID):
			continue
		case len(filter.Visibilities) > 0 && !containsVisibility(filter.Visibilities, p.Visibility):
			continue
		}
		out = append(out, *p)
	}
	total := int64(len(out))
	if filter.PageSize > 0 {
		start := (filter.Page - 1) * filter.PageSize
		if start >= len(out) {
			return nil, total, nil
		}
		out = out[start:]
		if len(out) > filter.PageSize {
			out = out[:filter.PageSize]
		}
	}
	return out, total, nil
}

func containsVisibility(list []models.Visibility, v models.Visibility) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (f *fakePosts) Update(_ context.Context, p *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.posts[p.ID]
	if !ok {
		return repositories.ErrPostNotFound
	}
	stored.Content = p.Content
	stored.Visibility = p.Visibility
	stored.MediaURL = p.MediaURL
	stored.MediaKey = p.MediaKey
	stored.MediaType = p.MediaType
	return nil
}

func (f *fakePosts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return repositories.ErrPostNotFound
	}
	delete(f.posts, id)

	kept := f.likes[:0]
	for _, l := range f.likes {
		if l.ContentType != models.ContentTypePost || l.ContentID != id {
			kept = append(kept, l)
		}
	}
	f.likes = kept
	for cid, c := range f.comments {
		if c.ContentType == models.ContentTypePost && c.ContentID == id {
			delete(f.comments, cid)
		}
	}
	return nil
}

type fakeLikes struct{ *contentStore }

func (f *fakeLikes) Create(_ context.Context, l *models.Like) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.likes {
		if existing.UserID == l.UserID && existing.ContentType == l.ContentType && existing.ContentID == l.ContentID {
			return repositories.ErrAlreadyLiked
		}
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	f.likes = append(f.likes, *l)
	return nil
}

func (f *fakeLikes) Delete(_ context.Context, userID string, contentType models.ContentType, contentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.likes {
		if l.UserID == userID && l.ContentType == contentType && l.ContentID == contentID {
			f.likes = append(f.likes[:i], f.likes[i+1:]...)
			return nil
		}
	}
	return repositories.ErrLikeNotFound
}

func (f *fakeLikes) Exists(_ context.Context, userID string, contentType models.ContentType, contentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.likes {
		if l.UserID == userID && l.ContentType == contentType && l.ContentID == contentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLikes) CountByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, l := range f.likes {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeLikes) AdjustLikes(_ context.Context, contentType models.ContentType, contentID string, delta int64) error {
	return f.adjust(contentType, contentID, true, delta)
}

type fakeComments struct{ *contentStore }

func (f *fakeComments) Create(_ context.Context, c *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = f.tick()
	cp := *c
	f.comments[c.ID] = &cp
	return nil
}

func (f *fakeComments) FindByID(_ context.Context, id string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, repositories.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeComments) FindByContent(_ context.Context, contentType models.ContentType, contentID string, page, pageSize int) ([]models.Comment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Comment
	for _, c := range f.comments {
		if c.ContentType == contentType && c.ContentID == contentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := int64(len(out))
	if pageSize > 0 {
		start := (page - 1) * pageSize
		if start >= len(out) {
			return nil, total, nil
		}
		out = out[start:]
		if len(out) > pageSize {
			out = out[:pageSize]
		}
	}
	return out, total, nil
}

func (f *fakeComments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return repositories.ErrCommentNotFound
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeComments) CountByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.comments {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeComments) AdjustComments(_ context.Context, contentType models.ContentType, contentID string, delta int64) error {
	return f.adjust(contentType, contentID, false, delta)
}

func (c *contentStore) likeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.likes)
}

func (c *contentStore) commentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.comments)
}

// ---------------- Storage ----------------

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Save(_ context.Context, key string, r io.Reader, _ string) error {
	if m.failOn != "" && strings.HasPrefix(key, m.failOn) {
		return io.ErrUnexpectedEOF
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) URL(key string) string { return "https://cdn.test/" + key }

func (m *memStorage) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://cdn.test/" + key + "?sig=test&ttl=" + expiry.String(), nil
}

func (m *memStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// ---------------- Subscription engine ----------------

type mockSubscriptions struct {
	mock.Mock
}

func (m *mockSubscriptions) CreateAttempt(ctx context.Context, in subscription.CreateAttemptInput) (*subscription.AttemptResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*subscription.AttemptResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) Reconcile(ctx context.Context, in subscription.ReconcileInput) (*subscription.ReconcileResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*subscription.ReconcileResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) VerifyPayment(ctx context.Context, userID, transID string) (*subscription.VerifyResult, error) {
	args := m.Called(ctx, userID, transID)
	res, _ := args.Get(0).(*subscription.VerifyResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) Cancel(ctx context.Context, userID, reason string) (*subscription.CancelResult, error) {
	args := m.Called(ctx, userID, reason)
	res, _ := args.Get(0).(*subscription.CancelResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) GetEntitlement(ctx context.Context, userID string) (*subscription.Entitlement, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).(*subscription.Entitlement)
	return res, args.Error(1)
}

func (m *mockSubscriptions) History(ctx context.Context, userID string) ([]subscription.SubscriptionSummary, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).([]subscription.SubscriptionSummary)
	return res, args.Error(1)
}

func (m *mockSubscriptions) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSubscriptions) SweepStaleAttempts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSubscriptions) RemindExpiring(ctx context.Context, within time.Duration) (int, error) {
	args := m.Called(ctx, within)
	return args.Int(0), args.Error(1)
}

// ---------------- Events ----------------

type publishedEvent struct {
	routingKey string
	payload    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
