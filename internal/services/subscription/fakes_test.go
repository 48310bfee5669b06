package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
)

// ============================================
// In-memory repositories
// ============================================

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
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) SetPremium(_ context.Context, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsPremium = true
	u.PremiumExpiresAt = &expiresAt
	return nil
}

func (f *fakeUsers) ClearPremium(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsPremium = false
	return nil
}

func (f *fakeUsers) ClearPremiumIfLapsed(_ context.Context, userID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || !u.IsPremium {
		return false, nil
	}
	if u.PremiumExpiresAt != nil && u.PremiumExpiresAt.After(now) {
		return false, nil
	}
	u.IsPremium = false
	return true, nil
}

func (f *fakeUsers) get(id string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

type fakeSubscriptions struct {
	mu   sync.Mutex
	seq  int
	subs map[string]*models.Subscription
	// order keeps insertion order for ListByUser.
	order map[string]int
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{subs: map[string]*models.Subscription{}, order: map[string]int{}}
}

func (f *fakeSubscriptions) Create(_ context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.UserID == sub.UserID && s.Status.IsOpen() {
			return repositories.ErrOpenSubscriptionExists
		}
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	f.seq++
	f.order[sub.ID] = f.seq
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *fakeSubscriptions) find(match func(*models.Subscription) bool) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repositories.ErrSubscriptionNotFound
}

func (f *fakeSubscriptions) FindByID(_ context.Context, id string) (*models.Subscription, error) {
	return f.find(func(s *models.Subscription) bool { return s.ID == id })
}

func (f *fakeSubscriptions) FindOpenByUser(_ context.Context, userID string) (*models.Subscription, error) {
	return f.find(func(s *models.Subscription) bool { return s.UserID == userID && s.Status.IsOpen() })
}

func (f *fakeSubscriptions) FindActiveByUser(_ context.Context, userID string) (*models.Subscription, error) {
	return f.find(func(s *models.Subscription) bool {
		return s.UserID == userID && s.Status == models.SubscriptionStatusActive
	})
}

func (f *fakeSubscriptions) FindByTransactionID(_ context.Context, transID string) (*models.Subscription, error) {
	return f.find(func(s *models.Subscription) bool {
		return s.FapshiTransactionID != nil && *s.FapshiTransactionID == transID
	})
}

func (f *fakeSubscriptions) ListByUser(_ context.Context, userID string) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.order[out[i].ID] > f.order[out[j].ID] })
	return out, nil
}

func (f *fakeSubscriptions) RepricePending(_ context.Context, id string, revision int64, subType models.SubscriptionType, price int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.Status != models.SubscriptionStatusPending || s.Revision != revision {
		return repositories.ErrSubscriptionStateChanged
	}
	s.SubscriptionType = subType
	s.Price = price
	s.FapshiTransactionID = nil
	s.Revision++
	return nil
}

func (f *fakeSubscriptions) SetTransactionID(_ context.Context, id, transID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return repositories.ErrSubscriptionNotFound
	}
	s.FapshiTransactionID = &transID
	return nil
}

func (f *fakeSubscriptions) Activate(_ context.Context, id string, a repositories.SubscriptionActivation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.Status != models.SubscriptionStatusPending {
		return false, nil
	}
	transID, start, expiry := a.TransactionID, a.Start, a.Expiry
	s.Status = models.SubscriptionStatusActive
	s.SubscriptionType = a.SubscriptionType
	s.Price = a.Price
	s.FapshiTransactionID = &transID
	s.StartDate = &start
	s.ExpiryDate = &expiry
	s.RenewalDate = &expiry
	return true, nil
}

func (f *fakeSubscriptions) Cancel(_ context.Context, id, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	s.Status = models.SubscriptionStatusCancelled
	s.CancellationReason = reason
	s.CancelledAt = &at
	s.AutoRenew = false
	return true, nil
}

func (f *fakeSubscriptions) Expire(_ context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.Status != models.SubscriptionStatusActive || s.ExpiryDate == nil || s.ExpiryDate.After(now) {
		return false, nil
	}
	s.Status = models.SubscriptionStatusExpired
	return true, nil
}

func (f *fakeSubscriptions) FindLapsed(_ context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubscriptionStatusActive && s.ExpiryDate != nil && !s.ExpiryDate.After(now) {
			out = append(out, *s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSubscriptions) FindExpiring(_ context.Context, now, until time.Time, limit int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status != models.SubscriptionStatusActive || s.ExpiryDate == nil {
			continue
		}
		if !s.ExpiryDate.After(now) || s.ExpiryDate.After(until) {
			continue
		}
		if s.LastReminderAt != nil && s.LastReminderAt.After(now.Add(-24*time.Hour)) {
			continue
		}
		out = append(out, *s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSubscriptions) MarkReminded(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subs[id]; ok {
		s.LastReminderAt = &at
	}
	return nil
}

func (f *fakeSubscriptions) put(sub models.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.order[sub.ID] = f.seq
	f.subs[sub.ID] = &sub
}

func (f *fakeSubscriptions) get(id string) models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.subs[id]
}

func (f *fakeSubscriptions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakePaymentLogs struct {
	mu     sync.Mutex
	logs   []*models.PaymentLog
	writes int
}

func newFakePaymentLogs() *fakePaymentLogs {
	return &fakePaymentLogs{}
}

func (f *fakePaymentLogs) Create(_ context.Context, log *models.PaymentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	cp := *log
	f.logs = append(f.logs, &cp)
	f.writes++
	return nil
}

func (f *fakePaymentLogs) find(match func(*models.PaymentLog) bool) (*models.PaymentLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.logs) - 1; i >= 0; i-- {
		if match(f.logs[i]) {
			cp := *f.logs[i]
			return &cp, nil
		}
	}
	return nil, repositories.ErrPaymentLogNotFound
}

func (f *fakePaymentLogs) FindByTransID(_ context.Context, transID string) (*models.PaymentLog, error) {
	return f.find(func(l *models.PaymentLog) bool { return l.TransID() == transID })
}

func (f *fakePaymentLogs) FindByTransIDForUser(_ context.Context, transID, userID string) (*models.PaymentLog, error) {
	return f.find(func(l *models.PaymentLog) bool { return l.TransID() == transID && l.UserID == userID })
}

func (f *fakePaymentLogs) FindLatestBySubscription(_ context.Context, subscriptionID string) (*models.PaymentLog, error) {
	return f.find(func(l *models.PaymentLog) bool { return l.SubscriptionID == subscriptionID })
}

func (f *fakePaymentLogs) FindStale(_ context.Context, now time.Time, limit int) ([]models.PaymentLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaymentLog
	for _, l := range f.logs {
		if l.Status != models.PaymentStatusCreated && l.Status != models.PaymentStatusPending {
			continue
		}
		if l.FapshiTransID == nil || l.ExpiresAt == nil || l.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *l)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePaymentLogs) MarkInitiated(_ context.Context, id, transID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			l.FapshiTransID = &transID
			l.ExpiresAt = &expiresAt
			f.writes++
			return nil
		}
	}
	return repositories.ErrPaymentLogNotFound
}

func (f *fakePaymentLogs) MarkInitiationFailed(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id && l.Status == models.PaymentStatusCreated {
			l.Status = models.PaymentStatusFailed
			l.ErrorMessage = message
			f.writes++
			return nil
		}
	}
	return repositories.ErrPaymentLogNotFound
}

func (f *fakePaymentLogs) LinkUnlinked(_ context.Context, subscriptionID, transID string, amount int64) (*models.PaymentLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.logs) - 1; i >= 0; i-- {
		l := f.logs[i]
		if l.SubscriptionID != subscriptionID || l.FapshiTransID != nil || l.Status != models.PaymentStatusFailed {
			continue
		}
		if amount != 0 && l.Amount != amount {
			continue
		}
		id := transID
		l.FapshiTransID = &id
		f.writes++
		cp := *l
		return &cp, nil
	}
	return nil, repositories.ErrPaymentLogNotFound
}

func (f *fakePaymentLogs) ApplyStatus(_ context.Context, transID string, update repositories.PaymentStatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := false
	for _, l := range f.logs {
		if l.TransID() != transID || l.Status == update.Status || l.Status == models.PaymentStatusSuccessful {
			continue
		}
		l.Status = update.Status
		l.ConfirmedAt = update.ConfirmedAt
		if update.PaymentMethod != "" {
			l.PaymentMethod = update.PaymentMethod
		}
		if update.FinancialTransID != "" {
			l.FapshiFinancialTransID = update.FinancialTransID
		}
		if update.PayerName != "" {
			l.PayerName = update.PayerName
		}
		f.writes++
		changed = true
	}
	return changed, nil
}

func (f *fakePaymentLogs) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakePaymentLogs) byTransID(transID string) models.PaymentLog {
	l, _ := f.FindByTransID(context.Background(), transID)
	return *l
}

func (f *fakePaymentLogs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

// fakeTransactor runs fn directly. The fakes are individually atomic,
// which is what the conditional-update paths rely on.
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ============================================
// Doubles
// ============================================

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) InitiateRedirectPayment(ctx context.Context, req fapshi.RedirectPaymentRequest) (*fapshi.RedirectPaymentResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*fapshi.RedirectPaymentResponse)
	return resp, args.Error(1)
}

func (m *mockProvider) InitiateDirectPayment(ctx context.Context, req fapshi.DirectPaymentRequest) (*fapshi.DirectPaymentResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*fapshi.DirectPaymentResponse)
	return resp, args.Error(1)
}

func (m *mockProvider) GetPaymentStatus(ctx context.Context, transID string) (*fapshi.PaymentStatus, error) {
	args := m.Called(ctx, transID)
	resp, _ := args.Get(0).(*fapshi.PaymentStatus)
	return resp, args.Error(1)
}

func (m *mockProvider) ExpirePayment(ctx context.Context, transID string) error {
	return m.Called(ctx, transID).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PaymentSucceeded(ctx context.Context, user *models.User, sub *models.Subscription, log *models.PaymentLog) error {
	return m.Called(ctx, user, sub, log).Error(0)
}

func (m *mockNotifier) PaymentFailed(ctx context.Context, log *models.PaymentLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockNotifier) SubscriptionCancelled(ctx context.Context, user *models.User, sub *models.Subscription) error {
	return m.Called(ctx, user, sub).Error(0)
}

func (m *mockNotifier) SubscriptionExpired(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockNotifier) SubscriptionExpiring(ctx context.Context, user *models.User, sub *models.Subscription, daysRemaining int) error {
	return m.Called(ctx, user, sub, daysRemaining).Error(0)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}
