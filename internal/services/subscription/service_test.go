package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

type testEnv struct {
	users    *fakeUsers
	subs     *fakeSubscriptions
	logs     *fakePaymentLogs
	provider *mockProvider
	notifier *mockNotifier
	events   *recordingPublisher
	now      time.Time
	svc      Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		users:    newFakeUsers(),
		subs:     newFakeSubscriptions(),
		logs:     newFakePaymentLogs(),
		provider: &mockProvider{},
		notifier: &mockNotifier{},
		events:   &recordingPublisher{},
		now:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	e.svc = NewService(Deps{
		Users:         e.users,
		Subscriptions: e.subs,
		PaymentLogs:   e.logs,
		Transactor:    fakeTransactor{},
		Provider:      e.provider,
		Notifier:      e.notifier,
		Events:        e.events,
		Now:           func() time.Time { return e.now },
	})
	return e
}

func (e *testEnv) addUser(t *testing.T) *models.User {
	t.Helper()
	u := &models.User{FullName: "Ngono Marie", Email: "marie@example.cm", Role: models.UserRoleUser}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) expectDirectPay(transID string) {
	e.provider.On("InitiateDirectPayment", mock.Anything, mock.AnythingOfType("fapshi.DirectPaymentRequest")).
		Return(&fapshi.DirectPaymentResponse{TransID: transID, Message: "Request successful"}, nil).Once()
}

func directMonthly(userID string) CreateAttemptInput {
	return CreateAttemptInput{
		UserID:           userID,
		SubscriptionType: models.SubscriptionTypeMonthly,
		PaymentMethod:    MethodDirect,
		Phone:            "670000000",
	}
}

func appCode(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

// ============================================
// CreateAttempt
// ============================================

func TestCreateAttempt_DirectPay(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)

	e.provider.On("InitiateDirectPayment", mock.Anything, mock.MatchedBy(func(req fapshi.DirectPaymentRequest) bool {
		return req.Amount == 2500 &&
			req.Phone == "670000000" &&
			req.Message == "KontriVibe monthly subscription" &&
			req.UserID == user.ID &&
			req.ExternalID != ""
	})).Return(&fapshi.DirectPaymentResponse{TransID: "abc12345"}, nil).Once()

	res, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	assert.Equal(t, "abc12345", res.TransactionID)
	assert.Equal(t, int64(2500), res.Amount)
	assert.Equal(t, 30, res.DurationDays)
	assert.Equal(t, models.SubscriptionStatusPending, res.Status)
	assert.Equal(t, "15 minutes", res.ExpiresIn)
	assert.Empty(t, res.PaymentLink)

	sub := e.subs.get(res.SubscriptionID)
	require.NotNil(t, sub.FapshiTransactionID)
	assert.Equal(t, "abc12345", *sub.FapshiTransactionID)

	log := e.logs.byTransID("abc12345")
	assert.Equal(t, models.PaymentStatusCreated, log.Status)
	assert.Equal(t, models.PaymentMethodDirectPay, log.PaymentMethod)
	require.NotNil(t, log.ExpiresAt)
	assert.Equal(t, e.now.Add(AttemptTTL), *log.ExpiresAt)
	assert.Equal(t, Checksum(user.ID, 2500, models.SubscriptionTypeMonthly, e.now), log.SecurityChecksum)

	e.provider.AssertExpectations(t)
}

func TestCreateAttempt_RedirectReturnsLink(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)

	e.provider.On("InitiateRedirectPayment", mock.Anything, mock.MatchedBy(func(req fapshi.RedirectPaymentRequest) bool {
		return req.RedirectURL == "https://app.kontrivibe.com/done" && req.Amount == 20000
	})).Return(&fapshi.RedirectPaymentResponse{TransID: "red12345", Link: "https://checkout.fapshi.com/red12345"}, nil).Once()

	res, err := e.svc.CreateAttempt(context.Background(), CreateAttemptInput{
		UserID:           user.ID,
		SubscriptionType: models.SubscriptionTypeYearly,
		PaymentMethod:    MethodRedirect,
		RedirectURL:      "https://app.kontrivibe.com/done",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.fapshi.com/red12345", res.PaymentLink)
	assert.Equal(t, 365, res.DurationDays)
	assert.Equal(t, models.PaymentMethodRedirectPay, e.logs.byTransID("red12345").PaymentMethod)
}

func TestCreateAttempt_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    CreateAttemptInput
		field string
	}{
		{"free plan", CreateAttemptInput{SubscriptionType: models.SubscriptionTypeFree, PaymentMethod: MethodDirect, Phone: "670000000"}, "subscriptionType"},
		{"unknown plan", CreateAttemptInput{SubscriptionType: "weekly", PaymentMethod: MethodDirect, Phone: "670000000"}, "subscriptionType"},
		{"unknown method", CreateAttemptInput{SubscriptionType: models.SubscriptionTypeMonthly, PaymentMethod: "card"}, "paymentMethod"},
		{"redirect without url", CreateAttemptInput{SubscriptionType: models.SubscriptionTypeMonthly, PaymentMethod: MethodRedirect}, "redirectUrl"},
		{"direct without phone", CreateAttemptInput{SubscriptionType: models.SubscriptionTypeMonthly, PaymentMethod: MethodDirect}, "phone"},
		{"direct with bad phone", CreateAttemptInput{SubscriptionType: models.SubscriptionTypeMonthly, PaymentMethod: MethodDirect, Phone: "570000000"}, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			user := e.addUser(t)
			tt.in.UserID = user.ID

			_, err := e.svc.CreateAttempt(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeValidationFailed, appCode(t, err))

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tt.field)

			assert.Zero(t, e.subs.count())
			assert.Zero(t, e.logs.count())
			e.provider.AssertNotCalled(t, "InitiateDirectPayment", mock.Anything, mock.Anything)
			e.provider.AssertNotCalled(t, "InitiateRedirectPayment", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateAttempt_UnknownUser(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly("missing"))
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCreateAttempt_ConflictWhileAttemptLive(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.expectDirectPay("abc12345")

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)
	subsBefore, logsBefore, writesBefore := e.subs.count(), e.logs.count(), e.logs.writeCount()

	e.now = e.now.Add(5 * time.Minute)
	_, err = e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubscriptionExists)

	assert.Equal(t, subsBefore, e.subs.count())
	assert.Equal(t, logsBefore, e.logs.count())
	assert.Equal(t, writesBefore, e.logs.writeCount())
	e.provider.AssertNumberOfCalls(t, "InitiateDirectPayment", 1)
}

func TestCreateAttempt_ConflictWhenActive(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	expiry := e.now.Add(10 * 24 * time.Hour)
	e.subs.put(models.Subscription{
		BaseModel:        models.BaseModel{ID: "s-active"},
		UserID:           user.ID,
		SubscriptionType: models.SubscriptionTypeMonthly,
		Status:           models.SubscriptionStatusActive,
		ExpiryDate:       &expiry,
	})

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, appCode(t, err))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	current, ok := details["currentSubscription"].(*SubscriptionSummary)
	require.True(t, ok)
	assert.Equal(t, "s-active", current.ID)
	assert.Equal(t, 10, current.DaysRemaining)
	assert.Zero(t, e.logs.count())
}

func TestCreateAttempt_TimeoutIsRetryableAndPendingIsReused(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)

	e.provider.On("InitiateDirectPayment", mock.Anything, mock.Anything).
		Return(nil, &fapshi.Error{StatusCode: 504, Message: "request timed out", Timeout: true}).Once()

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePaymentInitiation, appCode(t, err))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]interface{}{"retryable": true}, appErr.Details)

	open, err := e.subs.FindOpenByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPending, open.Status)
	failed, err := e.logs.FindLatestBySubscription(context.Background(), open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "timed out")

	// A retry reuses the stale pending row with the new plan.
	e.provider.On("InitiateDirectPayment", mock.Anything, mock.Anything).
		Return(&fapshi.DirectPaymentResponse{TransID: "retry1234"}, nil).Once()

	res, err := e.svc.CreateAttempt(context.Background(), CreateAttemptInput{
		UserID:           user.ID,
		SubscriptionType: models.SubscriptionTypeQuarterly,
		PaymentMethod:    MethodDirect,
		Phone:            "690000000",
	})
	require.NoError(t, err)
	assert.Equal(t, open.ID, res.SubscriptionID)
	assert.Equal(t, 1, e.subs.count())
	assert.Equal(t, models.SubscriptionTypeQuarterly, e.subs.get(open.ID).SubscriptionType)
	assert.Equal(t, int64(6500), e.subs.get(open.ID).Price)
}

func TestCreateAttempt_ProviderRejectionIsNotRetryable(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)

	e.provider.On("InitiateDirectPayment", mock.Anything, mock.Anything).
		Return(nil, &fapshi.Error{StatusCode: 400, Message: "Invalid phone"}).Once()

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]interface{}{"retryable": false}, appErr.Details)
}

// ============================================
// Reconcile
// ============================================

func TestReconcile_SuccessActivatesOnce(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.expectDirectPay("abc12345")
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	attempt, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	e.now = e.now.Add(2 * time.Minute)
	res, err := e.svc.Reconcile(context.Background(), ReconcileInput{
		TransactionID:  "abc12345",
		ProviderStatus: "SUCCESSFUL",
		Metadata:       PaymentMetadata{Medium: "mobile money", FinancialTransID: "MP2503", Amount: 2500},
		Source:         SourceWebhook,
	})
	require.NoError(t, err)
	assert.True(t, res.Activated)
	assert.False(t, res.Skipped)
	assert.Equal(t, models.PaymentStatusSuccessful, res.Status)

	sub := e.subs.get(attempt.SubscriptionID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.ExpiryDate)
	assert.Equal(t, e.now.Add(30*24*time.Hour), *sub.ExpiryDate)
	assert.Equal(t, *sub.ExpiryDate, *sub.RenewalDate)

	u := e.users.get(user.ID)
	assert.True(t, u.IsPremium)
	assert.Equal(t, *sub.ExpiryDate, *u.PremiumExpiresAt)

	log := e.logs.byTransID("abc12345")
	assert.Equal(t, models.PaymentStatusSuccessful, log.Status)
	assert.Equal(t, models.PaymentMethodMobileMoney, log.PaymentMethod)
	assert.Equal(t, "MP2503", log.FapshiFinancialTransID)
	require.NotNil(t, log.ConfirmedAt)

	writes := e.logs.writeCount()

	// Same report again: nothing changes, nobody is notified twice.
	again, err := e.svc.Reconcile(context.Background(), ReconcileInput{
		TransactionID:  "abc12345",
		ProviderStatus: "successful",
		Source:         SourceVerify,
	})
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.False(t, again.Activated)
	assert.Equal(t, writes, e.logs.writeCount())

	e.notifier.AssertNumberOfCalls(t, "PaymentSucceeded", 1)
	assert.Equal(t, []string{events.SubscriptionActivated}, e.events.published())
}

func TestReconcile_LateWebhookAfterInitiationTimeout(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e.provider.On("InitiateDirectPayment", mock.Anything, mock.Anything).
		Return(nil, &fapshi.Error{StatusCode: 504, Message: "request timed out", Timeout: true}).Once()
	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.Error(t, err)

	open, err := e.subs.FindOpenByUser(context.Background(), user.ID)
	require.NoError(t, err)

	t.Run("foreign external id is unknown", func(t *testing.T) {
		_, err := e.svc.Reconcile(context.Background(), ReconcileInput{
			TransactionID:  "late1234",
			ProviderStatus: "SUCCESSFUL",
			Metadata:       PaymentMetadata{ExternalID: "not-a-subscription", Amount: 2500},
		})
		assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
	})

	t.Run("linked through external id", func(t *testing.T) {
		e.now = e.now.Add(3 * time.Minute)
		res, err := e.svc.Reconcile(context.Background(), ReconcileInput{
			TransactionID:  "late1234",
			ProviderStatus: "SUCCESSFUL",
			Metadata:       PaymentMetadata{ExternalID: open.ID, Amount: 2500},
		})
		require.NoError(t, err)
		assert.True(t, res.Activated)

		log := e.logs.byTransID("late1234")
		assert.Equal(t, models.PaymentStatusSuccessful, log.Status)
		sub := e.subs.get(open.ID)
		assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
		require.NotNil(t, sub.FapshiTransactionID)
		assert.Equal(t, "late1234", *sub.FapshiTransactionID)
		assert.True(t, e.users.get(user.ID).IsPremium)
	})

	t.Run("redelivery finds the linked attempt", func(t *testing.T) {
		res, err := e.svc.Reconcile(context.Background(), ReconcileInput{
			TransactionID:  "late1234",
			ProviderStatus: "SUCCESSFUL",
			Metadata:       PaymentMetadata{ExternalID: open.ID, Amount: 2500},
		})
		require.NoError(t, err)
		assert.True(t, res.Skipped)
	})
}

func TestReconcile_UnknownTransaction(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.Reconcile(context.Background(), ReconcileInput{TransactionID: "unknown-id", ProviderStatus: "SUCCESSFUL"})
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
}

func TestReconcile_FailedLeavesSubscriptionPending(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.expectDirectPay("abc12345")
	e.notifier.On("PaymentFailed", mock.Anything, mock.Anything).Return(errors.New("push gateway down"))

	attempt, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	res, err := e.svc.Reconcile(context.Background(), ReconcileInput{TransactionID: "abc12345", ProviderStatus: "FAILED"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, res.Status)
	assert.False(t, res.Activated)

	assert.Equal(t, models.SubscriptionStatusPending, e.subs.get(attempt.SubscriptionID).Status)
	assert.False(t, e.users.get(user.ID).IsPremium)
	assert.Nil(t, e.logs.byTransID("abc12345").ConfirmedAt)
	e.notifier.AssertNumberOfCalls(t, "PaymentFailed", 1)

	// A late success still wins over a failure.
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	res, err = e.svc.Reconcile(context.Background(), ReconcileInput{TransactionID: "abc12345", ProviderStatus: "SUCCESSFUL"})
	require.NoError(t, err)
	assert.True(t, res.Activated)
}

func TestReconcile_UnknownStatusMapsToPending(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.expectDirectPay("abc12345")

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	res, err := e.svc.Reconcile(context.Background(), ReconcileInput{TransactionID: "abc12345", ProviderStatus: "PROCESSING"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Status)
	assert.False(t, res.Skipped)
	assert.Equal(t, models.PaymentStatusPending, e.logs.byTransID("abc12345").Status)
}

func TestReconcile_ConcurrentDuplicatesActivateOnce(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.expectDirectPay("abc12345")
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		activated int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := SourceWebhook
			if i%2 == 0 {
				source = SourceVerify
			}
			res, err := e.svc.Reconcile(context.Background(), ReconcileInput{
				TransactionID:  "abc12345",
				ProviderStatus: "SUCCESSFUL",
				Source:         source,
			})
			if err != nil {
				t.Errorf("reconcile: %v", err)
				return
			}
			if res.Activated {
				mu.Lock()
				activated++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, activated)
	e.notifier.AssertNumberOfCalls(t, "PaymentSucceeded", 1)
	assert.Len(t, e.events.published(), 1)
}

func TestReconcile_LateSuccessOnReusedRowGrantsPaidPlan(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e.expectDirectPay("mon12345")
	monthly, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	// The monthly window passes before any sweep, and the user retries with yearly.
	e.now = e.now.Add(16 * time.Minute)
	e.expectDirectPay("yea12345")
	yearly, err := e.svc.CreateAttempt(context.Background(), CreateAttemptInput{
		UserID:           user.ID,
		SubscriptionType: models.SubscriptionTypeYearly,
		PaymentMethod:    MethodDirect,
		Phone:            "670000000",
	})
	require.NoError(t, err)
	require.Equal(t, monthly.SubscriptionID, yearly.SubscriptionID)
	require.Equal(t, models.SubscriptionTypeYearly, e.subs.get(yearly.SubscriptionID).SubscriptionType)

	e.provider.On("ExpirePayment", mock.Anything, "yea12345").Return(nil).Once()

	res, err := e.svc.Reconcile(context.Background(), ReconcileInput{
		TransactionID:  "mon12345",
		ProviderStatus: "SUCCESSFUL",
		Source:         SourceWebhook,
	})
	require.NoError(t, err)
	require.True(t, res.Activated)

	sub := e.subs.get(monthly.SubscriptionID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.SubscriptionTypeMonthly, sub.SubscriptionType)
	assert.Equal(t, int64(2500), sub.Price)
	require.NotNil(t, sub.FapshiTransactionID)
	assert.Equal(t, "mon12345", *sub.FapshiTransactionID)
	require.NotNil(t, sub.ExpiryDate)
	assert.Equal(t, e.now.Add(30*24*time.Hour), *sub.ExpiryDate)

	u := e.users.get(user.ID)
	require.NotNil(t, u.PremiumExpiresAt)
	assert.Equal(t, e.now.Add(30*24*time.Hour), *u.PremiumExpiresAt)

	// The yearly attempt can no longer be paid.
	assert.Equal(t, models.PaymentStatusExpired, e.logs.byTransID("yea12345").Status)
	e.provider.AssertExpectations(t)
}

func TestReconcile_SupersededExpiryFailureKeepsActivation(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e.expectDirectPay("mon12345")
	monthly, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)
	e.now = e.now.Add(16 * time.Minute)
	e.expectDirectPay("qua12345")
	_, err = e.svc.CreateAttempt(context.Background(), CreateAttemptInput{
		UserID:           user.ID,
		SubscriptionType: models.SubscriptionTypeQuarterly,
		PaymentMethod:    MethodDirect,
		Phone:            "670000000",
	})
	require.NoError(t, err)

	e.provider.On("ExpirePayment", mock.Anything, "qua12345").Return(errors.New("provider down")).Once()

	res, err := e.svc.Reconcile(context.Background(), ReconcileInput{TransactionID: "mon12345", ProviderStatus: "SUCCESSFUL"})
	require.NoError(t, err)
	assert.True(t, res.Activated)
	assert.Equal(t, models.SubscriptionTypeMonthly, e.subs.get(monthly.SubscriptionID).SubscriptionType)
	assert.Equal(t, models.PaymentStatusCreated, e.logs.byTransID("qua12345").Status)
}

// takenOnRead hands the pending row to another attempt right after it is
// read, the way a concurrent retry without the user lock would.
type takenOnRead struct {
	*fakeSubscriptions
	once sync.Once
}

func (r *takenOnRead) FindOpenByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := r.fakeSubscriptions.FindOpenByUser(ctx, userID)
	if err == nil && sub.Status == models.SubscriptionStatusPending {
		r.once.Do(func() {
			_ = r.fakeSubscriptions.RepricePending(ctx, sub.ID, sub.Revision, models.SubscriptionTypeQuarterly, 6500)
		})
	}
	return sub, err
}

func TestCreateAttempt_ReuseLostToConcurrentRetry(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)

	e.subs.put(models.Subscription{
		BaseModel:        models.BaseModel{ID: "s-stale"},
		UserID:           user.ID,
		SubscriptionType: models.SubscriptionTypeMonthly,
		Status:           models.SubscriptionStatusPending,
		Price:            2500,
	})
	require.NoError(t, e.logs.Create(context.Background(), &models.PaymentLog{
		UserID:           user.ID,
		SubscriptionID:   "s-stale",
		Amount:           2500,
		SubscriptionType: models.SubscriptionTypeMonthly,
		Status:           models.PaymentStatusFailed,
		InitiatedAt:      e.now.Add(-time.Hour),
	}))
	logsBefore := e.logs.count()

	svc := NewService(Deps{
		Users:         e.users,
		Subscriptions: &takenOnRead{fakeSubscriptions: e.subs},
		PaymentLogs:   e.logs,
		Transactor:    fakeTransactor{},
		Provider:      e.provider,
		Now:           func() time.Time { return e.now },
	})

	_, err := svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubscriptionExists)

	assert.Equal(t, logsBefore, e.logs.count())
	e.provider.AssertNotCalled(t, "InitiateDirectPayment", mock.Anything, mock.Anything)
	stale := e.subs.get("s-stale")
	assert.Equal(t, models.SubscriptionTypeQuarterly, stale.SubscriptionType)
	assert.Equal(t, int64(1), stale.Revision)
}

func TestCreateAttempt_ReuseBumpsRevision(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)

	e.provider.On("InitiateDirectPayment", mock.Anything, mock.Anything).
		Return(nil, &fapshi.Error{StatusCode: 400, Message: "Invalid phone"}).Once()
	_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.Error(t, err)

	open, err := e.subs.FindOpenByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, open.Revision)

	e.expectDirectPay("again123")
	_, err = e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.subs.get(open.ID).Revision)
}

// ============================================
// Cancel / entitlement / verify
// ============================================

func activeFixture(t *testing.T, e *testEnv) (*models.User, string) {
	t.Helper()
	user := e.addUser(t)
	e.expectDirectPay("abc12345")
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	attempt, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)
	_, err = e.svc.Reconcile(context.Background(), ReconcileInput{TransactionID: "abc12345", ProviderStatus: "SUCCESSFUL"})
	require.NoError(t, err)
	return user, attempt.SubscriptionID
}

func TestCancel(t *testing.T) {
	e := newTestEnv(t)
	user, subID := activeFixture(t, e)
	e.notifier.On("SubscriptionCancelled", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := e.svc.Cancel(context.Background(), user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, res.Status)
	assert.Equal(t, DefaultCancellationReason, res.Reason)
	assert.Equal(t, e.now, res.CancelledAt)

	sub := e.subs.get(subID)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.AutoRenew)
	assert.False(t, e.users.get(user.ID).IsPremium)

	ent, err := e.svc.GetEntitlement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, ent.IsPremiumActive)

	_, err = e.svc.Cancel(context.Background(), user.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrNoActiveSubscription)
	e.notifier.AssertNumberOfCalls(t, "SubscriptionCancelled", 1)
}

func TestGetEntitlement(t *testing.T) {
	e := newTestEnv(t)
	user, subID := activeFixture(t, e)

	ent, err := e.svc.GetEntitlement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, ent.IsPremiumActive)
	assert.Equal(t, 30, ent.DaysRemaining)
	require.NotNil(t, ent.Subscription)
	assert.Equal(t, subID, ent.Subscription.ID)

	// Half a day left still counts as one day.
	e.now = e.now.Add(29*24*time.Hour + 12*time.Hour)
	ent, err = e.svc.GetEntitlement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ent.DaysRemaining)

	// Past expiry: inactive although the flag is still set.
	e.now = e.now.Add(24 * time.Hour)
	require.True(t, e.users.get(user.ID).IsPremium)
	ent, err = e.svc.GetEntitlement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, ent.IsPremiumActive)
	assert.Zero(t, ent.DaysRemaining)
	assert.Nil(t, ent.Subscription)
}

func TestHistory(t *testing.T) {
	e := newTestEnv(t)
	user, subID := activeFixture(t, e)

	history, err := e.svc.History(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, subID, history[0].ID)
	assert.Equal(t, models.SubscriptionStatusActive, history[0].Status)
}

func TestVerifyPayment(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.expectDirectPay("abc12345")
	e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	attempt, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
	require.NoError(t, err)

	t.Run("not owned", func(t *testing.T) {
		_, err := e.svc.VerifyPayment(context.Background(), "someone-else", "abc12345")
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotOwned)
	})

	t.Run("provider down", func(t *testing.T) {
		e.provider.On("GetPaymentStatus", mock.Anything, "abc12345").
			Return(nil, &fapshi.Error{StatusCode: 503, Message: "unavailable"}).Once()

		_, err := e.svc.VerifyPayment(context.Background(), user.ID, "abc12345")
		assert.Equal(t, apperrors.CodePaymentVerification, appCode(t, err))
	})

	t.Run("still pending", func(t *testing.T) {
		e.provider.On("GetPaymentStatus", mock.Anything, "abc12345").
			Return(&fapshi.PaymentStatus{TransID: "abc12345", Status: "PENDING"}, nil).Once()

		res, err := e.svc.VerifyPayment(context.Background(), user.ID, "abc12345")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, res.Status)
		assert.Nil(t, res.Subscription)
	})

	t.Run("successful", func(t *testing.T) {
		e.provider.On("GetPaymentStatus", mock.Anything, "abc12345").
			Return(&fapshi.PaymentStatus{TransID: "abc12345", Status: "SUCCESSFUL", Amount: 2500, Medium: "orange money"}, nil).Once()

		res, err := e.svc.VerifyPayment(context.Background(), user.ID, "abc12345")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusSuccessful, res.Status)
		assert.True(t, res.Activated)
		require.NotNil(t, res.Subscription)
		assert.Equal(t, attempt.SubscriptionID, res.Subscription.ID)
		assert.Equal(t, models.PaymentMethodOrangeMoney, e.logs.byTransID("abc12345").PaymentMethod)
	})

	t.Run("already settled", func(t *testing.T) {
		e.provider.On("GetPaymentStatus", mock.Anything, "abc12345").
			Return(&fapshi.PaymentStatus{TransID: "abc12345", Status: "SUCCESSFUL"}, nil).Once()

		res, err := e.svc.VerifyPayment(context.Background(), user.ID, "abc12345")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusSuccessful, res.Status)
		assert.False(t, res.Activated)
		require.NotNil(t, res.Subscription)
		assert.Equal(t, models.SubscriptionStatusActive, res.Subscription.Status)
	})
}

// ============================================
// Sweeps
// ============================================

func TestSweepExpired(t *testing.T) {
	e := newTestEnv(t)
	user, subID := activeFixture(t, e)
	e.notifier.On("SubscriptionExpired", mock.Anything, mock.Anything).Return(nil)

	n, err := e.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	e.now = e.now.Add(31 * 24 * time.Hour)
	n, err = e.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.SubscriptionStatusExpired, e.subs.get(subID).Status)
	assert.False(t, e.users.get(user.ID).IsPremium)
	assert.Contains(t, e.events.published(), events.SubscriptionExpired)

	n, err = e.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	e.notifier.AssertNumberOfCalls(t, "SubscriptionExpired", 1)
}

func TestSweepExpired_KeepsNewerProjection(t *testing.T) {
	e := newTestEnv(t)
	user := e.addUser(t)
	e.notifier.On("SubscriptionExpired", mock.Anything, mock.Anything).Return(nil)

	lapsed := e.now.Add(-time.Hour)
	e.subs.put(models.Subscription{
		BaseModel:  models.BaseModel{ID: "s-old"},
		UserID:     user.ID,
		Status:     models.SubscriptionStatusActive,
		ExpiryDate: &lapsed,
	})
	require.NoError(t, e.users.SetPremium(context.Background(), user.ID, e.now.Add(20*24*time.Hour)))

	n, err := e.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, e.users.get(user.ID).IsPremium)
}

func TestSweepStaleAttempts(t *testing.T) {
	t.Run("expired at provider", func(t *testing.T) {
		e := newTestEnv(t)
		user := e.addUser(t)
		e.expectDirectPay("abc12345")
		attempt, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
		require.NoError(t, err)

		e.now = e.now.Add(AttemptTTL + time.Minute)
		e.provider.On("ExpirePayment", mock.Anything, "abc12345").Return(nil).Once()

		n, err := e.svc.SweepStaleAttempts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, models.PaymentStatusExpired, e.logs.byTransID("abc12345").Status)
		assert.Equal(t, models.SubscriptionStatusPending, e.subs.get(attempt.SubscriptionID).Status)

		// A new attempt may now reuse the pending row.
		e.expectDirectPay("next1234")
		res, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
		require.NoError(t, err)
		assert.Equal(t, attempt.SubscriptionID, res.SubscriptionID)
	})

	t.Run("paid at the last moment", func(t *testing.T) {
		e := newTestEnv(t)
		user := e.addUser(t)
		e.expectDirectPay("abc12345")
		e.notifier.On("PaymentSucceeded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		_, err := e.svc.CreateAttempt(context.Background(), directMonthly(user.ID))
		require.NoError(t, err)

		e.now = e.now.Add(AttemptTTL + time.Minute)
		e.provider.On("ExpirePayment", mock.Anything, "abc12345").
			Return(&fapshi.Error{StatusCode: 400, Message: "Payment already completed"}).Once()
		e.provider.On("GetPaymentStatus", mock.Anything, "abc12345").
			Return(&fapshi.PaymentStatus{TransID: "abc12345", Status: "SUCCESSFUL"}, nil).Once()

		n, err := e.svc.SweepStaleAttempts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.True(t, e.users.get(user.ID).IsPremium)
	})
}

func TestRemindExpiring(t *testing.T) {
	e := newTestEnv(t)
	_, subID := activeFixture(t, e)
	e.notifier.On("SubscriptionExpiring", mock.Anything, mock.Anything, mock.Anything, 2).Return(nil)

	n, err := e.svc.RemindExpiring(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.now = e.now.Add(28 * 24 * time.Hour)
	n, err = e.svc.RemindExpiring(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NotNil(t, e.subs.get(subID).LastReminderAt)

	// Once a day at most.
	e.now = e.now.Add(3 * time.Hour)
	n, err = e.svc.RemindExpiring(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	e.notifier.AssertNumberOfCalls(t, "SubscriptionExpiring", 1)
}
