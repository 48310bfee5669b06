package subscription

import (
	"context"
	"errors"

	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// GetEntitlement recomputes premium access from the stored projection. An
// expiry in the past means no access even while isPremium is still set.
func (s *service) GetEntitlement(ctx context.Context, userID string) (*Entitlement, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, dbError(err)
	}

	now := s.now().UTC()
	ent := &Entitlement{
		IsPremiumActive:  user.PremiumActive(now),
		PremiumExpiresAt: user.PremiumExpiresAt,
	}
	if !ent.IsPremiumActive {
		return ent, nil
	}

	ent.DaysRemaining = daysRemaining(user.PremiumExpiresAt, now)
	sub, err := s.subscriptions.FindActiveByUser(ctx, userID)
	switch {
	case err == nil:
		ent.Subscription = summarize(sub, now)
	case !errors.Is(err, repositories.ErrSubscriptionNotFound):
		return nil, dbError(err)
	}
	return ent, nil
}

// History lists every subscription of the user, newest first.
func (s *service) History(ctx context.Context, userID string) ([]SubscriptionSummary, error) {
	subs, err := s.subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return nil, dbError(err)
	}
	now := s.now().UTC()
	out := make([]SubscriptionSummary, 0, len(subs))
	for i := range subs {
		out = append(out, *summarize(&subs[i], now))
	}
	return out, nil
}
