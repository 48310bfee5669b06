package services

import (
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/cache"
	"github.com/EnowBibi/KontriVibeBackend/internal/email"
	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/internal/storage"
)

// ServiceContainer holds every application service.
type ServiceContainer struct {
	AuthService         AuthService
	NotificationService NotificationService
	SubscriptionService subscription.Service
	SongService         SongService
	PostService         PostService
	InteractionService  InteractionService
	WebhookService      WebhookService
}

// ContainerDeps are the infrastructure pieces the services share.
// VerifyWebhooks re-fetches webhook statuses from the provider.
type ContainerDeps struct {
	Repos            *repositories.Registry
	Provider         subscription.Provider
	Tokens           *auth.TokenManager
	Revocations      cache.TokenRevocationStore
	Publisher        events.Publisher
	Locker           lock.Locker
	Mailer           *email.Mailer
	Storage          storage.Storage
	Covers           CoverProcessor
	UploadLimits     UploadLimits
	PostUploadLimits UploadLimits
	VerifyWebhooks   bool
	Now              func() time.Time
}

// NewServiceContainer wires the services in dependency order: the
// notification service is the subscription engine's notifier, and the
// engine answers entitlement questions for auth and songs.
func NewServiceContainer(d ContainerDeps) *ServiceContainer {
	notifications := NewNotificationService(d.Repos.Notifications, d.Publisher, d.Mailer)

	subs := subscription.NewService(subscription.Deps{
		Users:         d.Repos.Users,
		Subscriptions: d.Repos.Subscriptions,
		PaymentLogs:   d.Repos.PaymentLogs,
		Transactor:    d.Repos.Transactor,
		Provider:      d.Provider,
		Notifier:      notifications,
		Events:        d.Publisher,
		Locker:        d.Locker,
		Now:           d.Now,
	})

	interactions := NewInteractionService(d.Repos.Likes, d.Repos.Comments, d.Repos.Posts, d.Repos.Users, d.Repos.Transactor)

	return &ServiceContainer{
		AuthService:         NewAuthService(d.Repos.Users, d.Tokens, d.Revocations, subs),
		NotificationService: notifications,
		SubscriptionService: subs,
		SongService:         NewSongService(d.Repos.Songs, d.Storage, subs, d.Covers, d.UploadLimits),
		PostService:         NewPostService(d.Repos.Posts, d.Repos.Transactor, d.Storage, interactions, d.PostUploadLimits),
		InteractionService:  interactions,
		WebhookService:      NewWebhookService(d.Repos.WebhookEvents, subs, d.Provider, d.VerifyWebhooks),
	}
}
