package repositories

import "gorm.io/gorm"

// Registry groups every repository over one handle.
type Registry struct {
	Users         UserRepository
	Subscriptions SubscriptionRepository
	PaymentLogs   PaymentLogRepository
	Notifications NotificationRepository
	Songs         SongRepository
	Posts         PostRepository
	Likes         LikeRepository
	Comments      CommentRepository
	WebhookEvents WebhookEventRepository
	Transactor    Transactor
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		Users:         NewUserRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		PaymentLogs:   NewPaymentLogRepository(db),
		Notifications: NewNotificationRepository(db),
		Songs:         NewSongRepository(db),
		Posts:         NewPostRepository(db),
		Likes:         NewLikeRepository(db),
		Comments:      NewCommentRepository(db),
		WebhookEvents: NewWebhookEventRepository(db),
		Transactor:    NewTransactor(db),
	}
}
