package handlers

import "github.com/gin-gonic/gin"

// Guards are the route middlewares handlers attach to their groups.
// Entitlement resolves premium access without blocking; Premium blocks.
type Guards struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	Entitlement  gin.HandlerFunc
	Premium      gin.HandlerFunc
	Admin        gin.HandlerFunc
	RateLimit    gin.HandlerFunc
}

// AppHandlers holds every HTTP handler of the application.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	SubscriptionHandler *SubscriptionHandler
	WebhookHandler      *WebhookHandler
	NotificationHandler *NotificationHandler
	SongHandler         *SongHandler
	PostHandler         *PostHandler
	InteractionHandler  *InteractionHandler
	HealthHandler       *HealthHandler
}
