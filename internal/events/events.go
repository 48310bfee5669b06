// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"time"
)

// Routing keys on the events exchange.
const (
	SubscriptionActivated = "subscription.activated"
	SubscriptionCancelled = "subscription.cancelled"
	SubscriptionExpired   = "subscription.expired"
	NotificationPush      = "notification.push"
)

// Publisher sends one JSON event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close()
}

// SubscriptionEvent is the payload of the subscription.* routing keys.
type SubscriptionEvent struct {
	SubscriptionID   string     `json:"subscriptionId"`
	UserID           string     `json:"userId"`
	SubscriptionType string     `json:"subscriptionType"`
	Status           string     `json:"status"`
	TransactionID    string     `json:"transactionId,omitempty"`
	ExpiryDate       *time.Time `json:"expiryDate,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	OccurredAt       time.Time  `json:"occurredAt"`
}

// PushMessage is the payload of notification.push, consumed by the push gateway.
type PushMessage struct {
	NotificationID string            `json:"notificationId"`
	UserID         string            `json:"userId"`
	Tokens         []string          `json:"tokens"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NoopPublisher) Close()                                           {}
