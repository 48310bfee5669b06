package models

type UserRole string
type SubscriptionType string
type SubscriptionStatus string
type PaymentStatus string
type PaymentMethod string
type NotificationType string
type DeviceType string
type AccessLevel string
type MediaType string
type Visibility string
type ContentType string

const (
	UserRoleUser   UserRole = "user"
	UserRoleArtist UserRole = "artist"
	UserRoleAdmin  UserRole = "admin"

	SubscriptionTypeFree      SubscriptionType = "free"
	SubscriptionTypeMonthly   SubscriptionType = "monthly"
	SubscriptionTypeQuarterly SubscriptionType = "quarterly"
	SubscriptionTypeYearly    SubscriptionType = "yearly"

	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"

	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusExpired    PaymentStatus = "expired"

	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodDirectPay   PaymentMethod = "direct_pay"
	PaymentMethodRedirectPay PaymentMethod = "redirect_pay"

	NotificationPaymentSuccess        NotificationType = "payment_success"
	NotificationPaymentFailed         NotificationType = "payment_failed"
	NotificationSubscriptionExpiring  NotificationType = "subscription_expiring"
	NotificationSubscriptionRenewed   NotificationType = "subscription_renewed"
	NotificationSubscriptionCancelled NotificationType = "subscription_cancelled"
	NotificationSubscriptionExpired   NotificationType = "subscription_expired"
	NotificationNewFeature            NotificationType = "new_feature"
	NotificationMusicRelease          NotificationType = "music_release"
	NotificationFollowerUpdate        NotificationType = "follower_update"
	NotificationSystemAlert           NotificationType = "system_alert"
	NotificationAICreditLimit         NotificationType = "ai_credit_limit"

	DeviceTypeIOS     DeviceType = "ios"
	DeviceTypeAndroid DeviceType = "android"
	DeviceTypeWeb     DeviceType = "web"

	AccessLevelFree    AccessLevel = "free"
	AccessLevelPremium AccessLevel = "premium"

	MediaTypeNone  MediaType = "none"
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"

	VisibilityPublic        Visibility = "public"
	VisibilityPrivate       Visibility = "private"
	VisibilityFollowersOnly Visibility = "followersOnly"

	ContentTypeSong ContentType = "song"
	ContentTypePost ContentType = "post"
)

// IsOpen reports whether the status counts toward the one-open-subscription limit.
func (s SubscriptionStatus) IsOpen() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPending
}

// IsTerminal reports whether no further provider update can change the payment.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccessful
}
