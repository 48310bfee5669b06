package apperrors

import (
	"net/http"
)

/*
Factories and predefined values for business and domain errors.
*/

// =========================================================================
// Factory FUNCTIONS (wrapping lower-level errors, e.g. from repositories)
// =========================================================================

// ErrNotFound converts a repository miss into a 404.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// NotFound is ErrNotFound with a domain and message.
func NotFound(err error, domain, message string) *AppError {
	return Wrap(err, CodeNotFound, domain, message, http.StatusNotFound)
}

// ErrAlreadyExists is a 409 for unique resources.
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// ErrConflict is the general 409.
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// =========================================================================
// Factory FUNCTIONS (new errors)
// =========================================================================

// ErrInvalidOperation (400)
func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// ErrInvalidStatus (400)
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusBadRequest)
}

// ErrPaymentInitiation reports that the provider did not accept a payment
// request. retryable is true when the call timed out and the outcome is unknown.
func ErrPaymentInitiation(err error, retryable bool) *AppError {
	return Wrap(err, CodePaymentInitiation, "payment", "Failed to initiate payment", http.StatusBadGateway).
		WithDetails(map[string]interface{}{"retryable": retryable})
}

// ErrPaymentVerification reports that the provider status could not be fetched.
func ErrPaymentVerification(err error) *AppError {
	return Wrap(err, CodePaymentVerification, "payment", "Failed to verify payment", http.StatusBadGateway)
}

// =========================================================================
// Predefined VALUES (frequent, static errors)
// =========================================================================

// --- Subscriptions & Payments ---

// ErrSubscriptionExists - the user already holds an active or pending subscription.
var ErrSubscriptionExists = New(
	CodeConflict,
	"subscription",
	"User already has an active or pending subscription",
	http.StatusConflict, // 409
)

// ErrNoActiveSubscription - cancel without an active subscription.
var ErrNoActiveSubscription = New(
	CodeInvalidStatus,
	"subscription",
	"No active subscription to cancel",
	http.StatusBadRequest, // 400
)

// ErrInvalidPlan - unknown or non-purchasable plan.
var ErrInvalidPlan = New(
	CodeValidationFailed,
	"subscription",
	"Invalid subscription type",
	http.StatusBadRequest,
)

// ErrPaymentNotFound - transaction id is unknown.
var ErrPaymentNotFound = New(
	CodeNotFound,
	"payment",
	"Payment not found",
	http.StatusNotFound,
)

// ErrTransactionNotOwned - transaction exists but belongs to someone else (or nobody).
var ErrTransactionNotOwned = New(
	CodeNotFound,
	"payment",
	"Transaction not associated with your account",
	http.StatusNotFound,
)

// ErrPremiumRequired - content needs an active premium entitlement.
var ErrPremiumRequired = New(
	CodePremiumRequired,
	"subscription",
	"Premium subscription required",
	http.StatusForbidden, // 403
)

// --- Uploads & Files ---

// ErrFileTooLarge - file exceeds the per-request limit.
var ErrFileTooLarge = New(
	CodeLimitExceeded,
	"validation",
	"File size exceeds the allowed limit",
	http.StatusRequestEntityTooLarge, // 413
)

// ErrInvalidFileType - MIME type not allowed.
var ErrInvalidFileType = New(
	CodeValidationFailed,
	"validation",
	"The provided file type is not allowed",
	http.StatusUnsupportedMediaType, // 415
)

// --- Songs ---

var ErrSongNotFound = New(CodeNotFound, "song", "Song not found", http.StatusNotFound)

// ErrNotSongOwner - only the uploading artist may modify a song.
var ErrNotSongOwner = New(
	CodeForbidden,
	"song",
	"You can only modify your own songs",
	http.StatusForbidden,
)

// --- Posts, likes & comments ---

var ErrPostNotFound = New(CodeNotFound, "post", "Post not found", http.StatusNotFound)

// ErrNotPostOwner - only the author may modify a post.
var ErrNotPostOwner = New(
	CodeForbidden,
	"post",
	"You can only modify your own posts",
	http.StatusForbidden,
)

// ErrContentNotFound - the liked or commented item does not exist.
var ErrContentNotFound = New(CodeNotFound, "content", "Content not found", http.StatusNotFound)

var ErrCommentNotFound = New(CodeNotFound, "comment", "Comment not found", http.StatusNotFound)

// ErrNotCommentOwner - only the commenter may delete a comment.
var ErrNotCommentOwner = New(
	CodeForbidden,
	"comment",
	"You can only delete your own comments",
	http.StatusForbidden,
)

// --- Notifications ---

var ErrNotificationNotFound = New(CodeNotFound, "notification", "Notification not found", http.StatusNotFound)

// --- Auth & Users ---

// ErrWeakPassword - password too short.
var ErrWeakPassword = New(
	CodeValidationFailed,
	"validation",
	"Password is too weak. Minimum 6 characters required.",
	http.StatusBadRequest, // 400
)

// ErrEmailAlreadyExists - email already registered.
var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already in use",
	http.StatusConflict, // 409
)

// ErrInvalidCredentials - wrong email or password.
var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized, // 401
)

// ErrInvalidToken - bad, expired or revoked token.
var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized, // 401
)

var ErrUserNotFound = New(CodeNotFound, "user", "User not found", http.StatusNotFound)

// ErrInsufficientPermissions - role does not allow the action.
var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)
