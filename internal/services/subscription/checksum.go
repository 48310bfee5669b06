package subscription

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// checksumTimeLayout is ISO-8601 UTC with milliseconds.
const checksumTimeLayout = "2006-01-02T15:04:05.000Z"

type checksumPayload struct {
	UserID           string `json:"userId"`
	Amount           int64  `json:"amount"`
	SubscriptionType string `json:"subscriptionType"`
	Timestamp        string `json:"timestamp"`
}

// Checksum is the audit digest stored on a PaymentLog. It is recorded and
// compared, never used to accept or reject a payment.
func Checksum(userID string, amount int64, subType models.SubscriptionType, at time.Time) string {
	// Field order is fixed by the struct, so the encoding is stable.
	raw, _ := json.Marshal(checksumPayload{
		UserID:           userID,
		Amount:           amount,
		SubscriptionType: string(subType),
		Timestamp:        at.UTC().Format(checksumTimeLayout),
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum recomputes the digest for a stored log.
func VerifyChecksum(log *models.PaymentLog) bool {
	if log.SecurityChecksum == "" {
		return true
	}
	return Checksum(log.UserID, log.Amount, log.SubscriptionType, log.InitiatedAt) == log.SecurityChecksum
}
