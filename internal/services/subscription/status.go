package subscription

import (
	"strings"

	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// MapProviderStatus translates the provider vocabulary. Anything not
// recognised is still pending.
func MapProviderStatus(providerStatus string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(providerStatus)) {
	case fapshi.StatusSuccessful:
		return models.PaymentStatusSuccessful
	case fapshi.StatusFailed:
		return models.PaymentStatusFailed
	case fapshi.StatusExpired:
		return models.PaymentStatusExpired
	default:
		return models.PaymentStatusPending
	}
}

// NormalizeMedium maps the provider's payment medium. An empty result
// means keep the stored method.
func NormalizeMedium(medium string) models.PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(medium)) {
	case "mobile money", "mobile_money", "mtn", "mtn mobile money":
		return models.PaymentMethodMobileMoney
	case "orange money", "orange_money", "orange":
		return models.PaymentMethodOrangeMoney
	default:
		return ""
	}
}

// MetadataFrom copies the reconcile-relevant fields of a provider status.
func MetadataFrom(p *fapshi.PaymentStatus) PaymentMetadata {
	return PaymentMetadata{
		FinancialTransID: p.FinancialTransID,
		Medium:           p.Medium,
		DateConfirmed:    p.ConfirmedAt(),
		Amount:           p.Amount,
		PayerName:        p.PayerName,
		Email:            p.Email,
		ExternalID:       p.ExternalID,
	}
}
