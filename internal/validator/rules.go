package validator

import (
	"log"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

var cmPhonePattern = regexp.MustCompile(`^6\d{8}$`)

// registerCustomRules installs the project tags. A failed registration is
// a programming error, so startup stops.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("plan", validatePlan)
	mustRegister("payment_method", validatePaymentMethod)
	mustRegister("cm_phone", validateCMPhone)
	mustRegister("signup_role", validateSignupRole)
	mustRegister("device_type", validateDeviceType)
	mustRegister("access_level", validateAccessLevel)
	mustRegister("visibility", validateVisibility)
	mustRegister("content_type", validateContentType)
}

// Empty values pass every rule below; 'required' handles presence.

func validatePlan(fl validator.FieldLevel) bool {
	switch models.SubscriptionType(fl.Field().String()) {
	case "", models.SubscriptionTypeMonthly, models.SubscriptionTypeQuarterly, models.SubscriptionTypeYearly:
		return true
	default:
		return false
	}
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "redirect", "direct":
		return true
	default:
		return false
	}
}

func validateCMPhone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || cmPhonePattern.MatchString(value)
}

func validateSignupRole(fl validator.FieldLevel) bool {
	switch models.UserRole(fl.Field().String()) {
	case "", models.UserRoleUser, models.UserRoleArtist:
		return true
	default:
		return false
	}
}

func validateDeviceType(fl validator.FieldLevel) bool {
	switch models.DeviceType(fl.Field().String()) {
	case "", models.DeviceTypeIOS, models.DeviceTypeAndroid, models.DeviceTypeWeb:
		return true
	default:
		return false
	}
}

func validateAccessLevel(fl validator.FieldLevel) bool {
	switch models.AccessLevel(fl.Field().String()) {
	case "", models.AccessLevelFree, models.AccessLevelPremium:
		return true
	default:
		return false
	}
}

func validateVisibility(fl validator.FieldLevel) bool {
	switch models.Visibility(fl.Field().String()) {
	case "", models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityFollowersOnly:
		return true
	default:
		return false
	}
}

func validateContentType(fl validator.FieldLevel) bool {
	switch models.ContentType(fl.Field().String()) {
	case "", models.ContentTypeSong, models.ContentTypePost:
		return true
	default:
		return false
	}
}
