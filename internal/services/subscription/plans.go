package subscription

import (
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// Currency is the only currency the provider settles in.
const Currency = "XAF"

// Plan is the price and length of one subscription type.
type Plan struct {
	Type         models.SubscriptionType `json:"type"`
	Price        int64                   `json:"price"`
	Currency     string                  `json:"currency"`
	DurationDays int                     `json:"durationDays"`
}

var planTable = map[models.SubscriptionType]Plan{
	models.SubscriptionTypeFree:      {Type: models.SubscriptionTypeFree, Price: 0, Currency: Currency, DurationDays: 0},
	models.SubscriptionTypeMonthly:   {Type: models.SubscriptionTypeMonthly, Price: 2500, Currency: Currency, DurationDays: 30},
	models.SubscriptionTypeQuarterly: {Type: models.SubscriptionTypeQuarterly, Price: 6500, Currency: Currency, DurationDays: 90},
	models.SubscriptionTypeYearly:    {Type: models.SubscriptionTypeYearly, Price: 20000, Currency: Currency, DurationDays: 365},
}

// LookupPlan returns the plan for t, including free.
func LookupPlan(t models.SubscriptionType) (Plan, bool) {
	p, ok := planTable[t]
	return p, ok
}

// Purchasable reports whether t can be bought.
func (p Plan) Purchasable() bool {
	return p.Price > 0 && p.DurationDays > 0
}

// ExpiryFrom is start plus the plan length.
func (p Plan) ExpiryFrom(start time.Time) time.Time {
	return start.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
}

// PurchasablePlans lists the paid plans, cheapest first.
func PurchasablePlans() []Plan {
	return []Plan{
		planTable[models.SubscriptionTypeMonthly],
		planTable[models.SubscriptionTypeQuarterly],
		planTable[models.SubscriptionTypeYearly],
	}
}
