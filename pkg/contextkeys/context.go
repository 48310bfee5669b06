package contextkeys

// A custom type avoids collisions with other packages' keys
type contextKey string

// DBContextKey holds the *gorm.DB (usually a transaction) in a context
const DBContextKey = contextKey("db")

// EntitlementKey is the gin context key for the caller's premium entitlement
const EntitlementKey = "entitlement"
