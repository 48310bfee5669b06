package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
)

// adminStore is the part of the user repository the seed needs.
type adminStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// seedFirstAdmin creates the admin account on first start. An existing
// account with that email is left untouched, whatever its role.
func seedFirstAdmin(ctx context.Context, users adminStore, adminEmail, adminPassword string) error {
	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))
	if adminEmail == "" || adminPassword == "" {
		logger.Warn("FIRST_ADMIN_EMAIL or FIRST_ADMIN_PASSWORD is not set. Skipping admin seeding.")
		return nil
	}

	existing, err := users.FindByEmail(ctx, adminEmail)
	if err == nil {
		if existing.Role != models.UserRoleAdmin {
			logger.Warn("First admin email belongs to a non-admin account", "email", adminEmail, "role", existing.Role)
		}
		logger.Info("Admin user already exists. Skipping creation.", "email", adminEmail)
		return nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		FullName:     "KontriVibe Admin",
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, repositories.ErrUserAlreadyExists) {
			// Another instance seeded it first.
			return nil
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("Created first admin user", "email", adminEmail)
	return nil
}
