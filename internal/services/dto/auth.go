package dto

import (
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
)

// ---------------- Requests ----------------

type RegisterRequest struct {
	FullName  string `json:"fullName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"omitempty,signup_role"`
	StageName string `json:"stageName" validate:"required_if=Role artist,max=100"`
	Bio       string `json:"bio" validate:"omitempty,max=1000"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ---------------- Responses ----------------

type UserResponse struct {
	ID               string          `json:"id"`
	FullName         string          `json:"fullName"`
	Email            string          `json:"email"`
	Role             models.UserRole `json:"role"`
	StageName        string          `json:"stageName,omitempty"`
	Bio              string          `json:"bio,omitempty"`
	ProfileImage     string          `json:"profileImage,omitempty"`
	IsPremium        bool            `json:"isPremium"`
	PremiumExpiresAt *time.Time      `json:"premiumExpiresAt,omitempty"`
	Followers        int             `json:"followers"`
	Following        int             `json:"following"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *UserResponse `json:"user"`
}

type MeResponse struct {
	User        *UserResponse             `json:"user"`
	Entitlement *subscription.Entitlement `json:"entitlement"`
}

// NewUserResponse reports isPremium as the recomputed entitlement, not the
// stored flag.
func NewUserResponse(u *models.User, now time.Time) *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		FullName:         u.FullName,
		Email:            u.Email,
		Role:             u.Role,
		StageName:        u.StageName,
		Bio:              u.Bio,
		ProfileImage:     u.ProfileImage,
		IsPremium:        u.PremiumActive(now),
		PremiumExpiresAt: u.PremiumExpiresAt,
		Followers:        u.Followers,
		Following:        u.Following,
		CreatedAt:        u.CreatedAt,
	}
}
