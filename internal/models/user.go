package models

import "time"

type User struct {
	BaseModel
	FullName         string     `gorm:"not null" json:"fullName"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string     `gorm:"not null" json:"-"`
	Role             UserRole   `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	StageName        string     `json:"stageName,omitempty"`
	Bio              string     `json:"bio,omitempty"`
	ProfileImage     string     `json:"profileImage,omitempty"`
	IsPremium        bool       `gorm:"not null;default:false" json:"isPremium"`
	PremiumExpiresAt *time.Time `json:"premiumExpiresAt,omitempty"`
	Followers        int        `gorm:"default:0" json:"followers"`
	Following        int        `gorm:"default:0" json:"following"`
}

// PremiumActive recomputes the entitlement projection at t. The stored
// IsPremium flag alone is never trusted.
func (u *User) PremiumActive(t time.Time) bool {
	return u.IsPremium && u.PremiumExpiresAt != nil && u.PremiumExpiresAt.After(t)
}
