package auth

import "errors"

// RBAC roles and permissions
const (
	RoleAdmin  = "admin"
	RoleArtist = "artist"
	RoleUser   = "user"
)

const (
	PermSongsUpload    = "songs:upload"
	PermSongsManageAny = "songs:manage:any"
	PermSongsApprove   = "songs:approve"
	PermPostsManageAny = "posts:manage:any"
)

// Permissions per role
var Permissions = map[string][]string{
	RoleAdmin: {
		PermSongsUpload,
		PermSongsManageAny,
		PermSongsApprove,
		PermPostsManageAny,
	},
	RoleArtist: {
		PermSongsUpload,
	},
	RoleUser: {
		PermSongsUpload,
	},
}

// HasPermission reports whether the role grants the permission
func HasPermission(role, permission string) bool {
	permissions, exists := Permissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin checks the role in the claims
func IsAdmin(claims *Claims) bool {
	return claims != nil && claims.Role == RoleAdmin
}

// ValidateRole accepts the self-service roles. Admins are never self-registered.
func ValidateRole(role string) error {
	switch role {
	case RoleUser, RoleArtist:
		return nil
	default:
		return errors.New("invalid role")
	}
}
