package users

import "slices"

// Profile is the signed-in user as reported by the API. It is always refetched
// with the current access token and never persisted.
type Profile struct {
	Email       string   `json:"email" validate:"required,email"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

// HasPermission reports whether the profile carries the permission
func (p *Profile) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Permissions, permission)
}

// HasRole reports whether the profile carries the role
func (p *Profile) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// Can reports whether the profile holds every listed permission and at least
// one of the listed roles. Empty lists are not checked.
func (p *Profile) Can(permissions, roles []string) bool {
	if p == nil {
		return false
	}
	for _, permission := range permissions {
		if !p.HasPermission(permission) {
			return false
		}
	}
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}
