// Package identity abstracts session and credential management, which live
// outside this service. The core only ever sees an opaque {id, role} pair and
// only ever branches on role == ADMIN.
package identity

import "net/http"

// Role is the capability level attached to a principal.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the principal acting on a request.
type User struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the principal may act on links it does not own.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Provider resolves the principal for a request. A nil user with a nil error
// means "no identity": public endpoints carry on, protected ones reject.
type Provider interface {
	CurrentUser(r *http.Request) (*User, error)
}

// HeaderProvider trusts identity headers stamped by the authenticating
// reverse proxy in front of this service (X-User-Id / X-User-Role), plus an
// operator bearer token that grants admin capability for API automation.
type HeaderProvider struct {
	// AdminToken, when non-empty, lets "Authorization: Bearer <token>"
	// requests act as an admin service account.
	AdminToken string
}

// NewHeaderProvider builds the provider used in production.
func NewHeaderProvider(adminToken string) *HeaderProvider {
	return &HeaderProvider{AdminToken: adminToken}
}

func (p *HeaderProvider) CurrentUser(r *http.Request) (*User, error) {
	if p.AdminToken != "" && r.Header.Get("Authorization") == "Bearer "+p.AdminToken {
		return &User{ID: "service-admin", Role: RoleAdmin}, nil
	}

	id := r.Header.Get("X-User-Id")
	if id == "" {
		return nil, nil
	}

	role := RoleUser
	if r.Header.Get("X-User-Role") == string(RoleAdmin) {
		role = RoleAdmin
	}

	return &User{ID: id, Role: role}, nil
}
