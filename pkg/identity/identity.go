// Package identity resolves the actor behind a request: the signed-in user, the
// session and the membership in the session's active organization.
package identity

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	OrgRoleOwner  = "owner"
	OrgRoleAdmin  = "admin"
	OrgRoleMember = "member"
)

type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	Image         string     `json:"image,omitempty"`
	Role          string     `json:"role"`
	Banned        bool       `json:"banned"`
	BanReason     string     `json:"banReason,omitempty"`
	BanExpires    *time.Time `json:"banExpires,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsBanned reports whether the ban is in force at now. Expired bans do not count.
func (u User) IsBanned(now time.Time) bool {
	if !u.Banned {
		return false
	}
	return u.BanExpires == nil || u.BanExpires.After(now)
}

// HasRole reports whether role appears in the comma separated role list.
func (u User) HasRole(role string) bool {
	for _, r := range SplitRoles(u.Role) {
		if r == role {
			return true
		}
	}
	return false
}

type Session struct {
	ID                   string    `json:"id"`
	Token                string    `json:"-"`
	UserID               string    `json:"userId"`
	ActiveOrganizationID string    `json:"activeOrganizationId,omitempty"`
	ImpersonatedBy       string    `json:"impersonatedBy,omitempty"`
	IPAddress            string    `json:"ipAddress,omitempty"`
	UserAgent            string    `json:"userAgent,omitempty"`
	ExpiresAt            time.Time `json:"expiresAt"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Logo      string    `json:"logo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Membership struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsManager reports whether the membership role administers the organization.
func (m Membership) IsManager() bool {
	for _, r := range SplitRoles(m.Role) {
		if r == OrgRoleAdmin || r == OrgRoleOwner {
			return true
		}
	}
	return false
}

// AuthSession is what the session store hands back for a session cookie.
type AuthSession struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// OrganizationRef is the active organization as seen by the guard: its id and
// the caller's role in it.
type OrganizationRef struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Identity is built once per request and never mutated.
type Identity struct {
	User         User            `json:"user"`
	Session      Session         `json:"session"`
	Member       Membership      `json:"member"`
	Organization OrganizationRef `json:"organization"`
}

func New(auth AuthSession, member Membership) *Identity {
	return &Identity{
		User:    auth.User,
		Session: auth.Session,
		Member:  member,
		Organization: OrganizationRef{
			ID:   member.OrganizationID,
			Role: member.Role,
		},
	}
}

// LogFields attributes log lines to the identity without exposing personal data.
func (i *Identity) LogFields() map[string]any {
	if i == nil {
		return nil
	}
	return map[string]any{
		"userId":       i.User.ID,
		"organization": i.Organization.ID,
		"role":         i.Organization.Role,
	}
}
