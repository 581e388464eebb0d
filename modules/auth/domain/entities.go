// Package domain holds the account, organization and invitation records of the
// auth data plane and the repository contracts over them.
package domain

import (
	"time"

	"github.com/iota-uz/saaskit/pkg/identity"
)

const ProviderGoogle = "google"

// Account links a user to an external identity provider.
type Account struct {
	ID         string
	UserID     string
	ProviderID string
	AccountID  string
	CreatedAt  time.Time
}

// Verification is a single use token, e.g. a password reset link.
type Verification struct {
	ID         string
	Identifier string
	Value      string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (v Verification) Expired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationCanceled InvitationStatus = "canceled"
)

type Invitation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organizationId"`
	Email          string           `json:"email"`
	Role           string           `json:"role"`
	Status         InvitationStatus `json:"status"`
	InviterID      string           `json:"inviterId"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Open reports whether the invitation can still be accepted.
func (i Invitation) Open(now time.Time) bool {
	return i.Status == InvitationPending && i.ExpiresAt.After(now)
}

// MemberView is a membership joined with the public part of its user.
type MemberView struct {
	identity.Membership
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}
