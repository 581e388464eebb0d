package domain

import (
	"context"

	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var (
	ErrUserNotFound         = serrors.NewError(serrors.CodeNotFound, "User not found", "Errors.UserNotFound")
	ErrSessionNotFound      = serrors.NewError(serrors.CodeNotFound, "Session not found", "Errors.SessionNotFound")
	ErrAccountNotFound      = serrors.NewError(serrors.CodeNotFound, "Account not found", "Errors.AccountNotFound")
	ErrVerificationNotFound = serrors.NewError(serrors.CodeNotFound, "Token not found", "Errors.VerificationNotFound")
	ErrOrganizationNotFound = serrors.NewError(serrors.CodeNotFound, "Organization not found", "Errors.OrganizationNotFound")
	ErrInvitationNotFound   = serrors.NewError(serrors.CodeNotFound, "Invitation not found", "Errors.InvitationNotFound")
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	List(ctx context.Context) ([]identity.User, error)
	PasswordHash(ctx context.Context, id string) (string, error)
	Create(ctx context.Context, u *identity.User, passwordHash string) error
	// Update persists every mutable column except the password.
	Update(ctx context.Context, u *identity.User) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type SessionRepository interface {
	Create(ctx context.Context, s *identity.Session) error
	GetByID(ctx context.Context, id string) (*identity.Session, error)
	GetByToken(ctx context.Context, token string) (*identity.Session, error)
	ListByUser(ctx context.Context, userID string) ([]identity.Session, error)
	// SetActiveOrganization clears the active organization when organizationID is empty.
	SetActiveOrganization(ctx context.Context, id, organizationID string) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type AccountRepository interface {
	Find(ctx context.Context, providerID, accountID string) (*Account, error)
	Create(ctx context.Context, a *Account) error
}

type VerificationRepository interface {
	Create(ctx context.Context, v *Verification) error
	// Consume deletes the verification and returns it.
	Consume(ctx context.Context, value string) (*Verification, error)
}

type OrganizationRepository interface {
	Create(ctx context.Context, o *identity.Organization) error
	GetByID(ctx context.Context, id string) (*identity.Organization, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]identity.Organization, error)
	Update(ctx context.Context, o *identity.Organization) error
	Delete(ctx context.Context, id string) error
}

type MemberRepository interface {
	Create(ctx context.Context, m *identity.Membership) error
	// Find returns identity.ErrMemberNotFound when the user is not a member.
	Find(ctx context.Context, organizationID, userID string) (*identity.Membership, error)
	GetByID(ctx context.Context, id string) (*identity.Membership, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]MemberView, error)
	UpdateRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, id string) (*Invitation, error)
	ListPending(ctx context.Context, organizationID string) ([]Invitation, error)
	SetStatus(ctx context.Context, id string, status InvitationStatus) error
}
