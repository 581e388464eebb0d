package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/iota-uz/saaskit/pkg/serrors"
)

var (
	ErrUnauthenticated      = serrors.NewError(serrors.CodeUnauthenticated, "Unauthorized", "Errors.Unauthenticated")
	ErrNoActiveOrganization = serrors.NewError(serrors.CodeNoActiveOrganization, "No active organization", "Errors.NoActiveOrganization")
	ErrNotAMember           = serrors.NewError(serrors.CodeNotAMember, "User is not a member of the organization", "Errors.NotAMember")
	// ErrMemberNotFound is returned by MemberStore implementations when no row matches.
	ErrMemberNotFound = errors.New("member not found")
)

// SessionStore exchanges the request headers for a session.
// It returns (nil, nil) when the headers carry no valid session.
type SessionStore interface {
	GetSession(ctx context.Context, headers http.Header) (*AuthSession, error)
}

type MemberStore interface {
	FindMember(ctx context.Context, organizationID, userID string) (*Membership, error)
}

// Resolver builds an Identity for each request straight from the stores; nothing
// is cached between calls.
type Resolver struct {
	sessions SessionStore
	members  MemberStore
}

func NewResolver(sessions SessionStore, members MemberStore) *Resolver {
	return &Resolver{sessions: sessions, members: members}
}

func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Identity, error) {
	auth, err := r.sessions.GetSession(ctx, req.Header)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, ErrUnauthenticated
	}

	orgID := auth.Session.ActiveOrganizationID
	if orgID == "" {
		return nil, ErrNoActiveOrganization
	}

	member, err := r.members.FindMember(ctx, orgID, auth.User.ID)
	if errors.Is(err, ErrMemberNotFound) || (err == nil && member == nil) {
		return nil, ErrNotAMember
	}
	if err != nil {
		return nil, err
	}

	return New(*auth, *member), nil
}

// ResolveSession resolves the signed-in user for routes that run before an
// organization is active, such as onboarding. The membership is attached when the
// session already names an organization the user belongs to.
func (r *Resolver) ResolveSession(ctx context.Context, req *http.Request) (*Identity, error) {
	auth, err := r.sessions.GetSession(ctx, req.Header)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, ErrUnauthenticated
	}

	ident := &Identity{User: auth.User, Session: auth.Session}
	orgID := auth.Session.ActiveOrganizationID
	if orgID == "" {
		return ident, nil
	}
	member, err := r.members.FindMember(ctx, orgID, auth.User.ID)
	switch {
	case errors.Is(err, ErrMemberNotFound) || (err == nil && member == nil):
		return ident, nil
	case err != nil:
		return nil, err
	}
	return New(*auth, *member), nil
}
