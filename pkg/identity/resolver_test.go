package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionStoreStub struct {
	session *AuthSession
	err     error
	calls   int
}

func (s *sessionStoreStub) GetSession(_ context.Context, _ http.Header) (*AuthSession, error) {
	s.calls++
	return s.session, s.err
}

type memberStoreStub struct {
	members map[string]Membership
	err     error
}

func (m *memberStoreStub) FindMember(_ context.Context, orgID, userID string) (*Membership, error) {
	if m.err != nil {
		return nil, m.err
	}
	member, ok := m.members[orgID+"/"+userID]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return &member, nil
}

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/app", nil)
}

func TestResolver_Resolve(t *testing.T) {
	session := &AuthSession{
		User:    User{ID: "u1", Name: "Ada", Role: RoleUser},
		Session: Session{ID: "s1", UserID: "u1", ActiveOrganizationID: "o1"},
	}
	members := &memberStoreStub{members: map[string]Membership{
		"o1/u1": {ID: "m1", OrganizationID: "o1", UserID: "u1", Role: OrgRoleOwner},
	}}

	ident, err := NewResolver(&sessionStoreStub{session: session}, members).Resolve(context.Background(), newRequest())
	require.NoError(t, err)
	assert.Equal(t, "u1", ident.User.ID)
	assert.Equal(t, "s1", ident.Session.ID)
	assert.Equal(t, OrganizationRef{ID: "o1", Role: OrgRoleOwner}, ident.Organization)
	assert.Equal(t, map[string]any{"userId": "u1", "organization": "o1", "role": OrgRoleOwner}, ident.LogFields())
}

func TestResolver_Failures(t *testing.T) {
	noOrg := &AuthSession{User: User{ID: "u1"}, Session: Session{ID: "s1"}}
	otherOrg := &AuthSession{User: User{ID: "u1"}, Session: Session{ID: "s1", ActiveOrganizationID: "o2"}}
	storeDown := errors.New("connection refused")

	cases := []struct {
		name     string
		sessions *sessionStoreStub
		members  *memberStoreStub
		want     error
	}{
		{name: "no session", sessions: &sessionStoreStub{}, members: &memberStoreStub{}, want: ErrUnauthenticated},
		{name: "no active organization", sessions: &sessionStoreStub{session: noOrg}, members: &memberStoreStub{}, want: ErrNoActiveOrganization},
		{name: "not a member", sessions: &sessionStoreStub{session: otherOrg}, members: &memberStoreStub{}, want: ErrNotAMember},
		{name: "session store error", sessions: &sessionStoreStub{err: storeDown}, members: &memberStoreStub{}, want: storeDown},
		{name: "member store error", sessions: &sessionStoreStub{session: otherOrg}, members: &memberStoreStub{err: storeDown}, want: storeDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ident, err := NewResolver(tc.sessions, tc.members).Resolve(context.Background(), newRequest())
			require.Nil(t, ident)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResolver_NoCaching(t *testing.T) {
	sessions := &sessionStoreStub{session: &AuthSession{
		User:    User{ID: "u1"},
		Session: Session{ActiveOrganizationID: "o1"},
	}}
	members := &memberStoreStub{members: map[string]Membership{"o1/u1": {OrganizationID: "o1", UserID: "u1", Role: OrgRoleMember}}}
	r := NewResolver(sessions, members)

	first, err := r.Resolve(context.Background(), newRequest())
	require.NoError(t, err)
	members.members["o1/u1"] = Membership{OrganizationID: "o1", UserID: "u1", Role: OrgRoleAdmin}
	second, err := r.Resolve(context.Background(), newRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, sessions.calls)
	assert.Equal(t, OrgRoleMember, first.Organization.Role)
	assert.Equal(t, OrgRoleAdmin, second.Organization.Role)
}

func TestUser_IsBanned(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, User{}.IsBanned(now))
	assert.True(t, User{Banned: true}.IsBanned(now))
	assert.True(t, User{Banned: true, BanExpires: &future}.IsBanned(now))
	assert.False(t, User{Banned: true, BanExpires: &past}.IsBanned(now))
}

func TestRoles(t *testing.T) {
	assert.True(t, User{Role: "user, admin"}.HasRole(RoleAdmin))
	assert.False(t, User{Role: "user"}.HasRole(RoleAdmin))
	assert.True(t, Membership{Role: OrgRoleOwner}.IsManager())
	assert.False(t, Membership{Role: OrgRoleMember}.IsManager())
	assert.Equal(t, "user,admin", JoinRoles(SplitRoles(" user ,, admin")))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ident := &Identity{User: User{ID: "u1"}}
	got, ok := FromContext(WithIdentity(context.Background(), ident))
	require.True(t, ok)
	assert.Same(t, ident, got)
}

func TestResolver_ResolveSession(t *testing.T) {
	members := &memberStoreStub{members: map[string]Membership{
		"o1/u1": {OrganizationID: "o1", UserID: "u1", Role: OrgRoleAdmin},
	}}

	t.Run("no organization yet", func(t *testing.T) {
		sessions := &sessionStoreStub{session: &AuthSession{User: User{ID: "u1"}, Session: Session{ID: "s1"}}}
		ident, err := NewResolver(sessions, members).ResolveSession(context.Background(), newRequest())
		require.NoError(t, err)
		assert.Equal(t, "u1", ident.User.ID)
		assert.Empty(t, ident.Organization.ID)
	})

	t.Run("membership attached when present", func(t *testing.T) {
		sessions := &sessionStoreStub{session: &AuthSession{User: User{ID: "u1"}, Session: Session{ActiveOrganizationID: "o1"}}}
		ident, err := NewResolver(sessions, members).ResolveSession(context.Background(), newRequest())
		require.NoError(t, err)
		assert.Equal(t, OrganizationRef{ID: "o1", Role: OrgRoleAdmin}, ident.Organization)
	})

	t.Run("stale organization is ignored", func(t *testing.T) {
		sessions := &sessionStoreStub{session: &AuthSession{User: User{ID: "u1"}, Session: Session{ActiveOrganizationID: "o9"}}}
		ident, err := NewResolver(sessions, members).ResolveSession(context.Background(), newRequest())
		require.NoError(t, err)
		assert.Empty(t, ident.Organization.ID)
	})

	t.Run("no session", func(t *testing.T) {
		_, err := NewResolver(&sessionStoreStub{}, members).ResolveSession(context.Background(), newRequest())
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}
