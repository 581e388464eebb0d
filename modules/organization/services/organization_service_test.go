package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/modules/auth/testhelpers"
	"github.com/iota-uz/saaskit/modules/organization/services"
	"github.com/iota-uz/saaskit/pkg/identity"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *testhelpers.Store
	mailer *testhelpers.Mailer
	svc    *services.OrganizationService
	owner  *identity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testhelpers.NewStore()
	mailer := &testhelpers.Mailer{}
	sessions := authservices.NewSessionService(
		store.UserRepository(),
		store.SessionRepository(),
		store.OrganizationRepository(),
		store.MemberRepository(),
		authservices.CookieOptions{Name: "sid"},
		time.Hour,
		authservices.WithClock(func() time.Time { return now }),
	)
	svc := services.NewOrganizationService(
		store.OrganizationRepository(),
		store.MemberRepository(),
		store.InvitationRepository(),
		store.UserRepository(),
		sessions,
		mailer,
		services.OrganizationServiceOptions{
			Origin: "https://app.test",
			Now:    func() time.Time { return now },
			InTx:   testhelpers.InTx,
		},
	)

	owner := identity.User{ID: "u-owner", Name: "Olga", Email: "olga@example.com", Role: identity.RoleUser, CreatedAt: now}
	store.AddUser(owner, "")
	store.AddSession(identity.Session{ID: "s-owner", Token: "t-owner", UserID: owner.ID, ExpiresAt: now.Add(time.Hour)})

	return &fixture{
		store:  store,
		mailer: mailer,
		svc:    svc,
		owner:  &identity.Identity{User: owner, Session: identity.Session{ID: "s-owner", UserID: owner.ID}},
	}
}

func (f *fixture) createOrg(t *testing.T, name string) *identity.Organization {
	t.Helper()
	org, err := f.svc.Create(context.Background(), f.owner, name)
	require.NoError(t, err)
	m, err := f.store.MemberRepository().Find(context.Background(), org.ID, f.owner.User.ID)
	require.NoError(t, err)
	f.owner = identity.New(identity.AuthSession{User: f.owner.User, Session: f.owner.Session}, *m)
	return org
}

func (f *fixture) addUser(t *testing.T, id, email string) *identity.Identity {
	t.Helper()
	u := identity.User{ID: id, Name: id, Email: email, Role: identity.RoleUser, CreatedAt: now}
	f.store.AddUser(u, "")
	sess := identity.Session{ID: "s-" + id, Token: "t-" + id, UserID: id, ExpiresAt: now.Add(time.Hour)}
	f.store.AddSession(sess)
	return &identity.Identity{User: u, Session: sess}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-corp", services.Slugify("Acme Corp"))
	assert.Equal(t, "acme-corp", services.Slugify("  ACME   corp "))
	assert.Equal(t, "", services.Slugify("   "))
}

func TestOrganizationService_Create(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Acme Corp")

	assert.Equal(t, "acme-corp", org.Slug)
	assert.Equal(t, identity.OrgRoleOwner, f.owner.Organization.Role)

	sess, ok := f.store.Session("s-owner")
	require.True(t, ok)
	assert.Equal(t, org.ID, sess.ActiveOrganizationID)

	_, err := f.svc.Create(context.Background(), f.owner, "acme corp")
	require.ErrorIs(t, err, services.ErrSlugTaken)
	assert.Equal(t, "Organization slug is already taken", err.Error())

	available, err := f.svc.SlugAvailable(context.Background(), "acme-corp")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestOrganizationService_Invite(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Acme")
	ctx := context.Background()

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, f.owner, "bob@example.com", "superuser")
		require.Error(t, err)
		assert.Equal(t, "Invalid role", err.Error())
	})

	t.Run("records and mails a pending invitation", func(t *testing.T) {
		inv, err := f.svc.Invite(ctx, f.owner, " Bob@Example.com ", identity.OrgRoleMember)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", inv.Email)
		assert.Equal(t, domain.InvitationPending, inv.Status)
		assert.Equal(t, now.Add(48*time.Hour), inv.ExpiresAt)

		mail, ok := f.mailer.Last()
		require.True(t, ok)
		assert.Equal(t, "Acme", mail.Organization)
		assert.True(t, strings.HasSuffix(mail.Link, "/app/organization/onboarding/join/"+inv.ID))

		_, pending, err := f.svc.Members(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
	})

	t.Run("rejects existing members", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, f.owner, "olga@example.com", identity.OrgRoleAdmin)
		require.ErrorIs(t, err, services.ErrAlreadyMember)
	})
}

func TestOrganizationService_AcceptInvitation(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Acme")
	ctx := context.Background()
	bob := f.addUser(t, "u-bob", "bob@example.com")
	eve := f.addUser(t, "u-eve", "eve@example.com")

	inv, err := f.svc.Invite(ctx, f.owner, "bob@example.com", identity.OrgRoleAdmin)
	require.NoError(t, err)

	_, err = f.svc.InvitationFor(ctx, eve, inv.ID)
	require.ErrorIs(t, err, domain.ErrInvitationNotFound)
	_, err = f.svc.AcceptInvitation(ctx, eve, inv.ID)
	require.ErrorIs(t, err, domain.ErrInvitationNotFound)

	view, err := f.svc.InvitationFor(ctx, bob, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", view.OrganizationName)

	_, err = f.svc.AcceptInvitation(ctx, bob, inv.ID)
	require.NoError(t, err)

	m, err := f.store.MemberRepository().Find(ctx, org.ID, bob.User.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.OrgRoleAdmin, m.Role)

	sess, _ := f.store.Session(bob.Session.ID)
	assert.Equal(t, org.ID, sess.ActiveOrganizationID)

	stored, _ := f.store.Invitation(inv.ID)
	assert.Equal(t, domain.InvitationAccepted, stored.Status)

	_, err = f.svc.AcceptInvitation(ctx, bob, inv.ID)
	require.ErrorIs(t, err, services.ErrInvitationUsed)
}

func TestOrganizationService_AcceptExpiredInvitation(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Acme")
	bob := f.addUser(t, "u-bob", "bob@example.com")
	f.store.AddInvitation(domain.Invitation{
		ID:             "inv-old",
		OrganizationID: org.ID,
		Email:          "bob@example.com",
		Role:           identity.OrgRoleMember,
		Status:         domain.InvitationPending,
		ExpiresAt:      now.Add(-time.Minute),
	})

	_, err := f.svc.AcceptInvitation(context.Background(), bob, "inv-old")
	require.ErrorIs(t, err, services.ErrInvitationUsed)
	_, err = f.store.MemberRepository().Find(context.Background(), org.ID, bob.User.ID)
	require.ErrorIs(t, err, identity.ErrMemberNotFound)
}

func TestOrganizationService_CancelInvitation(t *testing.T) {
	f := newFixture(t)
	f.createOrg(t, "Acme")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, f.owner, "bob@example.com", identity.OrgRoleMember)
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelInvitation(ctx, inv.ID))

	stored, _ := f.store.Invitation(inv.ID)
	assert.Equal(t, domain.InvitationCanceled, stored.Status)
	require.ErrorIs(t, f.svc.CancelInvitation(ctx, inv.ID), services.ErrInvitationUsed)
}

func TestOrganizationService_MemberManagement(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Acme")
	ctx := context.Background()
	f.addUser(t, "u-bob", "bob@example.com")
	f.store.AddMember(identity.Membership{ID: "m-bob", OrganizationID: org.ID, UserID: "u-bob", Role: identity.OrgRoleMember, CreatedAt: now.Add(time.Minute)})

	members, _, err := f.svc.Members(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "m-bob", members[0].ID)
	assert.Equal(t, "bob@example.com", members[0].Email)

	require.ErrorIs(t, f.svc.SetMemberRole(ctx, "m-bob", "root"), services.ErrInvalidRole)
	require.NoError(t, f.svc.SetMemberRole(ctx, "m-bob", identity.OrgRoleAdmin))

	ownerMember := f.owner.Member.ID
	require.ErrorIs(t, f.svc.SetMemberRole(ctx, ownerMember, identity.OrgRoleMember), services.ErrLastOwner)
	require.ErrorIs(t, f.svc.RemoveMember(ctx, ownerMember), services.ErrLastOwner)

	require.NoError(t, f.svc.SetMemberRole(ctx, "m-bob", identity.OrgRoleOwner))
	require.NoError(t, f.svc.RemoveMember(ctx, ownerMember))

	members, _, err = f.svc.Members(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, identity.OrgRoleOwner, members[0].Role)
}

func TestOrganizationService_RenameAndDelete(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Acme")
	ctx := context.Background()

	renamed, err := f.svc.Rename(ctx, org.ID, " Acme Inc ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", renamed.Name)
	assert.Equal(t, org.Slug, renamed.Slug)

	require.NoError(t, f.svc.Delete(ctx, org.ID))
	sess, _ := f.store.Session("s-owner")
	assert.Empty(t, sess.ActiveOrganizationID)
	_, err = f.svc.GetByID(ctx, org.ID)
	require.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestOrganizationService_Select(t *testing.T) {
	f := newFixture(t)
	f.createOrg(t, "Acme")
	other := identity.Organization{ID: "org-other", Name: "Other", Slug: "other"}
	f.store.AddOrganization(other)

	err := f.svc.Select(context.Background(), f.owner, other.ID)
	require.ErrorIs(t, err, identity.ErrNotAMember)

	orgs, err := f.svc.ListForUser(context.Background(), f.owner.User.ID)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
}
