package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var (
	ErrSlugTaken      = serrors.NewError(serrors.CodeValidationFailed, "Organization slug is already taken", "Organization.Errors.SlugTaken")
	ErrInvalidRole    = serrors.NewError(serrors.CodeValidationFailed, "Invalid role", "Organization.Errors.InvalidRole")
	ErrAlreadyMember  = serrors.NewError(serrors.CodeValidationFailed, "User is already a member of this organization", "Organization.Errors.AlreadyMember")
	ErrInvitationUsed = serrors.NewError(serrors.CodeValidationFailed, "Invitation is no longer valid", "Organization.Errors.InvitationUsed")
	ErrLastOwner      = serrors.NewError(serrors.CodeValidationFailed, "An organization needs at least one owner", "Organization.Errors.LastOwner")
)

// MemberRoles are the roles a membership can hold.
var MemberRoles = []string{identity.OrgRoleOwner, identity.OrgRoleAdmin, identity.OrgRoleMember}

func ValidMemberRole(role string) bool {
	for _, r := range MemberRoles {
		if r == role {
			return true
		}
	}
	return false
}

var whitespace = regexp.MustCompile(`\s+`)

// Slugify lowercases name and replaces whitespace runs with a dash.
func Slugify(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// InvitationView is an invitation together with the name of its organization.
type InvitationView struct {
	domain.Invitation
	OrganizationName string `json:"organizationName"`
}

type OrganizationService struct {
	orgs        domain.OrganizationRepository
	members     domain.MemberRepository
	invitations domain.InvitationRepository
	users       domain.UserRepository
	sessions    *authservices.SessionService
	mailer      authservices.Mailer
	origin      string
	inviteTTL   time.Duration
	now         func() time.Time
	inTx        func(ctx context.Context, fn func(context.Context) error) error
}

type OrganizationServiceOptions struct {
	Origin        string
	InvitationTTL time.Duration
	Now           func() time.Time
	InTx          func(ctx context.Context, fn func(context.Context) error) error
}

func NewOrganizationService(
	orgs domain.OrganizationRepository,
	members domain.MemberRepository,
	invitations domain.InvitationRepository,
	users domain.UserRepository,
	sessions *authservices.SessionService,
	mailer authservices.Mailer,
	opts OrganizationServiceOptions,
) *OrganizationService {
	if opts.InvitationTTL == 0 {
		opts.InvitationTTL = 48 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InTx == nil {
		opts.InTx = composables.InTx
	}
	return &OrganizationService{
		orgs:        orgs,
		members:     members,
		invitations: invitations,
		users:       users,
		sessions:    sessions,
		mailer:      mailer,
		origin:      opts.Origin,
		inviteTTL:   opts.InvitationTTL,
		now:         opts.Now,
		inTx:        opts.InTx,
	}
}

func (s *OrganizationService) ListForUser(ctx context.Context, userID string) ([]identity.Organization, error) {
	return s.orgs.ListForUser(ctx, userID)
}

func (s *OrganizationService) GetByID(ctx context.Context, id string) (*identity.Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

func (s *OrganizationService) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	taken, err := s.orgs.SlugTaken(ctx, slug)
	return !taken, err
}

// Select activates organizationID on the caller's session.
func (s *OrganizationService) Select(ctx context.Context, ident *identity.Identity, organizationID string) error {
	return s.sessions.Activate(ctx, ident.Session.ID, ident.User.ID, organizationID)
}

// Create makes a new organization owned by the caller and activates it.
func (s *OrganizationService) Create(ctx context.Context, ident *identity.Identity, name string) (*identity.Organization, error) {
	name = strings.TrimSpace(name)
	org := &identity.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      Slugify(name),
		CreatedAt: s.now(),
	}
	err := s.inTx(ctx, func(txCtx context.Context) error {
		taken, err := s.orgs.SlugTaken(txCtx, org.Slug)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlugTaken
		}
		if err := s.orgs.Create(txCtx, org); err != nil {
			return err
		}
		if err := s.members.Create(txCtx, &identity.Membership{
			ID:             uuid.NewString(),
			OrganizationID: org.ID,
			UserID:         ident.User.ID,
			Role:           identity.OrgRoleOwner,
			CreatedAt:      org.CreatedAt,
		}); err != nil {
			return err
		}
		return s.sessions.Activate(txCtx, ident.Session.ID, ident.User.ID, org.ID)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *OrganizationService) Rename(ctx context.Context, organizationID, name string) (*identity.Organization, error) {
	org, err := s.orgs.GetByID(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	org.Name = strings.TrimSpace(name)
	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *OrganizationService) Delete(ctx context.Context, organizationID string) error {
	return s.orgs.Delete(ctx, organizationID)
}

func (s *OrganizationService) Members(ctx context.Context, organizationID string) ([]domain.MemberView, []domain.Invitation, error) {
	members, err := s.members.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, nil, err
	}
	invitations, err := s.invitations.ListPending(ctx, organizationID)
	if err != nil {
		return nil, nil, err
	}
	return members, invitations, nil
}

func (s *OrganizationService) GetMember(ctx context.Context, memberID string) (*identity.Membership, error) {
	return s.members.GetByID(ctx, memberID)
}

// Invite records a pending invitation to the caller's active organization and
// mails a join link.
func (s *OrganizationService) Invite(ctx context.Context, ident *identity.Identity, email, role string) (*domain.Invitation, error) {
	if !ValidMemberRole(role) {
		return nil, ErrInvalidRole
	}
	email = strings.ToLower(strings.TrimSpace(email))
	orgID := ident.Organization.ID

	if u, err := s.users.GetByEmail(ctx, email); err == nil {
		if _, err := s.members.Find(ctx, orgID, u.ID); err == nil {
			return nil, ErrAlreadyMember
		} else if !errors.Is(err, identity.ErrMemberNotFound) {
			return nil, err
		}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv := &domain.Invitation{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Status:         domain.InvitationPending,
		InviterID:      ident.User.ID,
		ExpiresAt:      now.Add(s.inviteTTL),
		CreatedAt:      now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}
	link := s.origin + "/app/organization/onboarding/join/" + inv.ID
	if err := s.mailer.SendInvitation(ctx, email, org.Name, link); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *OrganizationService) GetInvitation(ctx context.Context, id string) (*InvitationView, error) {
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, inv.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &InvitationView{Invitation: *inv, OrganizationName: org.Name}, nil
}

// InvitationFor returns the invitation only when it is addressed to the caller.
func (s *OrganizationService) InvitationFor(ctx context.Context, ident *identity.Identity, id string) (*InvitationView, error) {
	view, err := s.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(view.Email, ident.User.Email) {
		return nil, domain.ErrInvitationNotFound
	}
	return view, nil
}

func (s *OrganizationService) CancelInvitation(ctx context.Context, id string) error {
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != domain.InvitationPending {
		return ErrInvitationUsed
	}
	return s.invitations.SetStatus(ctx, id, domain.InvitationCanceled)
}

// AcceptInvitation adds the caller to the inviting organization and activates
// it, all in one transaction. The invitation must be addressed to the caller.
func (s *OrganizationService) AcceptInvitation(ctx context.Context, ident *identity.Identity, invitationID string) (*domain.Invitation, error) {
	var inv *domain.Invitation
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.invitations.GetByID(txCtx, invitationID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(inv.Email, ident.User.Email) {
			return domain.ErrInvitationNotFound
		}
		if !inv.Open(s.now()) {
			return ErrInvitationUsed
		}

		_, err = s.members.Find(txCtx, inv.OrganizationID, ident.User.ID)
		switch {
		case errors.Is(err, identity.ErrMemberNotFound):
			if err := s.members.Create(txCtx, &identity.Membership{
				ID:             uuid.NewString(),
				OrganizationID: inv.OrganizationID,
				UserID:         ident.User.ID,
				Role:           inv.Role,
				CreatedAt:      s.now(),
			}); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if err := s.invitations.SetStatus(txCtx, inv.ID, domain.InvitationAccepted); err != nil {
			return err
		}
		return s.sessions.Activate(txCtx, ident.Session.ID, ident.User.ID, inv.OrganizationID)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// RemoveMember deletes the membership. The last owner cannot be removed.
func (s *OrganizationService) RemoveMember(ctx context.Context, memberID string) error {
	return s.inTx(ctx, func(txCtx context.Context) error {
		m, err := s.members.GetByID(txCtx, memberID)
		if err != nil {
			return err
		}
		if err := s.ensureOtherOwner(txCtx, m); err != nil {
			return err
		}
		return s.members.Delete(txCtx, memberID)
	})
}

func (s *OrganizationService) SetMemberRole(ctx context.Context, memberID, role string) error {
	if !ValidMemberRole(role) {
		return ErrInvalidRole
	}
	return s.inTx(ctx, func(txCtx context.Context) error {
		m, err := s.members.GetByID(txCtx, memberID)
		if err != nil {
			return err
		}
		if role != identity.OrgRoleOwner {
			if err := s.ensureOtherOwner(txCtx, m); err != nil {
				return err
			}
		}
		return s.members.UpdateRole(txCtx, memberID, role)
	})
}

func (s *OrganizationService) ensureOtherOwner(ctx context.Context, m *identity.Membership) error {
	if m.Role != identity.OrgRoleOwner {
		return nil
	}
	all, err := s.members.ListByOrganization(ctx, m.OrganizationID)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID != m.ID && other.Role == identity.OrgRoleOwner {
			return nil
		}
	}
	return ErrLastOwner
}
