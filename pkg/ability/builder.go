package ability

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/pkg/authz"
	"github.com/iota-uz/saaskit/pkg/identity"
)

// GrantSource lists the (object, action) pairs a policy subject holds.
// *authz.Service satisfies it.
type GrantSource interface {
	Permissions(subject string) ([]authz.Permission, error)
}

type Builder struct {
	grants GrantSource
	logger logrus.FieldLogger
}

type BuilderOption func(*Builder)

func WithLogger(l logrus.FieldLogger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

func NewBuilder(grants GrantSource, opts ...BuilderOption) *Builder {
	b := &Builder{grants: grants, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compiles the rule set for ident. A nil identity yields the empty rule
// set, which denies everything.
func (b *Builder) Build(ident *identity.Identity) RuleSet {
	if ident == nil {
		return RuleSet{}
	}
	userID := ident.User.ID
	orgID := ident.Organization.ID

	rb := &ruleBuilder{}
	rb.can(Read, UserType, Where(FieldID, userID))

	// any product is readable; manage is narrowed to the owner
	rb.cannot(Manage, ProductType)
	rb.can(Read, ProductType)
	rb.can(Manage, ProductType, Where(FieldUserID, userID))

	rb.cannot(Read, OrganizationType)
	if orgID != "" {
		rb.can(Read, OrganizationType, Where(FieldID, orgID))
		rb.can(Read, MemberType, Where(FieldOrganizationID, orgID))
	}

	rb.can(Create, OrganizationType)
	rb.can(Accept, InvitationType)

	if orgID != "" {
		for _, role := range identity.SplitRoles(ident.Organization.Role) {
			b.addOrgGrants(rb, role, orgID)
		}
	}
	for _, role := range identity.SplitRoles(ident.User.Role) {
		b.addUserGrants(rb, role)
	}
	return rb.build()
}

// Organization role grants only ever reach the active organization.
func (b *Builder) addOrgGrants(rb *ruleBuilder, role, orgID string) {
	for _, p := range b.lookup(authz.SubjectForOrgRole(role)) {
		t, ok := subjectTypeOf(p.Object)
		if !ok {
			continue
		}
		field, scoped := orgScopeField(t)
		if !scoped {
			b.logger.WithFields(logrus.Fields{"role": role, "object": p.Object}).
				Warn("ability: organization role grant on a global subject ignored")
			continue
		}
		rb.can(Action(p.Action), t, Where(field, orgID))
	}
}

func (b *Builder) addUserGrants(rb *ruleBuilder, role string) {
	for _, p := range b.lookup(authz.SubjectForUserRole(role)) {
		if t, ok := subjectTypeOf(p.Object); ok {
			rb.can(Action(p.Action), t)
		}
	}
}

func (b *Builder) lookup(subject string) []authz.Permission {
	if b.grants == nil {
		return nil
	}
	perms, err := b.grants.Permissions(subject)
	if err != nil {
		b.logger.WithError(err).WithField("subject", subject).Error("ability: role grant lookup failed")
		return nil
	}
	return perms
}

func subjectTypeOf(object string) (SubjectType, bool) {
	for _, t := range SubjectTypes {
		if string(t) == object {
			return t, true
		}
	}
	return "", false
}

func orgScopeField(t SubjectType) (Field, bool) {
	switch t {
	case OrganizationType:
		return FieldID, true
	case MemberType, InvitationType:
		return FieldOrganizationID, true
	case ProductType, UserType:
		return "", false
	}
	return "", false
}
