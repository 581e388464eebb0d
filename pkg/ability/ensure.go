package ability

import (
	"fmt"

	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var ErrForbidden = serrors.NewError(
	serrors.CodeForbidden,
	"User does not have permission to perform this action",
	"Errors.Forbidden",
)

// ForbiddenError records who was refused what. Error() stays generic; the actor
// context is meant for audit logs only.
type ForbiddenError struct {
	UserID           string
	UserRole         string
	OrganizationID   string
	OrganizationRole string
	Action           Action
	Subject          Subject
}

func (e *ForbiddenError) Error() string {
	return ErrForbidden.Message
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

func (e *ForbiddenError) Fields() map[string]any {
	return map[string]any{
		"userId":           e.UserID,
		"userRole":         e.UserRole,
		"organizationId":   e.OrganizationID,
		"organizationRole": e.OrganizationRole,
		"action":           string(e.Action),
		"subject":          Describe(e.Subject),
	}
}

// Describe renders a subject for logs, e.g. Product(id=p1).
func Describe(s Subject) string {
	switch v := s.(type) {
	case nil:
		return "<nil>"
	case SubjectType:
		return string(v)
	case Product:
		return fmt.Sprintf("%s(id=%s)", v.SubjectType(), v.ID)
	case User:
		return fmt.Sprintf("%s(id=%s)", v.SubjectType(), v.ID)
	case Organization:
		return fmt.Sprintf("%s(id=%s)", v.SubjectType(), v.ID)
	case Member:
		return fmt.Sprintf("%s(organizationId=%s)", v.SubjectType(), v.OrganizationID)
	case Invitation:
		return fmt.Sprintf("%s(id=%s)", v.SubjectType(), v.ID)
	default:
		return string(s.SubjectType())
	}
}

func (b *Builder) Can(ident *identity.Identity, action Action, subject Subject) bool {
	return b.Build(ident).Can(action, subject)
}

// EnsureCan returns a *ForbiddenError when ident may not perform action on subject.
// A nil identity is always refused.
func (b *Builder) EnsureCan(ident *identity.Identity, action Action, subject Subject) error {
	allowed := b.Build(ident).Can(action, subject)
	recordCheck(action, subject, allowed)
	if allowed {
		return nil
	}
	fe := &ForbiddenError{Action: action, Subject: subject}
	if ident != nil {
		fe.UserID = ident.User.ID
		fe.UserRole = ident.User.Role
		fe.OrganizationID = ident.Organization.ID
		fe.OrganizationRole = ident.Organization.Role
	}
	return fe
}
