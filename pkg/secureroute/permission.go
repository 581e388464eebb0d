package secureroute

import (
	"fmt"

	"github.com/iota-uz/saaskit/pkg/ability"
)

type permissionKind int

const (
	kindPublic permissionKind = iota
	kindSignedIn
	kindLoggedIn
	kindRequire
)

// Permission is the access declaration attached to a route.
type Permission struct {
	kind       permissionKind
	Action     ability.Action
	Subject    ability.Subject
	withoutOrg bool
}

var (
	// Public routes never touch the session store.
	Public = Permission{kind: kindPublic}
	// LoggedIn requires a fully resolved identity, active organization included.
	LoggedIn = Permission{kind: kindLoggedIn}
	// SignedIn requires a session but no active organization. Used by the
	// organization select and onboarding pages.
	SignedIn = Permission{kind: kindSignedIn}
)

func Require(action ability.Action, subject ability.Subject) Permission {
	return Permission{kind: kindRequire, Action: action, Subject: subject}
}

// WithoutOrganization relaxes identity resolution to SignedIn while still
// checking the ability.
func (p Permission) WithoutOrganization() Permission {
	p.withoutOrg = true
	return p
}

func (p Permission) IsPublic() bool {
	return p.kind == kindPublic
}

func (p Permission) sessionOnly() bool {
	return p.kind == kindSignedIn || p.withoutOrg
}

func (p Permission) String() string {
	switch p.kind {
	case kindPublic:
		return "public"
	case kindSignedIn:
		return "signedIn"
	case kindLoggedIn:
		return "loggedIn"
	default:
		return fmt.Sprintf("%s %s", p.Action, ability.Describe(p.Subject))
	}
}
