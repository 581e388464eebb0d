// Package orgcheck makes sure every request entering the authenticated app shell
// has exactly one active organization, or sends the user somewhere to pick one.
package orgcheck

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/identity"
)

type State int

const (
	Unauthenticated State = iota
	NoOrganizations
	SingleOrganization
	MultipleNoActive
	Resolved
	Bypassed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case NoOrganizations:
		return "no_organizations"
	case SingleOrganization:
		return "single_organization"
	case MultipleNoActive:
		return "multiple_no_active"
	case Resolved:
		return "resolved"
	case Bypassed:
		return "bypassed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store is the slice of the session store the flow needs.
type Store interface {
	GetSession(ctx context.Context, headers http.Header) (*identity.AuthSession, error)
	ListOrganizations(ctx context.Context, headers http.Header) ([]identity.Organization, error)
	SetActiveOrganization(ctx context.Context, headers http.Header, organizationID string) error
}

// ActiveOrganization is what the app shell shows for the current organization.
type ActiveOrganization struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var selectPlaceholder = ActiveOrganization{Name: "Select Organization", Slug: "select"}

type Outcome struct {
	State        State
	Organization ActiveOrganization
	// Redirect is set for terminal states.
	Redirect string
	// Activated is true when the flow passed through SingleOrganization and
	// switched the session to the only organization.
	Activated bool
}

type Flow struct {
	store Store
}

func NewFlow(store Store) *Flow {
	return &Flow{store: store}
}

// Bypass reports whether path is reachable without an active organization.
func Bypass(path string) bool {
	return path == constants.OrganizationSelectPath ||
		path == constants.OnboardingPath ||
		strings.HasPrefix(path, constants.OnboardingPath+"/")
}

// Evaluate runs the activation state machine for r. Store errors are returned
// as is and are not retried.
func (f *Flow) Evaluate(ctx context.Context, r *http.Request) (Outcome, error) {
	auth, err := f.store.GetSession(ctx, r.Header)
	if err != nil {
		return Outcome{}, err
	}
	if auth == nil {
		return Outcome{State: Unauthenticated, Redirect: constants.LoginPath}, nil
	}
	if Bypass(r.URL.Path) {
		return Outcome{State: Bypassed, Organization: selectPlaceholder}, nil
	}

	orgs, err := f.store.ListOrganizations(ctx, r.Header)
	if err != nil {
		return Outcome{}, err
	}
	if len(orgs) == 0 {
		return Outcome{State: NoOrganizations, Redirect: constants.OnboardingPath}, nil
	}

	activeID := auth.Session.ActiveOrganizationID
	activated := false
	if len(orgs) == 1 && activeID != orgs[0].ID {
		if err := f.store.SetActiveOrganization(ctx, r.Header, orgs[0].ID); err != nil {
			return Outcome{}, err
		}
		auth, err = f.store.GetSession(ctx, r.Header)
		if err != nil {
			return Outcome{}, err
		}
		if auth == nil {
			return Outcome{State: Unauthenticated, Redirect: constants.LoginPath}, nil
		}
		activeID = auth.Session.ActiveOrganizationID
		activated = true
	}

	if activeID == "" {
		return Outcome{State: MultipleNoActive, Redirect: constants.OrganizationSelectPath}, nil
	}
	for _, org := range orgs {
		if org.ID == activeID {
			return Outcome{
				State:        Resolved,
				Organization: ActiveOrganization{ID: org.ID, Name: org.Name, Slug: org.Slug},
				Activated:    activated,
			}, nil
		}
	}
	return Outcome{State: MultipleNoActive, Redirect: constants.OrganizationSelectPath}, nil
}

func WithOutcome(ctx context.Context, o Outcome) context.Context {
	return context.WithValue(ctx, constants.OrgStateKey, o)
}

func FromContext(ctx context.Context) (Outcome, bool) {
	o, ok := ctx.Value(constants.OrgStateKey).(Outcome)
	return o, ok
}
