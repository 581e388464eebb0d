// Package secureroute wraps route handlers in the request guard: input
// validation, identity resolution and the ability check all run before the
// business function, which is never invoked when any of them fails.
package secureroute

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/logging"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var tracer = otel.Tracer("saaskit-secureroute")

type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error)
	ResolveSession(ctx context.Context, r *http.Request) (*identity.Identity, error)
}

type Authorizer interface {
	EnsureCan(ident *identity.Identity, action ability.Action, subject ability.Subject) error
}

type Guard struct {
	resolver   IdentityResolver
	authorizer Authorizer
	logger     logrus.FieldLogger
}

type GuardOption func(*Guard)

// WithFallbackLogger sets the logger used when the request context carries none.
func WithFallbackLogger(l logrus.FieldLogger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

func NewGuard(resolver IdentityResolver, authorizer Authorizer, opts ...GuardOption) *Guard {
	g := &Guard{resolver: resolver, authorizer: authorizer, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureCan is the instance level check business functions run after loading
// the subject. A refusal is logged like a guard refusal.
func (g *Guard) EnsureCan(ctx context.Context, ident *identity.Identity, action ability.Action, subject ability.Subject) error {
	err := g.authorizer.EnsureCan(ident, action, subject)
	if err != nil {
		g.logForbidden(ctx, ident, err)
	}
	return err
}

type kind int

const (
	kindLoader kind = iota
	kindAction
)

func (k kind) String() string {
	if k == kindAction {
		return "action"
	}
	return "loader"
}

// authorize resolves the identity p asks for and checks it. Public routes
// return a nil identity without consulting the session store.
func (g *Guard) authorize(ctx context.Context, r *http.Request, p Permission) (*identity.Identity, error) {
	if p.IsPublic() {
		return nil, nil
	}
	var (
		ident *identity.Identity
		err   error
	)
	if p.sessionOnly() {
		ident, err = g.resolver.ResolveSession(ctx, r)
	} else {
		ident, err = g.resolver.Resolve(ctx, r)
	}
	if err != nil {
		return nil, err
	}
	if p.kind != kindRequire {
		return ident, nil
	}
	if err := g.authorizer.EnsureCan(ident, p.Action, p.Subject); err != nil {
		g.logForbidden(ctx, ident, err)
		return nil, err
	}
	return ident, nil
}

func (g *Guard) loggerFor(ctx context.Context) logrus.FieldLogger {
	return composables.UseLoggerOr(ctx, g.logger)
}

func (g *Guard) logForbidden(ctx context.Context, ident *identity.Identity, err error) {
	var fe *ability.ForbiddenError
	if !errors.As(err, &fe) {
		return
	}
	var actor logging.Actor
	if ident != nil {
		actor = ident
	}
	logging.Log(g.loggerFor(ctx), logging.LevelWarning, actor, "permission denied", fe.Fields())
}

// serve runs the shared part of loaders and actions once inputs are parsed.
func (g *Guard) serve(
	w http.ResponseWriter,
	r *http.Request,
	k kind,
	p Permission,
	inputErr error,
	invoke func(ctx context.Context, ident *identity.Identity) Response,
) {
	route := routeName(r)
	ctx, span := tracer.Start(r.Context(), "secureroute."+k.String())
	defer span.End()
	span.SetAttributes(
		attribute.String("secureroute.route", route),
		attribute.String("secureroute.permission", p.String()),
	)

	ident, err := g.authorize(ctx, r, p)
	if err == nil && inputErr != nil {
		err = inputErr
	}
	if err != nil {
		span.SetStatus(codes.Error, serrors.CodeOf(err))
		recordOutcome(route, k, serrors.CodeOf(err))
		g.writeError(ctx, w, r, k, err)
		return
	}

	if ident != nil {
		ctx = identity.WithIdentity(ctx, ident)
	}
	resp := invoke(ctx, ident)
	recordOutcome(route, k, outcomeOf(resp))
	g.render(ctx, w, r.WithContext(ctx), k, resp)
}

func outcomeOf(resp Response) string {
	switch {
	case resp.Err != nil:
		return serrors.CodeOf(resp.Err)
	case resp.Location != "":
		return "redirect"
	default:
		return "ok"
	}
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func (g *Guard) render(ctx context.Context, w http.ResponseWriter, r *http.Request, k kind, resp Response) {
	for _, c := range resp.Cookies {
		http.SetCookie(w, c)
	}
	switch {
	case resp.Err != nil:
		g.writeError(ctx, w, r, k, resp.Err)
	case resp.Location != "":
		status := resp.Status
		if status == 0 {
			status = http.StatusFound
		}
		http.Redirect(w, r, resp.Location, status)
	default:
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		if err := httpapi.WriteJSON(w, status, resp.Payload); err != nil {
			g.loggerFor(ctx).WithError(err).Error("failed to write response")
		}
	}
}

// writeError maps guard and business errors onto HTTP. Forbidden responses never
// say which rule refused the request.
func (g *Guard) writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, k kind, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		if k == kindLoader && r.Method == http.MethodGet {
			http.Redirect(w, r, constants.LoginPath, http.StatusFound)
			return
		}
	case errors.Is(err, identity.ErrNoActiveOrganization):
		http.Redirect(w, r, constants.OrganizationSelectPath, http.StatusFound)
		return
	case errors.Is(err, ability.ErrForbidden):
		_ = httpapi.Fail(w, http.StatusForbidden, serrors.CodeForbidden, ability.ErrForbidden.Message)
		return
	}

	var be *serrors.BaseError
	if !errors.As(err, &be) {
		g.loggerFor(ctx).WithError(err).Error("guarded request failed")
	}
	_ = httpapi.FailWith(w, err)
}
