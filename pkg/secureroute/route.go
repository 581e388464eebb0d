package secureroute

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/validation"
)

// None stands in for an input a route does not declare.
type None struct{}

// Args is the validated argument bundle handed to a business function.
// Identity is nil on public routes.
type Args[P, Q, F any] struct {
	Request  *http.Request
	Writer   http.ResponseWriter
	Identity *identity.Identity
	Params   validation.Result[P]
	Query    validation.Result[Q]
	Form     validation.Result[F]
}

type LoaderConfig[P, Q any] struct {
	Permission Permission
	Params     *validation.Schema[P]
	Query      *validation.Schema[Q]
	Handle     func(ctx context.Context, args Args[P, Q, None]) Response
}

type ActionConfig[P, Q, F any] struct {
	Permission Permission
	Params     *validation.Schema[P]
	Query      *validation.Schema[Q]
	Form       *validation.Schema[F]
	FormMode   validation.FormMode
	Handle     func(ctx context.Context, args Args[P, Q, F]) Response
}

// NewLoader builds the read side wrapper. Unauthenticated GETs are redirected
// to the login page.
func NewLoader[P, Q any](g *Guard, cfg LoaderConfig[P, Q]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := validation.Params(mux.Vars(r), cfg.Params)
		query := validation.Query(r.URL.Query(), cfg.Query)

		g.serve(w, r, kindLoader, cfg.Permission, inputError(params.Error, query.Error),
			func(ctx context.Context, ident *identity.Identity) Response {
				return cfg.Handle(ctx, Args[P, Q, None]{
					Request:  r.WithContext(ctx),
					Writer:   w,
					Identity: ident,
					Params:   params,
					Query:    query,
				})
			})
	})
}

// NewAction builds the mutation wrapper. Form validation failures reach the
// business function through Args.Form so it can answer with per-field messages.
func NewAction[P, Q, F any](g *Guard, cfg ActionConfig[P, Q, F]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := validation.Params(mux.Vars(r), cfg.Params)
		query := validation.Query(r.URL.Query(), cfg.Query)
		form := validation.Form(r, cfg.Form, cfg.FormMode)

		g.serve(w, r, kindAction, cfg.Permission, inputError(params.Error, query.Error),
			func(ctx context.Context, ident *identity.Identity) Response {
				return cfg.Handle(ctx, Args[P, Q, F]{
					Request:  r.WithContext(ctx),
					Writer:   w,
					Identity: ident,
					Params:   params,
					Query:    query,
					Form:     form,
				})
			})
	})
}

func inputError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// FormData returns the validated form, or the response to send when the form is
// invalid or was not submitted with a form content type.
func FormData[F any](res validation.Result[F]) (*F, *Response) {
	if res.Error != nil {
		resp := FieldFailure(res.Error.Error(), res.FieldErrors)
		return nil, &resp
	}
	if res.Data == nil {
		resp := FieldFailure("form data is required", nil)
		return nil, &resp
	}
	return res.Data, nil
}
