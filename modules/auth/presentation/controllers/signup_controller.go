package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type SignupDTO struct {
	Name     string `form:"name" validate:"required,max=100"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8,max=128"`
}

var signupSchema = validation.Shape[SignupDTO]().Messages(map[string]string{
	"name.required":     "Name is required",
	"name.max":          "Name is too long",
	"email.required":    "Please enter a valid email address",
	"email.email":       "Please enter a valid email address",
	"password.required": "Password must be at least 8 characters",
	"password.min":      "Password must be at least 8 characters",
	"password.max":      "Password is too long",
})

func NewSignupController(app application.Application) application.Controller {
	return &SignupController{
		guard:       app.Service(secureroute.Guard{}).(*secureroute.Guard),
		authService: app.Service(services.AuthService{}).(*services.AuthService),
	}
}

type SignupController struct {
	guard       *secureroute.Guard
	authService *services.AuthService
}

func (c *SignupController) Key() string {
	return "/signup"
}

func (c *SignupController) Register(r *mux.Router) {
	r.Handle("/signup", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, SignupDTO]{
		Permission: secureroute.Public,
		Form:       signupSchema,
		Handle:     c.Post,
	})).Methods(http.MethodPost)
}

func (c *SignupController) Post(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, SignupDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	_, cookie, err := c.authService.SignUp(ctx, services.SignUpDTO{
		Name:     dto.Name,
		Email:    dto.Email,
		Password: dto.Password,
	})
	if err != nil {
		return authFailure(ctx, err, "Failed to sign up. Please try again.")
	}
	return withCookies(secureroute.Redirect(constants.AppPath), cookie)
}
