package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type ForgotPasswordDTO struct {
	Email string `form:"email" validate:"required,email"`
}

type ResetTokenQuery struct {
	Token string `form:"token" validate:"required"`
}

type ResetPasswordDTO struct {
	Password        string `form:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,min=8,max=128"`
}

var (
	forgotSchema = validation.Shape[ForgotPasswordDTO]().Messages(map[string]string{
		"email.required": "Please enter a valid email address",
		"email.email":    "Please enter a valid email address",
	})
	tokenSchema = validation.Shape[ResetTokenQuery]().Messages(map[string]string{
		"token.required": "Invalid or expired reset token",
	})
	resetSchema = validation.Shape[ResetPasswordDTO]().Messages(map[string]string{
		"password.required":        "Password must be at least 8 characters",
		"password.min":             "Password must be at least 8 characters",
		"password.max":             "Password is too long",
		"confirmPassword.required": "Password must be at least 8 characters",
		"confirmPassword.min":      "Password must be at least 8 characters",
		"confirmPassword.max":      "Password is too long",
	}).Refine(func(dto *ResetPasswordDTO, errs validation.FieldErrors) {
		if dto.Password != dto.ConfirmPassword {
			errs.Add("confirmPassword", "Passwords don't match")
		}
	})
)

func NewPasswordController(app application.Application) application.Controller {
	return &PasswordController{
		guard:       app.Service(secureroute.Guard{}).(*secureroute.Guard),
		authService: app.Service(services.AuthService{}).(*services.AuthService),
	}
}

// PasswordController serves the forgot-password flow: requesting a reset link
// and setting a new password with it.
type PasswordController struct {
	guard       *secureroute.Guard
	authService *services.AuthService
}

func (c *PasswordController) Key() string {
	return "/forgot-password"
}

func (c *PasswordController) Register(r *mux.Router) {
	r.Handle("/forgot-password", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, ForgotPasswordDTO]{
		Permission: secureroute.Public,
		Form:       forgotSchema,
		Handle:     c.RequestReset,
	})).Methods(http.MethodPost)
	r.Handle("/forgot-password/validate", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, ResetTokenQuery, ResetPasswordDTO]{
		Permission: secureroute.Public,
		Query:      tokenSchema,
		Form:       resetSchema,
		Handle:     c.Reset,
	})).Methods(http.MethodPost)
}

func (c *PasswordController) RequestReset(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, ForgotPasswordDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if err := c.authService.RequestPasswordReset(ctx, dto.Email); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to request password reset. Please try again.")
	}
	return secureroute.Success("If an account exists for this email, a reset link has been sent")
}

func (c *PasswordController) Reset(ctx context.Context, args secureroute.Args[secureroute.None, ResetTokenQuery, ResetPasswordDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if err := c.authService.ResetPassword(ctx, args.Query.Data.Token, dto.Password); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to reset password. Please try again.")
	}
	return secureroute.Success("Password reset successfully")
}
