package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

// authFailure answers a failed credential flow with a {success:false} body.
// Typed errors keep their status so clients can tell a ban from a bad password.
func authFailure(ctx context.Context, err error, fallback string) secureroute.Response {
	var be *serrors.BaseError
	if errors.As(err, &be) && be.Code != serrors.CodeValidationFailed {
		return secureroute.Failure(be.Message).WithStatus(serrors.StatusOf(err))
	}
	return secureroute.FailureOf(ctx, err, fallback)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return constants.AppPath
	}
	return next
}

func withCookies(resp secureroute.Response, cookies ...*http.Cookie) secureroute.Response {
	for _, c := range cookies {
		if c != nil {
			resp = resp.WithCookie(c)
		}
	}
	return resp
}
