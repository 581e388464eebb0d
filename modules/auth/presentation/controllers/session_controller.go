package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/identity"
)

type SessionResponse struct {
	Session *identity.AuthSession `json:"session"`
}

func NewSessionController(app application.Application) application.Controller {
	return &SessionController{
		app:            app,
		sessionService: app.Service(services.SessionService{}).(*services.SessionService),
	}
}

// SessionController exposes the current session to API clients. It answers
// {"session": null} rather than an error when nobody is signed in.
type SessionController struct {
	app            application.Application
	sessionService *services.SessionService
}

func (c *SessionController) Key() string {
	return "/api/auth/session"
}

func (c *SessionController) Register(r *mux.Router) {
	r.HandleFunc("/api/auth/session", c.Get).Methods(http.MethodGet)
}

func (c *SessionController) Get(w http.ResponseWriter, r *http.Request) {
	auth, err := c.sessionService.GetSession(r.Context(), r.Header)
	if err != nil {
		composables.UseLoggerOr(r.Context(), c.app.Logger()).WithError(err).Error("failed to load session")
		_ = httpapi.FailWith(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, SessionResponse{Session: auth})
}
