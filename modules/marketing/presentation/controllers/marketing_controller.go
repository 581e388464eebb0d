package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/secureroute"
)

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type PageResponse struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Features    []Feature `json:"features,omitempty"`
	Links       []Link    `json:"links"`
}

var features = []Feature{
	{Title: "Secure Authentication", Description: "Industry-standard security with email verification and password protection"},
	{Title: "User Management", Description: "Easy user management with profile customization and settings"},
	{Title: "Organizations", Description: "Invite your team and control who can do what in each organization"},
}

func NewMarketingController(app application.Application) application.Controller {
	return &MarketingController{guard: app.Service(secureroute.Guard{}).(*secureroute.Guard)}
}

// MarketingController serves the public pages.
type MarketingController struct {
	guard *secureroute.Guard
}

func (c *MarketingController) Key() string {
	return "/"
}

func (c *MarketingController) Register(r *mux.Router) {
	r.Handle("/", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.Public,
		Handle:     c.Landing,
	})).Methods(http.MethodGet)
	r.Handle("/goodbye", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.Public,
		Handle:     c.Goodbye,
	})).Methods(http.MethodGet)
}

func (c *MarketingController) Landing(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	return secureroute.JSON(PageResponse{
		Title:       "Welcome to Our App",
		Description: "A modern application with secure authentication and user management",
		Features:    features,
		Links: []Link{
			{Label: "Get started", Href: "/signup"},
			{Label: "Sign in", Href: constants.LoginPath},
		},
	})
}

func (c *MarketingController) Goodbye(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	return secureroute.JSON(PageResponse{
		Title:       "Goodbye!",
		Description: "Your account has been successfully deleted",
		Links:       []Link{{Label: "Create New Account", Href: "/signup"}},
	})
}
