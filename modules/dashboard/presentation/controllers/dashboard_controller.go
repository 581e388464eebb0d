package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/products/domain"
	"github.com/iota-uz/saaskit/modules/products/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/secureroute"
)

type HomeResponse struct {
	Products []domain.Product `json:"products"`
}

func NewDashboardController(app application.Application) application.Controller {
	return &DashboardController{
		guard:          app.Service(secureroute.Guard{}).(*secureroute.Guard),
		productService: app.Service(services.ProductService{}).(*services.ProductService),
	}
}

type DashboardController struct {
	guard          *secureroute.Guard
	productService *services.ProductService
}

func (c *DashboardController) Key() string {
	return constants.AppPath
}

func (c *DashboardController) Register(r *mux.Router) {
	r.Handle(constants.AppPath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.LoggedIn,
		Handle:     c.Home,
	})).Methods(http.MethodGet)
}

func (c *DashboardController) Home(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	products, err := c.productService.List(ctx)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(HomeResponse{Products: products})
}
