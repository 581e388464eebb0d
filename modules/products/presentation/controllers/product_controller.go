package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/products/domain"
	"github.com/iota-uz/saaskit/modules/products/services"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type ProductParams struct {
	ProductID string `form:"productId" validate:"required"`
}

type ProductDTO struct {
	Name        string `form:"name" validate:"required,max=100"`
	Description string `form:"description" validate:"max=1000"`
}

func (d *ProductDTO) ToService() services.ProductDTO {
	return services.ProductDTO{Name: d.Name, Description: d.Description}
}

var (
	productParamsSchema = validation.Shape[ProductParams]()
	productSchema       = validation.Shape[ProductDTO]().Messages(map[string]string{
		"name.required":   "Name is required",
		"name.max":        "Name is too long",
		"description.max": "Description is too long",
	})
)

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type ProductResponse struct {
	Product *domain.Product `json:"product"`
}

// ProductDetailResponse tells the page which actions to offer on the product.
type ProductDetailResponse struct {
	Product   *domain.Product `json:"product"`
	CanUpdate bool            `json:"canUpdate"`
	CanDelete bool            `json:"canDelete"`
}

func NewProductController(app application.Application) application.Controller {
	return &ProductController{
		guard:          app.Service(secureroute.Guard{}).(*secureroute.Guard),
		abilities:      app.Service(ability.Builder{}).(*ability.Builder),
		productService: app.Service(services.ProductService{}).(*services.ProductService),
		basePath:       "/app/products",
	}
}

type ProductController struct {
	guard          *secureroute.Guard
	abilities      *ability.Builder
	productService *services.ProductService
	basePath       string
}

func (c *ProductController) Key() string {
	return c.basePath
}

func (c *ProductController) Register(r *mux.Router) {
	r.Handle(c.basePath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Read, ability.ProductType),
		Handle:     c.List,
	})).Methods(http.MethodGet)

	r.Handle(c.basePath+"/create", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Create, ability.ProductType),
		Handle:     c.New,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/create", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, ProductDTO]{
		Permission: secureroute.Require(ability.Create, ability.ProductType),
		Form:       productSchema,
		Handle:     c.Create,
	})).Methods(http.MethodPost)

	r.Handle(c.basePath+"/{productId}", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[ProductParams, secureroute.None]{
		Permission: secureroute.Require(ability.Read, ability.ProductType),
		Params:     productParamsSchema,
		Handle:     c.Detail,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/{productId}/edit", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[ProductParams, secureroute.None]{
		Permission: secureroute.Require(ability.Update, ability.ProductType),
		Params:     productParamsSchema,
		Handle:     c.Edit,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/{productId}/edit", secureroute.NewAction(c.guard, secureroute.ActionConfig[ProductParams, secureroute.None, ProductDTO]{
		Permission: secureroute.Require(ability.Update, ability.ProductType),
		Params:     productParamsSchema,
		Form:       productSchema,
		Handle:     c.Update,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{productId}/delete", secureroute.NewAction(c.guard, secureroute.ActionConfig[ProductParams, secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Delete, ability.ProductType),
		Params:     productParamsSchema,
		Handle:     c.Delete,
	})).Methods(http.MethodPost)
}

// load fetches the product and runs the instance check for action on it.
func (c *ProductController) load(ctx context.Context, ident *identity.Identity, id string, action ability.Action) (*domain.Product, error) {
	p, err := c.productService.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.guard.EnsureCan(ctx, ident, action, p.Subject()); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *ProductController) List(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	products, err := c.productService.List(ctx)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(ProductsResponse{Products: products})
}

func (c *ProductController) New(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	return secureroute.JSON(ProductResponse{})
}

func (c *ProductController) Create(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, ProductDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if _, err := c.productService.Create(ctx, args.Identity.User.ID, dto.ToService()); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to create product")
	}
	return secureroute.Redirect(c.basePath)
}

func (c *ProductController) Detail(ctx context.Context, args secureroute.Args[ProductParams, secureroute.None, secureroute.None]) secureroute.Response {
	p, err := c.load(ctx, args.Identity, args.Params.Data.ProductID, ability.Read)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(ProductDetailResponse{
		Product:   p,
		CanUpdate: c.abilities.Can(args.Identity, ability.Update, p.Subject()),
		CanDelete: c.abilities.Can(args.Identity, ability.Delete, p.Subject()),
	})
}

func (c *ProductController) Edit(ctx context.Context, args secureroute.Args[ProductParams, secureroute.None, secureroute.None]) secureroute.Response {
	p, err := c.load(ctx, args.Identity, args.Params.Data.ProductID, ability.Update)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(ProductResponse{Product: p})
}

func (c *ProductController) Update(ctx context.Context, args secureroute.Args[ProductParams, secureroute.None, ProductDTO]) secureroute.Response {
	p, err := c.load(ctx, args.Identity, args.Params.Data.ProductID, ability.Update)
	if err != nil {
		return secureroute.Error(err)
	}
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if _, err := c.productService.Update(ctx, p.ID, dto.ToService()); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to update product")
	}
	return secureroute.Redirect(c.basePath + "/" + p.ID)
}

func (c *ProductController) Delete(ctx context.Context, args secureroute.Args[ProductParams, secureroute.None, secureroute.None]) secureroute.Response {
	p, err := c.load(ctx, args.Identity, args.Params.Data.ProductID, ability.Delete)
	if err != nil {
		return secureroute.Error(err)
	}
	if err := c.productService.Delete(ctx, p.ID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to delete product")
	}
	return secureroute.Success("Product deleted successfully")
}
