package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/diewo77/go-crm/validation"
	"github.com/labstack/echo/v4"
)

type FeatureHandler struct {
	svc *services.FeatureService
}

func NewFeatureHandler(svc *services.FeatureService) *FeatureHandler {
	return &FeatureHandler{svc: svc}
}

func (h *FeatureHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceFeature
	g.GET("/features", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/features", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/features/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.DELETE("/features/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
}

func (h *FeatureHandler) List(c echo.Context) error {
	features, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, features)
}

func (h *FeatureHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	f, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *FeatureHandler) Create(c echo.Context) error {
	in, err := validation.Bind[services.FeatureInput](c)
	if err != nil {
		return err
	}
	f, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *FeatureHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type ProductHandler struct {
	svc *services.ProductService
}

func NewProductHandler(svc *services.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

func (h *ProductHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceProduct
	g.GET("/products", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/products", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/products/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/products/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/products/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
}

func (h *ProductHandler) List(c echo.Context) error {
	products, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Create(c echo.Context) error {
	in, err := validation.Bind[services.ProductInput](c)
	if err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Update(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	in, err := validation.Bind[services.ProductInput](c)
	if err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
