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

type ClientHandler struct {
	svc *services.ClientService
}

func NewClientHandler(svc *services.ClientService) *ClientHandler {
	return &ClientHandler{svc: svc}
}

func (h *ClientHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceClient
	g.GET("/clients", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/clients", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/clients/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/clients/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.PATCH("/clients/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/clients/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
}

func (h *ClientHandler) List(c echo.Context) error {
	clients, err := h.svc.List(c.Request().Context(), services.ClientFilter{
		Search:  c.QueryParam("search"),
		Country: c.QueryParam("country"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapViews(clients, clientView))
}

func (h *ClientHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	client, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clientView(client))
}

func (h *ClientHandler) Create(c echo.Context) error {
	in, err := validation.Bind[services.ClientInput](c)
	if err != nil {
		return err
	}
	client, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, clientView(client))
}

// Update serves PUT and PATCH. PATCH starts from the stored client so that
// omitted fields keep their values.
func (h *ClientHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in services.ClientInput
	if c.Request().Method == http.MethodPatch {
		current, err := h.svc.Get(ctx, id)
		if err != nil {
			return err
		}
		in = services.ClientInput{
			Name:           current.Name,
			MobileNumber:   current.MobileNumber,
			WhatsappNumber: current.WhatsappNumber,
			Email:          current.Email,
			Country:        current.Country,
			City:           current.City,
		}
	}
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	client, err := h.svc.Update(ctx, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clientView(client))
}

func (h *ClientHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
