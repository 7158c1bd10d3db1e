package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

type ClientRequestHandler struct {
	svc *services.ClientRequestService
}

func NewClientRequestHandler(svc *services.ClientRequestService) *ClientRequestHandler {
	return &ClientRequestHandler{svc: svc}
}

func (h *ClientRequestHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceClientRequest
	g.GET("/client-requests", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/client-requests", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/client-requests/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/client-requests/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/client-requests/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
	g.POST("/client-requests/:id/assign_staff", h.AssignStaff, ag.RequirePermission(r, gate.ActionUpdate))
}

func (h *ClientRequestHandler) List(c echo.Context) error {
	reqs, err := h.svc.List(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapViews(reqs, clientRequestView))
}

func (h *ClientRequestHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clientRequestView(r))
}

func (h *ClientRequestHandler) Create(c echo.Context) error {
	var in services.ClientRequestInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	r, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, clientRequestView(r))
}

func (h *ClientRequestHandler) Update(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in services.ClientRequestInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	r, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clientRequestView(r))
}

func (h *ClientRequestHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignStaff sets the assignee and status of a demo request.
func (h *ClientRequestHandler) AssignStaff(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in services.AssignStaffInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	r, err := h.svc.AssignStaff(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clientRequestView(r))
}
