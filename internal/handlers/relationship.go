package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

type RelationshipHandler struct {
	svc *services.RelationshipService
}

func NewRelationshipHandler(svc *services.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{svc: svc}
}

func (h *RelationshipHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceRelationship
	g.GET("/relationships", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/relationships", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/relationships/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/relationships/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/relationships/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
}

func (h *RelationshipHandler) List(c echo.Context) error {
	clientID, err := httpx.QueryUint(c, "client_id")
	if err != nil {
		return err
	}
	rels, err := h.svc.List(c.Request().Context(), services.RelationshipFilter{
		ClientID: clientID,
		Status:   c.QueryParam("status"),
		CareOf:   c.QueryParam("care_of"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapViews(rels, relationshipView))
}

func (h *RelationshipHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, relationshipView(r))
}

func (h *RelationshipHandler) Create(c echo.Context) error {
	var in services.RelationshipInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	r, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, relationshipView(r))
}

func (h *RelationshipHandler) Update(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in services.RelationshipInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	r, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, relationshipView(r))
}

func (h *RelationshipHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
