package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

// ProfileHandler lets admins manage profiles and the permissions they grant.
type ProfileHandler struct {
	svc *services.ProfileService
}

func NewProfileHandler(svc *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	admin := ag.RequireAdmin()
	g.GET("/profiles", h.List, admin)
	g.POST("/profiles", h.Create, admin)
	g.GET("/profiles/:id", h.Get, admin)
	g.DELETE("/profiles/:id", h.Delete, admin)
	g.PUT("/profiles/:id/permissions", h.SetPermissions, admin)
	g.GET("/permissions", h.Permissions, admin)
}

func (h *ProfileHandler) List(c echo.Context) error {
	profiles, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profiles)
}

func (h *ProfileHandler) Get(c echo.Context) error {
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

func (h *ProfileHandler) Create(c echo.Context) error {
	var in services.ProfileInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProfileHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) SetPermissions(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in services.PermissionsInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	p, err := h.svc.SetPermissions(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) Permissions(c echo.Context) error {
	perms, err := h.svc.Permissions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}
