package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler serves the staff directory. Writes are admin only.
type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	g.GET("/users", h.List, ag.RequirePermission(gate.ResourceUser, gate.ActionList))
	g.GET("/users/:id", h.Get, ag.RequirePermission(gate.ResourceUser, gate.ActionView))
	g.PUT("/users/:id/profile", h.AssignProfile, ag.RequireAdmin())
	g.DELETE("/users/:id", h.Delete, ag.RequireAdmin())
}

func (h *UserHandler) List(c echo.Context) error {
	users, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// AssignProfile sets or clears the user's authorization profile.
func (h *UserHandler) AssignProfile(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var in services.AssignProfileInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	u, err := h.svc.AssignProfile(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if id == callerID(c) {
		return httpx.BadRequest("cannot delete yourself")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
