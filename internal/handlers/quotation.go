package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/diewo77/go-crm/validation"
	"github.com/labstack/echo/v4"
)

type QuotationHandler struct {
	svc *services.QuotationService
}

func NewQuotationHandler(svc *services.QuotationService) *QuotationHandler {
	return &QuotationHandler{svc: svc}
}

func (h *QuotationHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceQuotation
	g.GET("/quotations", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/quotations", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/quotations/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/quotations/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/quotations/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
	g.POST("/quotations/:id/update_totals", h.UpdateTotals, ag.RequirePermission(r, gate.ActionUpdate))
	g.GET("/quotations/:id/pdf", h.PDF, ag.RequirePermission(r, gate.ActionView))
}

func (h *QuotationHandler) List(c echo.Context) error {
	clientID, err := httpx.QueryUint(c, "client_id")
	if err != nil {
		return err
	}
	qs, err := h.svc.List(c.Request().Context(), services.QuotationFilter{Status: c.QueryParam("status"), ClientID: clientID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapViews(qs, quotationView))
}

func (h *QuotationHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	q, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quotationView(q))
}

func (h *QuotationHandler) Create(c echo.Context) error {
	in, err := validation.Bind[services.QuotationInput](c)
	if err != nil {
		return err
	}
	q, err := h.svc.Create(c.Request().Context(), callerID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, quotationView(q))
}

func (h *QuotationHandler) Update(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	in, err := validation.Bind[services.QuotationInput](c)
	if err != nil {
		return err
	}
	q, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quotationView(q))
}

func (h *QuotationHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateTotals recomputes the derived amounts from the stored items.
func (h *QuotationHandler) UpdateTotals(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	q, err := h.svc.UpdateTotals(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quotationView(q))
}

// PDF renders the quotation as a downloadable document.
func (h *QuotationHandler) PDF(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	q, err := h.svc.WritePDF(c.Request().Context(), id, &buf)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", q.QuotationNumber+".pdf"))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}
