package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

type RequirementHandler struct {
	svc *services.RequirementService
}

func NewRequirementHandler(svc *services.RequirementService) *RequirementHandler {
	return &RequirementHandler{svc: svc}
}

func (h *RequirementHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceRequirement
	g.GET("/requirements", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/requirements", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/requirements/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/requirements/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/requirements/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
	g.GET("/requirements/:id/images/:image_id", h.Image, ag.RequirePermission(r, gate.ActionView))
}

// requirementJSON is the JSON body; custom_features may be a list or a string.
type requirementJSON struct {
	services.RequirementInput
	CustomFeatures json.RawMessage `json:"custom_features"`
}

// input reads the body as multipart or JSON.
func (h *RequirementHandler) input(c echo.Context) (services.RequirementInput, error) {
	if !isMultipart(c) {
		var body requirementJSON
		if err := bindJSON(c, &body); err != nil {
			return services.RequirementInput{}, err
		}
		in := body.RequirementInput
		cf, err := payload.DecodeCustomFeatures(body.CustomFeatures)
		if err != nil {
			return services.RequirementInput{}, services.PayloadError(err)
		}
		in.CustomFeatures = cf
		return in, nil
	}

	form, err := multipartForm(c)
	if err != nil {
		return services.RequirementInput{}, err
	}
	in := services.RequirementInput{
		FileNumber:             formValue(form, "file_number"),
		ColorTheme:             formValue(form, "color_theme"),
		Layout:                 formValue(form, "layout"),
		AdditionalRequirements: formValue(form, "additional_requirements"),
		Status:                 models.RequirementStatus(formValue(form, "status")),
		CustomFeatures:         payload.CustomFeaturesFromForm(form.Value["custom_features"]),
		Uploads:                formUploads(form, "uploaded_images"),
	}
	clientID, err := formUint(form, "client_id")
	if err != nil {
		return in, err
	}
	if clientID != nil {
		in.ClientID = *clientID
	}
	if in.PredefinedFeatures, err = formUintList(form, "predefined_features"); err != nil {
		return in, err
	}
	if in.ExistingImages, err = formUintList(form, "existing_images"); err != nil {
		return in, err
	}
	return in, nil
}

func (h *RequirementHandler) List(c echo.Context) error {
	clientID, err := httpx.QueryUint(c, "client_id")
	if err != nil {
		return err
	}
	reqs, err := h.svc.List(c.Request().Context(), services.RequirementFilter{ClientID: clientID, Status: c.QueryParam("status")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapViews(reqs, requirementView))
}

func (h *RequirementHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, requirementView(r))
}

func (h *RequirementHandler) Create(c echo.Context) error {
	in, err := h.input(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, requirementView(r))
}

func (h *RequirementHandler) Update(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	in, err := h.input(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, requirementView(r))
}

func (h *RequirementHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Image streams one gallery image.
func (h *RequirementHandler) Image(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	imageID, err := httpx.ParseID(c, "image_id")
	if err != nil {
		return err
	}
	rc, ctype, err := h.svc.OpenImage(c.Request().Context(), id, imageID)
	if err != nil {
		return err
	}
	return stream(c, rc, ctype)
}
