package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/gate"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/labstack/echo/v4"
)

type AgreementHandler struct {
	svc *services.AgreementService
}

func NewAgreementHandler(svc *services.AgreementService) *AgreementHandler {
	return &AgreementHandler{svc: svc}
}

func (h *AgreementHandler) RegisterRoutes(g *echo.Group, ag *policy.AuthGate) {
	r := gate.ResourceAgreement
	g.GET("/agreements", h.List, ag.RequirePermission(r, gate.ActionList))
	g.POST("/agreements", h.Create, ag.RequirePermission(r, gate.ActionCreate))
	g.GET("/agreements/:id", h.Get, ag.RequirePermission(r, gate.ActionView))
	g.PUT("/agreements/:id", h.Update, ag.RequirePermission(r, gate.ActionUpdate))
	g.DELETE("/agreements/:id", h.Delete, ag.RequirePermission(r, gate.ActionDelete))
	g.GET("/agreements/:id/files/:field", h.File, ag.RequirePermission(r, gate.ActionView))
}

// agreementJSON is the JSON body. Documents can only arrive as multipart
// file parts, so tc_file and signed_agreement are not read here.
type agreementJSON struct {
	ClientID     uint            `json:"client_id"`
	QuotationID  json.RawMessage `json:"quotation_id"`
	PaymentTerms json.RawMessage `json:"payment_terms"`
}

// input reads the body as multipart or JSON.
func (h *AgreementHandler) input(c echo.Context) (services.AgreementInput, error) {
	if !isMultipart(c) {
		var body agreementJSON
		if err := bindJSON(c, &body); err != nil {
			return services.AgreementInput{}, err
		}
		in := services.AgreementInput{ClientID: body.ClientID}
		qid, err := decodeQuotationID(body.QuotationID)
		if err != nil {
			return in, err
		}
		in.QuotationID = qid
		terms, err := payload.DecodePaymentTerms(body.PaymentTerms)
		if err != nil {
			return in, services.PayloadError(err)
		}
		in.PaymentTerms = terms
		return in, nil
	}

	form, err := multipartForm(c)
	if err != nil {
		return services.AgreementInput{}, err
	}
	in := services.AgreementInput{
		PaymentTerms:    payload.PaymentTermsString(formValue(form, "payment_terms")),
		TCFile:          formUpload(form, string(models.AgreementFileTC)),
		SignedAgreement: formUpload(form, string(models.AgreementFileSigned)),
	}
	clientID, err := formUint(form, "client_id")
	if err != nil {
		return in, err
	}
	if clientID != nil {
		in.ClientID = *clientID
	}
	if in.QuotationID, err = formUint(form, "quotation_id"); err != nil {
		return in, err
	}
	return in, nil
}

// decodeQuotationID accepts a number, a numeric string or null.
func decodeQuotationID(raw json.RawMessage) (*uint, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errInvalidQuotationID()
	}
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		if isNullish(t) {
			return nil, nil
		}
		s = strings.TrimSpace(t)
	default:
		return nil, errInvalidQuotationID()
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return nil, errInvalidQuotationID()
	}
	id := uint(n)
	return &id, nil
}

func errInvalidQuotationID() error {
	return httperror.NewHTTPError(http.StatusBadRequest, "invalid quotation_id").AddMetaValue("field", "quotation_id")
}

func (h *AgreementHandler) List(c echo.Context) error {
	clientID, err := httpx.QueryUint(c, "client_id")
	if err != nil {
		return err
	}
	agreements, err := h.svc.List(c.Request().Context(), clientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapViews(agreements, agreementView))
}

func (h *AgreementHandler) Get(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agreementView(a))
}

func (h *AgreementHandler) Create(c echo.Context) error {
	in, err := h.input(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Create(c.Request().Context(), callerID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, agreementView(a))
}

func (h *AgreementHandler) Update(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	in, err := h.input(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agreementView(a))
}

func (h *AgreementHandler) Delete(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// File streams tc_file or signed_agreement.
func (h *AgreementHandler) File(c echo.Context) error {
	id, err := httpx.ParseID(c, "id")
	if err != nil {
		return err
	}
	rc, ctype, err := h.svc.OpenFile(c.Request().Context(), id, models.AgreementFile(c.Param("field")))
	if err != nil {
		return err
	}
	return stream(c, rc, ctype)
}
