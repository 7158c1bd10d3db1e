package handlers

import (
	"fmt"

	"github.com/diewo77/go-crm/internal/models"
)

// ClientView is the client representation.
type ClientView struct {
	models.Client
	Features []models.FeatureRef `json:"features"`
}

func clientView(c *models.Client) ClientView {
	return ClientView{Client: *c, Features: models.FeatureRefs(c.Features)}
}

// ClientRequestView adds the assignee and display labels to a demo request.
type ClientRequestView struct {
	models.ClientRequest
	AssignedStaff      *models.UserRef `json:"assigned_staff"`
	PlatformDisplay    string          `json:"platform_display"`
	CompanySizeDisplay string          `json:"company_size_display"`
}

func clientRequestView(r *models.ClientRequest) ClientRequestView {
	return ClientRequestView{
		ClientRequest:      *r,
		AssignedStaff:      r.AssignedStaff.Ref(),
		PlatformDisplay:    r.Platform.Label(),
		CompanySizeDisplay: r.CompanySize.Label(),
	}
}

// RelationshipView flattens the client to its name.
type RelationshipView struct {
	models.ClientRelationship
	ClientName string `json:"client_name"`
}

func relationshipView(r *models.ClientRelationship) RelationshipView {
	v := RelationshipView{ClientRelationship: *r}
	if r.Client != nil {
		v.ClientName = r.Client.Name
	}
	v.Client = nil
	return v
}

// ImageView is one gallery entry of a requirement.
type ImageView struct {
	ID          uint   `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// RequirementView is the requirement representation.
type RequirementView struct {
	models.ClientRequirement
	ClientName         string              `json:"client_name"`
	PredefinedFeatures []models.FeatureRef `json:"predefined_features"`
	CustomFeatures     []string            `json:"custom_features"`
	Images             []ImageView         `json:"images"`
}

func requirementView(r *models.ClientRequirement) RequirementView {
	v := RequirementView{
		ClientRequirement:  *r,
		PredefinedFeatures: models.FeatureRefs(r.PredefinedFeatures),
		CustomFeatures:     r.CustomFeatureList(),
		Images:             make([]ImageView, 0, len(r.Images)),
	}
	if r.Client != nil {
		v.ClientName = r.Client.Name
	}
	for _, img := range r.Images {
		v.Images = append(v.Images, ImageView{
			ID:          img.ID,
			URL:         fmt.Sprintf("%s/requirements/%d/images/%d", APIPrefix, r.ID, img.ID),
			ContentType: img.ContentType,
		})
	}
	return v
}

// QuotationItemView adds the product identity to a line.
type QuotationItemView struct {
	models.QuotationItem
	ProductSKU  string `json:"product_sku"`
	ProductName string `json:"product_name"`
}

// QuotationView is the quotation representation.
type QuotationView struct {
	models.Quotation
	ClientName         string              `json:"client_name"`
	AssignedToUsername string              `json:"assigned_to_username"`
	CreatedByUsername  string              `json:"created_by_username"`
	Items              []QuotationItemView `json:"items"`
}

func quotationView(q *models.Quotation) QuotationView {
	v := QuotationView{
		Quotation:          *q,
		AssignedToUsername: q.AssignedTo.DisplayName(),
		CreatedByUsername:  q.CreatedBy.DisplayName(),
		Items:              make([]QuotationItemView, 0, len(q.Items)),
	}
	if q.Client != nil {
		v.ClientName = q.Client.Name
	}
	for _, it := range q.Items {
		iv := QuotationItemView{QuotationItem: it}
		if it.Product != nil {
			iv.ProductSKU = it.Product.SKU
			iv.ProductName = it.Product.Name
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

// AgreementView is the agreement representation. Linked names and document
// URLs are derived from the current rows on every read.
type AgreementView struct {
	models.Agreement
	ClientName         string               `json:"clientName"`
	QuotationNumber    *string              `json:"quotation_number"`
	PaymentTerms       []models.PaymentTerm `json:"payment_terms"`
	TCFileURL          *string              `json:"tc_file_url"`
	SignedAgreementURL *string              `json:"signed_agreement_url"`
}

func agreementView(a *models.Agreement) AgreementView {
	v := AgreementView{Agreement: *a, PaymentTerms: a.PaymentTerms}
	if v.PaymentTerms == nil {
		v.PaymentTerms = []models.PaymentTerm{}
	}
	if a.Client != nil {
		v.ClientName = a.Client.Name
	}
	if a.Quotation != nil {
		v.QuotationNumber = &a.Quotation.QuotationNumber
	}
	v.TCFileURL = agreementFileURL(a, models.AgreementFileTC)
	v.SignedAgreementURL = agreementFileURL(a, models.AgreementFileSigned)
	return v
}

func agreementFileURL(a *models.Agreement, f models.AgreementFile) *string {
	if a.Key(f) == "" {
		return nil
	}
	u := fmt.Sprintf("%s/agreements/%d/files/%s", APIPrefix, a.ID, f)
	return &u
}

func mapViews[M any, V any](items []M, fn func(*M) V) []V {
	out := make([]V, 0, len(items))
	for i := range items {
		out = append(out, fn(&items[i]))
	}
	return out
}
