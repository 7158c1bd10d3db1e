package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/pdf"
	"github.com/diewo77/go-crm/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuotationService handles quotations and their items.
type QuotationService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewQuotationService(db *gorm.DB, log *zap.Logger) *QuotationService {
	return &QuotationService{db: db, log: log, now: time.Now}
}

// QuotationFilter narrows List.
type QuotationFilter struct {
	Status   string
	ClientID *uint
}

// QuotationInput is the body accepted when creating or updating a quotation.
// Derived amounts are not part of it: they are always recomputed from the
// items. A nil Items leaves the lines untouched on update.
type QuotationInput struct {
	QuotationNumber    string                 `json:"quotation_number" validate:"max=50"`
	Version            int                    `json:"version" validate:"gte=0"`
	Status             models.QuotationStatus `json:"status"`
	ValidUntil         *models.Date           `json:"valid_until"`
	ClientID           uint                   `json:"client" validate:"required"`
	ClientReference    string                 `json:"client_reference" validate:"max=100"`
	AssignedToID       *uint                  `json:"assigned_to"`
	Notes              string                 `json:"notes"`
	TermsAndConditions string                 `json:"terms_and_conditions"`
	RequiresApproval   bool                   `json:"requires_approval"`
	Items              []QuotationItemInput   `json:"items" validate:"omitempty,dive"`
}

// QuotationItemInput is one submitted line. UnitPrice defaults to the
// product's catalogue price.
type QuotationItemInput struct {
	ProductID          uint     `json:"product" validate:"required"`
	Description        string   `json:"description" validate:"max=500"`
	Quantity           float64  `json:"quantity" validate:"gt=0"`
	UnitPrice          *float64 `json:"unit_price" validate:"omitempty,gte=0"`
	DiscountPercentage float64  `json:"discount_percentage" validate:"gte=0,lte=100"`
	TaxPercentage      float64  `json:"tax_percentage" validate:"gte=0,lte=100"`
}

func (in *QuotationInput) validate() error {
	v := validation.Struct(in)
	if in.Status != "" && !in.Status.Valid() {
		v.Add("status", "oneof")
	}
	return v.Err()
}

func (in QuotationInput) apply(q *models.Quotation) {
	if in.QuotationNumber != "" {
		q.QuotationNumber = in.QuotationNumber
	}
	if in.Version > 0 {
		q.Version = in.Version
	}
	if in.Status != "" {
		q.Status = in.Status
	}
	q.ValidUntil = in.ValidUntil
	q.ClientID = in.ClientID
	q.ClientReference = in.ClientReference
	q.AssignedToID = in.AssignedToID
	q.Notes = in.Notes
	q.TermsAndConditions = in.TermsAndConditions
	q.RequiresApproval = in.RequiresApproval
}

func (s *QuotationService) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Client").
		Preload("AssignedTo").
		Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Items.Product")
}

func (s *QuotationService) List(ctx context.Context, f QuotationFilter) ([]models.Quotation, error) {
	q := s.preload(s.db.WithContext(ctx)).Order("created_at DESC, id DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	out := []models.Quotation{}
	if err := q.Find(&out).Error; err != nil {
		return nil, httpx.DBError(err, "quotation")
	}
	return out, nil
}

func (s *QuotationService) Get(ctx context.Context, id uint) (*models.Quotation, error) {
	var q models.Quotation
	if err := s.preload(s.db.WithContext(ctx)).First(&q, id).Error; err != nil {
		return nil, httpx.DBError(err, "quotation")
	}
	return &q, nil
}

// Create stores the header and items, then derives the totals, all in one
// transaction. createdBy is the authenticated caller.
func (s *QuotationService) Create(ctx context.Context, createdBy uint, in QuotationInput) (*models.Quotation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	q := models.Quotation{Version: 1, Status: models.QuotationStatusDraft}
	in.apply(&q)
	if createdBy != 0 {
		q.CreatedByID = &createdBy
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkRefs(tx, in); err != nil {
			return err
		}
		if q.QuotationNumber == "" {
			number, err := models.GenerateQuotationNumber(tx, s.now().Year())
			if err != nil {
				return fmt.Errorf("generate quotation number: %w", err)
			}
			q.QuotationNumber = number
		}
		if err := tx.Omit("Client", "AssignedTo", "CreatedBy", "Items").Create(&q).Error; err != nil {
			return err
		}
		if err := replaceItems(tx, q.ID, in.Items); err != nil {
			return err
		}
		return updateTotals(tx, q.ID)
	})
	if err != nil {
		return nil, httpx.DBError(err, "quotation")
	}
	return s.Get(ctx, q.ID)
}

// Update rewrites the header. When items are supplied the old lines are
// replaced first and the totals derived second, in the same transaction.
func (s *QuotationService) Update(ctx context.Context, id uint, in QuotationInput) (*models.Quotation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Quotation
		if err := tx.First(&q, id).Error; err != nil {
			return err
		}
		if err := s.checkRefs(tx, in); err != nil {
			return err
		}
		in.apply(&q)
		if err := tx.Omit("Client", "AssignedTo", "CreatedBy", "Items", "Subtotal", "DiscountAmount", "TotalAmount").Save(&q).Error; err != nil {
			return err
		}
		if in.Items != nil {
			if err := replaceItems(tx, q.ID, in.Items); err != nil {
				return err
			}
		}
		return updateTotals(tx, q.ID)
	})
	if err != nil {
		return nil, httpx.DBError(err, "quotation")
	}
	return s.Get(ctx, id)
}

func (s *QuotationService) checkRefs(tx *gorm.DB, in QuotationInput) error {
	if err := requireRow(tx, &models.Client{}, in.ClientID, "client"); err != nil {
		return err
	}
	if in.AssignedToID != nil {
		if err := requireRow(tx, &models.User{}, *in.AssignedToID, "assigned_to"); err != nil {
			return err
		}
	}
	return nil
}

// replaceItems deletes every line of the quotation and inserts items in
// their submitted order.
func replaceItems(tx *gorm.DB, quotationID uint, items []QuotationItemInput) error {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := resolveProducts(tx, ids)
	if err != nil {
		return err
	}
	if err := tx.Where("quotation_id = ?", quotationID).Delete(&models.QuotationItem{}).Error; err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.QuotationItem, 0, len(items))
	for i, it := range items {
		price := products[it.ProductID].UnitPrice
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		rows = append(rows, models.QuotationItem{
			QuotationID:        quotationID,
			ProductID:          it.ProductID,
			Description:        it.Description,
			Quantity:           it.Quantity,
			UnitPrice:          models.RoundMoney(price),
			DiscountPercentage: it.DiscountPercentage,
			TaxPercentage:      it.TaxPercentage,
			Position:           i,
		})
	}
	if err := tx.Omit("Product").Create(&rows).Error; err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

func resolveProducts(tx *gorm.DB, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product)
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := tx.Where("id IN ?", unique).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	for _, id := range unique {
		if _, ok := out[id]; !ok {
			return nil, invalidField("items", fmt.Sprintf("invalid product %d", id))
		}
	}
	return out, nil
}

// UpdateTotals recomputes the item subtotals and the quotation amounts from
// the stored items.
func (s *QuotationService) UpdateTotals(ctx context.Context, id uint) (*models.Quotation, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Quotation{}, id); err != nil || !ok {
			if err == nil {
				err = gorm.ErrRecordNotFound
			}
			return err
		}
		return updateTotals(tx, id)
	})
	if err != nil {
		return nil, httpx.DBError(err, "quotation")
	}
	return s.Get(ctx, id)
}

// Totals are the derived amounts of a quotation.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TotalAmount    float64
}

// ComputeTotals derives the quotation amounts from its items.
func ComputeTotals(items []models.QuotationItem) Totals {
	var gross, discount, tax float64
	for i := range items {
		gross += items[i].Gross()
		discount += items[i].DiscountAmount()
		tax += items[i].TaxAmount()
	}
	subtotal := models.RoundMoney(gross)
	discountAmount := models.RoundMoney(discount)
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TotalAmount:    models.RoundMoney(subtotal - discountAmount + tax),
	}
}

func updateTotals(tx *gorm.DB, quotationID uint) error {
	var items []models.QuotationItem
	if err := tx.Where("quotation_id = ?", quotationID).Find(&items).Error; err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for i := range items {
		line := models.RoundMoney(items[i].LineTotal())
		if line == items[i].Subtotal {
			continue
		}
		err := tx.Model(&models.QuotationItem{}).Where("id = ?", items[i].ID).UpdateColumn("subtotal", line).Error
		if err != nil {
			return fmt.Errorf("update item subtotal: %w", err)
		}
	}
	t := ComputeTotals(items)
	err := tx.Model(&models.Quotation{}).Where("id = ?", quotationID).Updates(map[string]any{
		"subtotal":        t.Subtotal,
		"discount_amount": t.DiscountAmount,
		"total_amount":    t.TotalAmount,
	}).Error
	if err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	metrics.QuotationTotalsRecomputed.Inc()
	return nil
}

func (s *QuotationService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := models.Quotation{ID: id}
		if err := tx.First(&q).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Agreement{}).Where("quotation_id = ?", id).Update("quotation_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("quotation_id = ?", id).Delete(&models.QuotationItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&q).Error
	})
	return httpx.DBError(err, "quotation")
}

// WritePDF renders the quotation as a PDF document.
func (s *QuotationService) WritePDF(ctx context.Context, id uint, w io.Writer) (*models.Quotation, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := pdf.WriteQuotation(w, q); err != nil {
		return nil, fmt.Errorf("render quotation pdf: %w", err)
	}
	return q, nil
}
