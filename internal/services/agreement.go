package services

import (
	"context"
	"fmt"
	"io"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"github.com/diewo77/go-crm/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const agreementFilePrefix = "agreements"

// AgreementService handles agreements and their payment schedules.
type AgreementService struct {
	db    *gorm.DB
	blobs blobstore.Store
	log   *zap.Logger
}

func NewAgreementService(db *gorm.DB, blobs blobstore.Store, log *zap.Logger) *AgreementService {
	return &AgreementService{db: db, blobs: blobs, log: log}
}

// AgreementInput carries a create or update. On update a nil QuotationID
// keeps the current link, and a nil file keeps the stored document. The
// payment terms always replace the stored schedule.
type AgreementInput struct {
	ClientID        uint                 `json:"client_id" validate:"required"`
	QuotationID     *uint                `json:"quotation_id"`
	PaymentTerms    payload.PaymentTerms `json:"-"`
	TCFile          *Upload              `json:"-"`
	SignedAgreement *Upload              `json:"-"`
}

func (in AgreementInput) uploads() map[models.AgreementFile]*Upload {
	out := map[models.AgreementFile]*Upload{}
	if in.TCFile != nil {
		out[models.AgreementFileTC] = in.TCFile
	}
	if in.SignedAgreement != nil {
		out[models.AgreementFileSigned] = in.SignedAgreement
	}
	return out
}

func (s *AgreementService) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Client").
		Preload("Quotation").
		Preload("PaymentTerms", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") })
}

// List returns agreements, optionally only those of one client.
func (s *AgreementService) List(ctx context.Context, clientID *uint) ([]models.Agreement, error) {
	q := s.preload(s.db.WithContext(ctx)).Order("id DESC")
	if clientID != nil {
		q = q.Where("client_id = ?", *clientID)
	}
	out := []models.Agreement{}
	if err := q.Find(&out).Error; err != nil {
		return nil, httpx.DBError(err, "agreement")
	}
	return out, nil
}

func (s *AgreementService) Get(ctx context.Context, id uint) (*models.Agreement, error) {
	var a models.Agreement
	if err := s.preload(s.db.WithContext(ctx)).First(&a, id).Error; err != nil {
		return nil, httpx.DBError(err, "agreement")
	}
	return &a, nil
}

// Create stores the agreement and its payment terms in one transaction.
// Any invalid term rolls back the agreement too.
func (s *AgreementService) Create(ctx context.Context, createdBy uint, in AgreementInput) (*models.Agreement, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	files, err := s.saveFiles(ctx, in)
	if err != nil {
		return nil, err
	}
	a := models.Agreement{ClientID: in.ClientID}
	if createdBy != 0 {
		a.CreatedByID = &createdBy
	}
	for slot, obj := range files {
		a.SetKey(slot, obj.Key)
	}
	var written int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Client{}, in.ClientID, "client_id"); err != nil {
			return err
		}
		if err := resolveQuotation(tx, in.QuotationID); err != nil {
			return err
		}
		a.QuotationID = in.QuotationID
		if err := tx.Omit("Client", "Quotation", "CreatedBy", "PaymentTerms").Create(&a).Error; err != nil {
			return err
		}
		written, err = writePaymentTerms(tx, a.ID, in.PaymentTerms)
		return err
	})
	if err != nil {
		removeBlobs(ctx, s.blobs, s.log, fileKeys(files))
		return nil, httpx.DBError(err, "agreement")
	}
	metrics.PaymentTermsWritten.Add(float64(written))
	return s.Get(ctx, a.ID)
}

// Update rewrites the agreement. Uploaded documents replace the stored ones,
// whose blobs are removed after commit.
func (s *AgreementService) Update(ctx context.Context, id uint, in AgreementInput) (*models.Agreement, error) {
	if err := validation.Struct(&in).Err(); err != nil {
		return nil, err
	}
	files, err := s.saveFiles(ctx, in)
	if err != nil {
		return nil, err
	}
	var replaced []string
	var written int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Agreement
		if err := tx.First(&a, id).Error; err != nil {
			return err
		}
		if in.ClientID != a.ClientID {
			if err := requireRow(tx, &models.Client{}, in.ClientID, "client_id"); err != nil {
				return err
			}
			a.ClientID = in.ClientID
		}
		if in.QuotationID != nil {
			if err := resolveQuotation(tx, in.QuotationID); err != nil {
				return err
			}
			a.QuotationID = in.QuotationID
		}
		replaced = replaced[:0]
		for slot, obj := range files {
			if old := a.SetKey(slot, obj.Key); old != "" {
				replaced = append(replaced, old)
			}
		}
		if err := tx.Omit("Client", "Quotation", "CreatedBy", "PaymentTerms").Save(&a).Error; err != nil {
			return err
		}
		if err := tx.Where("agreement_id = ?", a.ID).Delete(&models.PaymentTerm{}).Error; err != nil {
			return err
		}
		written, err = writePaymentTerms(tx, a.ID, in.PaymentTerms)
		return err
	})
	if err != nil {
		removeBlobs(ctx, s.blobs, s.log, fileKeys(files))
		return nil, httpx.DBError(err, "agreement")
	}
	removeBlobs(ctx, s.blobs, s.log, replaced)
	metrics.PaymentTermsWritten.Add(float64(written))
	return s.Get(ctx, id)
}

func (s *AgreementService) saveFiles(ctx context.Context, in AgreementInput) (map[models.AgreementFile]blobstore.Object, error) {
	out := map[models.AgreementFile]blobstore.Object{}
	for slot, up := range in.uploads() {
		obj, err := saveUpload(ctx, s.blobs, agreementFilePrefix, *up)
		if err != nil {
			removeBlobs(ctx, s.blobs, s.log, fileKeys(out))
			return nil, err
		}
		out[slot] = obj
	}
	return out, nil
}

func fileKeys(files map[models.AgreementFile]blobstore.Object) []string {
	keys := make([]string, 0, len(files))
	for _, obj := range files {
		keys = append(keys, obj.Key)
	}
	return keys
}

// resolveQuotation fails with 400 when id does not name a quotation.
func resolveQuotation(tx *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	ok, err := exists(tx, &models.Quotation{}, *id)
	if err != nil {
		return fmt.Errorf("lookup quotation: %w", err)
	}
	if !ok {
		return invalidField("quotation_id", "invalid quotation_id")
	}
	return nil
}

// writePaymentTerms parses the submitted schedule and inserts one row per
// installment.
func writePaymentTerms(tx *gorm.DB, agreementID uint, terms payload.PaymentTerms) (int, error) {
	parsed, err := terms.Terms()
	if err != nil {
		return 0, PayloadError(err)
	}
	if len(parsed) == 0 {
		return 0, nil
	}
	rows := make([]models.PaymentTerm, 0, len(parsed))
	for i, t := range parsed {
		rows = append(rows, models.PaymentTerm{AgreementID: agreementID, Date: t.Date, Amount: models.RoundMoney(t.Amount), Position: i})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("insert payment terms: %w", err)
	}
	return len(rows), nil
}

// Delete removes the agreement, its payment terms and stored documents.
func (s *AgreementService) Delete(ctx context.Context, id uint) error {
	var a models.Agreement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, id).Error; err != nil {
			return err
		}
		if err := tx.Where("agreement_id = ?", id).Delete(&models.PaymentTerm{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Agreement{}, id).Error
	})
	if err != nil {
		return httpx.DBError(err, "agreement")
	}
	removeBlobs(ctx, s.blobs, s.log, []string{a.TCFile, a.SignedAgreement})
	return nil
}

// OpenFile streams one of the agreement documents.
func (s *AgreementService) OpenFile(ctx context.Context, id uint, field models.AgreementFile) (io.ReadCloser, string, error) {
	if !field.Valid() {
		return nil, "", httpx.NotFound("file")
	}
	var a models.Agreement
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, "", httpx.DBError(err, "agreement")
	}
	return openBlob(ctx, s.blobs, a.Key(field), "file")
}
