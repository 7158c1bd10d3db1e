package services_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/diewo77/go-crm/internal/dbtest"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/payload"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type termRow struct {
	Date   string
	Amount float64
}

func termRows(terms []models.PaymentTerm) []termRow {
	out := make([]termRow, 0, len(terms))
	for _, t := range terms {
		out = append(out, termRow{Date: t.Date.String(), Amount: t.Amount})
	}
	return out
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestAgreement_CreateWithPaymentTerms(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "sales@example.com", "sales")
	client := dbtest.CreateClient(t, conn, "Acme")
	q := models.Quotation{QuotationNumber: "QT-2030-0001", ClientID: client.ID}
	require.NoError(t, conn.Create(&q).Error)
	svc := services.NewAgreementService(conn, newStore(t), zap.NewNop())

	a, err := svc.Create(ctx, user.ID, services.AgreementInput{
		ClientID:     client.ID,
		QuotationID:  &q.ID,
		PaymentTerms: payload.PaymentTermsString(`[{"date":"2030-01-15","amount":"500.50"},{"date":"2030-02-15","amount":499.5}]`),
	})
	require.NoError(t, err)

	require.NotNil(t, a.CreatedByID)
	assert.Equal(t, user.ID, *a.CreatedByID)
	require.NotNil(t, a.Quotation)
	assert.Equal(t, "QT-2030-0001", a.Quotation.QuotationNumber)
	want := []termRow{{"2030-01-15", 500.5}, {"2030-02-15", 499.5}}
	if diff := cmp.Diff(want, termRows(a.PaymentTerms)); diff != "" {
		t.Errorf("payment terms mismatch (-want +got):\n%s", diff)
	}
}

func TestAgreement_MalformedTermsRollBack(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	svc := services.NewAgreementService(conn, newStore(t), zap.NewNop())

	tests := []struct {
		name  string
		terms payload.PaymentTerms
		msg   string
	}{
		{"malformed string", payload.PaymentTermsString(`[{"date":`), "invalid payment_terms data"},
		{"not a list", payload.PaymentTermsString(`{"date":"2030-01-01"}`), "payment_terms must be a list"},
		{"bad date", payload.PaymentTermsString(`[{"date":"15/01/2030","amount":1}]`), "invalid payment term data"},
		{"negative amount", payload.PaymentTermsString(`[{"date":"2030-01-15","amount":-1}]`), "invalid payment term data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, 0, services.AgreementInput{ClientID: client.ID, PaymentTerms: tt.terms})
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
			assert.Contains(t, messageOf(t, err), tt.msg)
		})
	}
	assert.Zero(t, countRows(t, conn, &models.Agreement{}))
	assert.Zero(t, countRows(t, conn, &models.PaymentTerm{}))
}

func TestAgreement_InvalidQuotation(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	svc := services.NewAgreementService(conn, newStore(t), zap.NewNop())

	missing := uint(404)
	_, err := svc.Create(ctx, 0, services.AgreementInput{ClientID: client.ID, QuotationID: &missing})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Equal(t, "invalid quotation_id", messageOf(t, err))
	assert.Zero(t, countRows(t, conn, &models.Agreement{}))
}

func TestAgreement_UpdateReplacesTermsAndFiles(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	store := newStore(t)
	svc := services.NewAgreementService(conn, store, zap.NewNop())

	tc := textUpload("terms.txt", "terms v1")
	a, err := svc.Create(ctx, 0, services.AgreementInput{
		ClientID:     client.ID,
		TCFile:       &tc,
		PaymentTerms: payload.PaymentTermsString(`[{"date":"2030-01-15","amount":100},{"date":"2030-02-15","amount":100}]`),
	})
	require.NoError(t, err)
	oldKey := a.TCFile
	require.NotEmpty(t, oldKey)

	// no file supplied: stored document stays, terms are replaced
	list, err := payload.DecodePaymentTerms([]byte(`[{"date":"2030-03-01","amount":250}]`))
	require.NoError(t, err)
	a, err = svc.Update(ctx, a.ID, services.AgreementInput{ClientID: client.ID, PaymentTerms: list})
	require.NoError(t, err)
	assert.Equal(t, oldKey, a.TCFile)
	assert.Equal(t, []termRow{{"2030-03-01", 250}}, termRows(a.PaymentTerms))
	assert.EqualValues(t, 1, countRows(t, conn, &models.PaymentTerm{}))

	// new upload replaces the blob
	tc2 := textUpload("terms.txt", "terms v2")
	a, err = svc.Update(ctx, a.ID, services.AgreementInput{ClientID: client.ID, TCFile: &tc2})
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, a.TCFile)
	assert.Empty(t, a.PaymentTerms, "absent terms clear the schedule")
	_, _, err = store.Open(ctx, oldKey)
	assert.Error(t, err, "replaced blob is deleted")

	rc, _, err := svc.OpenFile(ctx, a.ID, models.AgreementFileTC)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "terms v2", string(body))

	_, _, err = svc.OpenFile(ctx, a.ID, models.AgreementFileSigned)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestAgreement_UpdateQuotationLink(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	q := models.Quotation{QuotationNumber: "QT-2030-0007", ClientID: client.ID}
	require.NoError(t, conn.Create(&q).Error)
	svc := services.NewAgreementService(conn, newStore(t), zap.NewNop())

	a, err := svc.Create(ctx, 0, services.AgreementInput{ClientID: client.ID, QuotationID: &q.ID})
	require.NoError(t, err)

	a, err = svc.Update(ctx, a.ID, services.AgreementInput{ClientID: client.ID})
	require.NoError(t, err)
	require.NotNil(t, a.QuotationID, "omitted quotation keeps the link")

	bad := uint(999)
	_, err = svc.Update(ctx, a.ID, services.AgreementInput{ClientID: client.ID, QuotationID: &bad})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestAgreement_Delete(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	client := dbtest.CreateClient(t, conn, "Acme")
	store := newStore(t)
	svc := services.NewAgreementService(conn, store, zap.NewNop())

	signed := textUpload("signed.txt", "signed")
	a, err := svc.Create(ctx, 0, services.AgreementInput{
		ClientID:        client.ID,
		SignedAgreement: &signed,
		PaymentTerms:    payload.PaymentTermsString(`[{"date":"2030-01-15","amount":1}]`),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.Zero(t, countRows(t, conn, &models.PaymentTerm{}))
	_, _, err = store.Open(ctx, a.SignedAgreement)
	assert.Error(t, err)
}
