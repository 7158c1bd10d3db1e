// Package pdf renders printable documents.
package pdf

import (
	"fmt"
	"io"

	"github.com/diewo77/go-crm/internal/models"
	"github.com/jung-kurt/gofpdf"
)

var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"Product", 55, "L"},
	{"Qty", 15, "R"},
	{"Unit price", 25, "R"},
	{"Disc. %", 20, "R"},
	{"Tax %", 20, "R"},
	{"Line total", 30, "R"},
}

// WriteQuotation renders q with its items and totals as an A4 PDF.
// q.Client, q.Items and each item's Product should be loaded.
func WriteQuotation(w io.Writer, q *models.Quotation) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Quotation "+q.QuotationNumber, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(190, 10, tr("Quotation "+q.QuotationNumber))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	header := [][2]string{
		{"Version:", fmt.Sprintf("%d", q.Version)},
		{"Status:", string(q.Status)},
		{"Date:", q.CreatedAt.Format(models.DateLayout)},
	}
	if q.ValidUntil != nil {
		header = append(header, [2]string{"Valid until:", q.ValidUntil.String()})
	}
	if q.Client != nil {
		header = append(header, [2]string{"Client:", q.Client.Name})
	}
	if q.ClientReference != "" {
		header = append(header, [2]string{"Reference:", q.ClientReference})
	}
	for _, row := range header {
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(35, 7, row[0])
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(120, 7, tr(row[1]))
		pdf.Ln(7)
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for _, col := range itemColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, item := range q.Items {
		name := item.Description
		if item.Product != nil {
			name = item.Product.SKU + " " + item.Product.Name
		}
		cells := []string{
			name,
			fmt.Sprintf("%g", item.Quantity),
			money(item.UnitPrice),
			fmt.Sprintf("%.2f", item.DiscountPercentage),
			fmt.Sprintf("%.2f", item.TaxPercentage),
			money(item.Subtotal),
		}
		for i, col := range itemColumns {
			pdf.CellFormat(col.width, 7, tr(cells[i]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	totals := [][2]string{
		{"Subtotal", money(q.Subtotal)},
		{"Discount", "-" + money(q.DiscountAmount)},
		{"Total", money(q.TotalAmount)},
	}
	for i, row := range totals {
		style := ""
		if i == len(totals)-1 {
			style = "B"
		}
		pdf.SetFont("Arial", style, 11)
		pdf.CellFormat(135, 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, row[1], "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if q.TermsAndConditions != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(190, 7, "Terms and conditions")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(190, 5, tr(q.TermsAndConditions), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render quotation pdf: %w", err)
	}
	return nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
