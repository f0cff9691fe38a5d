package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"checkout-svc/models"

	"github.com/go-pdf/fpdf"
)

// Renderer turns an order into a finished PDF bill.
type Renderer struct {
	Page     PageSpec
	Location *time.Location
	// Compress deflates page content streams. Disable it to inspect output.
	Compress bool
}

func NewRenderer(loc *time.Location) *Renderer {
	return &Renderer{Page: A4(), Location: loc, Compress: true}
}

func (r *Renderer) Render(order *models.Order, generatedAt time.Time) ([]byte, error) {
	if order == nil {
		return nil, errors.New("invoice: nil order")
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	page := r.Page
	if page.Width <= 0 || page.Height <= 0 {
		page = A4()
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(page.Margin, page.Margin, page.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetCompression(r.Compress)
	pdf.SetCreationDate(generatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Furnito bill "+order.ID, true)
	pdf.SetCreator("checkout-service", true)

	m := newFpdfMeasurer(pdf)
	doc := Layout(order, generatedAt.In(loc), m, page)

	for _, op := range doc.Ops {
		switch op.Kind {
		case OpNewPage:
			pdf.AddPage()
		case OpFillRect:
			pdf.SetFillColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
			pdf.Rect(op.X, op.Y, op.W, op.H, "F")
		case OpLine:
			pdf.SetDrawColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
			pdf.SetLineWidth(1)
			pdf.Line(op.X, op.Y, op.X+op.W, op.Y)
		case OpText:
			m.setFont(op.Font)
			pdf.SetTextColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
			pdf.SetXY(op.X, op.Y)
			pdf.CellFormat(op.W, op.H, m.tr(op.Text), "", 0, alignStr(op.Align), false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render bill for order %s: %w", order.ID, err)
	}
	return buf.Bytes(), nil
}

func alignStr(a Align) string {
	switch a {
	case AlignCenter:
		return "C"
	case AlignRight:
		return "R"
	default:
		return "L"
	}
}

// fpdfMeasurer measures with the same core font metrics the renderer draws
// with, after mapping UTF-8 to the cp1252 encoding those fonts use.
type fpdfMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newFpdfMeasurer(pdf *fpdf.Fpdf) *fpdfMeasurer {
	return &fpdfMeasurer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (m *fpdfMeasurer) setFont(f Font) {
	style := ""
	if f.Bold {
		style = "B"
	}
	m.pdf.SetFont(f.Family, style, f.Size)
}

func (m *fpdfMeasurer) StringWidth(text string, font Font) float64 {
	m.setFont(font)
	return m.pdf.GetStringWidth(m.tr(text))
}
