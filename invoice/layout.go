package invoice

import (
	"math"
	"strconv"
	"strings"
	"time"

	"checkout-svc/models"

	"github.com/shopspring/decimal"
)

const (
	brandName  = "FURNITO"
	tagline    = "Premium Furniture and Home Decor"
	title      = "PAYMENT BILL / INVOICE"
	thankYou   = "Thank you for shopping with Furnito. Keep this invoice for your records."
	dateLayout = "02 Jan 2006, 03:04 PM"
	fontFamily = "Helvetica"

	minRowHeight    = 18.0
	nameColumnWidth = 250.0
	qtyOffset       = 280.0
	unitPriceOffset = 340.0
	amountOffset    = 430.0
	bandHeight      = 20.0
	bandAdvance     = 22.0
)

var (
	colorBrand   = Color{0xB4, 0x53, 0x09}
	colorMuted   = Color{0x4B, 0x55, 0x63}
	colorInk     = Color{0x11, 0x18, 0x27}
	colorSubtle  = Color{0x6B, 0x72, 0x80}
	colorBody    = Color{0x37, 0x41, 0x51}
	colorDivider = Color{0xE5, 0xE7, 0xEB}
	colorBand    = Color{0xFF, 0xF7, 0xED}

	fontBody     = Font{Family: fontFamily, Size: 10}
	fontBodyBold = Font{Family: fontFamily, Bold: true, Size: 10}
	fontHeading  = Font{Family: fontFamily, Bold: true, Size: 12}
)

type kv struct {
	label string
	value string
}

type layout struct {
	page PageSpec
	m    Measurer
	doc  Document
	y    float64
}

// Layout positions the bill for order on pages of the given size. It is pure:
// the same inputs always produce the same ops. Dates are shown in
// generatedAt's location.
func Layout(order *models.Order, generatedAt time.Time, m Measurer, page PageSpec) Document {
	l := &layout{page: page, m: m, doc: Document{Page: page}}
	loc := generatedAt.Location()
	currency := order.Currency
	if currency == "" {
		currency = "INR"
	}

	l.newPage()
	l.paragraph(brandName, Font{Family: fontFamily, Bold: true, Size: 30}, colorBrand, AlignCenter)
	l.moveDown(0.2, 30)
	l.paragraph(tagline, Font{Family: fontFamily, Size: 11}, colorMuted, AlignCenter)
	l.moveDown(1, 11)
	l.paragraph(title, Font{Family: fontFamily, Bold: true, Size: 16}, colorInk, AlignLeft)
	l.moveDown(0.3, 16)
	l.paragraph("Generated on: "+formatDate(generatedAt, loc), fontBody, colorSubtle, AlignLeft)
	l.divider()

	l.section("Order Details", []kv{
		{"Bill ID", order.ID},
		{"Order Date", formatDate(order.CreatedAt, loc)},
		{"Receipt", order.Receipt},
		{"Payment Status", string(order.PaymentStatus)},
		{"Order Status", string(order.OrderStatus)},
		{"Payment ID", order.ProviderPaymentID},
	})
	l.moveDown(0.6, 10)
	l.section("Customer Details", []kv{
		{"Name", order.CustomerInfo.Name},
		{"Email", order.CustomerInfo.Email},
		{"Phone", order.CustomerInfo.Phone},
		{"Address", order.CustomerInfo.Address},
	})

	l.moveDown(0.8, 10)
	l.ensure(lineHeight(fontHeading.Size)+6+bandAdvance+minRowHeight, l.itemsLimit())
	l.paragraph("Items", fontHeading, colorInk, AlignLeft)
	l.y += 6
	l.itemsHeader()
	for _, item := range order.Items {
		l.itemRow(item, currency)
	}
	l.y += 8

	l.totals([]kv{
		{"Subtotal", formatMoney(currency, order.Subtotal)},
		{"Shipping", formatMoney(currency, order.Shipping)},
		{"Total Paid", formatMoney(currency, order.Total)},
	})
	l.y += 8
	l.divider()
	l.paragraph(thankYou, Font{Family: fontFamily, Size: 9}, colorSubtle, AlignCenter)

	return l.doc
}

func (l *layout) newPage() {
	l.doc.Ops = append(l.doc.Ops, Op{Kind: OpNewPage})
	l.doc.Pages++
	l.y = l.page.Margin
}

func (l *layout) contentWidth() float64 {
	return l.page.Width - 2*l.page.Margin
}

func (l *layout) bodyLimit() float64 {
	return l.page.Height - l.page.Margin
}

func (l *layout) itemsLimit() float64 {
	return l.page.Height - l.page.Margin - l.page.FooterReserve
}

// ensure starts a new page when a block of height h would cross limit.
func (l *layout) ensure(h, limit float64) {
	if l.y+h > limit {
		l.newPage()
	}
}

func (l *layout) moveDown(lines, size float64) {
	l.y += lines * lineHeight(size)
}

func (l *layout) text(x, y, w float64, s string, font Font, color Color, align Align) {
	l.doc.Ops = append(l.doc.Ops, Op{
		Kind:  OpText,
		X:     x,
		Y:     y,
		W:     w,
		H:     lineHeight(font.Size),
		Text:  s,
		Font:  font,
		Color: color,
		Align: align,
	})
}

func (l *layout) paragraph(s string, font Font, color Color, align Align) {
	lines := l.wrap(s, font, l.contentWidth())
	lh := lineHeight(font.Size)
	l.ensure(float64(len(lines))*lh, l.bodyLimit())
	for _, line := range lines {
		l.text(l.page.Margin, l.y, l.contentWidth(), line, font, color, align)
		l.y += lh
	}
}

func (l *layout) divider() {
	l.doc.Ops = append(l.doc.Ops, Op{
		Kind:  OpLine,
		X:     l.page.Margin,
		Y:     l.y,
		W:     l.contentWidth(),
		Color: colorDivider,
	})
	l.moveDown(0.8, 10)
}

func (l *layout) section(heading string, rows []kv) {
	l.paragraph(heading, fontHeading, colorInk, AlignLeft)
	l.moveDown(0.3, fontHeading.Size)
	lh := lineHeight(fontBody.Size)
	for _, row := range rows {
		label := row.label + ": "
		value := strings.TrimSpace(row.value)
		if value == "" {
			value = "-"
		}
		labelWidth := l.m.StringWidth(label, fontBodyBold)
		lines := l.wrap(value, fontBody, l.contentWidth()-labelWidth)
		l.ensure(float64(len(lines))*lh, l.bodyLimit())
		l.text(l.page.Margin, l.y, labelWidth, label, fontBodyBold, colorInk, AlignLeft)
		for _, line := range lines {
			l.text(l.page.Margin+labelWidth, l.y, l.contentWidth()-labelWidth, line, fontBody, colorBody, AlignLeft)
			l.y += lh
		}
	}
}

func (l *layout) itemsHeader() {
	x := l.page.Margin
	l.doc.Ops = append(l.doc.Ops, Op{
		Kind:  OpFillRect,
		X:     x,
		Y:     l.y - 4,
		W:     l.contentWidth(),
		H:     bandHeight,
		Color: colorBand,
	})
	l.text(x+4, l.y, 260, "Item", fontBodyBold, colorInk, AlignLeft)
	l.text(x+qtyOffset, l.y, 50, "Qty", fontBodyBold, colorInk, AlignLeft)
	l.text(x+unitPriceOffset, l.y, 80, "Unit Price", fontBodyBold, colorInk, AlignLeft)
	l.text(x+amountOffset, l.y, 80, "Amount", fontBodyBold, colorInk, AlignRight)
	l.y += bandAdvance
}

func (l *layout) itemRow(item models.LineItem, currency string) {
	name := strings.TrimSpace(item.ProductName)
	if name == "" {
		name = "-"
	}
	lh := lineHeight(fontBody.Size)
	lines := l.wrap(name, fontBody, nameColumnWidth)
	rowHeight := math.Max(minRowHeight, float64(len(lines))*lh+4)

	if l.y+rowHeight > l.itemsLimit() {
		l.newPage()
		l.itemsHeader()
	}

	x := l.page.Margin
	for i, line := range lines {
		l.text(x+4, l.y+float64(i)*lh, nameColumnWidth, line, fontBody, colorBody, AlignLeft)
	}
	l.text(x+qtyOffset, l.y, 50, strconv.FormatInt(item.Quantity, 10), fontBody, colorBody, AlignLeft)
	l.text(x+unitPriceOffset, l.y, 80, formatMoney(currency, item.Price), fontBody, colorBody, AlignLeft)
	l.text(x+amountOffset, l.y, 80, formatMoney(currency, item.Amount()), fontBody, colorBody, AlignRight)
	l.y += rowHeight
}

// totals keeps the summary, closing divider and thank-you line together.
func (l *layout) totals(rows []kv) {
	block := l.dividerAdvance()
	for i := range rows {
		block += totalsAdvance(i == len(rows)-1)
	}
	block += 8 + l.dividerAdvance() + lineHeight(9)
	l.ensure(block, l.bodyLimit())

	l.divider()
	x := l.page.Margin
	for i, row := range rows {
		grand := i == len(rows)-1
		font := fontBody
		if grand {
			font = fontHeading
		}
		l.text(x+300, l.y, 90, row.label+":", font, colorInk, AlignRight)
		l.text(x+395, l.y, 110, row.value, font, colorInk, AlignRight)
		l.y += totalsAdvance(grand)
	}
}

func (l *layout) dividerAdvance() float64 {
	return 0.8 * lineHeight(10)
}

func totalsAdvance(grand bool) float64 {
	if grand {
		return 20
	}
	return 16
}

// wrap breaks s into lines no wider than width, splitting words that do not
// fit on a line of their own.
func (l *layout) wrap(s string, font Font, width float64) []string {
	var lines []string
	var current string
	for _, word := range strings.Fields(s) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if l.m.StringWidth(candidate, font) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		for l.m.StringWidth(word, font) > width {
			head, rest := l.breakWord(word, font, width)
			lines = append(lines, head)
			word = rest
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func (l *layout) breakWord(word string, font Font, width float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && l.m.StringWidth(string(runes[:n+1]), font) <= width {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

func formatMoney(currency string, amount decimal.Decimal) string {
	return currency + " " + amount.StringFixed(2)
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format(dateLayout)
}
