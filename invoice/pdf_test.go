package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	r := NewRenderer(time.UTC)
	r.Compress = false

	out, err := r.Render(chairOrder(), generatedAt)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "FURNITO")
	assert.Contains(t, string(out), "INR 200.00")
	assert.Contains(t, string(out), "INR 50.00")
	assert.Contains(t, string(out), "INR 250.00")
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer(time.FixedZone("IST", 5*3600+1800))

	a, err := r.Render(orderWithItems(40), generatedAt)
	require.NoError(t, err)
	b, err := r.Render(orderWithItems(40), generatedAt)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderNilOrder(t *testing.T) {
	_, err := NewRenderer(nil).Render(nil, generatedAt)
	assert.Error(t, err)
}

func TestFpdfMeasurerUsesFontFace(t *testing.T) {
	m := newFpdfMeasurer(fpdf.New("P", "pt", "A4", ""))

	regular := m.StringWidth("Unit Price", fontBody)
	bold := m.StringWidth("Unit Price", fontBodyBold)
	assert.Greater(t, regular, 0.0)
	assert.Greater(t, bold, regular)
	assert.InDelta(t, 2*m.StringWidth("Chair", fontBody), m.StringWidth("Chair", Font{Family: fontFamily, Size: 20}), 1e-9)
}
