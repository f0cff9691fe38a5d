package invoice

// Font is a core PDF font face. Family names follow the standard 14 fonts.
type Font struct {
	Family string
	Bold   bool
	Size   float64
}

type Color struct {
	R, G, B uint8
}

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

type OpKind int

const (
	OpNewPage OpKind = iota
	OpText
	OpFillRect
	OpLine
)

// Op is a single drawing instruction in page coordinates (points, origin top
// left). Text ops describe one already-wrapped line placed in a box of width W
// and height H. Line ops run horizontally from X to X+W.
type Op struct {
	Kind  OpKind
	X, Y  float64
	W, H  float64
	Text  string
	Font  Font
	Color Color
	Align Align
}

type Document struct {
	Page  PageSpec
	Ops   []Op
	Pages int
}

type PageSpec struct {
	Width         float64
	Height        float64
	Margin        float64
	FooterReserve float64
}

// A4 is portrait A4 in points with the bill's margins.
func A4() PageSpec {
	return PageSpec{
		Width:         595.28,
		Height:        841.89,
		Margin:        50,
		FooterReserve: 110,
	}
}

// Measurer reports the advance width of text set in the given font.
type Measurer interface {
	StringWidth(text string, font Font) float64
}

func lineHeight(size float64) float64 {
	return size * 1.2
}
