package pdfx

import (
	"math"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

const (
	// gapFactor is the horizontal gap, relative to font size, past which a
	// space is inserted between glyphs of the same run.
	gapFactor = 0.2
	// baselineTolerance is how far two glyph baselines may differ, relative
	// to font size, and still be on the same line.
	baselineTolerance = 0.1
)

// Frame is the page box glyph coordinates are measured against.
type Frame struct {
	X0, Y0, X1, Y1 float64
}

func (f Frame) Width() float64  { return f.X1 - f.X0 }
func (f Frame) Height() float64 { return f.Y1 - f.Y0 }

type runBuilder struct {
	font     string
	size     float64
	baseline float64
	x0, x1   float64
	sb       strings.Builder
}

func (b *runBuilder) accepts(t pdflib.Text) bool {
	if t.Font != b.font || t.FontSize != b.size {
		return false
	}
	return math.Abs(t.Y-b.baseline) <= baselineTolerance*math.Max(b.size, 1)
}

func (b *runBuilder) add(t pdflib.Text) {
	if b.sb.Len() > 0 && t.X-b.x1 > gapFactor*b.size && !strings.HasSuffix(b.sb.String(), " ") && !strings.HasPrefix(t.S, " ") {
		b.sb.WriteByte(' ')
	}
	b.sb.WriteString(t.S)
	b.x0 = math.Min(b.x0, t.X)
	b.x1 = math.Max(b.x1, t.X+t.W)
}

func (b *runBuilder) run(frame Frame) (layout.TextRun, bool) {
	text := strings.TrimSpace(norm.NFC.String(b.sb.String()))
	if text == "" {
		return layout.TextRun{}, false
	}
	top := frame.Y1
	return layout.TextRun{
		Text: text,
		Font: b.font,
		Size: b.size,
		BBox: layout.BBox{
			b.x0 - frame.X0,
			top - (b.baseline + b.size),
			b.x1 - frame.X0,
			top - b.baseline,
		},
	}, true
}

// GroupRuns merges consecutive glyphs sharing font, size and baseline into
// text runs with top-left-origin bounding boxes. Whitespace-only runs are
// dropped and run text is NFC normalized.
func GroupRuns(glyphs []pdflib.Text, frame Frame) []layout.TextRun {
	var (
		runs []layout.TextRun
		cur  *runBuilder
	)
	flush := func() {
		if cur == nil {
			return
		}
		if r, ok := cur.run(frame); ok {
			runs = append(runs, r)
		}
		cur = nil
	}
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if cur != nil && !cur.accepts(g) {
			flush()
		}
		if cur == nil {
			cur = &runBuilder{font: g.Font, size: g.FontSize, baseline: g.Y, x0: g.X, x1: g.X + g.W}
		}
		cur.add(g)
	}
	flush()
	return runs
}
