package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

func TestFeaturize_Basic(t *testing.T) {
	el := layout.Element{
		Text:       "Hello World",
		BBox:       layout.BBox{10, 100, 110, 120},
		PageHeight: 800,
	}
	f := Featurize(el)

	assert.Equal(t, 100.0, f.Width)
	assert.Equal(t, 20.0, f.Height)
	assert.Equal(t, 10.0, f.X0)
	assert.InDelta(t, 0.125, f.RelY0, 1e-12)
	assert.Equal(t, 11.0, f.TextLen)
	assert.Equal(t, 2.0, f.WordCount)
	assert.InDelta(t, 2.0/11.0, f.CapRatio, 1e-5)
}

func TestFeaturize_EmptyTextHasZeroCapRatio(t *testing.T) {
	f := Featurize(layout.Element{BBox: layout.BBox{0, 0, 1, 1}, PageHeight: 10})
	assert.Equal(t, 0.0, f.TextLen)
	assert.Equal(t, 0.0, f.WordCount)
	assert.Equal(t, 0.0, f.CapRatio)
}

func TestFeaturize_ZeroPageHeightUsesOne(t *testing.T) {
	f := Featurize(layout.Element{Text: "x", BBox: layout.BBox{0, 50, 1, 60}})
	assert.Equal(t, 50.0, f.RelY0)
}

func TestFeaturize_CountsRunesNotBytes(t *testing.T) {
	f := Featurize(layout.Element{Text: "ÉCOLE é", PageHeight: 1})
	assert.Equal(t, 7.0, f.TextLen)
	assert.InDelta(t, 5.0/7.0, f.CapRatio, 1e-5)
}

func TestVectorMatchesNames(t *testing.T) {
	f := Features{Width: 1, Height: 2, X0: 3, RelY0: 4, TextLen: 5, WordCount: 6, CapRatio: 7}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, f.Vector())
	assert.Equal(t, []string{"width", "height", "x0", "rel_y0", "text_len", "word_count", "cap_ratio"}, Names())
	assert.Len(t, Names(), Dim)
}

func TestMatrixIsColumnStable(t *testing.T) {
	els := []layout.Element{
		{Text: "A", BBox: layout.BBox{0, 0, 1, 1}, PageHeight: 2},
		{Text: "bb cc", BBox: layout.BBox{1, 1, 3, 3}, PageHeight: 2},
	}
	rows := Matrix(els)
	assert.Len(t, rows, 2)
	for _, r := range rows {
		assert.Len(t, r, Dim)
	}
	assert.Equal(t, 2.0, rows[1][5])
}
