// Package features turns a layout element and its page geometry into the
// fixed numeric record the layout classifier is trained and queried on.
package features

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

// epsilon keeps cap_ratio finite for empty text.
const epsilon = 1e-5

// names is the column order shared by training and inference.
var names = []string{"width", "height", "x0", "rel_y0", "text_len", "word_count", "cap_ratio"}

// Names returns the feature column names in vector order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Dim is the length of a feature vector.
const Dim = 7

// Features is one element's feature record.
type Features struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	X0        float64 `json:"x0"`
	RelY0     float64 `json:"rel_y0"`
	TextLen   float64 `json:"text_len"`
	WordCount float64 `json:"word_count"`
	CapRatio  float64 `json:"cap_ratio"`
}

// Vector returns the features in Names() order.
func (f Features) Vector() []float64 {
	return []float64{f.Width, f.Height, f.X0, f.RelY0, f.TextLen, f.WordCount, f.CapRatio}
}

// Featurize computes the features of el. A non-positive page height is
// treated as 1.
func Featurize(el layout.Element) Features {
	b := el.BBox
	pageHeight := el.PageHeight
	if pageHeight <= 0 {
		pageHeight = 1
	}

	textLen := utf8.RuneCountInString(el.Text)
	upper := 0
	for _, r := range el.Text {
		if unicode.IsUpper(r) {
			upper++
		}
	}

	return Features{
		Width:     b[2] - b[0],
		Height:    b[3] - b[1],
		X0:        b[0],
		RelY0:     b[1] / pageHeight,
		TextLen:   float64(textLen),
		WordCount: float64(len(strings.Fields(el.Text))),
		CapRatio:  float64(upper) / (float64(textLen) + epsilon),
	}
}

// Matrix featurizes every element and returns the rows as vectors.
func Matrix(elements []layout.Element) [][]float64 {
	rows := make([][]float64, len(elements))
	for i, el := range elements {
		rows[i] = Featurize(el).Vector()
	}
	return rows
}
