package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

func TestStandardScalerCentersColumns(t *testing.T) {
	s := &StandardScaler{}
	out, err := s.FitTransform([][]float64{{1, 5}, {3, 5}, {5, 5}})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, s.Mean[0], 1e-9)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	var sum float64
	for _, r := range out {
		sum += r[0]
		assert.Equal(t, 0.0, r[1])
	}
	assert.InDelta(t, 0.0, sum, 1e-9)
}

func TestStandardScalerErrors(t *testing.T) {
	var s StandardScaler
	_, err := s.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.ErrorIs(t, s.Fit(nil), ErrNoSamples)

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	_, err = s.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestKNNPredictsTrainingPoints(t *testing.T) {
	m := NewKNN(3)
	rows := [][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}, {20, 0}}
	labels := []string{"paragraph", "paragraph", "heading_1", "heading_1", "header"}
	require.NoError(t, m.Fit(rows, labels))

	pred, err := m.Predict(rows)
	require.NoError(t, err)
	assert.Equal(t, labels, pred)
	assert.Equal(t, []string{"header", "heading_1", "paragraph"}, m.Classes())
}

func TestKNNBalancedWeights(t *testing.T) {
	m := NewKNN(0)
	require.NoError(t, m.Fit([][]float64{{0}, {1}, {2}, {3}}, []string{"a", "a", "a", "b"}))
	assert.Equal(t, DefaultNeighbors, m.K)
	assert.InDelta(t, 4.0/6.0, m.ClassWeight["a"], 1e-9)
	assert.InDelta(t, 2.0, m.ClassWeight["b"], 1e-9)
}

func TestKNNUnfitted(t *testing.T) {
	_, err := NewKNN(1).Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := &StandardScaler{}
	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 6}}))
	m := NewKNN(1)
	require.NoError(t, m.Fit([][]float64{{-1, -1}, {1, 1}}, []string{"paragraph", "heading"}))

	mp := filepath.Join(dir, "model.bin")
	sp := filepath.Join(dir, "scaler.bin")
	require.NoError(t, SaveModel(mp, m))
	require.NoError(t, SaveScaler(sp, s))

	lm, err := LoadModel(mp)
	require.NoError(t, err)
	ls, err := LoadScaler(sp)
	require.NoError(t, err)

	p := Pipeline{Scaler: ls, Model: lm}
	pred, err := p.Predict([][]float64{{3, 6}, {1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"heading", "paragraph"}, pred)
}

func TestLoadModelRejectsScalerArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.bin")
	s := &StandardScaler{Mean: []float64{0}, Scale: []float64{1}}
	require.NoError(t, SaveScaler(path, s))
	_, err := LoadModel(path)
	assert.Error(t, err)
}

func TestStratifiedSplitKeepsEveryClassInTrain(t *testing.T) {
	var labels []string
	for i := 0; i < 8; i++ {
		labels = append(labels, "paragraph")
	}
	labels = append(labels, "heading", "heading", "header", "header", "header")

	train, test := StratifiedSplit(labels, 0.25, 42)
	assert.Len(t, append(train, test...), len(labels))

	inTrain := map[string]int{}
	inTest := map[string]int{}
	for _, i := range train {
		inTrain[labels[i]]++
	}
	for _, i := range test {
		inTest[labels[i]]++
	}
	assert.Equal(t, 6, inTrain["paragraph"])
	assert.Equal(t, 2, inTest["paragraph"])
	assert.Equal(t, 1, inTrain["heading"])
	assert.Equal(t, 1, inTest["heading"])
	assert.GreaterOrEqual(t, inTrain["header"], 1)

	again, _ := StratifiedSplit(labels, 0.25, 42)
	assert.Equal(t, train, again, "same seed, same split")
}

func TestEvaluate(t *testing.T) {
	r := Evaluate(
		[]string{"a", "a", "b", "b"},
		[]string{"a", "b", "b", "b"},
	)
	assert.Equal(t, 4, r.Total)
	assert.InDelta(t, 0.75, r.Accuracy, 1e-9)
	require.Len(t, r.Labels, 2)
	assert.Equal(t, "a", r.Labels[0].Label)
	assert.InDelta(t, 1.0, r.Labels[0].Precision, 1e-9)
	assert.InDelta(t, 0.5, r.Labels[0].Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, r.Labels[1].Precision, 1e-9)
	assert.Contains(t, r.String(), "accuracy")
}

func elements(labels ...string) []layout.Element {
	out := make([]layout.Element, len(labels))
	for i, l := range labels {
		out[i] = layout.Element{
			ID:         layout.TextID(1, i),
			Type:       l,
			Text:       l,
			BBox:       layout.BBox{10, float64(i * 20), 200, float64(i*20 + 12)},
			PageWidth:  600,
			PageHeight: 800,
		}
	}
	return out
}

func TestTrainDropsRareLabels(t *testing.T) {
	els := elements("paragraph", "paragraph", "paragraph", "paragraph", "heading", "heading", "footer")
	res, err := Train(els, DefaultTrainOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"footer"}, res.Dropped)
	assert.Equal(t, 6, res.TrainRows+res.TestRows)
	assert.NotContains(t, res.Model.Classes(), "footer")
	assert.Equal(t, LabelCount{Label: "paragraph", Count: 4}, res.Distribution[0])
}

func TestTrainNoSamples(t *testing.T) {
	_, err := Train(elements("a", "b", "c"), DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = Train(nil, DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestLoadLabeled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled.json")
	data := `{
  "zeta.pdf": {"document_analysis": {"pages": [{"elements": [
    {"id": "p1_b0", "type": "paragraph", "text": "z", "bbox": [0, 0, 100, 50]}
  ]}]}},
  "alpha.pdf": {"document_analysis": {"pages": [{"elements": [
    {"id": "p1_b0", "type": "heading_1", "text": "A", "bbox": [0, 0, 300, 40]},
    {"id": "p1_b1", "type": "paragraph", "text": "b", "bbox": [0, 50, 250, 700]}
  ]}]}}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	els, err := LoadLabeled(path)
	require.NoError(t, err)
	require.Len(t, els, 3)
	assert.Equal(t, "alpha.pdf", els[0].DocName)
	assert.Equal(t, 300.0, els[0].PageWidth)
	assert.Equal(t, 700.0, els[1].PageHeight)
	assert.Equal(t, "zeta.pdf", els[2].DocName)
}
