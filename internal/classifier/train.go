package classifier

import (
	"fmt"
	"sort"

	"github.com/dgallion1/pdf2epub/internal/features"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

// TrainOptions controls the train stage.
type TrainOptions struct {
	TestSize      float64
	Seed          uint64
	Neighbors     int
	MinClassCount int // labels with this many samples or fewer are dropped
}

// DefaultTrainOptions mirrors the stage defaults.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{TestSize: 0.25, Seed: 42, Neighbors: DefaultNeighbors, MinClassCount: 1}
}

// LabelCount is one entry of the label distribution.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TrainResult is what a training run produces.
type TrainResult struct {
	Model        *KNN
	Scaler       *StandardScaler
	Distribution []LabelCount // before filtering
	Dropped      []string     // labels removed as too rare
	TrainRows    int
	TestRows     int
	Report       Report
}

// Distribution counts elements per label, sorted by descending count then
// label.
func Distribution(elements []layout.Element) []LabelCount {
	counts := make(map[string]int)
	for _, el := range elements {
		counts[el.Type]++
	}
	out := make([]LabelCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, LabelCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Train fits a scaler and classifier on labeled elements and evaluates them
// on a stratified held-out split.
func Train(elements []layout.Element, opts TrainOptions) (*TrainResult, error) {
	res := &TrainResult{Distribution: Distribution(elements)}

	rare := make(map[string]bool)
	for _, lc := range res.Distribution {
		if lc.Count <= opts.MinClassCount {
			rare[lc.Label] = true
			res.Dropped = append(res.Dropped, lc.Label)
		}
	}
	sort.Strings(res.Dropped)

	var kept []layout.Element
	for _, el := range elements {
		if !rare[el.Type] {
			kept = append(kept, el)
		}
	}
	if len(kept) == 0 {
		return nil, ErrNoSamples
	}

	rows := features.Matrix(kept)
	labels := make([]string, len(kept))
	for i, el := range kept {
		labels[i] = el.Type
	}

	trainIdx, testIdx := StratifiedSplit(labels, opts.TestSize, opts.Seed)
	res.TrainRows, res.TestRows = len(trainIdx), len(testIdx)

	trainX, trainY := pick(rows, labels, trainIdx)
	res.Scaler = &StandardScaler{}
	scaled, err := res.Scaler.FitTransform(trainX)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	res.Model = NewKNN(opts.Neighbors)
	if err := res.Model.Fit(scaled, trainY); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	if len(testIdx) > 0 {
		testX, testY := pick(rows, labels, testIdx)
		pred, err := Pipeline{Scaler: res.Scaler, Model: res.Model}.Predict(testX)
		if err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
		res.Report = Evaluate(testY, pred)
	}
	return res, nil
}

func pick(rows [][]float64, labels []string, idx []int) ([][]float64, []string) {
	x := make([][]float64, len(idx))
	y := make([]string, len(idx))
	for i, j := range idx {
		x[i] = rows[j]
		y[i] = labels[j]
	}
	return x, y
}
