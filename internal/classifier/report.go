package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// LabelScore is one row of an evaluation report.
type LabelScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarizes predictions against ground truth.
type Report struct {
	Labels   []LabelScore `json:"labels"`
	Accuracy float64      `json:"accuracy"`
	Total    int          `json:"total"`
}

// Evaluate compares predicted labels with the true ones.
func Evaluate(truth, pred []string) Report {
	n := min(len(truth), len(pred))
	tp := make(map[string]int)
	predicted := make(map[string]int)
	support := make(map[string]int)
	correct := 0
	for i := 0; i < n; i++ {
		support[truth[i]]++
		predicted[pred[i]]++
		if truth[i] == pred[i] {
			tp[truth[i]]++
			correct++
		}
	}

	seen := make(map[string]bool)
	for l := range support {
		seen[l] = true
	}
	for l := range predicted {
		seen[l] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	r := Report{Total: n}
	if n > 0 {
		r.Accuracy = float64(correct) / float64(n)
	}
	for _, l := range labels {
		s := LabelScore{Label: l, Support: support[l]}
		if predicted[l] > 0 {
			s.Precision = float64(tp[l]) / float64(predicted[l])
		}
		if support[l] > 0 {
			s.Recall = float64(tp[l]) / float64(support[l])
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		r.Labels = append(r.Labels, s)
	}
	return r
}

// String renders the report as a fixed-width table.
func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-20s %9s %9s %9s %9s\n", "label", "precision", "recall", "f1", "support")
	for _, s := range r.Labels {
		fmt.Fprintf(&sb, "%-20s %9.2f %9.2f %9.2f %9d\n", s.Label, s.Precision, s.Recall, s.F1, s.Support)
	}
	fmt.Fprintf(&sb, "%-20s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.Total)
	return sb.String()
}
