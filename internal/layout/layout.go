// Package layout holds the records exchanged between pipeline stages:
// the PDF outline, per-page extraction records and classified layout elements.
package layout

import (
	"encoding/json"
	"fmt"
)

// Record types written to the raw extraction file.
const (
	RecordOutline = "outline"
	RecordPage    = "page"
)

// BBox is a rectangle in top-left-origin page space: x0, y0, x1, y1.
type BBox [4]float64

func (b BBox) Width() float64  { return b[2] - b[0] }
func (b BBox) Height() float64 { return b[3] - b[1] }

// OutlineEntry is one bookmark of the flattened PDF outline.
// It is serialized as the triple [level, title, page].
type OutlineEntry struct {
	Level int
	Title string
	Page  int // 1-based
}

func (e OutlineEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Level, e.Title, e.Page})
}

func (e *OutlineEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("outline entry: %w", err)
	}
	if len(raw) < 3 {
		return fmt.Errorf("outline entry: expected [level, title, page], got %d fields", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Level); err != nil {
		return fmt.Errorf("outline entry level: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Title); err != nil {
		return fmt.Errorf("outline entry title: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Page); err != nil {
		return fmt.Errorf("outline entry page: %w", err)
	}
	return nil
}

// TextRun is one contiguous span of text sharing font and size.
type TextRun struct {
	Text string  `json:"text"`
	Font string  `json:"font"`
	Size float64 `json:"size"`
	BBox BBox    `json:"bbox"`
}

// ImageRecord describes an image written to disk during extraction.
type ImageRecord struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ext    string `json:"ext"`
}

// PageMeta is the geometry of one page.
type PageMeta struct {
	Number   int     `json:"number"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// PageRecord is one "page" line of the raw extraction file.
type PageRecord struct {
	Type     string        `json:"type"`
	Meta     PageMeta      `json:"meta"`
	TextRuns []TextRun     `json:"text_runs"`
	Images   []ImageRecord `json:"images"`
}

// NewPageRecord returns an empty page record with non-nil slices so the
// JSON form always carries arrays.
func NewPageRecord(meta PageMeta) PageRecord {
	return PageRecord{
		Type:     RecordPage,
		Meta:     meta,
		TextRuns: []TextRun{},
		Images:   []ImageRecord{},
	}
}

// OutlineRecord is the "outline" line of the raw extraction file.
type OutlineRecord struct {
	Type string         `json:"type"`
	Data []OutlineEntry `json:"data"`
}

// Element is a text run or image with its predicted label.
//
// PageWidth, PageHeight and DocName only exist while features are computed;
// they are never written to the predicted layout file.
type Element struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	BBox    BBox   `json:"bbox"`
	Src     string `json:"src,omitempty"`
	Caption string `json:"caption,omitempty"`

	PageWidth  float64 `json:"-"`
	PageHeight float64 `json:"-"`
	DocName    string  `json:"-"`
}

// Page returns the 1-based page number encoded in the element id, or 0.
func (e Element) Page() int {
	return PageFromID(e.ID)
}

// Label parses the element's predicted type.
func (e Element) Label() Label {
	return ParseLabel(e.Type)
}
