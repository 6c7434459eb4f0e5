package layout

import (
	"fmt"
	"regexp"
	"strconv"
)

var pageIDPattern = regexp.MustCompile(`^p(\d+)(?:_|$)`)

// TextID builds the id of the ordinal-th text run, found on page.
func TextID(page, ordinal int) string {
	return fmt.Sprintf("p%d_b%d", page, ordinal)
}

// ImageID builds the id of the ordinal-th image element, found on page.
func ImageID(page, ordinal int) string {
	return fmt.Sprintf("p%d_i%d", page, ordinal)
}

// PageFromID extracts the page number from ids like "p12_b345".
// Ids that do not follow the pattern yield 0.
func PageFromID(id string) int {
	page, ok := ParsePageID(id)
	if !ok {
		return 0
	}
	return page
}

// ParsePageID is PageFromID with an explicit match flag.
func ParsePageID(id string) (int, bool) {
	m := pageIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
