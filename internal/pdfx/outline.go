package pdfx

import (
	pdflib "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/dgallion1/pdf2epub/internal/layout"
)

// maxOutlineItems bounds the outline walk so a cyclic First/Next chain in a
// broken file cannot loop forever.
const maxOutlineItems = 100000

type outlineReader struct {
	root  pdflib.Value
	pages map[string]int // page dictionary fingerprint -> 1-based number
	log   zerolog.Logger
	seen  int
	out   []layout.OutlineEntry
}

// readOutline flattens the document outline depth-first. Items whose
// destination cannot be resolved to a page are skipped with a warning.
func readOutline(r *pdflib.Reader, log zerolog.Logger) []layout.OutlineEntry {
	root := r.Trailer().Key("Root")
	first := root.Key("Outlines").Key("First")
	if first.IsNull() {
		return []layout.OutlineEntry{}
	}
	o := &outlineReader{root: root, pages: pageIndex(r), log: log, out: []layout.OutlineEntry{}}
	o.walk(first, 1)
	return o.out
}

func pageIndex(r *pdflib.Reader) map[string]int {
	idx := make(map[string]int, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		fp := r.Page(i).V.String()
		if _, dup := idx[fp]; !dup {
			idx[fp] = i
		}
	}
	return idx
}

func (o *outlineReader) walk(item pdflib.Value, depth int) {
	for ; !item.IsNull() && o.seen < maxOutlineItems; item = item.Key("Next") {
		o.seen++
		title := item.Key("Title").Text()
		if page, ok := o.resolve(item); ok {
			o.out = append(o.out, layout.OutlineEntry{Level: depth, Title: title, Page: page})
		} else {
			o.log.Warn().Str("title", title).Int("level", depth).Msg("outline item has no resolvable destination, skipping")
		}
		if kid := item.Key("First"); !kid.IsNull() {
			o.walk(kid, depth+1)
		}
	}
}

func (o *outlineReader) resolve(item pdflib.Value) (int, bool) {
	dest := item.Key("Dest")
	if dest.IsNull() {
		action := item.Key("A")
		if action.Key("S").Name() != "GoTo" {
			return 0, false
		}
		dest = action.Key("D")
	}
	return o.destPage(dest, 0)
}

func (o *outlineReader) destPage(dest pdflib.Value, hops int) (int, bool) {
	if hops > 4 {
		return 0, false
	}
	switch dest.Kind() {
	case pdflib.Name:
		return o.destPage(o.named(dest.Name()), hops+1)
	case pdflib.String:
		return o.destPage(o.named(dest.RawString()), hops+1)
	case pdflib.Dict:
		return o.destPage(dest.Key("D"), hops+1)
	case pdflib.Array:
		if dest.Len() == 0 {
			return 0, false
		}
		target := dest.Index(0)
		if target.Kind() == pdflib.Integer {
			// remote-style destination: zero-based page index
			return int(target.Int64()) + 1, true
		}
		page, ok := o.pages[target.String()]
		return page, ok
	}
	return 0, false
}

// named looks a destination name up in the legacy /Dests dictionary, then
// in the /Names /Dests name tree.
func (o *outlineReader) named(name string) pdflib.Value {
	if d := o.root.Key("Dests").Key(name); !d.IsNull() {
		return d
	}
	return lookupNameTree(o.root.Key("Names").Key("Dests"), name, 0)
}

func lookupNameTree(node pdflib.Value, name string, depth int) pdflib.Value {
	if node.IsNull() || depth > 32 {
		return pdflib.Value{}
	}
	names := node.Key("Names")
	for i := 0; i+1 < names.Len(); i += 2 {
		k := names.Index(i)
		if k.RawString() == name || k.Text() == name {
			return names.Index(i + 1)
		}
	}
	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		kid := kids.Index(i)
		if lim := kid.Key("Limits"); lim.Len() == 2 {
			if name < lim.Index(0).RawString() || name > lim.Index(1).RawString() {
				continue
			}
		}
		if v := lookupNameTree(kid, name, depth+1); !v.IsNull() {
			return v
		}
	}
	return pdflib.Value{}
}
