package pdfx

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"sort"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/pdf2epub/internal/jsonio"
	"github.com/dgallion1/pdf2epub/internal/layout"
)

// rawImage is decoded sample data of one image XObject.
type rawImage struct {
	Width, Height int
	Components    int // 1 gray, 3 RGB, 4 CMYK
	Data          []byte
}

// ToImage converts 8-bit samples into an image.Image.
func (ri rawImage) ToImage() (image.Image, error) {
	want := ri.Width * ri.Height * ri.Components
	if ri.Width <= 0 || ri.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", ri.Width, ri.Height)
	}
	if len(ri.Data) < want {
		return nil, fmt.Errorf("image data truncated: have %d bytes, want %d", len(ri.Data), want)
	}
	rect := image.Rect(0, 0, ri.Width, ri.Height)
	switch ri.Components {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, ri.Data[:want])
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < want; i, j = i+3, j+4 {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = ri.Data[i], ri.Data[i+1], ri.Data[i+2], 0xff
		}
		return img, nil
	case 4:
		img := image.NewCMYK(rect)
		copy(img.Pix, ri.Data[:want])
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported component count %d", ri.Components)
	}
}

func components(cs pdflib.Value) int {
	switch cs.Kind() {
	case pdflib.Name:
		switch cs.Name() {
		case "DeviceGray", "CalGray", "G":
			return 1
		case "DeviceRGB", "CalRGB", "RGB":
			return 3
		case "DeviceCMYK", "CMYK":
			return 4
		}
	case pdflib.Array:
		if cs.Len() > 1 && cs.Index(0).Name() == "ICCBased" {
			return int(cs.Index(1).Key("N").Int64())
		}
	}
	return 0
}

// decodeImage reads an image XObject. The pdf library panics on filters it
// does not implement (DCTDecode, JPXDecode), so panics become errors.
func decodeImage(x pdflib.Value) (ri rawImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode image stream: %v", r)
		}
	}()
	if bpc := x.Key("BitsPerComponent").Int64(); bpc != 8 {
		return ri, fmt.Errorf("unsupported bits per component %d", bpc)
	}
	ri.Width = int(x.Key("Width").Int64())
	ri.Height = int(x.Key("Height").Int64())
	ri.Components = components(x.Key("ColorSpace"))
	if ri.Components == 0 {
		return ri, fmt.Errorf("unsupported color space %s", x.Key("ColorSpace"))
	}
	rc := x.Reader()
	defer rc.Close()
	ri.Data, err = io.ReadAll(rc)
	if err != nil {
		return ri, fmt.Errorf("read image stream: %w", err)
	}
	return ri, nil
}

// imageXObjects returns the names of a page's image XObjects in a stable order.
func imageXObjects(page pdflib.Page) (pdflib.Value, []string) {
	xobjs := page.Resources().Key("XObject")
	var names []string
	for _, k := range xobjs.Keys() {
		if xobjs.Key(k).Key("Subtype").Name() == "Image" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return xobjs, names
}

// writePNG encodes img to dir/name atomically.
func writePNG(dir, name string, img image.Image) (string, error) {
	path := filepath.Join(dir, name)
	f, err := jsonio.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Abort()
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := f.Commit(); err != nil {
		return "", err
	}
	return path, nil
}

func imageName(page, k int) string {
	return fmt.Sprintf("page%d_img%d.png", page, k)
}

func imageRecord(name, path string, ri rawImage) layout.ImageRecord {
	return layout.ImageRecord{Name: name, Path: path, Width: ri.Width, Height: ri.Height, Ext: "png"}
}
