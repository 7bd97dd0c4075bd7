// Package sizer determines an image's natural pixel dimensions for formats
// without an implicit intrinsic size.  Raster formats take their natural size
// from the decoded bitmap; only vector documents need resolution here.
package sizer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
	apperrors "github.com/FlepTheFlabbergasted/ngx-image-cropper/errors"
)

// Result is the outcome of a size resolution.
type Result struct {
	Size Dimensions
	// Override is true when Size must replace the decoded bitmap's size.
	// False means "defer to the decoded bitmap" (explicit width and height
	// attributes were present).
	Override bool
}

// Dimensions aliases core.Dimensions for readability at call sites.
type Dimensions = core.Dimensions

// Resolve determines natural dimensions for the given bytes and MIME type.
// Non-vector formats never need an override.  For vector documents:
//   - explicit width and height attributes on the root element → no override,
//   - otherwise a viewBox attribute → its third and fourth values,
//   - otherwise the resolution fails.
func Resolve(data []byte, mimeType string) (Result, error) {
	if core.MIMEToFormat(mimeType) != core.FormatSVG {
		return Result{}, nil
	}
	return resolveSVG(data)
}

func resolveSVG(data []byte) (Result, error) {
	root, err := rootElement(data)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CategorySize, "sizer.svg", err)
	}

	var widthAttr, heightAttr, viewBox string
	for _, attr := range root.Attr {
		switch strings.ToLower(attr.Name.Local) {
		case "width":
			widthAttr = attr.Value
		case "height":
			heightAttr = attr.Value
		case "viewbox":
			viewBox = attr.Value
		}
	}

	// Both explicit attributes present: the decoded bitmap already has the
	// right size, signal "no override".
	if widthAttr != "" && heightAttr != "" {
		return Result{}, nil
	}

	if viewBox == "" {
		return Result{}, apperrors.New(apperrors.CategorySize, "sizer.svg", apperrors.ErrNoViewBox)
	}
	parts := strings.Fields(strings.ReplaceAll(viewBox, ",", " "))
	if len(parts) != 4 {
		return Result{}, apperrors.New(apperrors.CategorySize, "sizer.svg",
			fmt.Errorf("malformed viewBox %q", viewBox))
	}
	w, errW := strconv.ParseFloat(parts[2], 64)
	h, errH := strconv.ParseFloat(parts[3], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Result{}, apperrors.New(apperrors.CategorySize, "sizer.svg",
			fmt.Errorf("malformed viewBox %q", viewBox))
	}
	return Result{Size: Dimensions{Width: w, Height: h}, Override: true}, nil
}

// rootElement returns the first start element of the document, which for a
// well-formed SVG is the <svg> root.
func rootElement(data []byte) (xml.StartElement, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, fmt.Errorf("no root element")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			if !strings.EqualFold(start.Name.Local, "svg") {
				return xml.StartElement{}, fmt.Errorf("root element is <%s>, want <svg>", start.Name.Local)
			}
			return start, nil
		}
	}
}
