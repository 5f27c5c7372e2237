// Package visual turns label images into canonical standard identifiers.
//
// Detectors are external inference engines reached through the Detector
// contract; the Canonicalizer is a pure function over their output.
package visual

import (
	"context"
	"net/http"
)

// Box is an optional detection region in pixels
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Label is one raw detector label
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Box        *Box    `json:"box,omitempty"`
}

// Detection is the raw output of a detector for one image
type Detection struct {
	Labels         []Label `json:"labels"`
	RawContextText string  `json:"raw_context_text"`
	Detector       string  `json:"detector"`
}

// Image is a rendered page or label photo
type Image struct {
	Name string
	MIME string
	Data []byte
}

// NewImage wraps raw bytes, sniffing the MIME type
func NewImage(name string, data []byte) Image {
	return Image{Name: name, MIME: http.DetectContentType(data), Data: data}
}

// Detector runs object/logo detection and OCR on an image.
// Implementations must be safe for concurrent use; wrap engines that are
// not with Serialized.
type Detector interface {
	Name() string
	Detect(ctx context.Context, img Image) (*Detection, error)
}
