package asset

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"reflect"
)

// ImageEncoder converts an image to bytes.
// Quality is in the (0, 1] range, 1 is the best quality.
type ImageEncoder interface {
	Encode(img image.Image, quality float64) ([]byte, error)
}

// ImageEncoderFunc is an adapter to use a function as the ImageEncoder.
type ImageEncoderFunc func(img image.Image, quality float64) ([]byte, error)

func (f ImageEncoderFunc) Encode(img image.Image, quality float64) ([]byte, error) {
	return f(img, quality)
}

type jpegEncoder struct{}

// JPEGEncoder encodes images as JPEG.
func JPEGEncoder() ImageEncoder {
	return jpegEncoder{}
}

func (jpegEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	if isNil(img) {
		return nil, fmt.Errorf("image is nil")
	}
	if bounds := img.Bounds(); bounds.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality(quality)}); err != nil {
		return nil, fmt.Errorf("cannot encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGQuality maps the (0, 1] quality to the JPEG 1-100 scale.
// Zero, negative or NaN quality means the best quality.
func JPEGQuality(quality float64) int {
	if math.IsNaN(quality) || quality <= 0 || quality >= 1 {
		return 100
	}
	return max(1, int(math.Round(quality*100)))
}

// isNil detects also a typed nil, for example (*image.RGBA)(nil).
func isNil(img image.Image) bool {
	if img == nil {
		return true
	}
	switch v := reflect.ValueOf(img); v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
