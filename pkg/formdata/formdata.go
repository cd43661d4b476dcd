// Package formdata builds multipart/form-data request bodies.
//
// A body consists of text fields and binary attachments (image, video, audio).
// Each binary kind has a fixed file name and content type.
// The boundary must be unique across the whole body, use NewBoundary.
package formdata

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
)

const (
	boundaryPrefix = "Boundary-"
	crlf           = "\r\n"
)

// Kind of the multipart field.
type Kind int

const (
	KindText Kind = iota
	KindImage
	KindVideo
	KindAudio
)

// Field is one part of the multipart body.
// Value is used by the text kind, Data by the binary kinds.
type Field struct {
	Key   string
	Kind  Kind
	Value string
	Data  []byte
}

// Text creates a text field.
func Text(key, value string) Field {
	return Field{Key: key, Kind: KindText, Value: value}
}

// Image creates an image attachment from encoded bytes.
func Image(key string, data []byte) Field {
	return Field{Key: key, Kind: KindImage, Data: data}
}

// Video creates a video attachment.
func Video(key string, data []byte) Field {
	return Field{Key: key, Kind: KindVideo, Data: data}
}

// Audio creates an audio attachment.
func Audio(key string, data []byte) Field {
	return Field{Key: key, Kind: KindAudio, Data: data}
}

// Filename returns the fixed file name of a binary kind.
func (k Kind) Filename() string {
	switch k {
	case KindImage:
		return "image.jpg"
	case KindVideo:
		return "video.mp4"
	case KindAudio:
		return "audio.m4a"
	default:
		return ""
	}
}

// ContentType returns the fixed content type of a binary kind.
func (k Kind) ContentType() string {
	switch k {
	case KindImage:
		return "image/jpg"
	case KindVideo:
		return "video/mp4"
	case KindAudio:
		return "audio/m4a"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// IsBinary returns true for the attachment kinds.
func (k Kind) IsBinary() bool {
	return k == KindImage || k == KindVideo || k == KindAudio
}

// NewBoundary generates a fresh boundary which doesn't occur in any of the fields.
func NewBoundary(fields ...Field) string {
	for {
		boundary := boundaryPrefix + strings.ToUpper(uuid.NewString())
		if !collides(boundary, fields) {
			return boundary
		}
	}
}

// ContentType returns the Content-Type header value for the boundary.
func ContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

// Build assembles the multipart body from the fields in the given order.
// The terminator "--{boundary}--" is appended once, after all fields.
func Build(boundary string, fields []Field) []byte {
	var body bytes.Buffer
	for _, f := range fields {
		body.WriteString("--" + boundary + crlf)
		if f.Kind.IsBinary() {
			body.WriteString(`Content-Disposition: form-data; name="` + f.Key + `"; filename="` + f.Kind.Filename() + `"` + crlf)
			body.WriteString("Content-Type: " + f.Kind.ContentType() + crlf + crlf)
			body.Write(f.Data)
		} else {
			body.WriteString(`Content-Disposition: form-data; name="` + f.Key + `"` + crlf + crlf)
			body.WriteString(f.Value)
		}
		body.WriteString(crlf)
	}
	body.WriteString("--" + boundary + "--" + crlf)
	return body.Bytes()
}

func collides(boundary string, fields []Field) bool {
	b := []byte(boundary)
	for _, f := range fields {
		if strings.Contains(f.Key, boundary) || strings.Contains(f.Value, boundary) || bytes.Contains(f.Data, b) {
			return true
		}
	}
	return false
}
