package request

// ErrorKind is one of the closed set of failures shared by all entry points.
type ErrorKind int

const (
	KindInvalidURL ErrorKind = iota + 1
	KindResponseFailed
	KindDecodingDataFailed
	KindEncodingDataFailed
)

// Error is a terminal failure of one call.
// It carries only its kind, use errors.Is with the Err* values to check it.
type Error struct {
	kind ErrorKind
}

var (
	// ErrInvalidURL is returned if the request URL cannot be parsed or is not absolute.
	ErrInvalidURL = &Error{kind: KindInvalidURL}
	// ErrResponseFailed is returned if no HTTP response could be obtained or read.
	ErrResponseFailed = &Error{kind: KindResponseFailed}
	// ErrDecodingDataFailed is returned if the response cannot be decoded to text or to the requested shape.
	ErrDecodingDataFailed = &Error{kind: KindDecodingDataFailed}
	// ErrEncodingDataFailed is returned if data cannot be encoded to bytes.
	ErrEncodingDataFailed = &Error{kind: KindEncodingDataFailed}
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid URL"
	case KindResponseFailed:
		return "response failed"
	case KindDecodingDataFailed:
		return "decoding data failed"
	case KindEncodingDataFailed:
		return "encoding data failed"
	default:
		return "unknown error"
	}
}

func (e *Error) Error() string {
	return e.kind.String()
}

// Kind returns the failure kind.
func (e *Error) Kind() ErrorKind {
	return e.kind
}
