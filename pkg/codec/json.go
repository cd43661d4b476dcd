// Package codec decodes response bodies into typed values.
//
// JSON is processed by json-iterator configured to be compatible with the standard library.
// Decoded structs are validated by go-playground/validator, use "validate" struct tags to define
// required fields and other rules.
package codec

import (
	jsoniter "github.com/json-iterator/go"
)

// json - replacement of the standard encoding/json library, it is faster for larger responses.
var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// Marshal encodes the value to JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON to the value.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
