package codec

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/keboola/go-netkit/pkg/request"
)

var (
	validate     *validator.Validate //nolint:gochecknoglobals
	validateOnce sync.Once           //nolint:gochecknoglobals
)

// DecodeObject decodes the body of a successful outcome as a single JSON object.
//
// It returns request.ErrResponseFailed if the outcome is not successful,
// request.ErrEncodingDataFailed if the body cannot be converted back to bytes,
// and request.ErrDecodingDataFailed if the body is empty, is not a JSON object or does not match T.
// A partially decoded value is never returned.
func DecodeObject[T any](outcome request.Outcome) (T, error) {
	var empty T
	if !outcome.Success {
		return empty, request.ErrResponseFailed
	}
	if outcome.Body == "" {
		return empty, request.ErrDecodingDataFailed
	}

	data, err := bodyBytes(outcome.Body)
	if err != nil {
		return empty, err
	}

	out, err := decodeObject[T](data)
	if err != nil {
		return empty, request.ErrDecodingDataFailed
	}
	return out, nil
}

// DecodeObjectArray decodes the body of a successful outcome as a JSON array of objects.
//
// Errors are the same as in DecodeObject, but an empty body is not special-cased,
// it simply fails JSON parsing.
func DecodeObjectArray[T any](outcome request.Outcome) ([]T, error) {
	if !outcome.Success {
		return nil, request.ErrResponseFailed
	}

	data, err := bodyBytes(outcome.Body)
	if err != nil {
		return nil, err
	}

	out, err := decodeObjectArray[T](data)
	if err != nil {
		return nil, request.ErrDecodingDataFailed
	}
	return out, nil
}

func bodyBytes(body string) ([]byte, error) {
	if !utf8.ValidString(body) {
		return nil, request.ErrEncodingDataFailed
	}
	return []byte(body), nil
}

func decodeObject[T any](data []byte) (out T, err error) {
	if kind := jsonKind(data); kind != jsoniter.ObjectValue {
		return out, fmt.Errorf("expected JSON object, found %s", kindName(kind))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	if err := validateValue(out); err != nil {
		return out, err
	}
	return out, nil
}

func decodeObjectArray[T any](data []byte) ([]T, error) {
	if kind := jsonKind(data); kind != jsoniter.ArrayValue {
		return nil, fmt.Errorf("expected JSON array, found %s", kindName(kind))
	}

	var items []jsoniter.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		v, err := decodeObject[T](item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// jsonKind returns the kind of the first JSON value in data.
func jsonKind(data []byte) jsoniter.ValueType {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return jsoniter.InvalidValue
	}
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)
	return iter.WhatIsNext()
}

func kindName(kind jsoniter.ValueType) string {
	switch kind {
	case jsoniter.StringValue:
		return "string"
	case jsoniter.NumberValue:
		return "number"
	case jsoniter.NilValue:
		return "null"
	case jsoniter.BoolValue:
		return "bool"
	case jsoniter.ArrayValue:
		return "array"
	case jsoniter.ObjectValue:
		return "object"
	default:
		return "invalid value"
	}
}

// validateValue checks struct rules defined by the "validate" tags, other values are not validated.
func validateValue(v any) error {
	value := reflect.ValueOf(v)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}

	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate.Struct(value.Interface())
}
