package params

import (
	jsonlib "encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// FromAny converts loosely typed values to parameters.
//
// Scalars are converted by the cast package, nil is an empty string.
// Slices and maps are flattened recursively to "key[index]" and "key[subKey]" entries.
// An ordered map is kept as a single compact JSON value.
func FromAny(in map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range in {
		flatten(out, k, v)
	}
	return out
}

// FromStruct converts exported fields of a struct to parameters, see FromAny.
//
// The key is read from the "param" tag, the "json" tag is a fallback, "-" skips the field.
// The "omitempty" option skips a zero value. Embedded structs are inlined.
// If fields are specified, other keys are skipped.
func FromStruct(in any, fields ...string) map[string]string {
	values := make(map[string]any)
	structValues(reflect.ValueOf(in), values)
	if len(fields) > 0 {
		for k := range values {
			if !slices.Contains(fields, k) {
				delete(values, k)
			}
		}
	}
	return FromAny(values)
}

func flatten(out map[string]string, key string, v any) {
	if m, ok := v.(*orderedmap.OrderedMap); ok {
		// encoding/json output is compact, unlike the custom OrderedMap.MarshalJSON through json-iterator
		bytes, err := jsonlib.Marshal(m)
		if err != nil {
			panic(fmt.Errorf(`param "%s": %w`, key, err))
		}
		out[key] = string(bytes)
		return
	}

	value := reflect.ValueOf(v)
	switch {
	case v == nil:
		out[key] = ""
	case (value.Kind() == reflect.Slice || value.Kind() == reflect.Array) && value.Type().Elem().Kind() != reflect.Uint8:
		for i := range value.Len() {
			flatten(out, fmt.Sprintf("%s[%d]", key, i), value.Index(i).Interface())
		}
	case value.Kind() == reflect.Map && value.Type().Key().Kind() == reflect.String:
		for iter := value.MapRange(); iter.Next(); {
			flatten(out, fmt.Sprintf("%s[%s]", key, iter.Key().String()), iter.Value().Interface())
		}
	default:
		str, err := cast.ToStringE(v)
		if err != nil {
			panic(fmt.Errorf(`param "%s": %w`, key, err))
		}
		out[key] = str
	}
}

func structValues(in reflect.Value, out map[string]any) {
	for in.Kind() == reflect.Pointer || in.Kind() == reflect.Interface {
		if in.IsNil() {
			return
		}
		in = in.Elem()
	}
	if in.Kind() != reflect.Struct {
		panic(fmt.Errorf(`expected a struct, found %s`, in.Kind()))
	}

	for i := range in.NumField() {
		field, value := in.Type().Field(i), in.Field(i)
		if field.Anonymous {
			structValues(value, out)
			continue
		}
		if !field.IsExported() {
			continue
		}

		name, opts := fieldName(field)
		if name == "-" || (slices.Contains(opts, "omitempty") && value.IsZero()) {
			continue
		}
		out[name] = value.Interface()
	}
}

func fieldName(field reflect.StructField) (string, []string) {
	tag, ok := field.Tag.Lookup("param")
	if !ok {
		tag = field.Tag.Get("json")
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "" {
		return field.Name, parts[1:]
	}
	return parts[0], parts[1:]
}
