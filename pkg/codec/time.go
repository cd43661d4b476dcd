package codec

import (
	"fmt"
	"math"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/relvacode/iso8601"
)

// Time accepts an ISO 8601 string or a number of Unix seconds, null leaves the value untouched.
// It is always encoded as an RFC3339 string in UTC.
type Time time.Time

func (t *Time) UnmarshalJSON(data []byte) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	var v time.Time
	switch kind := iter.WhatIsNext(); kind {
	case jsoniter.NilValue:
		return nil
	case jsoniter.StringValue:
		parsed, err := iso8601.ParseString(iter.ReadString())
		if err != nil {
			return err
		}
		v = parsed
	case jsoniter.NumberValue:
		seconds := iter.ReadFloat64()
		if iter.Error != nil {
			return iter.Error
		}
		whole, frac := math.Modf(seconds)
		v = time.Unix(int64(whole), int64(frac*float64(time.Second)))
	default:
		return fmt.Errorf("time must be a string or a number, found %s", kindName(kind))
	}

	*t = Time(v.UTC())
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, t.String()), nil
}

func (t Time) String() string {
	return time.Time(t).UTC().Format(time.RFC3339)
}

// DurationSeconds is a duration in seconds, fractions are allowed, the number may be quoted.
type DurationSeconds time.Duration

func (d *DurationSeconds) UnmarshalJSON(data []byte) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	var seconds float64
	switch kind := iter.WhatIsNext(); kind {
	case jsoniter.NumberValue:
		seconds = iter.ReadFloat64()
		if iter.Error != nil {
			return iter.Error
		}
	case jsoniter.StringValue:
		v, err := strconv.ParseFloat(iter.ReadString(), 64)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		seconds = v
	default:
		return fmt.Errorf("duration must be a number of seconds, found %s", kindName(kind))
	}

	*d = DurationSeconds(math.Round(seconds * float64(time.Second)))
	return nil
}

func (d DurationSeconds) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// String returns the number of seconds, without a trailing zero fraction.
func (d DurationSeconds) String() string {
	return strconv.FormatFloat(time.Duration(d).Seconds(), 'f', -1, 64)
}
