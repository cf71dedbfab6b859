package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// RawMarket is an untrusted market record exactly as decoded from an upstream
// feed. Field names and shapes vary by source, so it is kept as a generic map
// and read through the accessors below, none of which panic.
type RawMarket map[string]any

// Value returns the value at a dotted path such as "price.mid".
func (r RawMarket) Value(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the first non-empty string found under keys, in order.
func (r RawMarket) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r.Value(k)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return s
			}
		case json.Number:
			return s.String()
		case float64:
			return cast.ToString(s)
		}
	}
	return ""
}

// Number returns the value at path as a finite float. Numeric strings count;
// booleans and anything unparseable do not.
func (r RawMarket) Number(path string) (float64, bool) {
	v, ok := r.Value(path)
	if !ok {
		return 0, false
	}
	return ToNumber(v)
}

// Flag reports the boolean at key and whether it was present as a boolean.
func (r RawMarket) Flag(key string) (value bool, present bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// List returns the slice at key, decoding it first when the upstream sent the
// array JSON-encoded inside a string.
func (r RawMarket) List(key string) ([]any, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	switch l := v.(type) {
	case []any:
		return l, true
	case string:
		var decoded []any
		if err := json.Unmarshal([]byte(l), &decoded); err != nil {
			return nil, false
		}
		return decoded, true
	}
	return nil, false
}

// Time returns the first creation-style timestamp found under keys. RFC 3339
// strings, plain dates and epoch seconds or milliseconds are understood.
func (r RawMarket) Time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := r.Value(k)
		if !ok {
			continue
		}
		if s, isString := v.(string); isString {
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), true
				}
			}
		}
		n, ok := ToNumber(v)
		if !ok || n <= 0 {
			continue
		}
		// Anything past ~2001-09 in milliseconds is larger than 1e12.
		if n >= 1e12 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		return time.Unix(int64(n), 0).UTC(), true
	}
	return time.Time{}, false
}

// ToNumber coerces an untrusted JSON value into a finite float64.
func ToNumber(v any) (float64, bool) {
	var f float64
	var err error
	switch n := v.(type) {
	case nil, bool, map[string]any, []any:
		return 0, false
	case json.Number:
		f, err = n.Float64()
	default:
		f, err = cast.ToFloat64E(v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case RawMarket:
		return m, true
	}
	return nil, false
}

// Batch is one source's raw records from a single fetch.
type Batch struct {
	Source  string
	Markets []RawMarket
}
