package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Shape identifies how a content-store record lays out its fields.
type Shape int

const (
	// ShapeFlat records carry their fields at the top level.
	ShapeFlat Shape = iota
	// ShapeWrapped records nest their fields under "attributes".
	ShapeWrapped
)

func (s Shape) String() string {
	if s == ShapeWrapped {
		return "wrapped"
	}
	return "flat"
}

// Record is one entry of a list response, decoded once at ingestion.
// Attrs always holds the field map regardless of Shape.
type Record struct {
	Shape      Shape
	ID         int
	DocumentID string
	Attrs      map[string]any
}

// UnmarshalJSON resolves the flat/wrapped shape: attrs = record.attributes ?? record.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if raw == nil {
		return nil
	}
	*r = recordFromMap(raw)
	return nil
}

func recordFromMap(raw map[string]any) Record {
	rec := Record{Shape: ShapeFlat, Attrs: raw}
	if inner, ok := raw["attributes"].(map[string]any); ok {
		rec.Shape = ShapeWrapped
		rec.Attrs = inner
	}
	rec.ID = toInt(raw["id"], toInt(rec.Attrs["id"], 0))
	rec.DocumentID = toString(raw["documentId"])
	if rec.DocumentID == "" {
		rec.DocumentID = toString(rec.Attrs["documentId"])
	}
	return rec
}

// String returns the attribute as a string, or "" when missing or not scalar.
func (r Record) String(key string) string { return toString(r.Attrs[key]) }

// FirstString returns the first non-empty string among keys.
func (r Record) FirstString(keys ...string) string {
	for _, k := range keys {
		if v := r.String(k); v != "" {
			return v
		}
	}
	return ""
}

// Int returns the attribute as an int, or def.
func (r Record) Int(key string, def int) int { return toInt(r.Attrs[key], def) }

// Bool returns the attribute as a bool, or def when missing or unparsable.
func (r Record) Bool(key string, def bool) bool {
	switch v := r.Attrs[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Time parses an RFC3339 timestamp attribute; nil when missing or malformed.
func (r Record) Time(key string) *time.Time {
	s := r.String(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// Raw returns the untyped attribute value.
func (r Record) Raw(key string) any { return r.Attrs[key] }

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toInt(v any, def int) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}
