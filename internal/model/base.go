package model

import (
	"time"
)

// Document is a schemaless record held by the document store. Fields follow
// JSON semantics: an absent key is different from a key holding null.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Fields    map[string]interface{} `json:"fields" db:"data"`
	Version   int64                  `json:"version" db:"version"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Has reports whether the document carries field, even if its value is null.
func (d *Document) Has(field string) bool {
	if d == nil || d.Fields == nil {
		return false
	}
	_, ok := d.Fields[field]
	return ok
}

// String returns a string field or "".
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	if s, ok := d.Fields[field].(string); ok {
		return s
	}
	return ""
}

// Number returns a numeric field. Non-numeric and missing values yield nil.
func (d *Document) Number(field string) *float64 {
	if d == nil {
		return nil
	}
	var f float64
	switch v := d.Fields[field].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	default:
		return nil
	}
	return &f
}

// Bool returns a boolean field or nil when missing or not a bool.
func (d *Document) Bool(field string) *bool {
	if d == nil {
		return nil
	}
	if b, ok := d.Fields[field].(bool); ok {
		return &b
	}
	return nil
}

// CloneFields returns a shallow copy of the document fields.
func CloneFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Timestamp formats t the way updatedAt is stored on every write.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
