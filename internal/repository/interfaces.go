package repository

import (
	"context"
	"errors"

	"github.com/minndara/site-admin/internal/model"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by Commit when a document changed since it was read.
	ErrConflict = errors.New("document version conflict")
)

// Filter is an equality predicate on a top-level document field.
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// Write is one element of an atomic Commit. A zero ExpectedVersion skips the
// version check for that document.
type Write struct {
	ID              string
	Fields          map[string]interface{}
	ExpectedVersion int64
}

// All repository interfaces in one file
type (
	// DocumentStore is the contract of the external document database. Only
	// equality filters are supported and no ordering is pushed to the store.
	DocumentStore interface {
		List(ctx context.Context, collection string, filters ...Filter) ([]*model.Document, error)
		Get(ctx context.Context, collection, id string) (*model.Document, error)
		Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
		Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
		Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error
		Delete(ctx context.Context, collection, id string) error
		Commit(ctx context.Context, collection string, writes []Write) error
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Matches reports whether fields satisfy every filter. Numbers are compared
// as float64 so int and float literals match stored JSON numbers.
func Matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		if !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
