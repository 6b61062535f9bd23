package repository

import (
	"context"
	"errors"
	"time"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/pkg/metrics"
)

type instrumentedStore struct {
	next    DocumentStore
	metrics *metrics.Metrics
}

// Instrument wraps a store so every call is counted and timed.
func Instrument(next DocumentStore, m *metrics.Metrics) DocumentStore {
	if m == nil {
		return next
	}
	return &instrumentedStore{next: next, metrics: m}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveStore(op, start, err)
}

func (s *instrumentedStore) List(ctx context.Context, collection string, filters ...Filter) ([]*model.Document, error) {
	start := time.Now()
	docs, err := s.next.List(ctx, collection, filters...)
	s.observe("list", start, err)
	return docs, err
}

func (s *instrumentedStore) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, collection, id)
	s.observe("get", start, err)
	return doc, err
}

func (s *instrumentedStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	start := time.Now()
	id, err := s.next.Create(ctx, collection, fields)
	s.observe("create", start, err)
	return id, err
}

func (s *instrumentedStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	start := time.Now()
	err := s.next.Update(ctx, collection, id, fields)
	s.observe("update", start, err)
	return err
}

func (s *instrumentedStore) Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	start := time.Now()
	err := s.next.Set(ctx, collection, id, fields, merge)
	s.observe("set", start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, collection, id)
	s.observe("delete", start, err)
	return err
}

func (s *instrumentedStore) Commit(ctx context.Context, collection string, writes []Write) error {
	start := time.Now()
	err := s.next.Commit(ctx, collection, writes)
	s.observe("commit", start, err)
	return err
}

// Ping forwards to the wrapped store when it supports readiness checks.
func (s *instrumentedStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
