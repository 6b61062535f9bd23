// Package memory is an in-process DocumentStore used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/repository"
)

type collection struct {
	docs  map[string]*model.Document
	order []string
}

// DocumentStore keeps documents in maps guarded by a RWMutex. List returns
// documents in insertion order.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
	writes      int
	now         func() time.Time
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]*collection),
		now:         time.Now,
	}
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

// Writes returns the number of document writes applied so far.
func (s *DocumentStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Seed inserts a document under a fixed id without counting it as a write.
func (s *DocumentStore) Seed(coll, id string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(coll, id, fields)
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *DocumentStore) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]*model.Document)}
		s.collections[name] = c
	}
	return c
}

func (s *DocumentStore) insert(coll, id string, fields map[string]interface{}) *model.Document {
	c := s.coll(coll)
	now := s.now()
	doc := &model.Document{
		ID:        id,
		Fields:    model.CloneFields(fields),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
	return doc
}

func copyDoc(d *model.Document) *model.Document {
	cp := *d
	cp.Fields = model.CloneFields(d.Fields)
	return &cp
}

func (s *DocumentStore) List(ctx context.Context, coll string, filters ...repository.Filter) ([]*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return []*model.Document{}, nil
	}
	out := make([]*model.Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		if repository.Matches(doc.Fields, filters) {
			out = append(out, copyDoc(doc))
		}
	}
	return out, nil
}

func (s *DocumentStore) Get(ctx context.Context, coll, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return nil, repository.ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyDoc(doc), nil
}

func (s *DocumentStore) Create(ctx context.Context, coll string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.insert(coll, id, fields)
	s.writes++
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, coll, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.coll(coll).docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.apply(doc, fields)
	return nil
}

func (s *DocumentStore) apply(doc *model.Document, fields map[string]interface{}) {
	for k, v := range fields {
		doc.Fields[k] = v
	}
	doc.Version++
	doc.UpdatedAt = s.now()
	s.writes++
}

func (s *DocumentStore) Set(ctx context.Context, coll, id string, fields map[string]interface{}, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.coll(coll).docs[id]
	switch {
	case !ok:
		s.insert(coll, id, fields)
		s.writes++
	case merge:
		s.apply(doc, fields)
	default:
		doc.Fields = map[string]interface{}{}
		s.apply(doc, fields)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(coll)
	if _, ok := c.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.writes++
	return nil
}

// Commit validates every write before applying any of them.
func (s *DocumentStore) Commit(ctx context.Context, coll string, writes []repository.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(coll)
	for _, w := range writes {
		doc, ok := c.docs[w.ID]
		if !ok {
			return fmt.Errorf("%w: %s", repository.ErrNotFound, w.ID)
		}
		if w.ExpectedVersion != 0 && doc.Version != w.ExpectedVersion {
			return fmt.Errorf("%w: %s at version %d, expected %d", repository.ErrConflict, w.ID, doc.Version, w.ExpectedVersion)
		}
	}
	for _, w := range writes {
		s.apply(c.docs[w.ID], w.Fields)
	}
	return nil
}
