// Package catalog keeps the services list of each category ordered. Records
// are partitioned by their category field and displayed ascending by order.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/repository"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/metrics"
)

var (
	ErrInvalidCategory      = errors.New("category is required")
	ErrNotFound             = errors.New("service not found")
	ErrConfirmationRequired = errors.New("delete requires confirmation")
	ErrConflict             = errors.New("services were modified concurrently, reload and try again")
	ErrInvalidDirection     = errors.New("direction must be up or down")
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" and "down" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

type Config struct {
	DefaultCategory string
	MigrateOrphans  bool
	MoveRetries     int
}

func DefaultConfig() Config {
	return Config{
		DefaultCategory: "roja",
		MigrateOrphans:  true,
		MoveRetries:     3,
	}
}

type DeleteOptions struct {
	Confirmed bool
}

type Servicer interface {
	DefaultCategory() string
	List(ctx context.Context, category string) ([]*model.ServiceRecord, error)
	ListActive(ctx context.Context, category string) ([]*model.ServiceRecord, error)
	Get(ctx context.Context, category, id string) (*model.ServiceRecord, error)
	Create(ctx context.Context, category string, in *model.ServiceInput) (string, error)
	Update(ctx context.Context, category, id string, in *model.ServiceInput) error
	ToggleActive(ctx context.Context, category, id string) (bool, error)
	Delete(ctx context.Context, category, id string, opts DeleteOptions) error
	Move(ctx context.Context, category, id string, dir Direction) error
}

type Service struct {
	store   repository.DocumentStore
	cfg     Config
	events  event.Notifier
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	lastOrder int64
}

var _ Servicer = (*Service)(nil)

func NewService(store repository.DocumentStore, cfg Config, events event.Notifier, log *logger.Logger, m *metrics.Metrics) *Service {
	cfg.DefaultCategory = NormalizeCategory(cfg.DefaultCategory)
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = DefaultConfig().DefaultCategory
	}
	if cfg.MoveRetries < 0 {
		cfg.MoveRetries = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:   store,
		cfg:     cfg,
		events:  events,
		logger:  log.WithFields(map[string]interface{}{"component": "catalog"}),
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) DefaultCategory() string {
	return s.cfg.DefaultCategory
}

// NormalizeCategory trims and lowercases a category name.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func checkCategory(category string) (string, error) {
	category = NormalizeCategory(category)
	if category == "" {
		return "", ErrInvalidCategory
	}
	return category, nil
}

func (s *Service) notify(ctx context.Context, category, id string, action event.Action) {
	if s.events != nil {
		s.events.ServicesChanged(ctx, category, id, action)
	}
}

// fetch reads every record of a category, sorted.
func (s *Service) fetch(ctx context.Context, category string) ([]*model.ServiceRecord, error) {
	docs, err := s.store.List(ctx, model.ServicesCollection, repository.Eq(model.FieldCategory, category))
	if err != nil {
		s.logger.Error(err, "failed to list services", "category", category)
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	records := make([]*model.ServiceRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, model.ServiceFromDocument(doc))
	}
	sortRecords(records)
	return records, nil
}

// sortRecords orders ascending by order, absent order counting as 0. Ties
// keep the order the store returned them in.
func sortRecords(records []*model.ServiceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SortKey() < records[j].SortKey()
	})
}

// List returns the records of a category for the admin panel. An empty
// default category triggers a single orphan migration pass.
func (s *Service) List(ctx context.Context, category string) ([]*model.ServiceRecord, error) {
	category, err := checkCategory(category)
	if err != nil {
		return nil, err
	}

	records, err := s.fetch(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 || !s.cfg.MigrateOrphans || category != s.cfg.DefaultCategory {
		return records, nil
	}

	migrated, err := s.migrateOrphans(ctx, category)
	if err != nil {
		return nil, err
	}
	if migrated == 0 {
		return records, nil
	}
	return s.fetch(ctx, category)
}

// MigrateOrphans moves every record without a category into category,
// whether or not that category already has records.
func (s *Service) MigrateOrphans(ctx context.Context, category string) (int, error) {
	category, err := checkCategory(category)
	if err != nil {
		return 0, err
	}
	return s.migrateOrphans(ctx, category)
}

// migrateOrphans stamps category onto every record that has none.
func (s *Service) migrateOrphans(ctx context.Context, category string) (int, error) {
	docs, err := s.store.List(ctx, model.ServicesCollection)
	if err != nil {
		return 0, fmt.Errorf("failed to scan services for migration: %w", err)
	}

	stamp := model.Timestamp(s.now())
	migrated := 0
	for _, doc := range docs {
		if doc.Has(model.FieldCategory) {
			continue
		}
		err := s.store.Update(ctx, model.ServicesCollection, doc.ID, map[string]interface{}{
			model.FieldCategory:  category,
			model.FieldUpdatedAt: stamp,
		})
		if err != nil {
			s.metrics.AddMigrated(migrated)
			return migrated, fmt.Errorf("failed to migrate service %s: %w", doc.ID, err)
		}
		migrated++
	}

	s.metrics.AddMigrated(migrated)
	if migrated > 0 {
		s.logger.Info("migrated uncategorised services", "category", category, "count", migrated)
		s.notify(ctx, category, "", event.ActionMigrated)
	}
	return migrated, nil
}

// ListActive returns the records shown on the public pages. Records that
// never had the active flag set are shown.
func (s *Service) ListActive(ctx context.Context, category string) ([]*model.ServiceRecord, error) {
	category, err := checkCategory(category)
	if err != nil {
		return nil, err
	}
	records, err := s.fetch(ctx, category)
	if err != nil {
		return nil, err
	}
	active := records[:0]
	for _, r := range records {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Service) Get(ctx context.Context, category, id string) (*model.ServiceRecord, error) {
	category, err := checkCategory(category)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, model.ServicesCollection, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	record := model.ServiceFromDocument(doc)
	if record.Category != category {
		return nil, ErrNotFound
	}
	return record, nil
}

// nextOrder hands out a time-derived order that is strictly greater than
// any previously returned one.
func (s *Service) nextOrder() float64 {
	now := s.now().UnixMilli()
	for {
		last := atomic.LoadInt64(&s.lastOrder)
		next := now
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapInt64(&s.lastOrder, last, next) {
			return float64(next)
		}
	}
}

func (s *Service) Create(ctx context.Context, category string, in *model.ServiceInput) (string, error) {
	category, err := checkCategory(category)
	if err != nil {
		return "", err
	}

	fields := in.Fields()
	fields[model.FieldCategory] = category
	if _, ok := fields[model.FieldOrder]; !ok {
		fields[model.FieldOrder] = s.nextOrder()
	}
	if _, ok := fields[model.FieldActive]; !ok {
		fields[model.FieldActive] = true
	}
	fields[model.FieldUpdatedAt] = model.Timestamp(s.now())

	id, err := s.store.Create(ctx, model.ServicesCollection, fields)
	if err != nil {
		s.logger.Error(err, "failed to create service", "category", category)
		return "", fmt.Errorf("failed to create service: %w", err)
	}

	s.notify(ctx, category, id, event.ActionCreated)
	return id, nil
}

// Update replaces the supplied fields. A patch without a category keeps the
// record in the category it was addressed through.
func (s *Service) Update(ctx context.Context, category, id string, in *model.ServiceInput) error {
	current, err := s.Get(ctx, category, id)
	if err != nil {
		return err
	}

	fields := in.Fields()
	target := current.Category
	if raw, ok := fields[model.FieldCategory]; ok {
		if target, err = checkCategory(raw.(string)); err != nil {
			return err
		}
	}
	fields[model.FieldCategory] = target
	fields[model.FieldUpdatedAt] = model.Timestamp(s.now())

	if err := s.write(ctx, id, fields); err != nil {
		return err
	}

	s.notify(ctx, current.Category, id, event.ActionUpdated)
	if target != current.Category {
		s.notify(ctx, target, id, event.ActionUpdated)
	}
	return nil
}

// ToggleActive flips the active flag and returns the new value. An unset
// flag counts as active, so the first toggle hides the record.
func (s *Service) ToggleActive(ctx context.Context, category, id string) (bool, error) {
	current, err := s.Get(ctx, category, id)
	if err != nil {
		return false, err
	}

	active := !current.IsActive()
	err = s.write(ctx, id, map[string]interface{}{
		model.FieldActive:    active,
		model.FieldUpdatedAt: model.Timestamp(s.now()),
	})
	if err != nil {
		return false, err
	}

	s.notify(ctx, current.Category, id, event.ActionToggled)
	return active, nil
}

func (s *Service) write(ctx context.Context, id string, fields map[string]interface{}) error {
	err := s.store.Update(ctx, model.ServicesCollection, id, fields)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.logger.Error(err, "failed to update service", "id", id)
		return fmt.Errorf("failed to update service: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, category, id string, opts DeleteOptions) error {
	if !opts.Confirmed {
		return ErrConfirmationRequired
	}
	current, err := s.Get(ctx, category, id)
	if err != nil {
		return err
	}

	err = s.store.Delete(ctx, model.ServicesCollection, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.logger.Error(err, "failed to delete service", "id", id)
		return fmt.Errorf("failed to delete service: %w", err)
	}

	s.notify(ctx, current.Category, id, event.ActionDeleted)
	return nil
}

// Move swaps the order of a record with its neighbour in the sorted list.
// Moving the first record up or the last one down does nothing. Both writes
// are committed together and rejected if either record changed since it was
// read; the move is then retried from a fresh read.
func (s *Service) Move(ctx context.Context, category, id string, dir Direction) error {
	category, err := checkCategory(category)
	if err != nil {
		return err
	}
	if dir != Up && dir != Down {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, string(dir))
	}

	for attempt := 0; ; attempt++ {
		err := s.moveOnce(ctx, category, id, dir)
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		s.metrics.IncMoveConflict()
		if attempt >= s.cfg.MoveRetries {
			s.logger.Warn("giving up on move after conflicts", "id", id, "attempts", attempt+1)
			return ErrConflict
		}
		s.logger.Debug("move conflicted, retrying", "id", id, "attempt", attempt+1)
	}
}

func (s *Service) moveOnce(ctx context.Context, category, id string, dir Direction) error {
	records, err := s.fetch(ctx, category)
	if err != nil {
		return err
	}

	index := -1
	for i, r := range records {
		if r.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return nil
	}
	target := index - 1
	if dir == Down {
		target = index + 1
	}
	if target < 0 || target >= len(records) {
		return nil
	}

	current, neighbour := records[index], records[target]
	stamp := model.Timestamp(s.now())
	writes := []repository.Write{
		{
			ID:              current.ID,
			Fields:          map[string]interface{}{model.FieldOrder: neighbour.SortKey(), model.FieldUpdatedAt: stamp},
			ExpectedVersion: current.Version,
		},
		{
			ID:              neighbour.ID,
			Fields:          map[string]interface{}{model.FieldOrder: current.SortKey(), model.FieldUpdatedAt: stamp},
			ExpectedVersion: neighbour.Version,
		},
	}

	err = s.store.Commit(ctx, model.ServicesCollection, writes)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		return err
	case errors.Is(err, repository.ErrNotFound):
		// deleted since the read, the retry sees the current list
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	default:
		s.logger.Error(err, "failed to move service", "id", id, "category", category)
		return fmt.Errorf("failed to move service: %w", err)
	}

	s.notify(ctx, category, id, event.ActionMoved)
	return nil
}
