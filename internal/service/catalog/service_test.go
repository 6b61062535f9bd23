package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/repository"
	"github.com/minndara/site-admin/internal/repository/memory"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/pkg/logger"
)

type recorder struct {
	mu     sync.Mutex
	events []event.ServiceChanged
}

func (r *recorder) ServicesChanged(_ context.Context, category, id string, action event.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.ServiceChanged{Category: category, ID: id, Action: action})
}

func (r *recorder) actions() []event.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Action, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg Config) (*Service, *memory.DocumentStore, *recorder) {
	t.Helper()
	store := memory.NewDocumentStore()
	rec := &recorder{}
	svc := NewService(store, cfg, rec, logger.Nop(), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store, rec
}

func seed(store *memory.DocumentStore, id, category string, order interface{}) {
	fields := map[string]interface{}{"title": "service " + id}
	if category != "" {
		fields[model.FieldCategory] = category
	}
	if order != nil {
		fields[model.FieldOrder] = order
	}
	store.Seed(model.ServicesCollection, id, fields)
}

func ids(records []*model.ServiceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func order(t *testing.T, store *memory.DocumentStore, id string) float64 {
	t.Helper()
	doc, err := store.Get(context.Background(), model.ServicesCollection, id)
	require.NoError(t, err)
	n := doc.Number(model.FieldOrder)
	require.NotNil(t, n, "order of %s", id)
	return *n
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("UP")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	d, err = ParseDirection(" down ")
	require.NoError(t, err)
	assert.Equal(t, Down, d)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestList_SortsByOrderWithAbsentAsZero(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "c", "roja", 3.0)
	seed(store, "a", "roja", nil)
	seed(store, "b1", "roja", 1.0)
	seed(store, "b2", "roja", 1)
	seed(store, "neg", "roja", -1.0)
	seed(store, "other", "blanca", 0.0)

	records, err := svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "a", "b1", "b2", "c"}, ids(records))
	for i := 1; i < len(records); i++ {
		assert.LessOrEqual(t, records[i-1].SortKey(), records[i].SortKey())
	}
}

func TestList_RequiresCategory(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())
	_, err := svc.List(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestList_MigratesOrphansOnce(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	seed(store, "1", "", 2.0)
	seed(store, "2", "", 1.0)
	seed(store, "3", "", nil)
	seed(store, "4", "blanca", 0.0)

	records, err := svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, ids(records))
	assert.Equal(t, 3, store.Writes())
	assert.Equal(t, []event.Action{event.ActionMigrated}, rec.actions())

	records, err = svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 3, store.Writes(), "second list must not write")

	blanca, err := store.Get(context.Background(), model.ServicesCollection, "4")
	require.NoError(t, err)
	assert.Equal(t, "blanca", blanca.String(model.FieldCategory))
	assert.Equal(t, int64(1), blanca.Version)
}

func TestList_MigrationOnlyForDefaultCategory(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "1", "", nil)

	records, err := svc.List(context.Background(), "blanca")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, store.Writes())
}

func TestList_MigrationDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MigrateOrphans = false
	svc, store, _ := newTestService(t, cfg)
	seed(store, "1", "", nil)

	records, err := svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, store.Writes())
}

func TestMigrateOrphans_ExplicitPass(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 1.0)
	seed(store, "2", "", nil)

	n, err := svc.MigrateOrphans(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []event.Action{event.ActionMigrated}, rec.actions())

	n, err = svc.MigrateOrphans(context.Background(), "roja")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.MigrateOrphans(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestListActive_TreatsUnsetAsActive(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 1.0)
	store.Seed(model.ServicesCollection, "2", map[string]interface{}{
		model.FieldCategory: "roja", model.FieldOrder: 0.0, model.FieldActive: false,
	})
	store.Seed(model.ServicesCollection, "3", map[string]interface{}{
		model.FieldCategory: "roja", model.FieldOrder: 2.0, model.FieldActive: true,
	})

	records, err := svc.ListActive(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(records))
}

func TestMove_BoundaryIsNoop(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 0.0)
	seed(store, "2", "roja", 1.0)

	require.NoError(t, svc.Move(context.Background(), "roja", "1", Up))
	require.NoError(t, svc.Move(context.Background(), "roja", "2", Down))
	require.NoError(t, svc.Move(context.Background(), "roja", "missing", Down))

	assert.Equal(t, 0, store.Writes())
	assert.Equal(t, 0.0, order(t, store, "1"))
	assert.Equal(t, 1.0, order(t, store, "2"))
	assert.Empty(t, rec.actions())
}

func TestMove_SwapsAdjacentOrders(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	seed(store, "A", "roja", 1.0)
	seed(store, "B", "roja", 2.0)

	require.NoError(t, svc.Move(context.Background(), "roja", "A", Down))

	assert.Equal(t, 2.0, order(t, store, "A"))
	assert.Equal(t, 1.0, order(t, store, "B"))

	records, err := svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, ids(records))
	assert.Equal(t, []event.Action{event.ActionMoved}, rec.actions())
}

func TestMove_EndToEnd(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 0.0)
	seed(store, "2", "roja", 1.0)
	seed(store, "3", "roja", 2.0)

	require.NoError(t, svc.Move(context.Background(), "roja", "2", Up))

	assert.Equal(t, 2, store.Writes())
	assert.Equal(t, 0.0, order(t, store, "2"))
	assert.Equal(t, 1.0, order(t, store, "1"))
	assert.Equal(t, 2.0, order(t, store, "3"))

	records, err := svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1", "3"}, ids(records))
}

func TestMove_RejectsUnknownDirection(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())
	err := svc.Move(context.Background(), "roja", "1", Direction("left"))
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

// racingStore lets another writer touch a document right before the first
// commits go through.
type racingStore struct {
	*memory.DocumentStore
	races int
	touch string
	calls int
}

func (s *racingStore) Commit(ctx context.Context, coll string, writes []repository.Write) error {
	s.calls++
	if s.calls <= s.races {
		if err := s.DocumentStore.Update(ctx, coll, s.touch, map[string]interface{}{"title": "edited elsewhere"}); err != nil {
			return err
		}
	}
	return s.DocumentStore.Commit(ctx, coll, writes)
}

func TestMove_RetriesAfterConflict(t *testing.T) {
	store := &racingStore{DocumentStore: memory.NewDocumentStore(), races: 1, touch: "1"}
	seed(store.DocumentStore, "1", "roja", 0.0)
	seed(store.DocumentStore, "2", "roja", 1.0)
	svc := NewService(store, DefaultConfig(), nil, logger.Nop(), nil)

	require.NoError(t, svc.Move(context.Background(), "roja", "2", Up))

	assert.Equal(t, 2, store.calls)
	assert.Equal(t, 0.0, order(t, store.DocumentStore, "2"))
	assert.Equal(t, 1.0, order(t, store.DocumentStore, "1"))
}

func TestMove_GivesUpAfterRetries(t *testing.T) {
	store := &racingStore{DocumentStore: memory.NewDocumentStore(), races: 100, touch: "1"}
	seed(store.DocumentStore, "1", "roja", 0.0)
	seed(store.DocumentStore, "2", "roja", 1.0)
	cfg := DefaultConfig()
	cfg.MoveRetries = 2
	svc := NewService(store, cfg, nil, logger.Nop(), nil)

	err := svc.Move(context.Background(), "roja", "2", Up)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, 1.0, order(t, store.DocumentStore, "2"))
	assert.Equal(t, 0.0, order(t, store.DocumentStore, "1"))
}

func TestCreate_AppendsAfterExisting(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 0.0)
	seed(store, "2", "roja", 5.0)

	title := "Amarre"
	first, err := svc.Create(context.Background(), "roja", &model.ServiceInput{Title: &title})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "roja", &model.ServiceInput{Title: &title})
	require.NoError(t, err)

	records, err := svc.List(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", first, second}, ids(records))
	assert.Less(t, records[2].SortKey(), records[3].SortKey(), "same clock tick must still increase")

	created := records[2]
	assert.Equal(t, "roja", created.Category)
	assert.True(t, created.IsActive())
	require.NotNil(t, created.Active)
	assert.Equal(t, model.Timestamp(fixedNow), created.UpdatedAt)
	assert.Equal(t, []event.Action{event.ActionCreated, event.ActionCreated}, rec.actions())
}

func TestCreate_CategoryParameterWins(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	other := "negra"
	id, err := svc.Create(context.Background(), "blanca", &model.ServiceInput{Category: &other})
	require.NoError(t, err)

	doc, err := store.Get(context.Background(), model.ServicesCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "blanca", doc.String(model.FieldCategory))
}

func TestCategoryIsolation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "r1", "roja", 0.0)
	seed(store, "r2", "roja", 1.0)
	seed(store, "b1", "blanca", 0.0)
	seed(store, "b2", "blanca", 1.0)

	_, err := svc.Create(ctx, "blanca", &model.ServiceInput{})
	require.NoError(t, err)
	require.NoError(t, svc.Move(ctx, "blanca", "b2", Up))
	require.NoError(t, svc.Delete(ctx, "blanca", "b1", DeleteOptions{Confirmed: true}))

	assert.ErrorIs(t, svc.Delete(ctx, "blanca", "r1", DeleteOptions{Confirmed: true}), ErrNotFound)
	assert.NoError(t, svc.Move(ctx, "blanca", "r1", Down))
	_, err = svc.ToggleActive(ctx, "blanca", "r2")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"r1", "r2"} {
		doc, err := store.Get(ctx, model.ServicesCollection, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc.Version, id)
		assert.Equal(t, "roja", doc.String(model.FieldCategory))
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 0.0)

	err := svc.Delete(context.Background(), "roja", "1", DeleteOptions{})
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, 0, store.Writes())
	assert.Empty(t, rec.actions())

	require.NoError(t, svc.Delete(context.Background(), "roja", "1", DeleteOptions{Confirmed: true}))
	_, err = svc.Get(context.Background(), "roja", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []event.Action{event.ActionDeleted}, rec.actions())
}

func TestToggleActive(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 0.0)

	active, err := svc.ToggleActive(context.Background(), "roja", "1")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = svc.ToggleActive(context.Background(), "roja", "1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestUpdate_KeepsCategoryAndOtherFields(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	store.Seed(model.ServicesCollection, "1", map[string]interface{}{
		model.FieldCategory: "verde", model.FieldTitle: "old", model.FieldPrice: 30.0,
	})

	title := "new"
	require.NoError(t, svc.Update(context.Background(), "verde", "1", &model.ServiceInput{Title: &title}))

	record, err := svc.Get(context.Background(), "verde", "1")
	require.NoError(t, err)
	assert.Equal(t, "new", record.Title)
	assert.Equal(t, "verde", record.Category)
	require.NotNil(t, record.Price)
	assert.Equal(t, 30.0, *record.Price)
	assert.Equal(t, int64(2), record.Version)
}

func TestUpdate_RejectsEmptyCategory(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "1", "roja", 0.0)

	empty := " "
	err := svc.Update(context.Background(), "roja", "1", &model.ServiceInput{Category: &empty})
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.Equal(t, 0, store.Writes())
}

type brokenStore struct{ repository.DocumentStore }

func (brokenStore) List(context.Context, string, ...repository.Filter) ([]*model.Document, error) {
	return nil, errors.New("connection refused")
}

func TestList_SurfacesStoreFailure(t *testing.T) {
	svc := NewService(brokenStore{}, DefaultConfig(), nil, logger.Nop(), nil)
	_, err := svc.List(context.Background(), "roja")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCategoryNamesAreCaseInsensitive(t *testing.T) {
	svc, store, rec := newTestService(t, DefaultConfig())
	ctx := context.Background()

	id, err := svc.Create(ctx, " Blanca ", &model.ServiceInput{})
	require.NoError(t, err)

	doc, err := store.Get(ctx, model.ServicesCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "blanca", doc.String(model.FieldCategory))
	require.Len(t, rec.events, 1)
	assert.Equal(t, "blanca", rec.events[0].Category)

	lower, err := svc.List(ctx, "blanca")
	require.NoError(t, err)
	mixed, err := svc.List(ctx, "BLANCA")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(lower))
	assert.Equal(t, ids(lower), ids(mixed))

	_, err = svc.Get(ctx, "Blanca", id)
	assert.NoError(t, err)
}

func TestList_MixedCaseDefaultStillMigrates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultCategory = "Roja"
	svc, store, _ := newTestService(t, cfg)
	seed(store, "1", "", nil)

	assert.Equal(t, "roja", svc.DefaultCategory())
	records, err := svc.List(context.Background(), "ROJA")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(records))
}

func TestMigrateOrphans_OnlyMissingField(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	seed(store, "missing", "", nil)
	store.Seed(model.ServicesCollection, "empty", map[string]interface{}{model.FieldCategory: ""})
	store.Seed(model.ServicesCollection, "null", map[string]interface{}{model.FieldCategory: nil})

	n, err := svc.MigrateOrphans(context.Background(), "roja")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	empty, err := store.Get(context.Background(), model.ServicesCollection, "empty")
	require.NoError(t, err)
	assert.Equal(t, "", empty.String(model.FieldCategory))
	assert.Equal(t, int64(1), empty.Version)
}
