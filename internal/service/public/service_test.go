package public

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/repository/memory"
	"github.com/minndara/site-admin/internal/service/catalog"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/internal/service/settings"
	"github.com/minndara/site-admin/pkg/logger"
)

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name                     string
		explicit, attr, path, fb string
		want                     string
	}{
		{"explicit wins", "Blanca", "verde", "/magia-negra.html", "roja", "blanca"},
		{"page attribute", "", "VERDE", "/magia-negra.html", "roja", "verde"},
		{"path marker", "", "", "/site/Magia-Negra.html", "roja", "negra"},
		{"blanca path", "", "", "/magia-blanca", "roja", "blanca"},
		{"fallback", "", "", "/index.html", "roja", "roja"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCategory(tt.explicit, tt.attr, tt.path, tt.fb))
		})
	}
}

type fixture struct {
	store    *memory.DocumentStore
	catalog  *catalog.Service
	settings *settings.Service
	public   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewDocumentStore()
	cat := catalog.NewService(store, catalog.DefaultConfig(), nil, logger.Nop(), nil)
	set := settings.NewService(store, nil, logger.Nop())
	pub := NewService(cat, set, Config{
		CacheTTL:   time.Hour,
		Categories: []string{"roja", "blanca"},
	}, logger.Nop(), nil)
	return &fixture{store: store, catalog: cat, settings: set, public: pub}
}

func (f *fixture) seed(id, category string, fields map[string]interface{}) {
	fields[model.FieldCategory] = category
	f.store.Seed(model.ServicesCollection, id, fields)
}

func TestServices_CachesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	f.seed("1", "roja", map[string]interface{}{"title": "Amarre", "order": 1.0})
	ctx := context.Background()

	records, err := f.public.Services(ctx, "roja")
	require.NoError(t, err)
	require.Len(t, records, 1)

	f.seed("2", "roja", map[string]interface{}{"title": "Limpieza", "order": 0.0})
	records, err = f.public.Services(ctx, "roja")
	require.NoError(t, err)
	assert.Len(t, records, 1, "served from cache")

	f.public.Invalidate(event.ServiceChanged{Category: "blanca", Action: event.ActionCreated})
	records, err = f.public.Services(ctx, "roja")
	require.NoError(t, err)
	assert.Len(t, records, 1, "other category left cached")

	f.public.Invalidate(event.ServiceChanged{Category: "roja", Action: event.ActionCreated})
	records, err = f.public.Services(ctx, "roja")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[0].ID)
}

func TestServices_HidesInactive(t *testing.T) {
	f := newFixture(t)
	f.seed("1", "roja", map[string]interface{}{"active": false})
	f.seed("2", "roja", map[string]interface{}{"active": true})

	records, err := f.public.Services(context.Background(), "roja")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0].ID)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.seed("1", "roja", map[string]interface{}{"title": "Amarre de amor", "order": 0.0})
	f.seed("2", "roja", map[string]interface{}{"name": "Limpieza", "description": "Quita el MAL de ojo", "order": 1.0})

	all, err := f.public.Search(context.Background(), "roja", "  ")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hits, err := f.public.Search(context.Background(), "roja", "mal de")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].ID)

	hits, err = f.public.Search(context.Background(), "roja", "AMOR")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].ID)
}

func TestRenderServices(t *testing.T) {
	price, days := 1500.0, 7.0
	records := []*model.ServiceRecord{{
		ID:          "abc",
		Name:        "Limpieza <energética>",
		Description: "Línea 1\nLínea 2",
		Price:       &price,
		Duration:    &days,
	}}

	var buf bytes.Buffer
	require.NoError(t, RenderServices(&buf, "roja", records))
	html := buf.String()

	assert.Contains(t, html, `data-id="abc"`)
	assert.Contains(t, html, "Limpieza &lt;energética&gt;")
	assert.Contains(t, html, "Línea 1\nLínea 2")
	assert.Contains(t, html, `<span class="serv-price">$1500</span>`)
	assert.Contains(t, html, `<span class="serv-duration">7 días</span>`)
	assert.Contains(t, html, "Ver más")
}

func TestRenderServices_EmptyAndUnavailable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderServices(&buf, "verde", nil))
	assert.Contains(t, buf.String(), emptyMessage)
	assert.NotContains(t, buf.String(), "serv-card")

	buf.Reset()
	require.NoError(t, RenderUnavailable(&buf, "verde"))
	assert.Contains(t, buf.String(), unavailableMessage)
}

func TestRenderPage_DetectsCategoryFromPage(t *testing.T) {
	f := newFixture(t)
	f.seed("b1", "blanca", map[string]interface{}{"title": "Protección"})

	var buf bytes.Buffer
	category, err := f.public.RenderPage(context.Background(), &buf, "magia-blanca.html", "")
	require.NoError(t, err)
	assert.Equal(t, "blanca", category)
	assert.Contains(t, buf.String(), "Protección")
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed("r1", "roja", map[string]interface{}{"title": "Amarre"})
	_, err := f.settings.Save(ctx, "", map[string]interface{}{"title": "Magia", "primaryColor": "#aa0000"})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := f.public.Export(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"magia-roja.html", "magia-blanca.html", "settings.json"}, files)

	roja, err := os.ReadFile(filepath.Join(dir, "magia-roja.html"))
	require.NoError(t, err)
	assert.Contains(t, string(roja), "<title>Magia</title>")
	assert.Contains(t, string(roja), "Amarre")
	assert.Contains(t, string(roja), `data-pagecat="roja"`)

	blanca, err := os.ReadFile(filepath.Join(dir, "magia-blanca.html"))
	require.NoError(t, err)
	assert.Contains(t, string(blanca), emptyMessage)

	raw, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	var site model.Settings
	require.NoError(t, json.Unmarshal(raw, &site))
	assert.Equal(t, "Magia", site.Title)
}

func TestSettings_VariantKeyMatchesInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.settings.Save(ctx, "roja", map[string]interface{}{"title": "old"})
	require.NoError(t, err)
	st, err := f.public.Settings(ctx, "Roja")
	require.NoError(t, err)
	assert.Equal(t, "old", st.Title)

	_, err = f.settings.Save(ctx, "roja", map[string]interface{}{"title": "new"})
	require.NoError(t, err)
	f.public.Invalidate(event.ServiceChanged{Category: "roja", Action: event.ActionSettings})

	st, err = f.public.Settings(ctx, " ROJA ")
	require.NoError(t, err)
	assert.Equal(t, "new", st.Title)
}

func TestServices_MixedCaseCategorySharesEntry(t *testing.T) {
	f := newFixture(t)
	f.seed("1", "blanca", map[string]interface{}{"title": "Limpia"})
	ctx := context.Background()

	records, err := f.public.Services(ctx, "Blanca")
	require.NoError(t, err)
	require.Len(t, records, 1)

	f.seed("2", "blanca", map[string]interface{}{"title": "Protección"})
	records, err = f.public.Services(ctx, "blanca")
	require.NoError(t, err)
	assert.Len(t, records, 1, "served from the entry filled by the mixed-case read")
}

func TestServices_UnknownCategoryIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records, err := f.public.Services(ctx, "desconocida")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, f.public.cache.ItemCount())

	f.seed("1", "desconocida", map[string]interface{}{"title": "Nueva"})
	records, err = f.public.Services(ctx, "desconocida")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = f.public.Services(ctx, "roja")
	require.NoError(t, err)
	assert.Equal(t, 1, f.public.cache.ItemCount())
}
