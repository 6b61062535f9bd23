// Package public serves the read side of the site: the active services of a
// category, the global settings and the static pages built from them.
package public

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/service/catalog"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/internal/service/settings"
	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/metrics"
)

// pageCategories maps page names to the category they list.
var pageCategories = []struct {
	marker   string
	category string
}{
	{"magia-blanca", "blanca"},
	{"magia-roja", "roja"},
	{"magia-negra", "negra"},
	{"magia-verde", "verde"},
}

// DetectCategory picks the category for a page: an explicit value first,
// then the page attribute, then a marker in the path, then fallback.
func DetectCategory(explicit, pageAttr, path, fallback string) string {
	if c := strings.TrimSpace(explicit); c != "" {
		return strings.ToLower(c)
	}
	if c := strings.TrimSpace(pageAttr); c != "" {
		return strings.ToLower(c)
	}
	p := strings.ToLower(path)
	for _, pc := range pageCategories {
		if strings.Contains(p, pc.marker) {
			return pc.category
		}
	}
	return strings.ToLower(fallback)
}

// PageName is the exported file name of a category page.
func PageName(category string) string {
	return "magia-" + category + ".html"
}

type Config struct {
	CacheTTL        time.Duration
	DefaultCategory string
	Categories      []string
}

type Service struct {
	catalog  catalog.Servicer
	settings settings.Servicer
	cache    *cache.Cache
	cfg      Config
	known    map[string]struct{}
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(cat catalog.Servicer, set settings.Servicer, cfg Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	cfg.DefaultCategory = catalog.NormalizeCategory(cfg.DefaultCategory)
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = cat.DefaultCategory()
	}
	known := map[string]struct{}{cfg.DefaultCategory: {}}
	categories := make([]string, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		c = catalog.NormalizeCategory(c)
		categories = append(categories, c)
		known[c] = struct{}{}
	}
	cfg.Categories = categories
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		catalog:  cat,
		settings: set,
		cache:    cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cfg:      cfg,
		known:    known,
		logger:   log.WithFields(map[string]interface{}{"component": "public"}),
		metrics:  m,
	}
}

func (s *Service) DefaultCategory() string {
	return s.cfg.DefaultCategory
}

func (s *Service) Categories() []string {
	return s.cfg.Categories
}

func servicesKey(category string) string { return "services:" + category }
func settingsKey(variant string) string  { return "settings:" + variant }

// cacheable reports whether entries for category are kept in the cache.
// Only configured categories are, so arbitrary query values cannot grow it.
func (s *Service) cacheable(category string) bool {
	_, ok := s.known[category]
	return ok
}

// Services returns the active services of a category in display order.
func (s *Service) Services(ctx context.Context, category string) ([]*model.ServiceRecord, error) {
	category = catalog.NormalizeCategory(category)
	key := servicesKey(category)
	cacheable := s.cacheable(category)
	if cacheable {
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.CacheResult(true)
			return cached.([]*model.ServiceRecord), nil
		}
		s.metrics.CacheResult(false)
	}

	records, err := s.catalog.ListActive(ctx, category)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.SetDefault(key, records)
	}
	return records, nil
}

// Search filters the active services of a category by a case-insensitive
// match on title, name or description. An empty query returns everything.
func (s *Service) Search(ctx context.Context, category, query string) ([]*model.ServiceRecord, error) {
	records, err := s.Services(ctx, category)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records, nil
	}
	out := make([]*model.ServiceRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.Description), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Settings returns the settings of a variant. Variants are keyed the same
// way settings change events name them.
func (s *Service) Settings(ctx context.Context, variant string) (*model.Settings, error) {
	variant = strings.ToLower(strings.TrimSpace(variant))
	key := settingsKey(variant)
	cacheable := variant == "" || s.cacheable(variant)
	if cacheable {
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.CacheResult(true)
			return cached.(*model.Settings), nil
		}
		s.metrics.CacheResult(false)
	}

	st, err := s.settings.Get(ctx, variant)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.SetDefault(key, st)
	}
	return st, nil
}

// Invalidate drops the cached entries a change event makes stale.
func (s *Service) Invalidate(ev event.ServiceChanged) {
	category := catalog.NormalizeCategory(ev.Category)
	if ev.Action == event.ActionSettings {
		s.cache.Delete(settingsKey(category))
		return
	}
	s.cache.Delete(servicesKey(category))
}

// RenderPage writes the services list of the category a page belongs to.
func (s *Service) RenderPage(ctx context.Context, w io.Writer, page, explicit string) (string, error) {
	category := DetectCategory(explicit, "", page, s.cfg.DefaultCategory)
	records, err := s.Services(ctx, category)
	if err != nil {
		s.logger.Error(err, "failed to load public services", "category", category)
		return category, err
	}
	return category, RenderServices(w, category, records)
}

// Export writes one HTML page per category plus settings.json into dir and
// returns the written file names.
func (s *Service) Export(ctx context.Context, dir string, categories []string) ([]string, error) {
	if len(categories) == 0 {
		categories = s.cfg.Categories
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}

	site, err := s.settings.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	written := make([]string, 0, len(categories)+1)
	for _, category := range categories {
		records, err := s.catalog.ListActive(ctx, category)
		if err != nil {
			return written, fmt.Errorf("failed to list %s services: %w", category, err)
		}

		var list bytes.Buffer
		if err := RenderServices(&list, category, records); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", category, err)
		}

		var page bytes.Buffer
		err = pageTemplate.Execute(&page, pageData{
			Category:     category,
			Title:        site.Title,
			Subtitle:     site.Subtitle,
			PrimaryColor: site.PrimaryColor,
			ShowServices: model.SectionVisible(site.ShowServices),
			List:         template.HTML(list.String()),
		})
		if err != nil {
			return written, fmt.Errorf("failed to render page %s: %w", category, err)
		}

		name := PageName(category)
		if err := writeFile(filepath.Join(dir, name), page.Bytes()); err != nil {
			return written, err
		}
		written = append(written, name)
	}

	raw, err := json.MarshalIndent(site, "", "  ")
	if err != nil {
		return written, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := writeFile(filepath.Join(dir, "settings.json"), raw); err != nil {
		return written, err
	}
	written = append(written, "settings.json")

	s.logger.Info("static pages exported", "dir", dir, "files", len(written))
	return written, nil
}

// writeFile replaces path atomically so readers never see a partial page.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
