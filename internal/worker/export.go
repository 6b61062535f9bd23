package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/metrics"
)

const (
	TriggerSchedule = "schedule"
	TriggerChange   = "change"
	TriggerStartup  = "startup"
)

// Exporter writes the static site into dir.
type Exporter interface {
	Export(ctx context.Context, dir string, categories []string) ([]string, error)
}

type ExportConfig struct {
	Dir        string
	Categories []string
	// Schedule is a cron spec; empty disables scheduled runs.
	Schedule string
	// Debounce coalesces bursts of change events into one export.
	Debounce time.Duration
}

// ExportWorker regenerates the static pages on a schedule and after changes.
type ExportWorker struct {
	exporter Exporter
	config   ExportConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending chan struct{}
}

func NewExportWorker(exporter Exporter, config ExportConfig, log *logger.Logger, m *metrics.Metrics) *ExportWorker {
	if config.Debounce <= 0 {
		config.Debounce = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExportWorker{
		exporter: exporter,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"component": "export"}),
		metrics:  m,
		pending:  make(chan struct{}, 1),
	}
}

// Notify marks the site dirty. It never blocks, so it can be used directly
// as a change event callback.
func (w *ExportWorker) Notify(ev event.ServiceChanged) {
	select {
	case w.pending <- struct{}{}:
		w.logger.Debug("export queued", "category", ev.Category, "action", string(ev.Action))
	default:
	}
}

// Run exports once. Concurrent runs are serialised.
func (w *ExportWorker) Run(ctx context.Context, trigger string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	files, err := w.exporter.Export(ctx, w.config.Dir, w.config.Categories)
	w.metrics.IncExport(trigger, err)
	if err != nil {
		w.logger.Error(err, "export failed", "trigger", trigger)
		return fmt.Errorf("failed to export site: %w", err)
	}

	w.logger.Info("exported site",
		"trigger", trigger,
		"files", len(files),
		"dir", w.config.Dir,
		"duration", time.Since(start).String())
	return nil
}

// Start runs the scheduled and change driven exports until ctx is done.
func (w *ExportWorker) Start(ctx context.Context) error {
	var c *cron.Cron
	if w.config.Schedule != "" {
		c = cron.New()
		if _, err := c.AddFunc(w.config.Schedule, func() {
			_ = w.Run(ctx, TriggerSchedule)
		}); err != nil {
			return fmt.Errorf("invalid export schedule %q: %w", w.config.Schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-w.pending:
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_ = w.Run(ctx, TriggerChange)
		}
	}
}
