package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/pkg/logger"
)

type fakeExporter struct {
	mu    sync.Mutex
	calls int
	dirs  []string
	err   error
}

func (f *fakeExporter) Export(_ context.Context, dir string, _ []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.dirs = append(f.dirs, dir)
	return []string{"magia-roja.html"}, f.err
}

func (f *fakeExporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRun(t *testing.T) {
	exp := &fakeExporter{}
	w := NewExportWorker(exp, ExportConfig{Dir: "/tmp/site"}, logger.Nop(), nil)

	require.NoError(t, w.Run(context.Background(), TriggerStartup))
	assert.Equal(t, []string{"/tmp/site"}, exp.dirs)

	exp.err = errors.New("disk full")
	assert.Error(t, w.Run(context.Background(), TriggerStartup))
}

func TestStart_CoalescesChanges(t *testing.T) {
	exp := &fakeExporter{}
	w := NewExportWorker(exp, ExportConfig{Debounce: 50 * time.Millisecond}, logger.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	for i := 0; i < 5; i++ {
		w.Notify(event.ServiceChanged{Category: "roja", Action: event.ActionUpdated})
	}

	assert.Eventually(t, func() bool { return exp.count() == 1 }, time.Second, 10*time.Millisecond)

	w.Notify(event.ServiceChanged{Category: "roja", Action: event.ActionDeleted})
	assert.Eventually(t, func() bool { return exp.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := NewExportWorker(&fakeExporter{}, ExportConfig{Schedule: "not a schedule"}, logger.Nop(), nil)
	assert.Error(t, w.Start(context.Background()))
}
