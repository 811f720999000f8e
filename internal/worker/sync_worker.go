// Package worker turns profile sync notices into spreadsheet exports.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbook/internal/amqp"
	"budgetbook/internal/budget"
	"budgetbook/internal/sheets"
	"budgetbook/internal/storage"
)

// SyncWorker exports every budget year of a changed profile.
type SyncWorker struct {
	store       storage.ProfileStore
	exporter    sheets.BudgetExporter
	concurrency int
	timeout     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	exported map[string]time.Time // profile -> start of last successful export
}

func NewSyncWorker(store storage.ProfileStore, exporter sheets.BudgetExporter, concurrency int, timeout time.Duration) *SyncWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncWorker{
		store:       store,
		exporter:    exporter,
		concurrency: concurrency,
		timeout:     timeout,
		now:         time.Now,
		exported:    make(map[string]time.Time),
	}
}

// HandleSyncMessage processes a single profile sync message from AMQP. A
// message older than the last export of the same profile is acknowledged
// without work, since that export already read a newer document.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ProfileSyncMessage) error {
	w.mu.Lock()
	last, seen := w.exported[msg.Profile]
	w.mu.Unlock()
	if seen && msg.Timestamp.Before(last) {
		slog.InfoContext(ctx, "Skipping stale sync message",
			"component", "worker",
			"profile", msg.Profile,
			"revision", msg.Revision,
			"last_export", last)
		return nil
	}

	slog.InfoContext(ctx, "Processing sync message",
		"component", "worker",
		"profile", msg.Profile,
		"revision", msg.Revision)

	return w.SyncProfile(ctx, msg.Profile)
}

// SyncProfile loads a profile and exports each of its budget years
// concurrently, bounded by the worker's concurrency.
func (w *SyncWorker) SyncProfile(ctx context.Context, name string) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	started := w.now()

	p, err := w.store.LoadProfile(ctx, name)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", name, err)
	}
	e := budget.NewEngine(p)
	years := e.Years()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, year := range years {
		g.Go(func() error {
			ref, err := w.exporter.ExportYear(gctx, name, year, e)
			if err != nil {
				return fmt.Errorf("export %s %d: %w", name, year, err)
			}
			slog.InfoContext(gctx, "Exported budget year",
				"component", "worker",
				"profile", name,
				"year", year,
				"sheets_ref", ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.mu.Lock()
	w.exported[name] = started
	w.mu.Unlock()

	slog.InfoContext(ctx, "Profile synced",
		"component", "worker",
		"profile", name,
		"years", len(years),
		"duration_ms", w.now().Sub(started).Milliseconds())
	return nil
}

// StartupSync exports every stored profile once. It recovers from messages
// lost while the worker was down; failures are logged and counted.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	names, err := w.store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles for startup sync: %w", err)
	}
	if len(names) == 0 {
		slog.InfoContext(ctx, "No profiles found on startup", "component", "worker")
		return nil
	}

	synced, failed := 0, 0
	for _, name := range names {
		if err := w.SyncProfile(ctx, name); err != nil {
			slog.ErrorContext(ctx, "Failed to sync profile during startup",
				"component", "worker",
				"profile", name,
				"error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"component", "worker",
		"total", len(names),
		"synced", synced,
		"errors", failed)
	return nil
}
