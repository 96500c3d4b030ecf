package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/signalsfoundry/orbit-tracer/catalog"
	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/internal/watcher"
)

// Feed keeps the catalog in step with one TLE file. Each Reload replaces
// the elements stored by the previous one; other catalog entries are left
// alone.
type Feed struct {
	app  *App
	path string

	mu  sync.Mutex
	ids []int64
}

// NewFeed returns a feed for path. Nothing is loaded until Reload.
func (a *App) NewFeed(path string) *Feed {
	return &Feed{app: a, path: path}
}

// Reload decodes the file and swaps its elements into the catalog. New
// entries are added before old ones are removed, so readers never see the
// feed empty.
func (f *Feed) Reload(ctx context.Context) (core.DecodeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	log := logging.FromContext(ctx, f.app.Log).With(logging.String("feed", f.path))

	file, err := os.Open(f.path)
	if err != nil {
		return core.DecodeResult{}, fmt.Errorf("open feed: %w", err)
	}
	lines, err := core.ReadLines(file)
	file.Close()
	if err != nil {
		return core.DecodeResult{}, fmt.Errorf("read feed: %w", err)
	}

	res := f.app.Decoder.Decode(ctx, lines)
	entries, err := f.app.Catalog.Put(ctx, res.Elements...)
	if err != nil {
		return res, fmt.Errorf("store feed: %w", err)
	}

	// IDs whose delete failed stay tracked and are retried next reload.
	removed := 0
	var stale []int64
	for _, id := range f.ids {
		err := f.app.Catalog.Delete(ctx, id)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, catalog.ErrNotFound):
		default:
			log.Warn(ctx, "failed to remove previous feed entry", logging.Any("id", id), logging.Err(err))
			stale = append(stale, id)
		}
	}
	ids := stale
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	f.ids = ids

	log.Info(ctx, "feed reloaded",
		logging.Int("stored", len(entries)),
		logging.Int("removed", removed),
		logging.Int("pending", len(stale)),
		logging.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// Watch reloads the feed whenever the file changes, until ctx is done.
func (f *Feed) Watch(ctx context.Context) error {
	w := watcher.New(f.path, func() {
		if _, err := f.Reload(ctx); err != nil {
			f.app.Log.Warn(ctx, "feed reload failed", logging.String("feed", f.path), logging.Err(err))
		}
	}, f.app.Log)
	return w.Watch(ctx)
}
