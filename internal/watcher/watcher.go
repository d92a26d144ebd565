package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/codegraph/codegraph/internal/discover"
	"github.com/codegraph/codegraph/internal/store"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

type corpusState struct {
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// IndexFunc is the callback signature for triggering a full rebuild.
type IndexFunc func(ctx context.Context, corpus, rootPath string) error

// Watcher polls indexed corpora for file changes and triggers rebuilds.
// A rebuild always replaces the whole corpus; there is no incremental path.
type Watcher struct {
	store   *store.Store
	indexFn IndexFunc
	corpora map[string]*corpusState
	ctx     context.Context
}

// New creates a Watcher. indexFn is called when file changes are detected.
func New(s *store.Store, indexFn IndexFunc) *Watcher {
	return &Watcher{
		store:   s,
		indexFn: indexFn,
		corpora: make(map[string]*corpusState),
	}
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling each
// corpus only when its adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

// pollAll lists all indexed corpora and polls each that is due.
func (w *Watcher) pollAll() {
	corpora, err := w.store.ListCorpora()
	if err != nil {
		slog.Warn("watcher.list_corpora", "err", err)
		return
	}

	now := time.Now()
	for _, c := range corpora {
		if c.RootPath == "" {
			continue
		}

		state, exists := w.corpora[c.Tag]
		if !exists {
			state = &corpusState{}
			w.corpora[c.Tag] = state
		}

		if exists && now.Before(state.nextPoll) {
			continue // not due yet
		}

		w.pollCorpus(c, state)
	}
}

// pollCorpus captures a snapshot of the file tree and compares with previous.
// First poll: captures baseline without triggering a rebuild.
// Subsequent polls: triggers indexFn if any file changed.
func (w *Watcher) pollCorpus(c *store.Corpus, state *corpusState) {
	// Verify root path still exists
	if _, err := os.Stat(c.RootPath); err != nil {
		slog.Warn("watcher.root_gone", "corpus", c.Tag, "path", c.RootPath)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}

	snap, err := captureSnapshot(c.RootPath)
	if err != nil {
		slog.Warn("watcher.snapshot", "corpus", c.Tag, "err", err)
		state.nextPoll = time.Now().Add(state.interval)
		return
	}

	interval := pollInterval(len(snap))

	if state.snapshot == nil {
		// First poll — capture baseline, no rebuild trigger
		slog.Debug("watcher.baseline", "corpus", c.Tag, "files", len(snap))
		state.snapshot = snap
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(state.snapshot, snap) {
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "corpus", c.Tag, "files", len(snap))
	if err := w.indexFn(w.ctx, c.Tag, c.RootPath); err != nil {
		slog.Warn("watcher.index", "corpus", c.Tag, "err", err)
		// Keep old snapshot so we retry next cycle
		state.nextPoll = time.Now().Add(interval)
		return
	}

	// Successful rebuild — update snapshot and recalculate interval
	state.snapshot = snap
	state.interval = pollInterval(len(snap))
	state.nextPoll = time.Now().Add(state.interval)
}

// captureSnapshot walks the file tree using discover.Discover and captures
// mtime+size for each file.
func captureSnapshot(rootPath string) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(context.Background(), rootPath, nil)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	ms := 1000 + (fileCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
