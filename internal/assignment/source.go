// Package assignment supplies AssignmentMap snapshots to the compositor.
// The map itself is owned by an external synchronization layer; this package
// is the interface boundary to it: a YAML layout file on disk, watched for
// changes, each edit delivered to the engine as a fresh snapshot.
package assignment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"videowall/internal/compositor"
)

// Layout is one decoded snapshot of the layout file: the cell assignment
// plus per-stream metadata keyed by URL.
type Layout struct {
	Cells   compositor.AssignmentMap
	Streams map[string]compositor.StreamMeta
}

// fileLayout mirrors the YAML document.
type fileLayout struct {
	Cells   map[int]compositor.ContentRef    `yaml:"cells"`
	Streams map[string]compositor.StreamMeta `yaml:"streams"`
}

// ParseLayout decodes and validates a layout document. Cells must fall
// inside the grid, kinds must be known, and rotations must be quarter turns.
func ParseLayout(data []byte, grid compositor.GridConfig) (*Layout, error) {
	var doc fileLayout
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	cells := make(compositor.AssignmentMap, len(doc.Cells))
	for idx, content := range doc.Cells {
		if idx < 0 || idx >= grid.Cells() {
			return nil, fmt.Errorf("layout cell %d outside %dx%d grid", idx, grid.Cols, grid.Rows)
		}
		if content.IsZero() {
			continue
		}
		if !compositor.ValidKind(content.Kind) {
			return nil, fmt.Errorf("layout cell %d: unknown kind %q", idx, content.Kind)
		}
		cells[idx] = content
	}

	for url, meta := range doc.Streams {
		switch meta.Rotation {
		case 0, 90, 180, 270:
		default:
			return nil, fmt.Errorf("stream %s: rotation %d is not a quarter turn", url, meta.Rotation)
		}
	}

	return &Layout{Cells: cells, Streams: doc.Streams}, nil
}

// LoadFile reads and parses the layout file at path.
func LoadFile(path string, grid compositor.GridConfig) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data, grid)
}

// debounceDelay coalesces the burst of events editors produce per save.
const debounceDelay = 200 * time.Millisecond

// Watcher monitors a layout file and delivers each valid snapshot through
// the apply callback. Invalid edits are logged and skipped; the engine keeps
// the last good layout.
type Watcher struct {
	path    string
	grid    compositor.GridConfig
	apply   func(*Layout)
	log     *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for path. Watching covers the containing
// directory, which survives the rename-and-replace dance editors do.
func NewWatcher(path string, grid compositor.GridConfig, apply func(*Layout), log *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("resolve layout path: %w", err)
	}
	if err := w.Add(filepath.Dir(absPath)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch layout directory: %w", err)
	}
	return &Watcher{
		path:    absPath,
		grid:    grid,
		apply:   apply,
		log:     log.With(slog.String("component", "layout_watcher")),
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start loads the current file once, then watches for changes until Stop.
func (w *Watcher) Start() error {
	layout, err := LoadFile(w.path, w.grid)
	if err != nil {
		return err
	}
	w.apply(layout)
	w.log.Info("layout loaded", slog.String("path", w.path), slog.Int("cells", len(layout.Cells)))

	go w.loop()
	return nil
}

// Stop terminates the watch loop and releases the file watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("layout watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	layout, err := LoadFile(w.path, w.grid)
	if err != nil {
		w.log.Error("layout reload failed, keeping last good layout",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return
	}
	w.apply(layout)
	w.log.Info("layout reloaded", slog.String("path", w.path), slog.Int("cells", len(layout.Cells)))
}
