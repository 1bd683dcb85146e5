// Package watcher reports PDF and CSV changes in a directory.
package watcher

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Op int

const (
	Created Op = iota + 1
	Modified
	Removed
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

type Event struct {
	Path string
	Op   Op
}

// DefaultExtensions is used when New gets none.
var DefaultExtensions = []string{".pdf", ".csv"}

// Watcher wraps an fsnotify watcher with an extension filter.
type Watcher struct {
	fs         *fsnotify.Watcher
	extensions []string
	logger     *slog.Logger
}

func New(extensions []string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{fs: fw, extensions: exts, logger: logger}, nil
}

// Watch starts monitoring dir. The returned channel is closed when ctx is
// done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	if err := w.fs.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan Event, 100)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if !w.watched(ev.Name) {
					continue
				}
				var op Op
				switch {
				case ev.Has(fsnotify.Create):
					op = Created
				case ev.Has(fsnotify.Write):
					op = Modified
				case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
					op = Removed
				default:
					continue
				}
				select {
				case events <- Event{Path: ev.Name, Op: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "dir", dir, "err", err)
			}
		}
	}()
	return events, nil
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) watched(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}

// Debounce collects events until window passes without a new one, then calls
// fn with the batch. Repeated events for a path collapse into the latest, in
// first-seen order. It returns when events is closed, flushing what is
// pending, or when ctx is done.
func Debounce(ctx context.Context, events <-chan Event, window time.Duration, fn func([]Event)) {
	var (
		pending []Event
		index   = map[string]int{}
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		index = map[string]int{}
		fn(batch)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				flush()
				return
			}
			if i, seen := index[ev.Path]; seen {
				pending[i] = ev
			} else {
				index[ev.Path] = len(pending)
				pending = append(pending, ev)
			}
			if timer == nil {
				timer = time.NewTimer(window)
			} else {
				timer.Reset(window)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			flush()
		}
	}
}
