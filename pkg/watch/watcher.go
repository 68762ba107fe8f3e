// Package watch keeps rendered highlight pages in sync with a directory of
// analysis payloads.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/highlight"
	"github.com/coolbeans/clausemark/pkg/risk"
	"github.com/coolbeans/clausemark/pkg/store"
)

const (
	sourceExtension = ".json"
	outputExtension = ".html"
)

// EventType names what the watcher did in response to a file change.
type EventType string

const (
	EventRendered EventType = "rendered"
	EventRemoved  EventType = "removed"
	EventFailed   EventType = "failed"
)

// Event reports one handled file change.
type Event struct {
	Type   EventType
	Source string
	Output string
	Err    error
}

// Watcher re-renders analysis payloads as they change on disk.
type Watcher struct {
	dir         string
	outDir      string
	aligner     *align.Aligner
	logger      *zap.Logger
	cache       *store.SegmentCache
	sessionOpts []highlight.SessionOption
	onEvent     func(Event)

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithOutputDir writes rendered pages to dir instead of next to the sources.
func WithOutputDir(dir string) Option {
	return func(w *Watcher) {
		if dir != "" {
			w.outDir = dir
		}
	}
}

// WithLogger sets the logger for render failures and lifecycle messages.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithCache reuses alignments across renders of unchanged payloads.
func WithCache(cache *store.SegmentCache) Option {
	return func(w *Watcher) {
		w.cache = cache
	}
}

// WithSessionOptions passes options to every highlight session.
func WithSessionOptions(opts ...highlight.SessionOption) Option {
	return func(w *Watcher) {
		w.sessionOpts = append(w.sessionOpts, opts...)
	}
}

// WithOnEvent registers a callback invoked after each handled change.
func WithOnEvent(fn func(Event)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// NewWatcher creates a watcher over dir. A nil aligner uses the defaults.
func NewWatcher(dir string, aligner *align.Aligner, opts ...Option) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("no directory configured for watching")
	}
	if aligner == nil {
		aligner = align.New()
	}

	w := &Watcher{
		dir:     dir,
		outDir:  dir,
		aligner: aligner,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return w, nil
}

// OutputPath returns where the page for a source payload is written.
func (w *Watcher) OutputPath(source string) string {
	name := strings.TrimSuffix(filepath.Base(source), sourceExtension)
	return filepath.Join(w.outDir, name+outputExtension)
}

func documentID(source string) string {
	return strings.TrimSuffix(filepath.Base(source), sourceExtension)
}

// RenderFile decodes one payload and writes its highlight page.
func (w *Watcher) RenderFile(source string) (string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	result, err := risk.DecodeAnalysis(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", filepath.Base(source), err)
	}

	id := documentID(source)
	opts := append([]highlight.SessionOption(nil), w.sessionOpts...)
	if w.cache != nil {
		opts = append(opts, highlight.WithCache(id, w.cache))
	}
	session := highlight.NewSession(result, w.aligner, opts...)

	output := w.OutputPath(source)
	tmp := output + ".tmp"
	if err := os.WriteFile(tmp, []byte(session.Page(id)), 0644); err != nil {
		return "", fmt.Errorf("writing page: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replacing page: %w", err)
	}

	if alignment := session.Alignment(); alignment != nil && len(alignment.Unmatched) > 0 {
		w.logger.Info("risks not located in document",
			zap.String("document", id),
			zap.Ints("risk_ids", alignment.Unmatched))
	}
	return output, nil
}

// RemoveOutput deletes the page rendered for source, if any.
func (w *Watcher) RemoveOutput(source string) error {
	if w.cache != nil {
		w.cache.Invalidate(documentID(source))
	}
	if err := os.Remove(w.OutputPath(source)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing page: %w", err)
	}
	return nil
}

// RenderAll renders every payload currently in the directory and returns the
// number of pages written. Failures are reported per file and do not stop the pass.
func (w *Watcher) RenderAll() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("reading directory: %w", err)
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sourceExtension) {
			continue
		}
		sources = append(sources, filepath.Join(w.dir, entry.Name()))
	}
	sort.Strings(sources)

	rendered := 0
	for _, source := range sources {
		if w.handleFileChange(source) {
			rendered++
		}
	}
	return rendered, nil
}

// Start renders the current payloads and begins watching for changes. The
// loop runs until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return fmt.Errorf("watcher already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	w.watcher = watcher
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	if _, err := w.RenderAll(); err != nil {
		w.logger.Warn("initial render failed", zap.Error(err))
	}

	go w.watchLoop(ctx, watcher, w.stopChan, w.done)

	w.logger.Info("watching analyses", zap.String("dir", w.dir), zap.String("output", w.outDir))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	watcher, stopChan, done := w.watcher, w.stopChan, w.done
	w.watcher, w.stopChan, w.done = nil, nil, nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}

	close(stopChan)
	err := watcher.Close()
	<-done
	return err
}

// watchLoop handles file system events.
func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, stopChan <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case <-stopChan:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if !strings.HasSuffix(event.Name, sourceExtension) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				w.handleFileChange(event.Name)

			case event.Op&fsnotify.Write == fsnotify.Write:
				w.handleFileChange(event.Name)

			case event.Op&fsnotify.Remove == fsnotify.Remove:
				w.handleFileRemove(event.Name)

			case event.Op&fsnotify.Rename == fsnotify.Rename:
				w.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileChange(source string) bool {
	output, err := w.RenderFile(source)
	if err != nil {
		// A payload caught mid-write fails here and renders on the next write event.
		w.logger.Warn("render failed", zap.String("source", source), zap.Error(err))
		w.emit(Event{Type: EventFailed, Source: source, Err: err})
		return false
	}

	w.logger.Debug("rendered", zap.String("source", source), zap.String("output", output))
	w.emit(Event{Type: EventRendered, Source: source, Output: output})
	return true
}

func (w *Watcher) handleFileRemove(source string) {
	output := w.OutputPath(source)
	if err := w.RemoveOutput(source); err != nil {
		w.logger.Warn("remove failed", zap.String("source", source), zap.Error(err))
		w.emit(Event{Type: EventFailed, Source: source, Output: output, Err: err})
		return
	}
	w.emit(Event{Type: EventRemoved, Source: source, Output: output})
}

func (w *Watcher) emit(event Event) {
	if w.onEvent != nil {
		w.onEvent(event)
	}
}
