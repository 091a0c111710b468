package app

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const templateReloadDelay = 500 * time.Millisecond

// templateSet holds the parsed page templates. A directory-backed set is
// reloaded after edits settle; a failed reload keeps the previous set.
type templateSet struct {
	mu        sync.RWMutex
	templates *template.Template
	directory string
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// newTemplates uses the embedded templates when directory is empty.
func newTemplates(directory string, logger *slog.Logger) *templateSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &templateSet{directory: directory, logger: logger}
}

func (ts *templateSet) parse() (*template.Template, error) {
	if ts.directory == "" {
		return template.ParseFS(embeddedTemplates, "templates/*.html")
	}
	return template.ParseGlob(filepath.Join(ts.directory, "*.html"))
}

func (ts *templateSet) load() error {
	if err := ts.reload(); err != nil {
		return err
	}
	if ts.directory == "" {
		return nil
	}
	return ts.watch()
}

func (ts *templateSet) reload() error {
	templates, err := ts.parse()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %v", err)
	}
	ts.mu.Lock()
	ts.templates = templates
	ts.mu.Unlock()

	if ts.directory != "" {
		ts.logger.Info("loaded templates", "directory", ts.directory)
	}
	return nil
}

func (ts *templateSet) execute(w io.Writer, name string, data any) error {
	ts.mu.RLock()
	templates := ts.templates
	ts.mu.RUnlock()
	if templates == nil {
		return fmt.Errorf("templates are not loaded")
	}
	return templates.ExecuteTemplate(w, name, data)
}

func (ts *templateSet) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(ts.directory); err != nil {
		watcher.Close()
		return err
	}

	ts.watcher = watcher
	ts.done = make(chan struct{})
	reload := make(chan struct{})
	go ts.scheduleReload(reload)
	go ts.handleWatcher(reload)
	return nil
}

func (ts *templateSet) close() error {
	if ts.watcher == nil {
		return nil
	}
	close(ts.done)
	err := ts.watcher.Close()
	ts.watcher = nil
	return err
}

func (ts *templateSet) handleWatcher(reload chan<- struct{}) {
	watcher, done := ts.watcher, ts.done
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write | fsnotify.Remove | fsnotify.Create) {
				select {
				case reload <- struct{}{}:
				case <-done:
					return
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			ts.logger.Warn("template watcher error", "error", err)
		}
	}
}

func (ts *templateSet) scheduleReload(reload <-chan struct{}) {
	var timer *time.Timer = nil
	var c <-chan time.Time = nil
	done := ts.done
	for {
		select {
		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-reload:
			if timer != nil {
				timer.Reset(templateReloadDelay)
			} else {
				timer = time.NewTimer(templateReloadDelay)
				c = timer.C
			}

		case <-c:
			c = nil
			timer = nil
			if err := ts.reload(); err != nil {
				ts.logger.Warn("template reload failed", "directory", ts.directory, "error", err)
			}
		}
	}
}
