package credentials

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const reloadDelay = 500 * time.Millisecond

// LoadFile reads a YAML credentials file:
//
//	appId: "1234"
//	secret: "abcd"
//	cookie: true
//	domain: example.com
//	fileUpload: false
func LoadFile(path string) (*Credentials, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %v", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse yaml of '%s': %v", path, err)
	}
	return New(config)
}

// Watch reloads the credentials file whenever it changes and hands the new
// value to callback. Reload failures are logged and the callback is skipped,
// so the caller keeps its previous credentials. The returned func stops the
// watcher; calls after the first do nothing.
func Watch(
	path string,
	logger *slog.Logger,
	callback func(*Credentials),
) (
	func() error,
	error,
) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	reload := make(chan struct{})
	done := make(chan struct{})
	go scheduleReload(reload, done, func() {
		creds, err := LoadFile(path)
		if err != nil {
			logger.Warn("credentials reload failed", "path", path, "error", err)
			return
		}
		logger.Info("credentials reloaded", "path", path, "app_id", creds.AppID())
		callback(creds)
	})
	go handleWatcher(watcher, target, reload, done, logger)

	var once sync.Once
	stop := func() error {
		var err error
		once.Do(func() {
			close(done)
			err = watcher.Close()
		})
		return err
	}
	return stop, nil
}

func handleWatcher(
	watcher *fsnotify.Watcher,
	target string,
	reload chan<- struct{},
	done <-chan struct{},
	logger *slog.Logger,
) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
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
			logger.Warn("credentials watcher error", "error", err)
		}
	}
}

func scheduleReload(
	reload <-chan struct{},
	done <-chan struct{},
	callback func(),
) {
	var timer *time.Timer = nil
	var c <-chan time.Time = nil
	for {
		select {
		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-reload:
			if timer != nil {
				timer.Reset(reloadDelay)
			} else {
				timer = time.NewTimer(reloadDelay)
				c = timer.C
			}

		case <-c:
			c = nil
			timer = nil
			callback()
		}
	}
}
