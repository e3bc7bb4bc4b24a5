// control/hotreload.go
// Watches the config file and re-runs reload hooks when it changes.

package control

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader re-reads a config file on change and hands the result to the
// registered hooks. Only settings that can change at runtime (the log level)
// are expected to be applied by hooks; the rest take effect on restart.
type Reloader struct {
	path string
	log  *zap.Logger

	mu    sync.Mutex
	hooks []func(*Config)

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewReloader starts watching path. The parent directory is watched so
// editors that replace the file on save are still seen.
func NewReloader(path string, log *zap.Logger) (*Reloader, error) {
	if path == "" {
		return nil, fmt.Errorf("reloader: empty config path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("reloader: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reloader: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("reloader: watch %s: %w", filepath.Dir(abs), err)
	}
	r := &Reloader{
		path:    abs,
		log:     log,
		watcher: w,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// OnReload adds a hook run after every successful reload.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Trigger reloads synchronously and runs the hooks. A file that fails to
// load or validate leaves the running configuration untouched.
func (r *Reloader) Trigger() error {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	hooks := append([]func(*Config){}, r.hooks...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(cfg)
	}
	return nil
}

// Close stops watching. It is idempotent.
func (r *Reloader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.watcher.Close()
		<-r.done
	})
	return err
}

func (r *Reloader) loop() {
	defer close(r.done)
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := r.Trigger(); err != nil {
				r.log.Warn("config reload rejected", zap.String("path", r.path), zap.Error(err))
				continue
			}
			r.log.Info("config reloaded", zap.String("path", r.path))
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn("config watcher error", zap.Error(err))
		}
	}
}
