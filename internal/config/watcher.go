package config

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the live config behind an atomic pointer so readers never
// block and never observe a torn struct mid-reload.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
}

// NewWatcher loads the config once and returns a Watcher ready to serve
// Current() immediately.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path}
	w.current.Store(cfg)
	return w, nil
}

// Current returns the latest successfully loaded config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Start launches the fsnotify-driven reload loop plus a slow polling
// fallback, mirroring license.Manager.StartWatcher's belt-and-suspenders
// approach.
func (w *Watcher) Start(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		log.Printf("[config] fsnotify unavailable (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(w.path); err != nil {
		log.Printf("[config] failed to watch %s (%v), falling back to polling", w.path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
						time.Sleep(100 * time.Millisecond)
						w.reload()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("[config] watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.reload()
			}
		}
	}()
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("[config] reload failed, keeping previous config: %v", err)
		return
	}
	w.current.Store(cfg)
	log.Printf("[config] reloaded from %s", w.path)
}
