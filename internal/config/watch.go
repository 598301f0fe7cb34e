package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/pkg/types"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads configuration when a config file changes.
type Watcher struct {
	watcher   *fsnotify.Watcher
	directory string
	onChange  func(*types.Config)

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// Watch creates a watcher over the global and project config directories.
// Directories that do not exist are skipped. onChange receives every
// successfully reloaded configuration.
func Watch(directory string, onChange func(*types.Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := []string{GetPaths().Config}
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, ".recipechat"))
	}
	if p := os.Getenv("RECIPECHAT_CONFIG"); p != "" {
		dirs = append(dirs, filepath.Dir(p))
	}

	watched := 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.Add(dir); err != nil {
			logging.Warn().Err(err).Str("dir", dir).Msg("config watch failed")
			continue
		}
		watched++
	}
	logging.Debug().Int("dirs", watched).Msg("config watcher initialized")

	cw := &Watcher{
		watcher:   w,
		directory: directory,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	cw.start()
	return cw, nil
}

func (w *Watcher) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.directory)
	if err != nil {
		logging.Warn().Err(err).Msg("config reload failed, keeping previous configuration")
		return
	}
	logging.Info().Msg("configuration reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	if p := os.Getenv("RECIPECHAT_CONFIG"); p != "" && base == filepath.Base(p) {
		return true
	}
	return strings.HasPrefix(base, "recipechat.json")
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}
