package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange func(Config)

	done      chan struct{}
	closeOnce *sync.Once
	wg        *sync.WaitGroup
}

// Watcher reloads a config file whenever it is written.
type Watcher interface {
	// Path returns the expanded path being watched.
	Path() string

	// Close stops watching and waits for the event goroutine to exit.
	//
	// Returns:
	//   - error: the error from closing the underlying fsnotify watcher
	Close() error
}

var _ Watcher = &watcher{}

// Watch starts reloading the config file at path whenever it is written or created.
// The containing directory is watched so editors that save by replacing the file are seen.
// onChange runs on the watcher goroutine with each configuration that loads and validates;
// invalid intermediate states are logged and skipped.
//
// Parameters:
//   - path: the config file path, "~" is expanded
//   - onChange: receives each successfully reloaded configuration
//
// Returns:
//   - Watcher: the running watcher, to be closed by the caller
//   - error: error if the directory cannot be watched
func Watch(path string, onChange func(Config)) (Watcher, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", path, err)
	}
	expanded = filepath.Clean(expanded)

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(expanded)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(expanded), err)
	}

	w := &watcher{
		path:      expanded,
		fs:        fs,
		onChange:  onChange,
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
		wg:        &sync.WaitGroup{},
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) Path() string {
	return w.path
}

func (w *watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			common.Logger().Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		common.Logger().Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	common.Logger().Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
