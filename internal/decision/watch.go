package decision

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PolicyWatcher reloads the policy file into a PolicyStore when it
// changes on disk, so operators can widen or narrow the whitelist
// without a restart.
type PolicyWatcher struct {
	path    string
	store   *PolicyStore
	watcher *fsnotify.Watcher
	done    chan struct{}
	onError func(error)
}

// WatchPolicy loads the policy file into the store and starts watching
// it for changes. The parent directory is watched so editors that
// rename-on-save still trigger a reload. Close stops the watcher.
func WatchPolicy(path string, store *PolicyStore, onError func(error)) (*PolicyWatcher, error) {
	policy, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	store.Replace(policy)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("create policy directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch policy directory: %w", err)
	}

	if onError == nil {
		onError = func(error) {}
	}
	pw := &PolicyWatcher{
		path:    path,
		store:   store,
		watcher: watcher,
		done:    make(chan struct{}),
		onError: onError,
	}
	go pw.loop()
	return pw, nil
}

func (pw *PolicyWatcher) loop() {
	// Editors emit bursts of events per save; debounce before reloading.
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(pw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(100 * time.Millisecond)
		case <-pending:
			pending = nil
			policy, err := LoadPolicy(pw.path)
			if err != nil {
				// A malformed file keeps the previous policy active.
				pw.onError(err)
				continue
			}
			pw.store.Replace(policy)
		case <-pw.done:
			return
		}
	}
}

// Close stops watching the policy file.
func (pw *PolicyWatcher) Close() error {
	close(pw.done)
	return pw.watcher.Close()
}
