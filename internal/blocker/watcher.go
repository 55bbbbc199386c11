package blocker

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// HostsWatcher reports when the managed region disappears from the hosts file
// while a session is blocking domains. It never rewrites the file.
type HostsWatcher struct {
	log    logger.LoggerInterface
	hosts  interfaces.HostsFile
	onLost func()

	fsWatcher *fsnotify.Watcher
	name      string

	lost bool
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// WatchHosts starts watching the directory holding the hosts file. Editors
// replace the file rather than writing it in place, so the file itself is not
// watched. onLost runs on the watcher goroutine, once per disappearance.
func WatchHosts(log logger.LoggerInterface, hosts interfaces.HostsFile, onLost func()) (*HostsWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path, err := filepath.Abs(hosts.Path())
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	w := &HostsWatcher{
		log:       log,
		hosts:     hosts,
		onLost:    onLost,
		fsWatcher: fsWatcher,
		name:      filepath.Base(path),
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.eventLoop()

	log.Debug("Watching hosts file", slog.String("path", path))
	return w, nil
}

// Close stops the watcher. It is safe to call more than once.
func (w *HostsWatcher) Close() error {
	if w == nil {
		return nil
	}

	var err error
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fsWatcher.Close()
	})

	return err
}

func (w *HostsWatcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !strings.EqualFold(filepath.Base(event.Name), w.name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.check()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}

			w.log.Debug("Hosts watcher error", slog.Any("error", err))
		}
	}
}

func (w *HostsWatcher) check() {
	content, err := w.hosts.Read()
	if err != nil {
		w.log.Debug("Could not re-read hosts file", slog.Any("error", err))
		return
	}

	if HasRegion(content) {
		w.lost = false
		return
	}

	if w.lost {
		return
	}

	w.lost = true
	w.log.Warn("Blocked domains were removed from the hosts file")

	if w.onLost != nil {
		w.onLost()
	}
}
