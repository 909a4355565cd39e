// Package app holds application-level helpers of the annotator: the fyne
// theme and the development hot reloader.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HotReloader watches the running binary and calls back when a newer build
// replaces it, so a development session can offer a restart.
type HotReloader struct {
	execPath string
	logger   *zap.Logger

	mu          sync.Mutex
	startupTime time.Time
	onNewBinary func()

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	done   chan struct{}
}

// NewHotReloader watches the current executable.
func NewHotReloader(logger *zap.Logger) (*HotReloader, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	// go build writes a new file; follow symlinks to the real one.
	if real, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = real
	}
	return NewHotReloaderFor(execPath, logger)
}

// NewHotReloaderFor watches an arbitrary file.
func NewHotReloaderFor(path string, logger *zap.Logger) (*HotReloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &HotReloader{
		execPath:    filepath.Clean(path),
		logger:      logger,
		startupTime: info.ModTime(),
	}, nil
}

// OnNewBinary sets the callback. It runs on the watcher goroutine, once per
// Start.
func (h *HotReloader) OnNewBinary(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onNewBinary = callback
}

// Start begins watching the binary's directory.
func (h *HotReloader) Start() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(h.execPath)); err != nil {
		fs.Close()
		return fmt.Errorf("watch %s: %w", h.execPath, err)
	}
	h.fs = fs
	h.stopCh = make(chan struct{})
	h.done = make(chan struct{})
	go h.watchLoop()
	return nil
}

// Stop stops the watcher and waits for it to exit.
func (h *HotReloader) Stop() {
	if h.stopCh == nil {
		return
	}
	close(h.stopCh)
	<-h.done
	h.stopCh = nil
}

func (h *HotReloader) watchLoop() {
	defer close(h.done)
	defer h.fs.Close()
	for {
		select {
		case ev, ok := <-h.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != h.execPath || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !h.checkForUpdate() {
				continue
			}
			h.logger.Info("newer binary detected", zap.String("path", h.execPath))
			h.mu.Lock()
			cb := h.onNewBinary
			h.mu.Unlock()
			if cb != nil {
				cb()
			}
			// Only once per Start.
			return
		case err, ok := <-h.fs.Errors:
			if !ok {
				return
			}
			h.logger.Warn("hot reload watcher", zap.Error(err))
		case <-h.stopCh:
			return
		}
	}
}

// checkForUpdate reports whether the binary changed since the baseline.
func (h *HotReloader) checkForUpdate() bool {
	info, err := os.Stat(h.execPath)
	if err != nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return info.ModTime().After(h.startupTime)
}

// ExecPath returns the watched path.
func (h *HotReloader) ExecPath() string {
	return h.execPath
}

// StartupTime returns the baseline modification time.
func (h *HotReloader) StartupTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startupTime
}

// ResetBaseline adopts the binary's current modification time, so a declined
// restart is not offered again for the same build.
func (h *HotReloader) ResetBaseline() {
	if info, err := os.Stat(h.execPath); err == nil {
		h.mu.Lock()
		h.startupTime = info.ModTime()
		h.mu.Unlock()
	}
}

// Restart replaces the process with the new binary. It does not return on
// success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}
