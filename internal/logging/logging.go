// Package logging configures the process-wide logger used by the command
// line and the watcher.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	once    sync.Once
	mu      sync.Mutex
	current *log.Logger
)

// Logger returns the shared logger, creating it on first use.
func Logger() *log.Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if current == nil {
			current = New(os.Stderr, false)
		}
	})
	mu.Lock()
	defer mu.Unlock()
	return current
}

// New builds a logger writing to w. Debug output and caller reporting are
// enabled when verbose is set.
func New(w io.Writer, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    verbose,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "acpc",
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// Setup replaces the shared logger.
func Setup(w io.Writer, verbose bool) *log.Logger {
	l := New(w, verbose)
	once.Do(func() {})
	mu.Lock()
	current = l
	mu.Unlock()
	return l
}
