// Package logx provides the process-wide logger used throughout
// the renderer.
//
// Like the Vulkan dispatcher, the logger has an init-then-use
// lifecycle and is not safe to reconfigure concurrently with use;
// the single-threaded frame loop makes that an acceptable
// trade-off (see DESIGN.md).
package logx

import (
	"os"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	mu  sync.Mutex
	lgr *log.Logger

	// runID tags every line this process logs, so lines from
	// concurrent runs sharing one aggregated log stream (e.g. a CI
	// job running the renderer headless across several resource
	// sets) can be told apart.
	runID = uuid.NewString()
)

// Init installs the process-wide logger, writing to w at the
// given level. Calling Init more than once replaces the logger.
func Init(w *os.File, level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	lgr = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	}).With("run", runID)
}

func init() {
	Init(os.Stderr, log.InfoLevel)
}

// L returns the process-wide logger.
func L() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return lgr
}

// Fatal logs msg and the key/value pairs in kv at error level, with
// a stack trace, then terminates the process. It is the terminal
// point of this renderer's fatal-initialization-failure handling.
func Fatal(msg string, kv ...any) {
	l := L()
	l.Error(msg, append(kv, "stack", string(debug.Stack()))...)
	os.Exit(1)
}
