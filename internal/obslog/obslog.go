// Package obslog is the structured, leveled logger used across the archive.
// It wraps log15 the same way the teacher's own `log` package wraps it:
// key/value pairs after a short message, one Logger per component with a
// fixed set of context fields ("component", "tag", ...).
package obslog

import (
	"os"

	"github.com/inconshreveable/log15"
)

type Logger = log15.Logger

var root Logger

func init() {
	root = log15.New()
	root.SetHandler(log15.LvlFilterHandler(log15.LvlInfo, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
}

// SetLevel adjusts the root handler's minimum level. Valid values: "debug",
// "info", "warn", "error", "crit".
func SetLevel(level string) {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		lvl = log15.LvlInfo
	}
	root.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
}

// New returns a child logger with the given context fields attached, e.g.
// obslog.New("component", "hotstore").
func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

// Root exposes the package-level logger for call sites that don't need their
// own component context.
func Root() Logger { return root }
