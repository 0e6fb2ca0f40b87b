// Package logging provides the leveled logger shared by the index, its
// storage backends and the commands. It satisfies pebble.Logger so the same
// value can be handed to pebble.Options.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/cockroachdb/pebble"
)

var _ pebble.Logger = (*Logger)(nil)

// Logger writes Errorf and Fatalf unconditionally and Infof only when verbose.
type Logger struct {
	out     *log.Logger
	verbose bool
}

// New returns a logger writing to w with the given prefix.
func New(w io.Writer, prefix string, verbose bool) *Logger {
	return &Logger{out: log.New(w, prefix, log.LstdFlags), verbose: verbose}
}

// Default logs to stderr, info suppressed.
func Default() *Logger {
	return New(os.Stderr, "lineindex: ", false)
}

// Discard drops everything except Fatalf, which still exits.
func Discard() *Logger {
	return New(io.Discard, "", false)
}

func (l *Logger) Verbose() bool { return l.verbose }

func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	_ = l.out.Output(2, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	_ = l.out.Output(2, "ERROR: "+fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	_ = l.out.Output(2, "FATAL: "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
