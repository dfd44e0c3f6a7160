// Package logging is the process-wide leveled emitter: three verbosity
// tiers (Silent / Verbose / Debug) with colorized output via fatih/color
// and mattn/go-colorable.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

// Level is the emitter's verbosity tier.
type Level int

const (
	Silent Level = iota
	Verbose
	Debug
)

var (
	infoStyle  = color.New(color.FgCyan)
	warnStyle  = color.New(color.FgYellow)
	errorStyle = color.New(color.FgRed, color.Bold)
	debugStyle = color.New(color.FgHiBlack)
)

// Logger is a process-wide append-only sink behind a single mutex.
// Emission must never block while holding the lock — the mutex here only
// guards the io.Writer, never waits on external I/O beyond the write
// itself.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

var global = New(os.Stderr, Silent)

// Global returns the process-wide default Logger, for call sites (the
// signal handler, package-level helpers) that cannot have one injected.
func Global() *Logger { return global }

// SetGlobalLevel adjusts the default Logger's verbosity, e.g. from --verbose
// / --debug CLI flags.
func SetGlobalLevel(l Level) { global.SetLevel(l) }

// New builds a Logger writing to out at the given level. When out is an
// *os.File, output is wrapped with go-colorable so ANSI codes render
// correctly on Windows consoles too.
func New(out io.Writer, level Level) *Logger {
	if f, ok := out.(*os.File); ok {
		out = colorable.NewColorable(f)
	}
	return &Logger{out: out, level: level}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) emit(style *color.Color, prefix, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	style.Fprintf(l.out, "%s %s\n", prefix, msg)
}

// Info prints at Verbose and above.
func (l *Logger) Info(format string, args ...any) {
	if l.currentLevel() < Verbose {
		return
	}
	l.emit(infoStyle, "[wrkflw]", format, args...)
}

// Warn always prints, regardless of level — warnings are never gated
// behind -verbose.
func (l *Logger) Warn(format string, args ...any) {
	l.emit(warnStyle, "[wrkflw:warn]", format, args...)
}

// Error always prints.
func (l *Logger) Error(format string, args ...any) {
	l.emit(errorStyle, "[wrkflw:error]", format, args...)
}

// Debug prints only at the Debug tier.
func (l *Logger) Debug(format string, args ...any) {
	if l.currentLevel() < Debug {
		return
	}
	l.emit(debugStyle, "[wrkflw:debug]", format, args...)
}

func (l *Logger) currentLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}
