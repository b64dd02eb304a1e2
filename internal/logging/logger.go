// Package logging provides leveled, optionally colored logging with a main
// log file sink, a dedicated error log sink, and size/age-based retention.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/backmassage/ingestd/internal/config"
)

// Main and error log file names inside the configured log directory.
const (
	MainLogName  = "ingestd.log"
	ErrorLogName = "error.log"
)

// ANSI colors (empty when disabled)
var (
	Red    = ""
	Green  = ""
	Yellow = ""
	Blue   = ""
	Cyan   = ""
	NC     = ""
)

// Logger provides leveled, optionally colored logging. ERROR lines are
// written to stderr and duplicated into the error log file for easy triage.
type Logger struct {
	mu      sync.Mutex
	color   bool
	verbose bool
	file    *os.File
	errFile *os.File
}

// NewLogger initializes colors from cfg and, when cfg.LogDir is set, opens
// the main and error log files inside it. Call Close() when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	l := &Logger{verbose: cfg.Verbose}
	enable := false
	switch cfg.ColorMode {
	case config.ColorAlways:
		enable = true
	case config.ColorNever:
		enable = false
	case config.ColorAuto:
		enable = isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
	if enable {
		Red = "\033[1;91m"
		Green = "\033[1;92m"
		Yellow = "\033[1;93m"
		Blue = "\033[1;94m"
		Cyan = "\033[1;96m"
		NC = "\033[0m"
	} else {
		Red, Green, Yellow, Blue, Cyan, NC = "", "", "", "", "", ""
	}
	l.color = enable

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, err
		}
		f, err := openAppend(filepath.Join(cfg.LogDir, MainLogName))
		if err != nil {
			return nil, err
		}
		ef, err := openAppend(filepath.Join(cfg.LogDir, ErrorLogName))
		if err != nil {
			f.Close()
			return nil, err
		}
		l.file = f
		l.errFile = ef
	}
	return l, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Close closes the log files if any were opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	if l.file != nil {
		first = l.file.Close()
		l.file = nil
	}
	if l.errFile != nil {
		if err := l.errFile.Close(); first == nil {
			first = err
		}
		l.errFile = nil
	}
	return first
}

// Reopen closes and reopens the file sinks. Called after retention has
// truncated the files underneath us, so appends land in the rewritten files.
func (l *Logger) Reopen(logDir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.file.Close()
	l.errFile.Close()
	f, err := openAppend(filepath.Join(logDir, MainLogName))
	if err != nil {
		return err
	}
	ef, err := openAppend(filepath.Join(logDir, ErrorLogName))
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.errFile = ef
	return nil
}

func (l *Logger) line(level, color, text string) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	plain := ts + " [" + level + "] " + text + "\n"
	out := os.Stdout
	if level == "ERROR" {
		out = os.Stderr
	}
	if color != "" {
		_, _ = io.WriteString(out, ts+" "+color+"["+level+"]"+NC+" "+text+"\n")
	} else {
		_, _ = io.WriteString(out, plain)
	}
	if l.file != nil {
		_, _ = io.WriteString(l.file, plain)
	}
	if level == "ERROR" && l.errFile != nil {
		_, _ = io.WriteString(l.errFile, plain)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", Blue, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", Green, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", Yellow, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red), also to stderr and the error log.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", Red, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan) only when the logger is verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.line("DEBUG", Cyan, fmt.Sprintf(format, args...))
}
