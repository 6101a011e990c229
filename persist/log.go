package persist

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a file-backed logger matching the subset of the teacher's
// persist.Logger API the wallet core exercises: Println for info-level
// lines, Debugln for verbose-only lines, and Critical for conditions that
// indicate corruption and should halt the process.
type Logger struct {
	entry   *logrus.Entry
	file    *os.File
	verbose bool
}

// NewFileLogger opens (creating if necessary) a log file at path and
// returns a Logger that writes to it. If verbose is false, Debugln calls
// are discarded.
func NewFileLogger(path string, verbose bool) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	base := logrus.New()
	base.SetOutput(io.MultiWriter(f))
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	}
	l := &Logger{entry: logrus.NewEntry(base), file: f, verbose: verbose}
	l.entry.Info("STARTUP: wallet core logger initialized")
	return l, nil
}

// Println logs an info-level line.
func (l *Logger) Println(args ...interface{}) {
	l.entry.Info(fmt.Sprint(args...))
}

// Printf logs a formatted info-level line.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.entry.Info(fmt.Sprintf(format, args...))
}

// Debugln logs a line only if the logger was created with verbose=true.
func (l *Logger) Debugln(args ...interface{}) {
	if !l.verbose {
		return
	}
	l.entry.Debug(fmt.Sprint(args...))
}

// Critical logs a line at error level and panics. Callers use it for
// conditions that indicate on-disk corruption, mirroring the teacher's
// fatal/assertion treatment of storage-level failures.
func (l *Logger) Critical(args ...interface{}) {
	msg := fmt.Sprint(args...)
	l.entry.Error("CRITICAL: " + msg)
	panic(msg)
}

// Close flushes a shutdown line and closes the underlying file.
func (l *Logger) Close() error {
	l.entry.Info("SHUTDOWN: wallet core logger closing")
	return l.file.Close()
}
