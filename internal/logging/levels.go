package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

// Level is the severity of a leveled log line, used by the CLI binaries'
// --quiet/--verbose flags to decide what reaches stderr.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

var (
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

// Verbose gates Info output; both binaries flip it on for --verbose.
var Verbose = false

// Quiet suppresses everything but Error when set by --quiet.
var Quiet = false

// Info logs a line at [LevelInfo], shown only when Verbose is set.
func Info(format string, args ...any) {
	if !Verbose || Quiet {
		return
	}

	logLeveled(LevelInfo, format, args...)
}

// Warn logs a line at [LevelWarn], suppressed only by Quiet.
func Warn(format string, args ...any) {
	if Quiet {
		return
	}

	logLeveled(LevelWarn, format, args...)
}

// Error logs a line at [LevelError], always shown.
func Error(format string, args ...any) {
	logLeveled(LevelError, format, args...)
}

func logLeveled(level Level, format string, args ...any) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)

	Buffer.add(fmt.Sprintf("%s %s", timestamp, msg))

	c := levelColor(level)
	c.Fprintln(os.Stderr, msg)
}

func levelColor(level Level) *color.Color {
	switch level {
	case LevelWarn:
		return warnColor
	case LevelError:
		return errorColor
	default:
		return infoColor
	}
}
