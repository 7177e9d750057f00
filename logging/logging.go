// Package logging wires the ambient structured logger used across the
// simulator and its CLIs. It follows the level/handler selection pattern
// used for NewLogger helper, rebuilt on top of logiface so
// every component logs through the same facade regardless of sink.
package logging

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Level selects a logging verbosity, mirroring the CLI's --log-level flag.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l Level) logifaceLevel() logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// New builds a logger writing to stderr: a human-readable text handler in
// debug mode, newline-delimited JSON otherwise, matching the
// debug-vs-production handler split.
func New(level Level) *logiface.Logger[*islog.Event] {
	opts := &slog.HandlerOptions{Level: level.slogLevel(), AddSource: level == LevelDebug}

	var handler slog.Handler
	if level == LevelDebug {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return islog.L.New(
		islog.L.WithSlogHandler(handler),
		logiface.WithLevel[*islog.Event](level.logifaceLevel()),
	)
}
