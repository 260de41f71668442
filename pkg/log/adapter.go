package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Leveled adapts the printf-style logger interfaces expected by storage
// libraries (badger.Logger, migrate.Logger) to the default slog logger.
type Leveled struct {
	// Component is attached to every record as the "component" attribute.
	Component string
	// Demote logs informational messages at debug level, for chatty
	// libraries.
	Demote bool
}

func (l Leveled) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	logger := slog.Default()
	if !logger.Enabled(ctx, level) {
		return
	}
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	logger.Log(ctx, level, msg, slog.String("component", l.Component))
}

func (l Leveled) Errorf(format string, args ...any) {
	l.log(ErrorLevel, format, args...)
}

func (l Leveled) Warningf(format string, args ...any) {
	l.log(WarnLevel, format, args...)
}

func (l Leveled) Infof(format string, args ...any) {
	l.log(l.infoLevel(), format, args...)
}

func (l Leveled) Debugf(format string, args ...any) {
	l.log(DebugLevel, format, args...)
}

// Printf logs at info level.
func (l Leveled) Printf(format string, args ...any) {
	l.log(l.infoLevel(), format, args...)
}

func (l Leveled) infoLevel() slog.Level {
	if l.Demote {
		return DebugLevel
	}
	return InfoLevel
}

// Verbose reports whether debug records are enabled.
func (l Leveled) Verbose() bool {
	return slog.Default().Enabled(context.Background(), DebugLevel)
}
