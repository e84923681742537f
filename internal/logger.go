package internal

import (
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	logLevel = new(slog.LevelVar)

	baseHandlerOnce sync.Once
	baseHandler     slog.Handler
)

// SetLogLevel changes the level of every logger created by [NewLogger].
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

func getBaseHandler() slog.Handler {
	baseHandlerOnce.Do(func() {
		if runtime.GOOS == "windows" {
			w := colorable.NewColorableStdout()
			baseHandler = tint.NewHandler(w, &tint.Options{Level: logLevel})
			return
		}

		w := os.Stderr
		baseHandler = tint.NewHandler(w, &tint.Options{
			Level:   logLevel,
			NoColor: !isatty.IsTerminal(w.Fd()),
		})
	})

	return baseHandler
}

// Logger is a structured logger that tags every record
// with the kind and the name of the component emitting it.
type Logger struct {
	*slog.Logger

	kind string
	name string
}

func NewLogger(kind, name string) *Logger {
	return &Logger{
		Logger: slog.New(getBaseHandler()),

		kind: kind,
		name: name,
	}
}

func (l *Logger) getInfo() slog.Attr {
	return slog.Group("info", slog.String("kind", l.kind), slog.String("name", l.name))
}

func (l *Logger) getArgs(args ...any) []any {
	return append([]any{l.getInfo()}, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.Logger.Debug(msg, l.getArgs(args...)...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, l.getArgs(args...)...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, l.getArgs(args...)...)
}

func (l *Logger) Error(msg string, err error, args ...any) {
	tmpArgs := append([]any{tint.Err(err)}, args...)
	l.Logger.Error(msg, l.getArgs(tmpArgs...)...)
}
