package logger

import (
	"log/slog"
	"os"
)

// Init installs a JSON slog handler as the process-wide default.
func Init() {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(h))
}

func Info(msg string, fields map[string]any) {
	slog.Info(msg, args(fields)...)
}

func Warn(msg string, fields map[string]any) {
	slog.Warn(msg, args(fields)...)
}

func Error(msg string, fields map[string]any) {
	slog.Error(msg, args(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	slog.Error(msg, args(fields)...)
	os.Exit(1)
}

func args(fields map[string]any) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
