package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/canvas-hub/canvas-homework-hub/config"
)

// setupLogger настраивает структурированное логирование. Уровень хранится
// в LevelVar, чтобы его можно было менять при перезагрузке конфига.
func setupLogger(cfg *config.Config, verbose bool, out io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(logLevel(cfg, verbose))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if useJSON(cfg, out) {
		// JSON для production и неинтерактивного вывода
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	log := slog.New(handler).With("app", cfg.App.Name)
	slog.SetDefault(log)

	return log, level
}

func logLevel(cfg *config.Config, verbose bool) slog.Level {
	if verbose || cfg.App.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func useJSON(cfg *config.Config, out io.Writer) bool {
	switch strings.ToLower(cfg.Observability.LogFormat) {
	case "json":
		return true
	case "text":
		return false
	}
	if cfg.IsProduction() {
		return true
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}
