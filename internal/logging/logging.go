// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package logging contains the structured logging setup for the video room service.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

// ErrKey is the log attribute key used for error values.
const ErrKey = "error"

const (
	slogFields      ctxKey = "slog_fields"
	logLevelDefault        = slog.LevelInfo

	// Log field for failures that should page somebody rather than sit in the logs.
	priorityCritical = "critical"
)

type contextHandler struct {
	slog.Handler
}

// Handle adds contextual attributes to the record before calling the underlying handler.
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		for _, v := range attrs {
			r.AddAttrs(v)
		}
	}

	return h.Handler.Handle(ctx, r)
}

// AppendCtx adds an slog attribute to the provided context so that it will be
// included in any record created with such context.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if v, ok := parent.Value(slogFields).([]slog.Attr); ok {
		v = append(v, attr)
		return context.WithValue(parent, slogFields, v)
	}

	return context.WithValue(parent, slogFields, []slog.Attr{attr})
}

// InitStructuredLog configures the process-wide slog default with a JSON
// handler whose level and source annotation come from the environment.
func InitStructuredLog() slog.Handler {
	logOptions := &slog.HandlerOptions{}

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logOptions.Level = slog.LevelDebug
	case "warn":
		logOptions.Level = slog.LevelWarn
	case "error":
		logOptions.Level = slog.LevelError
	case "info":
		logOptions.Level = slog.LevelInfo
	default:
		logOptions.Level = logLevelDefault
	}

	addSource := os.Getenv("LOG_ADD_SOURCE")
	logOptions.AddSource = addSource == "true" || addSource == "t" || addSource == "1"

	h := contextHandler{slog.NewJSONHandler(os.Stdout, logOptions)}
	slog.SetDefault(slog.New(h))

	slog.Info("log config",
		"logLevel", logOptions.Level,
		"addSource", logOptions.AddSource,
	)

	return h
}

// Priority creates a slog.Attr for error priority classification.
func Priority(level string) slog.Attr {
	return slog.String("priority", level)
}

// PriorityCritical marks log records that the on-call team should act on.
func PriorityCritical() slog.Attr {
	return Priority(priorityCritical)
}
