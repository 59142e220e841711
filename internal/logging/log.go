//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package logging provides structured JSON event logging shared by
// every subcommand.
package logging

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

// ctxKey is the context key type used to carry request-scoped fields
// (symbol, component) into Event without threading them through
// every call signature.
type ctxKey string

const fieldsKey ctxKey = "logging_fields"

// WithFields returns a context carrying fields that Event will merge
// into every log line emitted through it, e.g. a worker's component
// name or the symbol currently being processed.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	merged := map[string]any{}
	if existing, ok := ctx.Value(fieldsKey).(map[string]any); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

// Event writes a single structured log line to stdout as JSON. level is
// a free-form severity label ("info", "warn", "error"); event is a
// short machine-readable name for what happened; fields carries
// call-specific detail merged on top of any context fields set via
// WithFields.
func Event(ctx context.Context, level, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"event": event,
	}

	if ctxFields, ok := ctx.Value(fieldsKey).(map[string]any); ok {
		for k, v := range ctxFields {
			payload[k] = v
		}
	}
	for k, v := range fields {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf(`{"level":"error","event":"log_marshal_failed","error":%q}`, err.Error())
		return
	}

	logger.Println(string(data))
}

// Info logs an informational event.
func Info(ctx context.Context, event string, fields map[string]any) {
	Event(ctx, "info", event, fields)
}

// Warn logs a recoverable problem, e.g. a retried call or a data-quality
// fallback such as an unparseable timestamp.
func Warn(ctx context.Context, event string, fields map[string]any) {
	Event(ctx, "warn", event, fields)
}

// Error logs an operation that ultimately failed.
func Error(ctx context.Context, event string, fields map[string]any) {
	Event(ctx, "error", event, fields)
}
