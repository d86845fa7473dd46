package middleware

import (
	"log/slog"
)

// SlogAdapter bridges log/slog to the CORSLogger interface, turning
// the field maps into slog attributes.
type SlogAdapter struct {
	Logger *slog.Logger
}

func (a *SlogAdapter) Info(msg string, fields map[string]interface{}) {
	if fields == nil {
		a.Logger.Info(msg)
		return
	}

	args := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	a.Logger.Info(msg, args...)
}

func (a *SlogAdapter) Warn(msg string, fields map[string]interface{}) {
	if fields == nil {
		a.Logger.Warn(msg)
		return
	}

	args := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	a.Logger.Warn(msg, args...)
}

func (a *SlogAdapter) Debug(msg string, fields map[string]interface{}) {
	if fields == nil {
		a.Logger.Debug(msg)
		return
	}

	args := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	a.Logger.Debug(msg, args...)
}

// NoOpLogger discards every log call. Tests use it where the CORS
// logging output is irrelevant.
type NoOpLogger struct{}

func (l *NoOpLogger) Info(msg string, fields map[string]interface{}) {}

func (l *NoOpLogger) Warn(msg string, fields map[string]interface{}) {}

func (l *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}
