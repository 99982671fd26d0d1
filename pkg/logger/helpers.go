package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogComponentStart logs when a component starts
func LogComponentStart(component string, settings map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogImageFetch records one image request made by the download sink.
func LogImageFetch(l Logger, url string, statusCode int, size int, duration time.Duration) {
	fields := map[string]interface{}{
		"url":         url,
		"status_code": statusCode,
		"size":        size,
		"duration":    duration,
	}
	switch {
	case statusCode >= 500:
		l.ErrorWithFields("Image request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("Image request client error", fields)
	default:
		l.DebugWithFields("Image request completed", fields)
	}
}

// LogDownload logs the outcome of saving one image.
func LogDownload(l Logger, url, filename string, skipped bool, err error) {
	entry := l.WithFields(map[string]interface{}{
		"url":      url,
		"filename": filename,
	})
	switch {
	case err != nil:
		entry.WithError(err).Error("Download failed")
	case skipped:
		entry.Debug("Download skipped, file exists")
	default:
		entry.Info("Download completed")
	}
}

// LogRunSummary logs the terminal state of a traversal run.
func LogRunSummary(l Logger, reason string, success bool, emitted int, elapsed time.Duration) {
	fields := map[string]interface{}{
		"reason":   reason,
		"emitted":  emitted,
		"duration": elapsed,
	}
	if success {
		l.InfoWithFields("Traversal finished", fields)
		return
	}
	l.WarnWithFields("Traversal stopped", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string)                                      {}
func (nopLogger) Info(string)                                       {}
func (nopLogger) Warn(string)                                       {}
func (nopLogger) Error(string)                                      {}
func (nopLogger) Fatal(string)                                      {}
func (n nopLogger) WithField(string, interface{}) Logger            { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger        { return n }
func (n nopLogger) WithError(error) Logger                          { return n }
func (n nopLogger) WithContext(ctx context.Context) Logger          { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{})    {}
func (nopLogger) InfoWithFields(string, map[string]interface{})     {}
func (nopLogger) WarnWithFields(string, map[string]interface{})     {}
func (nopLogger) ErrorWithFields(string, map[string]interface{})    {}
func (nopLogger) FatalWithFields(string, map[string]interface{})    {}
func (nopLogger) GetZerolog() *zerolog.Logger                       { l := zerolog.Nop(); return &l }
