// Package logger provides structured logging for the image scraper.
//
// It wraps zerolog behind a small interface so components can carry
// fields (run_id, component, url) without depending on zerolog directly.
// Console output is colored and goes to stderr, which keeps stdout free
// for the dry-run URL listing. When a log file is configured, events are
// written to both.
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "scraper")
//	log.InfoWithFields("Traversal started", map[string]interface{}{
//	    "url":      target,
//	    "strategy": "singleImagePaging",
//	})
//
// Tests use NewNopLogger, or NewTestLogger when they assert on messages.
package logger
