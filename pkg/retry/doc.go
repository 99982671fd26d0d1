// Package retry provides exponential backoff and retry logic for transient
// image download failures.
//
// Only the download path retries. Traversal waits (image readiness, page
// change, load-more) are single bounded attempts and never go through here.
//
// Basic usage:
//
//	cfg := retry.FromConfig(appConfig.Retry, logger.GetLogger())
//	data, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return client.Fetch(ctx, req)
//	}, cfg)
//
// Typed errors from pkg/errors decide both whether to retry and which
// curve to use: rate limits back off harder than network or 5xx failures,
// auth and not-found errors are returned immediately.
package retry
