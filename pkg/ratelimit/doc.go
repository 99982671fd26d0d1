// Package ratelimit throttles image requests made by the download pool.
//
// Two algorithms are available. TokenBucket refills to full capacity once
// per period and suits bursty hosts. SlidingWindow counts requests inside
// a moving window and is what PerMinute returns for the
// rate_limit.requests_per_minute setting.
//
// Wait takes a context so a cancelled run does not sit on a full window:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
