// Package middleware provides HTTP rate limiting for the validation API.
//
// RateLimiter keeps token buckets in process. DistributedRateLimiter keeps
// fixed windows in Redis so every server replica shares one budget. Both
// satisfy Limiter and plug into RateLimitMiddleware, which keys requests by
// client IP and answers 429 with Retry-After once the budget is spent.
//
// The middleware guards the ad-hoc check endpoint, where each request
// compiles user-supplied .proto sources.
package middleware
