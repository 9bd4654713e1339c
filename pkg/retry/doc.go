// Package retry provides exponential backoff for transient failures.
//
// Do retries while fn returns an error that is not classified invalid or
// fatal by the errors package, so callers mark permanent failures with
// errors.WrapInvalid or errors.WrapFatal rather than a retry-specific type.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//		return client.Publish(ctx, subject, payload)
//	})
//
// Presets: DefaultConfig (3 attempts, 100ms to 5s) and Quick (10 attempts,
// 50ms to 1s) for startup.
package retry
