// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// A minimal retry mechanism with exponential backoff and jitter, used on the
// transient-failure paths of the merge pipeline: snapshot delivery to the
// broker and broker connection establishment at startup.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (process startup)
//
// # Usage
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Connect()
//	})
//
// Errors wrapped with NonRetryable abort immediately:
//
//	err := retry.Do(ctx, cfg, func() error {
//	    if err := publish(); isPermanent(err) {
//	        return retry.NonRetryable(err)
//	    }
//	    return err
//	})
//
// # Context Cancellation
//
// All retry operations respect context cancellation and stop immediately when
// the context is cancelled, both between attempts and during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a
// thread-safe random source to avoid contention.
package retry
