package scraper

import "errors"

// Sentinel errors used for retry-policy branching across the pipeline.
var (
	// ErrNotFound marks a logical miss: the portal answered but carried no
	// payload (result code != 0, token absent from the response, or an empty
	// document body). Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrExhausted is returned by the captcha buffer when a take times out.
	ErrExhausted = errors.New("captcha buffer exhausted")

	// ErrInitializationFailed means no initial session token could be
	// obtained. Fatal: case processing must not start.
	ErrInitializationFailed = errors.New("token manager initialization failed")

	// ErrQueueClosed is returned by Dequeue once the case queue is closed and
	// drained.
	ErrQueueClosed = errors.New("queue closed")
)
