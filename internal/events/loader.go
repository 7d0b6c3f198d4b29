package events

import "time"

// LoaderBatchStart is emitted before a loader executes one batched fetch.
type LoaderBatchStart struct {
	Loader string
	Keys   int
}

// LoaderBatchFinish is emitted after a batched fetch completes. Err is the
// batch-wide failure, if any; per-key misses are not reported here.
type LoaderBatchFinish struct {
	Loader   string
	Keys     int
	Err      error
	Duration time.Duration
}
