package events

import "time"

// StoreQueryStart is emitted before the store runs a SQL statement.
type StoreQueryStart struct {
	Op string
}

// StoreQueryFinish is emitted after a store statement completes.
type StoreQueryFinish struct {
	Op       string
	Rows     int
	Err      error
	Duration time.Duration
}
