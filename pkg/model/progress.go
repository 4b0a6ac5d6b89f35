package model

import "time"

// ProgressRecord is one row of the canonical progress ledger, keyed by the
// normalized item identity. A record is created on the first mutation that
// touches its key and is never deleted in normal operation.
//
// Difficulty is a snapshot of the tag in effect when the record was created.
// It is kept for display only; aggregation always buckets by the current
// source metadata, since the snapshot can go stale if a list is re-tagged.
type ProgressRecord struct {
	Key        string
	Completed  bool
	Minutes    *int
	Notes      *string
	UpdatedAt  time.Time
	Difficulty Difficulty
}
