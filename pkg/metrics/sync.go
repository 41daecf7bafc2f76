package metrics

import "sync/atomic"

// SyncCounters tracks refresh activity for the status endpoint.
type SyncCounters struct {
	refreshes        atomic.Int64
	refreshFailures  atomic.Int64
	skippedQuestions atomic.Int64
}

// NewSyncCounters constructs a zeroed counter set.
func NewSyncCounters() *SyncCounters {
	return &SyncCounters{}
}

func (c *SyncCounters) RecordRefresh()        { c.refreshes.Add(1) }
func (c *SyncCounters) RecordRefreshFailure() { c.refreshFailures.Add(1) }
func (c *SyncCounters) RecordSkippedQuestions(n int) {
	if n > 0 {
		c.skippedQuestions.Add(int64(n))
	}
}

// Report is the serializable snapshot of the counters.
type Report struct {
	Refreshes        int64 `json:"refreshes"`
	RefreshFailures  int64 `json:"refreshFailures"`
	SkippedQuestions int64 `json:"skippedQuestions"`
}

// Snapshot reads all counters at once.
func (c *SyncCounters) Snapshot() Report {
	return Report{
		Refreshes:        c.refreshes.Load(),
		RefreshFailures:  c.refreshFailures.Load(),
		SkippedQuestions: c.skippedQuestions.Load(),
	}
}
