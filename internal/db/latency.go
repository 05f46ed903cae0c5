package db

import "time"

// LatencyStats summarises recent samples for one named query.
type LatencyStats struct {
	Name   string        `json:"name"`
	Count  int           `json:"count"`
	Errors int           `json:"errors"`
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	Max    time.Duration `json:"max"`
}

// QueryLatencyStats returns current per-query latency distribution samples.
func (c *Database) QueryLatencyStats() []LatencyStats {
	if c == nil || c.tracker == nil {
		return nil
	}
	return c.tracker.snapshot()
}
