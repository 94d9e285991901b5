package repository

import "time"

// Timestamps are persisted as UTC unix nanoseconds; zero stays zero.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func normalizeTime(t time.Time) time.Time {
	return fromNanos(toNanos(t))
}
