package sync

import "time"

// ShouldApply decides whether an incoming change overwrites local state.
// Last-writer-wins on timestamps; ties favor the incoming change so the two
// sides converge regardless of arrival order. A nil local timestamp means
// no prior state, which always applies.
func ShouldApply(local *time.Time, incoming time.Time) bool {
	if local == nil || local.IsZero() {
		return true
	}
	if incoming.IsZero() {
		return true
	}
	return !local.After(incoming)
}

// MergedModified returns the last_modified value to store after applying a
// change: the greater of the two timestamps.
func MergedModified(local *time.Time, incoming time.Time) time.Time {
	if local != nil && local.After(incoming) {
		return *local
	}
	return incoming
}
