// Package cache provides the schedule cache used by the loan service.
// Access grants are never cached; only computed schedules, which are pure
// projections of a loan's terms, go through here.
package cache

// ScheduleCache is a string key/value cache. Implementations must be safe
// for concurrent use.
type ScheduleCache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}
