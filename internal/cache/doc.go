// Package cache provides a generic TTL cache with a size bound, used for
// short-lived upstream results that are safe to recompute under race.
package cache
