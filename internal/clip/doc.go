// Package clip fetches article pages and reduces them to bounded plain text
// for prompt construction. Every dimension of the fetch is capped: body
// bytes, extracted characters, redirect hops, and wall-clock time, with
// caller-supplied limits clamped into safe ranges.
package clip
