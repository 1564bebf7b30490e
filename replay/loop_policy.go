// Package replay drives recorded profile.Events back against a live
// memcache-protocol target: a reader task streams events from a
// profile and fans them out to one task per connection, which
// synthesizes wire bytes, sends them, and measures the response
// (spec.md §4.8, §4.9).
package replay

// LoopPolicy controls how many times the reader task replays a
// profile's events before stopping (spec.md §4.8).
type LoopPolicy struct {
	times    int
	infinite bool
}

// Once replays the profile exactly one time.
func Once() LoopPolicy { return LoopPolicy{times: 1} }

// Times replays the profile n times. n must be positive.
func Times(n int) LoopPolicy { return LoopPolicy{times: n} }

// Infinite replays the profile until the caller's exit flag is set.
func Infinite() LoopPolicy { return LoopPolicy{infinite: true} }

// Done reports whether iteration (1-indexed) has exhausted the policy.
func (p LoopPolicy) Done(iteration int) bool {
	if p.infinite {
		return false
	}
	return iteration >= p.times
}
