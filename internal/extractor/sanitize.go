package extractor

import "github.com/ramkansal/capwatch/pkg/plugin"

// Sanitize enforces remaining == limit - registered and turns a negative
// remaining count into a waitlist: remaining 0, queued = overflow, note
// marked. Applying it twice is the same as applying it once.
func Sanitize(r plugin.CapacityResult) plugin.CapacityResult {
	out := r
	if out.Registered != nil && out.Limit != nil && out.Queued == nil {
		out.Remaining = plugin.Int(*out.Limit - *out.Registered)
	}
	if out.Remaining != nil && *out.Remaining < 0 {
		out.Queued = plugin.Int(-*out.Remaining)
		out.Remaining = plugin.Int(0)
		out.Note.Waitlist = true
	}
	return out
}
