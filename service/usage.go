package service

import (
	"fmt"

	"github.com/spf13/viper"
)

// Usage accumulates token accounting across every underlying request of a
// session, including continuation rounds after tool calls. Cached and
// thought tokens are detail breakdowns of the input and output counts, not
// additional spend, so TotalTokens tracks the wire's total_tokens and is
// never derived by summing the four categories.
type Usage struct {
	InputTokens   int
	OutputTokens  int
	CachedTokens  int
	ThoughtTokens int
	TotalTokens   int
}

// Merge folds another usage report into this one. Providers that resend a
// running total per event would double-count with plain addition, so the
// per-request maximum is taken field by field.
func (u *Usage) Merge(other Usage) {
	u.InputTokens = max(u.InputTokens, other.InputTokens)
	u.OutputTokens = max(u.OutputTokens, other.OutputTokens)
	u.CachedTokens = max(u.CachedTokens, other.CachedTokens)
	u.ThoughtTokens = max(u.ThoughtTokens, other.ThoughtTokens)
	u.TotalTokens = max(u.TotalTokens, other.TotalTokens)
}

// Add folds a completed request's usage into a session-lifetime total.
// Used between continuation rounds, where each request bills separately.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CachedTokens += other.CachedTokens
	u.ThoughtTokens += other.ThoughtTokens
	u.TotalTokens += other.TotalTokens
}

func (u Usage) Empty() bool {
	return u.TotalTokens == 0
}

func (u Usage) String() string {
	return fmt.Sprintf("input: %d | output: %d | cached: %d | thought: %d | total: %d",
		u.InputTokens, u.OutputTokens, u.CachedTokens, u.ThoughtTokens, u.TotalTokens)
}

func IncludeUsageMetainfo() bool {
	usage := viper.GetString("default.usage")
	switch usage {
	case "on":
		return true
	case "off":
		return false
	default:
		return false
	}
}
