package compaction

import "github.com/quiver-db/quiver/pkg/manifest"

// Policy names one of the four level-shrinking disciplines a Strategy
// implements.
type Policy int

const (
	PolicyNone Policy = iota
	PolicyTiered
	PolicyLeveled
	PolicyHybrid
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyTiered:
		return "tiered"
	case PolicyLeveled:
		return "leveled"
	case PolicyHybrid:
		return "dostoevsky"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the config-level compaction policy token.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "none":
		return PolicyNone, nil
	case "tiered":
		return PolicyTiered, nil
	case "leveled":
		return PolicyLeveled, nil
	case "dostoevsky", "hybrid":
		return PolicyHybrid, nil
	default:
		return 0, &UnknownPolicyError{s}
	}
}

// UnknownPolicyError reports an unrecognized compaction policy token.
type UnknownPolicyError struct{ Token string }

func (e *UnknownPolicyError) Error() string {
	return "compaction: unknown policy " + e.Token
}

// Strategy decides whether a level needs to shrink and, if so, which
// runs to merge and where the result belongs. Implementations never
// touch disk directly; SelectCompaction only reads the manifest's
// in-memory bookkeeping.
type Strategy interface {
	// SelectCompaction inspects m and returns the highest-priority task
	// outstanding, or ok == false if every level is within budget.
	SelectCompaction(m *manifest.Manifest) (task *Task, ok bool)
}
