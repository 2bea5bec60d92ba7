package quiz

import "fmt"

// DifficultyPolicy adjusts State.DifficultyLevel after an answer has been
// accounted for (streak, consecutive errors and performance window already
// updated). Implementations must be idempotent per answer: the session
// invokes the policy exactly once per resolved round.
type DifficultyPolicy interface {
	// Adjust mutates s.DifficultyLevel within [rules.MinChoices,
	// rules.MaxChoices]. correct reports the outcome of the answer that
	// triggered the recomputation.
	Adjust(s *State, rules Rules, correct bool)

	// Name identifies the policy in logs and persisted diagnostics.
	Name() string
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (DifficultyPolicy, error) {
	switch name {
	case "window":
		return SlidingWindowPolicy{}, nil
	case "milestone":
		return MilestonePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown difficulty policy %q", name)
	}
}

// SlidingWindowPolicy raises or lowers difficulty based on the accuracy of
// the last WindowSize answers. The window keeps sliding regardless of
// whether an adjustment fired.
type SlidingWindowPolicy struct{}

func (SlidingWindowPolicy) Name() string { return "window" }

func (SlidingWindowPolicy) Adjust(s *State, rules Rules, _ bool) {
	if len(s.PerformanceWindow) < rules.WindowSize {
		return
	}
	passed := 0
	for _, ok := range s.PerformanceWindow {
		if ok {
			passed++
		}
	}
	ratio := float64(passed) / float64(len(s.PerformanceWindow))

	switch {
	case ratio >= rules.RaiseThreshold && s.DifficultyLevel < rules.MaxChoices:
		s.DifficultyLevel++
	case ratio <= rules.LowerThreshold && s.DifficultyLevel > rules.MinChoices:
		s.DifficultyLevel--
	}
}

// MilestonePolicy raises difficulty each time the streak hits a positive
// multiple of StreakMilestone and lowers it after ErrorMilestone misses in
// a row. A decrement consumes the error run: ConsecutiveErrors resets to 0.
type MilestonePolicy struct{}

func (MilestonePolicy) Name() string { return "milestone" }

func (MilestonePolicy) Adjust(s *State, rules Rules, correct bool) {
	if correct {
		if s.CurrentStreak > 0 && s.CurrentStreak%rules.StreakMilestone == 0 && s.DifficultyLevel < rules.MaxChoices {
			s.DifficultyLevel++
		}
		return
	}
	if s.ConsecutiveErrors >= rules.ErrorMilestone {
		if s.DifficultyLevel > rules.MinChoices {
			s.DifficultyLevel--
		}
		s.ConsecutiveErrors = 0
	}
}
