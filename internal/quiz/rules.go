package quiz

// Rules carries the tunable constants of the game. The defaults match the
// shipped configuration; every value can be overridden through the service
// configuration.
type Rules struct {
	// Difficulty is the number of markers shown per round, kept within
	// [MinChoices, MaxChoices].
	MinChoices int
	MaxChoices int

	// Sliding-window policy: once WindowSize outcomes have accumulated,
	// accuracy >= RaiseThreshold raises difficulty and accuracy <=
	// LowerThreshold lowers it.
	WindowSize     int
	RaiseThreshold float64
	LowerThreshold float64

	// Milestone policy: difficulty rises when the streak is a positive
	// multiple of StreakMilestone and falls after ErrorMilestone
	// consecutive misses.
	StreakMilestone int
	ErrorMilestone  int

	// Shield economy: one rescue token is granted each time the streak
	// reaches a positive multiple of TokenMilestone.
	TokenMilestone int
	InitialTokens  int
}

// DefaultRules returns the stock tuning.
func DefaultRules() Rules {
	return Rules{
		MinChoices:      3,
		MaxChoices:      10,
		WindowSize:      5,
		RaiseThreshold:  0.8,
		LowerThreshold:  0.4,
		StreakMilestone: 7,
		ErrorMilestone:  3,
		TokenMilestone:  7,
		InitialTokens:   1,
	}
}

func (r Rules) clampDifficulty(level int) int {
	if level < r.MinChoices {
		return r.MinChoices
	}
	if level > r.MaxChoices {
		return r.MaxChoices
	}
	return level
}
