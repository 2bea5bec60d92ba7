package quiz

import (
	"math/rand/v2"

	"github.com/europakollen/capitalquiz/internal/gazetteer"
)

// Round is one question: the capital the player must find among the
// presented choices. The correct capital appears exactly once in Choices.
type Round struct {
	Prompt  gazetteer.Capital
	Choices []gazetteer.Capital
}

// composeRound builds the shuffled choice set for a round. The number of
// choices is min(level, gazetteer size); fewer choices than requested is
// fine when the gazetteer is small.
func composeRound(g *gazetteer.Gazetteer, rng *rand.Rand, correct gazetteer.Capital, level int) Round {
	requested := min(level, g.Len())
	distractors := g.Sample(rng, correct.City, requested-1)

	choices := make([]gazetteer.Capital, 0, len(distractors)+1)
	choices = append(choices, correct)
	seen := map[string]struct{}{correct.City: {}}
	for _, d := range distractors {
		// Sample already excludes the correct city; the dedup guards
		// against a malformed gazetteer all the same.
		if _, ok := seen[d.City]; ok {
			continue
		}
		seen[d.City] = struct{}{}
		choices = append(choices, d)
	}

	rng.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return Round{Prompt: correct, Choices: choices}
}

func (r Round) contains(city string) bool {
	for _, c := range r.Choices {
		if c.City == city {
			return true
		}
	}
	return false
}
