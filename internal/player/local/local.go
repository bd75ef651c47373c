// Package local implements the built-in Player strategies used when a PlayerConfig's endpoint
// names a known local-strategy tag instead of a remote URL.
package local

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/kingdomforge/tourney/internal/player"
)

// Tags lists the registered strategy names, for config validation and the
// factory's error messages.
var Tags = []string{"random", "aggressive", "callingstation", "complex"}

// New constructs the named local strategy, or false if tag is unknown.
func New(tag, name string, rng *rand.Rand) (player.Player, bool) {
	switch tag {
	case "random":
		return &randomStrategy{name: name, rng: rng}, true
	case "aggressive":
		return &aggressiveStrategy{name: name}, true
	case "callingstation":
		return &callingStationStrategy{name: name}, true
	case "complex":
		return &weightedStrategy{name: name, rng: rng}, true
	default:
		return nil, false
	}
}

// randomStrategy picks uniformly among the offered options.
type randomStrategy struct {
	name string
	rng  *rand.Rand
}

func (s *randomStrategy) Name() string { return s.name }

func (s *randomStrategy) Decide(_ context.Context, _ string, options []string, _ *player.Event) (player.Decision, error) {
	if len(options) == 0 {
		return player.Decision{}, nil
	}
	return player.Decision{Choice: options[s.rng.IntN(len(options))]}, nil
}

func (s *randomStrategy) Observe(context.Context, string, player.Event) {}

// aggressiveStrategy prefers the first option that looks like taking an
// action (buying, playing a card) over passing or ending a turn.
type aggressiveStrategy struct{ name string }

func (s *aggressiveStrategy) Name() string { return s.name }

func (s *aggressiveStrategy) Decide(_ context.Context, _ string, options []string, _ *player.Event) (player.Decision, error) {
	if len(options) == 0 {
		return player.Decision{}, nil
	}
	for _, opt := range options {
		lower := strings.ToLower(opt)
		if strings.Contains(lower, "buy") || strings.Contains(lower, "play") {
			return player.Decision{Choice: opt}, nil
		}
	}
	return player.Decision{Choice: options[len(options)-1]}, nil
}

func (s *aggressiveStrategy) Observe(context.Context, string, player.Event) {}

// callingStationStrategy always takes the least committal option available
// (pass/end-turn), mirroring a never-fold calling station's passivity.
type callingStationStrategy struct{ name string }

func (s *callingStationStrategy) Name() string { return s.name }

func (s *callingStationStrategy) Decide(_ context.Context, _ string, options []string, _ *player.Event) (player.Decision, error) {
	if len(options) == 0 {
		return player.Decision{}, nil
	}
	for _, opt := range options {
		lower := strings.ToLower(opt)
		if strings.Contains(lower, "pass") || strings.Contains(lower, "end") {
			return player.Decision{Choice: opt}, nil
		}
	}
	return player.Decision{Choice: options[0]}, nil
}

func (s *callingStationStrategy) Observe(context.Context, string, player.Event) {}

// weightedStrategy scores every option by keyword and samples from the
// resulting weight distribution rather than always taking the top score,
// so it neither always attacks nor always folds back to random play.
type weightedStrategy struct {
	name string
	rng  *rand.Rand
}

func (s *weightedStrategy) Name() string { return s.name }

func (s *weightedStrategy) Decide(_ context.Context, _ string, options []string, _ *player.Event) (player.Decision, error) {
	if len(options) == 0 {
		return player.Decision{}, nil
	}
	weights := make([]float64, len(options))
	total := 0.0
	for i, opt := range options {
		weights[i] = optionWeight(opt)
		total += weights[i]
	}
	if total <= 0 {
		return player.Decision{Choice: options[s.rng.IntN(len(options))]}, nil
	}
	pick := s.rng.Float64() * total
	running := 0.0
	for i, w := range weights {
		running += w
		if pick <= running {
			return player.Decision{Choice: options[i]}, nil
		}
	}
	return player.Decision{Choice: options[len(options)-1]}, nil
}

func (s *weightedStrategy) Observe(context.Context, string, player.Event) {}

// optionWeight gives buy/play actions the most mass, pass/end the least,
// and everything else a flat middle weight.
func optionWeight(opt string) float64 {
	lower := strings.ToLower(opt)
	switch {
	case strings.Contains(lower, "buy"), strings.Contains(lower, "play"):
		return 3.0
	case strings.Contains(lower, "pass"), strings.Contains(lower, "end"):
		return 0.5
	default:
		return 1.0
	}
}
