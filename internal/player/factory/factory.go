// Package factory implements the Player Factory (C8): it resolves a
// cardgame.PlayerConfig into a concrete player.Player, without the core
// depending on how a local strategy is loaded.
package factory

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/player"
	"github.com/kingdomforge/tourney/internal/player/local"
)

const (
	defaultDelayMinMs = 50
	defaultDelayMaxMs = 400
)

// New resolves one PlayerConfig:
//   - "http://..." or "https://..." -> a remote Player hitting that base URL.
//   - "strategy:<tag>" -> a built-in local strategy.
//   - "classpath:<name>" or "module:<name>" -> the same local-strategy
//     registry, keyed by <name>; reflective class loading is reformulated
//     here as a named-factory lookup rather than a dynamic loader.
//
// rng seeds both the resolved local strategy (if any) and the optional
// delay decorator, so a tournament's player behavior is reproducible from
// one seed.
func New(cfg cardgame.PlayerConfig, rng *rand.Rand, logger *log.Logger) (player.Player, error) {
	p, err := resolve(cfg, rng, logger)
	if err != nil {
		return nil, err
	}
	if cfg.DelayWrap {
		p = player.NewDelayWrapped(p, defaultDelayMinMs, defaultDelayMaxMs, rng)
	}
	return p, nil
}

func resolve(cfg cardgame.PlayerConfig, rng *rand.Rand, logger *log.Logger) (player.Player, error) {
	endpoint := cfg.Endpoint

	switch {
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		return player.NewRemote(cfg.Name, endpoint, logger), nil

	case strings.HasPrefix(endpoint, "strategy:"):
		tag := strings.TrimPrefix(endpoint, "strategy:")
		p, ok := local.New(tag, cfg.Name, rng)
		if !ok {
			return nil, fmt.Errorf("player %q: unknown local strategy %q (have %v)", cfg.ID, tag, local.Tags)
		}
		return p, nil

	case strings.HasPrefix(endpoint, "classpath:"), strings.HasPrefix(endpoint, "module:"):
		tag := endpoint[strings.Index(endpoint, ":")+1:]
		p, ok := local.New(tag, cfg.Name, rng)
		if !ok {
			return nil, fmt.Errorf("player %q: unknown local module %q (have %v)", cfg.ID, tag, local.Tags)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("player %q: endpoint %q matches no known scheme", cfg.ID, endpoint)
	}
}
