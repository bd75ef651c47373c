package cardgame

import (
	"fmt"
	"os"
	"regexp"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// namePattern is the tournament-name validation rule: lowercase
// alphanumeric and hyphen only.
var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// idPattern constrains PlayerConfig.ID to a lowercase ASCII slug.
var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// PlayerConfig describes one tournament participant.
type PlayerConfig struct {
	ID        string `hcl:"id,label"`
	Name      string `hcl:"name"`
	Endpoint  string `hcl:"endpoint"`
	DelayWrap bool   `hcl:"delay_wrap,optional"`
}

// TournamentConfig describes one tournament request.
type TournamentConfig struct {
	Name            string         `hcl:"name"`
	Rounds          int            `hcl:"rounds"`
	GamesPerPlayer  int            `hcl:"games_per_player"`
	MaxTurns        int            `hcl:"max_turns"`
	PoolSize        int            `hcl:"pool_size,optional"`
	Players         []PlayerConfig `hcl:"player,block"`
}

// DefaultTournamentConfig returns a config with sensible defaults; pool
// size is decoupled from CPU count since games block on external
// player/engine processes rather than spinning the CPU.
func DefaultTournamentConfig() TournamentConfig {
	return TournamentConfig{
		Rounds:         1,
		GamesPerPlayer: 1,
		MaxTurns:       100,
		PoolSize:       32,
	}
}

// hclFile is the top-level decode target; a config file contains exactly
// one tournament block, following the server/table/bot block layout the
// teacher uses for its own HCL configuration.
type hclFile struct {
	Tournament TournamentConfig `hcl:"tournament,block"`
}

// LoadTournamentConfig parses an HCL tournament-config file from disk.
func LoadTournamentConfig(path string) (TournamentConfig, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return TournamentConfig{}, fmt.Errorf("parse %s: %w", path, diags)
	}

	var out hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &out); diags.HasErrors() {
		return TournamentConfig{}, fmt.Errorf("decode %s: %w", path, diags)
	}

	cfg := out.Tournament
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultTournamentConfig().PoolSize
	}
	return cfg, nil
}

// WriteExampleConfig writes a minimal starter config, used by
// `tourneyd init` and by tests that want a real file on disk.
func WriteExampleConfig(path string) error {
	const example = `tournament {
  name             = "example-cup"
  rounds           = 3
  games_per_player = 4
  max_turns        = 100
  pool_size        = 32

  player "p1" {
    name     = "Player One"
    endpoint = "http://localhost:9001"
  }
  player "p2" {
    name     = "Player Two"
    endpoint = "strategy:random"
  }
  player "p3" {
    name     = "Player Three"
    endpoint = "strategy:aggressive"
  }
  player "p4" {
    name       = "Player Four"
    endpoint   = "strategy:callingstation"
    delay_wrap = true
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}

// Validate enforces name charset, the rounds/games/turns minimums, minimum
// player count, player id charset and uniqueness, and a non-empty endpoint.
// It does not check the 4-divisibility rule; games per player is adjusted
// by the caller via schedule.AdjustGamesPerPlayer before scheduling.
func (c TournamentConfig) Validate() error {
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("tournament name %q must match %s", c.Name, namePattern.String())
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be >= 1, got %d", c.Rounds)
	}
	if c.GamesPerPlayer < 1 {
		return fmt.Errorf("games_per_player must be >= 1, got %d", c.GamesPerPlayer)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be >= 1, got %d", c.MaxTurns)
	}
	if len(c.Players) < 4 {
		return fmt.Errorf("tournament requires at least 4 players, got %d", len(c.Players))
	}

	seen := make(map[string]bool, len(c.Players))
	for _, p := range c.Players {
		if !idPattern.MatchString(p.ID) {
			return fmt.Errorf("player id %q must match %s", p.ID, idPattern.String())
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate player id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Endpoint == "" {
			return fmt.Errorf("player %q has no endpoint", p.ID)
		}
	}
	return nil
}
