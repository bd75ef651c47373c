// Command tourneyd runs one tournament to completion from an HCL config
// file, writing round results and a replay tape to a data directory as it
// goes.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/kingdomforge/tourney/internal/broadcast"
	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/engine/subprocess"
	"github.com/kingdomforge/tourney/internal/player"
	"github.com/kingdomforge/tourney/internal/player/factory"
	"github.com/kingdomforge/tourney/internal/store"
	"github.com/kingdomforge/tourney/internal/table"
	"github.com/kingdomforge/tourney/internal/tournament"
)

var cli struct {
	Debug bool `help:"enable debug logging" default:"false"`

	Run  RunCmd  `cmd:"" help:"run a tournament from a config file"`
	Init InitCmd `cmd:"" help:"write a starter tournament config"`
}

// RunCmd drives one tournament to completion.
type RunCmd struct {
	Config     string   `help:"path to the tournament HCL config" arg:"" type:"path"`
	DataDir    string   `help:"root directory for tournament artifacts" default:"./data"`
	EngineCmd  string   `help:"command that plays one game over stdio" required:""`
	EngineArgs []string `help:"extra arguments passed to the engine command"`
	Seed       int64    `help:"deterministic seed for scheduling and tiebreaks; 0 picks a random seed" default:"0"`
	Validate   bool     `help:"resolve every configured player and exit, without running the tournament" default:"false"`
}

func (r *RunCmd) Run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := cardgame.LoadTournamentConfig(r.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seed := r.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	st, err := store.New(filepath.Join(r.DataDir, cfg.Name))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	bc := broadcast.New(logger)
	unsubscribe := bc.Subscribe(cfg.Name, func(status cardgame.TournamentStatus) {
		logger.Info().
			Str("state", string(status.State)).
			Int("completed", status.CompletedGames).
			Int("total", status.TotalGames).
			Int("round", status.CurrentRound).
			Msg("tournament progress")
	})
	defer unsubscribe()

	playerLogger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "tourneyd"})
	resolve := newResolver(cfg, rng, playerLogger)

	if r.Validate {
		return validatePlayers(cfg, resolve, logger)
	}

	loader := subprocess.NewLoader(r.EngineCmd, r.EngineArgs, logger)
	exec := table.NewExecutor(loader, resolve, logger)

	runner := tournament.New(cfg, st, bc, exec, quartz.NewReal(), logger, rng)

	status := runner.Run(ctx)
	if status.State == cardgame.StateFailed {
		return fmt.Errorf("tournament failed: %s", status.Error)
	}
	logger.Info().
		Int("nonConvergentUpdates", runner.NonConvergentCount()).
		Msg("tournament complete")
	return nil
}

// newResolver builds a PlayerResolver closed over the tournament's player
// configs, resolving each id at most once per table.
func newResolver(cfg cardgame.TournamentConfig, rng *rand.Rand, logger *charmlog.Logger) table.PlayerResolver {
	byID := make(map[string]cardgame.PlayerConfig, len(cfg.Players))
	for _, p := range cfg.Players {
		byID[p.ID] = p
	}
	return func(playerID string) (player.Player, error) {
		pc, ok := byID[playerID]
		if !ok {
			return nil, fmt.Errorf("no player config for id %q", playerID)
		}
		return factory.New(pc, rng, logger)
	}
}

// validatePlayers resolves every configured player up front, the way a real
// run would resolve them for each table, so a bad endpoint or unknown
// strategy tag is caught before any game is scheduled.
func validatePlayers(cfg cardgame.TournamentConfig, resolve table.PlayerResolver, logger zerolog.Logger) error {
	var failed []string
	for _, p := range cfg.Players {
		if _, err := resolve(p.ID); err != nil {
			logger.Error().Err(err).Str("player", p.ID).Msg("player failed to resolve")
			failed = append(failed, p.ID)
			continue
		}
		logger.Info().Str("player", p.ID).Str("endpoint", p.Endpoint).Msg("player resolved")
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d players failed to resolve: %s", len(failed), len(cfg.Players), strings.Join(failed, ", "))
	}
	logger.Info().Int("players", len(cfg.Players)).Msg("all players resolved")
	return nil
}

// InitCmd writes a starter config to get a new tournament off the ground.
type InitCmd struct {
	Path string `help:"path to write the starter config" default:"tournament.hcl" arg:"" optional:""`
}

func (i *InitCmd) Run() error {
	if err := cardgame.WriteExampleConfig(i.Path); err != nil {
		return fmt.Errorf("write example config: %w", err)
	}
	fmt.Printf("wrote starter config to %s\n", i.Path)
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("tourneyd"),
		kong.Description("Tournament scheduler and execution core for practice card-game tournaments"),
		kong.UsageOnError(),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	runCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("received signal, stopping after in-flight games finish")
		cancel()
	}()
	defer cancel()

	switch {
	case strings.HasPrefix(ctx.Command(), "run"):
		ctx.FatalIfErrorf(cli.Run.Run(runCtx, logger))
	case strings.HasPrefix(ctx.Command(), "init"):
		ctx.FatalIfErrorf(cli.Init.Run())
	default:
		ctx.Fatalf("unknown command: %s", ctx.Command())
	}
}
