// Command tourney-serve runs a tournament exactly like tourneyd, plus a
// small HTTP server that bridges the in-process status broadcaster to
// websocket subscribers, so a browser or tourney-watch can follow a run
// without touching the on-disk artifacts directly.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
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
	Config     string   `help:"path to the tournament HCL config" arg:"" type:"path"`
	Addr       string   `help:"http listen address for the websocket bridge" default:":8090"`
	DataDir    string   `help:"root directory for tournament artifacts" default:"./data"`
	EngineCmd  string   `help:"command that plays one game over stdio" required:""`
	EngineArgs []string `help:"extra arguments passed to the engine command"`
	Seed       int64    `help:"deterministic seed for scheduling and tiebreaks; 0 picks a random seed" default:"0"`
	Debug      bool     `help:"enable debug logging"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	kong.Parse(&cli,
		kong.Name("tourney-serve"),
		kong.Description("Runs a tournament and bridges its status stream to websocket subscribers"),
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

	cfg, err := cardgame.LoadTournamentConfig(cli.Config)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	seed := cli.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	st, err := store.New(filepath.Join(cli.DataDir, cfg.Name))
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}

	bc := broadcast.New(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(bc, logger))
	mux.HandleFunc("/status", statusHandler(bc))
	httpSrv := &http.Server{Addr: cli.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cli.Addr).Msg("websocket bridge listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server exited")
		}
	}()

	playerLogger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "tourney-serve"})
	resolve := newResolver(cfg, rng, playerLogger)
	loader := subprocess.NewLoader(cli.EngineCmd, cli.EngineArgs, logger)
	exec := table.NewExecutor(loader, resolve, logger)
	runner := tournament.New(cfg, st, bc, exec, quartz.NewReal(), logger, rng)

	runCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("received signal, stopping after in-flight games finish")
		cancel()
	}()

	status := runner.Run(runCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if status.State == cardgame.StateFailed {
		logger.Fatal().Str("error", status.Error).Msg("tournament failed")
	}
	logger.Info().Msg("tournament complete")
}

// wsHandler upgrades one connection and streams every status update for
// the tournament named in the "tournament" query parameter until the
// client disconnects or the tournament finishes.
func wsHandler(bc *broadcast.Broadcaster, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tournamentID := r.URL.Query().Get("tournament")
		if tournamentID == "" {
			http.Error(w, "missing tournament query parameter", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		var mu sync.Mutex
		done := make(chan struct{})
		unsubscribe := bc.Subscribe(tournamentID, func(status cardgame.TournamentStatus) {
			mu.Lock()
			defer mu.Unlock()
			select {
			case <-done:
				return
			default:
			}
			if err := conn.WriteJSON(status); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed, dropping subscriber")
				return
			}
			if status.State == cardgame.StateCompleted || status.State == cardgame.StateFailed {
				close(done)
			}
		})
		defer unsubscribe()

		// Block until the client goes away; the only inbound traffic we
		// expect is the close frame.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// statusHandler serves the latest known status as plain JSON, for clients
// that just want a poll rather than a live stream.
func statusHandler(bc *broadcast.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tournamentID := r.URL.Query().Get("tournament")
		status, ok := bc.Current(tournamentID)
		if !ok {
			http.Error(w, "unknown tournament", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"state":%q,"currentRound":%d,"totalRounds":%d,"completedGames":%d,"totalGames":%d}`,
			status.ID, status.State, status.CurrentRound, status.TotalRounds, status.CompletedGames, status.TotalGames)
	}
}

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
