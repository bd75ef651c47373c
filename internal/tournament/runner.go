// Package tournament implements the Tournament Runner (C4), the scheduling
// core: it turns a TournamentConfig into a completed artifact set while
// emitting a continuous stream of status deltas.
package tournament

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kingdomforge/tourney/internal/broadcast"
	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/rating"
	"github.com/kingdomforge/tourney/internal/schedule"
	"github.com/kingdomforge/tourney/internal/store"
	"github.com/kingdomforge/tourney/internal/table"
)

// staggerDelay is the per-item submission throttle applied to the first
// poolSize games, so downstream completions arrive smoothly rather than
// bunched.
const staggerDelay = 50 * time.Millisecond

// Executor is the subset of table.Executor the Runner depends on, so tests
// can substitute a stub without building a real engine/player graph.
type Executor interface {
	Execute(ctx context.Context, indexWithinRound int, assignment cardgame.GameAssignment, kingdom cardgame.KingdomSelection, maxTurns int) cardgame.GameOutcome
}

var _ Executor = (*table.Executor)(nil)

// panicCounter is satisfied by *table.Executor; stubs used in tests don't
// need to implement it, so RecoveredPanics stays zero for them instead of
// requiring every test double to grow a no-op method.
type panicCounter interface {
	PanicCount() int
}

// Runner owns one tournament's worker pool, tracker, and control path for
// its lifetime.
type Runner struct {
	Config    cardgame.TournamentConfig
	Store     *store.Store
	Broadcast *broadcast.Broadcaster
	Executor  Executor
	Clock     quartz.Clock
	Logger    zerolog.Logger
	RNG       *rand.Rand

	tracker *rating.Tracker
}

// New constructs a Runner for one tournament. rng drives schedule
// generation (kingdom selection and game assignment) for every round; the
// rating tiebreak does not draw from it, being seeded from each game's own
// placements.
func New(cfg cardgame.TournamentConfig, st *store.Store, bc *broadcast.Broadcaster, exec Executor, clock quartz.Clock, logger zerolog.Logger, rng *rand.Rand) *Runner {
	playerIDs := make([]string, len(cfg.Players))
	for i, p := range cfg.Players {
		playerIDs[i] = p.ID
	}
	return &Runner{
		Config:    cfg,
		Store:     st,
		Broadcast: bc,
		Executor:  exec,
		Clock:     clock,
		Logger:    logger.With().Str("component", "tournament").Str("tournament", cfg.Name).Logger(),
		RNG:       rng,
		tracker:   rating.NewTracker(playerIDs, rating.DefaultModelParams(), logger),
	}
}

type job struct {
	round       int
	gameIndex   int
	tableNumber int
	assignment  cardgame.GameAssignment
	kingdom     cardgame.KingdomSelection
}

type completion struct {
	job     job
	outcome cardgame.GameOutcome
}

type roundPlan struct {
	roundNumber int
	kingdom     cardgame.KingdomSelection
	assignments []cardgame.GameAssignment
	resumed     bool
}

// Run executes the state machine in full: plan, dispatch, drain
// completions, persist rounds, compile the tape. It returns the terminal
// TournamentStatus.
func (r *Runner) Run(ctx context.Context) cardgame.TournamentStatus {
	status := cardgame.TournamentStatus{ID: r.Config.Name, State: cardgame.StateQueued, TotalRounds: r.Config.Rounds}
	r.Broadcast.Publish(status)

	plans, totalGames, err := r.plan()
	if err != nil {
		return r.fail(status, fmt.Errorf("plan tournament: %w", err))
	}

	meta := store.Metadata{
		Name: r.Config.Name,
		Config: store.MetadataConfig{
			Rounds:         r.Config.Rounds,
			GamesPerPlayer: r.Config.GamesPerPlayer,
			MaxTurns:       r.Config.MaxTurns,
		},
		Players: make([]store.MetadataPlayer, len(r.Config.Players)),
	}
	for i, p := range r.Config.Players {
		meta.Players[i] = store.MetadataPlayer{ID: p.ID, Name: p.Name, Endpoint: p.Endpoint}
	}
	if err := r.Store.WriteMetadata(meta); err != nil {
		return r.fail(status, fmt.Errorf("write metadata: %w", err))
	}

	if totalGames == 0 {
		return r.complete(status)
	}

	status.State = cardgame.StateRunning
	status.TotalGames = totalGames
	r.Broadcast.Publish(status)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completions := make(chan completion, totalGames)
	g, gctx := errgroup.WithContext(runCtx)
	poolSize := r.Config.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	g.SetLimit(poolSize)

	go r.dispatch(gctx, g, plans, poolSize, completions)

	fatalErr := r.drain(&status, plans, completions)

	if waitErr := g.Wait(); waitErr != nil && fatalErr == nil && waitErr != context.Canceled {
		fatalErr = waitErr
	}
	if fatalErr == nil && status.CompletedGames < totalGames {
		fatalErr = fmt.Errorf("run stopped after %d of %d games", status.CompletedGames, totalGames)
	}

	if fatalErr != nil {
		cancel()
		return r.fail(status, fatalErr)
	}

	return r.complete(status)
}

// plan precomputes KingdomSelection and GameAssignment[] for every
// non-resumed round, and skips (but still accounts for) rounds whose result
// file already exists.
func (r *Runner) plan() ([]roundPlan, int, error) {
	plans := make([]roundPlan, 0, r.Config.Rounds)
	total := 0
	adjusted := schedule.AdjustGamesPerPlayer(len(r.Config.Players), r.Config.GamesPerPlayer)

	playerIDs := make([]string, len(r.Config.Players))
	for i, p := range r.Config.Players {
		playerIDs[i] = p.ID
	}

	for roundNum := 1; roundNum <= r.Config.Rounds; roundNum++ {
		if r.Store.RoundExists(roundNum) {
			plans = append(plans, roundPlan{roundNumber: roundNum, resumed: true})
			continue
		}

		kingdom := schedule.SelectKingdom(r.RNG)
		games := schedule.GenerateBalancedGames(playerIDs, adjusted, r.RNG)
		plans = append(plans, roundPlan{roundNumber: roundNum, kingdom: kingdom, assignments: games})
		total += len(games)
	}
	return plans, total, nil
}

// dispatch submits every game from every non-resumed round in a single
// burst, staggering the first poolSize submissions.
func (r *Runner) dispatch(ctx context.Context, g *errgroup.Group, plans []roundPlan, poolSize int, completions chan<- completion) {
	submitted := 0
dispatchLoop:
	for _, plan := range plans {
		if plan.resumed {
			continue
		}
		for gi, assignment := range plan.assignments {
			j := job{round: plan.roundNumber, gameIndex: gi, tableNumber: gi, assignment: assignment, kingdom: plan.kingdom}

			if submitted < poolSize {
				if err := r.staggerWait(ctx); err != nil {
					// Context already canceled: stop submitting new games,
					// but let g.Wait() below still drain the ones already
					// in flight before the completions channel is closed.
					break dispatchLoop
				}
			}
			submitted++

			g.Go(func() error {
				outcome := r.Executor.Execute(ctx, j.gameIndex, j.assignment, j.kingdom, r.Config.MaxTurns)
				// completions is buffered to totalGames, so this never
				// blocks; a finished outcome is always delivered even if
				// ctx was canceled while the game was in flight. ctx only
				// gates whether new games get submitted, not whether one
				// that already ran gets reported.
				completions <- completion{job: j, outcome: outcome}
				return ctx.Err()
			})
		}
	}

	go func() {
		_ = g.Wait()
		close(completions)
	}()
}

func (r *Runner) staggerWait(ctx context.Context) error {
	select {
	case <-r.Clock.After(staggerDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain is the single control path: it consumes completions in whatever
// order they arrive, feeds the tracker, buffers round results, and
// publishes status deltas. It returns a non-nil error only for a
// fatal (round-write) failure.
func (r *Runner) drain(status *cardgame.TournamentStatus, plans []roundPlan, completions <-chan completion) error {
	roundSize := make(map[int]int, len(plans))
	roundKingdom := make(map[int]cardgame.KingdomSelection, len(plans))
	buffers := make(map[int][]completion)

	for _, plan := range plans {
		if !plan.resumed {
			roundSize[plan.roundNumber] = len(plan.assignments)
			roundKingdom[plan.roundNumber] = plan.kingdom
		}
	}

	seenRound := 0
	for c := range completions {
		r.tracker.ProcessGame(toRatingPlacements(c.outcome.Placements))

		buffers[c.job.round] = append(buffers[c.job.round], c)
		status.CompletedGames++
		if c.job.round > seenRound {
			seenRound = c.job.round
		}
		status.CurrentRound = seenRound
		status.Ratings = r.tracker.DisplayRatings()
		status.RecoveredPanics = r.recoveredPanics()
		r.Broadcast.Publish(*status)

		if len(buffers[c.job.round]) == roundSize[c.job.round] {
			result := buildRoundResult(c.job.round, roundKingdom[c.job.round], buffers[c.job.round])
			if err := r.Store.WriteRound(result); err != nil {
				return fmt.Errorf("write round %d: %w", c.job.round, err)
			}
			delete(buffers, c.job.round)
		}
	}
	return nil
}

func buildRoundResult(roundNumber int, kingdom cardgame.KingdomSelection, completions []completion) store.RoundResult {
	matches := make([]store.Match, 0, len(completions))
	for _, c := range completions {
		playerIDs := make([]string, 0, len(c.job.assignment.Seats))
		for _, s := range c.job.assignment.Seats {
			if s != "" {
				playerIDs = append(playerIDs, s)
			}
		}
		matches = append(matches, store.Match{
			TableNumber: c.job.tableNumber,
			PlayerIDs:   playerIDs,
			Outcomes: []store.MatchOutcome{{
				GameIndex:  c.outcome.IndexWithinRound,
				Placements: c.outcome.Placements,
			}},
		})
	}
	return store.RoundResult{RoundNumber: roundNumber, KingdomCards: kingdom, Matches: matches}
}

func toRatingPlacements(placements []cardgame.Placement) []rating.Placement {
	out := make([]rating.Placement, len(placements))
	for i, p := range placements {
		out[i] = rating.Placement{PlayerID: p.PlayerID, Score: p.Score}
	}
	return out
}

func (r *Runner) fail(status cardgame.TournamentStatus, err error) cardgame.TournamentStatus {
	status.State = cardgame.StateFailed
	status.Error = err.Error()
	r.Logger.Error().Err(err).Msg("tournament failed")
	r.Broadcast.Publish(status)
	return status
}

func (r *Runner) complete(status cardgame.TournamentStatus) cardgame.TournamentStatus {
	if _, err := r.Store.BuildTape(rating.DefaultModelParams()); err != nil {
		return r.fail(status, fmt.Errorf("build tape: %w", err))
	}
	status.State = cardgame.StateCompleted
	status.CurrentRound = r.Config.Rounds
	status.Ratings = r.tracker.DisplayRatings()
	status.RecoveredPanics = r.recoveredPanics()
	r.Broadcast.Publish(status)
	return status
}

// recoveredPanics reads the Executor's panic counter when it exposes one;
// test stubs that don't implement panicCounter simply report zero.
func (r *Runner) recoveredPanics() int {
	if pc, ok := r.Executor.(panicCounter); ok {
		return pc.PanicCount()
	}
	return 0
}

// NonConvergentCount exposes the tracker's per-tournament non-convergence
// counter, e.g. for inclusion in operator-facing diagnostics.
func (r *Runner) NonConvergentCount() int {
	return r.tracker.NonConvergentCount()
}
