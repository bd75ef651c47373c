// Package store implements the Result Store (C5): atomic round-file and
// tournament-metadata writes, resume detection, and tape compilation.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/fileutil"
	"github.com/kingdomforge/tourney/internal/rating"
)

const filePerm = 0o644

// Metadata is the content of tournament.json.
type Metadata struct {
	Name    string           `json:"name"`
	Config  MetadataConfig   `json:"config"`
	Players []MetadataPlayer `json:"players"`
}

type MetadataConfig struct {
	Rounds         int `json:"rounds"`
	GamesPerPlayer int `json:"gamesPerPlayer"`
	MaxTurns       int `json:"maxTurns"`
}

type MetadataPlayer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// Match is one table's recorded result within a round.
type Match struct {
	TableNumber int            `json:"tableNumber"`
	PlayerIDs   []string       `json:"playerIds"`
	Outcomes    []MatchOutcome `json:"outcomes"`
}

type MatchOutcome struct {
	GameIndex  int                  `json:"gameIndex"`
	Placements []cardgame.Placement `json:"placements"`
}

// RoundResult is the content of one round-NN.json. Invariant:
// after write, every game in the round is represented exactly once.
type RoundResult struct {
	RoundNumber  int      `json:"roundNumber"`
	KingdomCards []string `json:"kingdomCards"`
	Matches      []Match  `json:"matches"`
}

// Store owns the on-disk artifacts for one tournament, rooted at
// <dataDir>/<name>/.
type Store struct {
	dir string
}

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tournament directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) metadataPath() string { return filepath.Join(s.dir, "tournament.json") }

func (s *Store) roundPath(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf("round-%02d.json", n))
}

func (s *Store) tapePath() string { return filepath.Join(s.dir, "tape.json") }

// WriteMetadata writes tournament.json atomically.
func (s *Store) WriteMetadata(meta Metadata) error {
	return fileutil.WriteJSONAtomic(s.metadataPath(), meta, filePerm)
}

// RoundExists reports whether round n's result file is already present,
// the basis for resume.
func (s *Store) RoundExists(n int) bool {
	_, err := os.Stat(s.roundPath(n))
	return err == nil
}

// WriteRound writes a round result atomically.
func (s *Store) WriteRound(result RoundResult) error {
	return fileutil.WriteJSONAtomic(s.roundPath(result.RoundNumber), result, filePerm)
}

func (s *Store) readMetadata() (Metadata, error) {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		return Metadata{}, fmt.Errorf("read tournament.json: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse tournament.json: %w", err)
	}
	return meta, nil
}

func (s *Store) readRound(n int) (RoundResult, error) {
	data, err := os.ReadFile(s.roundPath(n))
	if err != nil {
		return RoundResult{}, fmt.Errorf("read round %d: %w", n, err)
	}
	var round RoundResult
	if err := json.Unmarshal(data, &round); err != nil {
		return RoundResult{}, fmt.Errorf("parse round %d: %w", n, err)
	}
	return round, nil
}

// BuildTape reads tournament.json and every round-NN.json present, replays
// all games through a fresh Tracker in the canonical replay order (round
// ascending; within a round, game index ascending; table ascending for a
// given game index), and writes tape.json.
func (s *Store) BuildTape(params rating.ModelParams) (Tape, error) {
	meta, err := s.readMetadata()
	if err != nil {
		return Tape{}, err
	}

	ids := make([]string, len(meta.Players))
	for i, p := range meta.Players {
		ids[i] = p.ID
	}
	tracker := rating.NewTracker(ids, params, zerolog.Nop())
	initial := params.Default().Display()

	deckStats := make(map[string]map[string]int, len(ids))
	for _, id := range ids {
		deckStats[id] = make(map[string]int)
	}

	events := make([]Event, 0)
	seq := 0

	for roundNum := 1; roundNum <= meta.Config.Rounds; roundNum++ {
		if !s.RoundExists(roundNum) {
			continue
		}
		round, err := s.readRound(roundNum)
		if err != nil {
			return Tape{}, err
		}

		ordered := canonicalOrder(round.Matches)
		for _, entry := range ordered {
			placements := entry.outcome.Placements
			ratingPlacements := make([]rating.Placement, len(placements))
			for i, p := range placements {
				ratingPlacements[i] = rating.Placement{PlayerID: p.PlayerID, Score: p.Score}
				for _, card := range p.Deck {
					deckStats[p.PlayerID][card]++
				}
			}
			tracker.ProcessGame(ratingPlacements)

			seq++
			events = append(events, Event{
				Seq:          seq,
				Round:        roundNum,
				Game:         entry.outcome.GameIndex,
				Table:        entry.tableNumber,
				Tables:       len(round.Matches),
				GamesInRound: len(round.Matches),
				KingdomCards: round.KingdomCards,
				Placements:   toScorePlacements(placements),
				Ratings:      tracker.DisplayRatings(),
				Mu:           muMap(tracker.Ratings()),
				Sigma:        sigmaMap(tracker.Ratings()),
				Points:       tracker.AllPoints(),
			})
		}
	}

	tapePlayers := make([]TapePlayer, len(meta.Players))
	for i, p := range meta.Players {
		tapePlayers[i] = TapePlayer{ID: p.ID, Name: p.Name}
	}

	tape := Tape{
		Players:   tapePlayers,
		Scoring:   Scoring{Model: "trueskill", Initial: initial},
		Events:    events,
		DeckStats: deckStats,
	}

	if err := fileutil.WriteJSONAtomic(s.tapePath(), tape, filePerm); err != nil {
		return Tape{}, fmt.Errorf("write tape: %w", err)
	}
	return tape, nil
}

type orderedOutcome struct {
	tableNumber int
	outcome     MatchOutcome
}

// canonicalOrder flattens a round's matches into (game index asc, table
// asc) order.
func canonicalOrder(matches []Match) []orderedOutcome {
	out := make([]orderedOutcome, 0, len(matches))
	for _, m := range matches {
		for _, o := range m.Outcomes {
			out = append(out, orderedOutcome{tableNumber: m.TableNumber, outcome: o})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].outcome.GameIndex != out[j].outcome.GameIndex {
			return out[i].outcome.GameIndex < out[j].outcome.GameIndex
		}
		return out[i].tableNumber < out[j].tableNumber
	})
	return out
}

func toScorePlacements(placements []cardgame.Placement) []ScorePlacement {
	out := make([]ScorePlacement, len(placements))
	for i, p := range placements {
		out[i] = ScorePlacement{ID: p.PlayerID, Score: p.Score}
	}
	return out
}

func muMap(ratings map[string]rating.Rating) map[string]float64 {
	out := make(map[string]float64, len(ratings))
	for id, r := range ratings {
		out[id] = r.Mu
	}
	return out
}

func sigmaMap(ratings map[string]rating.Rating) map[string]float64 {
	out := make(map[string]float64, len(ratings))
	for id, r := range ratings {
		out[id] = r.Sigma
	}
	return out
}
