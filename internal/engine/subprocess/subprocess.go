// Package subprocess is one concrete Engine Loader (C7): it plays a game by
// spawning a configured external command and speaking a line-delimited
// JSON protocol over its stdin/stdout, relaying every decide/observe call
// the module makes back to the real Player for that seat.
package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/engine"
	"github.com/kingdomforge/tourney/internal/player"
)

// Loader spawns one subprocess per game. The module reads one playRequest
// line, then may write any number of "decide"/"observe" lines - each
// "decide" is answered with one reply line before the module's next line
// is read - before finally writing one "result" line and exiting.
type Loader struct {
	Command string
	Args    []string
	Logger  zerolog.Logger
}

// NewLoader constructs a subprocess-backed engine Loader.
func NewLoader(command string, args []string, logger zerolog.Logger) *Loader {
	return &Loader{Command: command, Args: args, Logger: logger.With().Str("component", "engine-loader").Logger()}
}

func (l *Loader) Create(players []player.Player, kingdom cardgame.KingdomSelection, maxTurns int) (engine.Engine, error) {
	byName := make(map[string]player.Player, len(players))
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name()
		byName[p.Name()] = p
	}
	return &gameProcess{
		command:  l.Command,
		args:     l.Args,
		players:  names,
		byName:   byName,
		kingdom:  kingdom,
		maxTurns: maxTurns,
		logger:   l.Logger,
	}, nil
}

// playRequest is the one line the host writes before reading anything back.
type playRequest struct {
	Players  []string `json:"players"`
	Kingdom  []string `json:"kingdom"`
	MaxTurns int      `json:"maxTurns"`
}

// engineMessage is every line the module writes, discriminated by Type;
// only the fields relevant to that type are populated.
type engineMessage struct {
	Type    string        `json:"type"`
	Seat    string        `json:"seat,omitempty"`
	State   string        `json:"state,omitempty"`
	Options []string      `json:"options,omitempty"`
	Reason  *player.Event `json:"reason,omitempty"`
	Event   *player.Event `json:"event,omitempty"`
	Result  *playResponse `json:"result,omitempty"`
}

type playResponse struct {
	PlayerResults []engine.PlayerResult `json:"playerResults"`
}

// decideReply is the one line the host writes back after a "decide"
// message.
type decideReply struct {
	Decision string `json:"decision"`
}

type gameProcess struct {
	command  string
	args     []string
	players  []string
	byName   map[string]player.Player
	kingdom  cardgame.KingdomSelection
	maxTurns int
	logger   zerolog.Logger
}

func (g *gameProcess) Play(ctx context.Context) (engine.Result, error) {
	cmd := exec.CommandContext(ctx, g.command, g.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return engine.Result{}, fmt.Errorf("open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return engine.Result{}, fmt.Errorf("open engine stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return engine.Result{}, fmt.Errorf("start engine process: %w", err)
	}

	encoder := json.NewEncoder(stdin)
	if err := encoder.Encode(playRequest{Players: g.players, Kingdom: g.kingdom, MaxTurns: g.maxTurns}); err != nil {
		stdin.Close()
		_ = cmd.Wait()
		return engine.Result{}, fmt.Errorf("write play request: %w", err)
	}

	result, relayErr := g.relay(ctx, stdout, encoder)
	stdin.Close()

	if waitErr := cmd.Wait(); waitErr != nil {
		g.logger.Error().Err(waitErr).Str("stderr", stderr.String()).Msg("engine process failed")
		if relayErr == nil {
			relayErr = fmt.Errorf("run engine process: %w", waitErr)
		}
	}
	if relayErr != nil {
		return engine.Result{}, relayErr
	}
	return result, nil
}

// relay reads one message per line from the module until it sends a
// "result", answering every "decide" inline and forwarding every
// "observe" straight to the seat's Player.
func (g *gameProcess) relay(ctx context.Context, stdout io.Reader, encoder *json.Encoder) (engine.Result, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg engineMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return engine.Result{}, fmt.Errorf("decode engine message: %w", err)
		}

		switch msg.Type {
		case "decide":
			if err := encoder.Encode(decideReply{Decision: g.decide(ctx, msg)}); err != nil {
				return engine.Result{}, fmt.Errorf("write decide reply: %w", err)
			}
		case "observe":
			g.observe(ctx, msg)
		case "result":
			if msg.Result == nil {
				return engine.Result{}, fmt.Errorf("result message missing playerResults")
			}
			return engine.Result{PlayerResults: msg.Result.PlayerResults}, nil
		default:
			return engine.Result{}, fmt.Errorf("unknown engine message type %q", msg.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return engine.Result{}, fmt.Errorf("read engine output: %w", err)
	}
	return engine.Result{}, fmt.Errorf("engine process exited without sending a result")
}

// decide resolves the seat to its Player and blocks on Decide, answering
// with an empty choice (and a warning) if the seat is unknown or the
// player errors, so one bad relay never hangs the subprocess waiting for a
// reply line that would otherwise never come.
func (g *gameProcess) decide(ctx context.Context, msg engineMessage) string {
	p, ok := g.byName[msg.Seat]
	if !ok {
		g.logger.Warn().Str("seat", msg.Seat).Msg("decide request for unknown seat, answering empty")
		return ""
	}
	decision, err := p.Decide(ctx, msg.State, msg.Options, msg.Reason)
	if err != nil {
		g.logger.Warn().Err(err).Str("seat", msg.Seat).Msg("player decide failed, answering empty")
		return ""
	}
	return decision.Choice
}

func (g *gameProcess) observe(ctx context.Context, msg engineMessage) {
	p, ok := g.byName[msg.Seat]
	if !ok || msg.Event == nil {
		return
	}
	p.Observe(ctx, msg.State, *msg.Event)
}
