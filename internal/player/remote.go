package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// logEventTimeout is the hard cap on observer notifications: they
// never block the game loop for longer than this, win or lose.
const logEventTimeout = 5 * time.Second

// remotePlayer is the "remote" tagged variant: a participant backed by
// an HTTP service reachable at baseURL, correlated across calls by a
// per-session uuid.
type remotePlayer struct {
	name       string
	baseURL    string
	sessionID  uuid.UUID
	httpClient *http.Client
	logger     *log.Logger
}

// NewRemote constructs the remote Player variant.
func NewRemote(name, baseURL string, logger *log.Logger) Player {
	return &remotePlayer{
		name:      name,
		baseURL:   baseURL,
		sessionID: uuid.New(),
		httpClient: &http.Client{
			Timeout: 0, // decide waits as long as the remote service takes
		},
		logger: logger.WithPrefix("remote-player").With("player", name),
	}
}

func (r *remotePlayer) Name() string { return r.name }

type decideRequest struct {
	State      string   `json:"state"`
	Options    []string `json:"options"`
	Reason     *Event   `json:"reason,omitempty"`
	PlayerUUID string   `json:"playerUuid"`
}

type decideResponse struct {
	Decision string `json:"decision"`
}

func (r *remotePlayer) Decide(ctx context.Context, state string, options []string, event *Event) (Decision, error) {
	body, err := json.Marshal(decideRequest{
		State:      state,
		Options:    options,
		Reason:     event,
		PlayerUUID: r.sessionID.String(),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("marshal decide request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/decide", bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("build decide request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("decide request to %s: %w", r.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Decision{}, fmt.Errorf("read decide response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return Decision{}, fmt.Errorf("decide request to %s: status %d: %s", r.baseURL, resp.StatusCode, data)
	}

	var out decideResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Decision{}, fmt.Errorf("decode decide response: %w", err)
	}
	return Decision{Choice: out.Decision}, nil
}

type logEventRequest struct {
	State      string `json:"state"`
	Event      Event  `json:"event"`
	PlayerUUID string `json:"playerUuid"`
}

// Observe is fire-and-observe: failures are logged, never propagated, and
// bounded to logEventTimeout regardless of the caller's context.
func (r *remotePlayer) Observe(ctx context.Context, state string, event Event) {
	body, err := json.Marshal(logEventRequest{State: state, Event: event, PlayerUUID: r.sessionID.String()})
	if err != nil {
		r.logger.Warn("failed to encode log-event", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, logEventTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/log-event", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("failed to build log-event request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("log-event request failed", "err", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		r.logger.Warn("log-event returned non-2xx", "status", resp.StatusCode)
	}
}
