// Package broadcast implements the Status Broadcaster (C6): an in-memory
// registry of tournament states that pushes deltas to subscribers and
// survives subscriber churn, built on the same register/unregister/
// broadcast hub shape as a websocket pub/sub hub.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/kingdomforge/tourney/internal/cardgame"
)

// Subscriber receives one TournamentStatus snapshot per update.
type Subscriber func(cardgame.TournamentStatus)

type subscription struct {
	id  int
	sub Subscriber
}

// Broadcaster holds the latest status per tournament id and the current
// subscriber list per id. The registry is the only shared mutable
// state in the core; a single mutex guards both maps.
type Broadcaster struct {
	mu          sync.RWMutex
	latest      map[string]cardgame.TournamentStatus
	subscribers map[string][]subscription
	nextID      int
	logger      zerolog.Logger
}

// New constructs an empty Broadcaster.
func New(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		latest:      make(map[string]cardgame.TournamentStatus),
		subscribers: make(map[string][]subscription),
		logger:      logger.With().Str("component", "broadcast").Logger(),
	}
}

// Publish replaces the stored status for status.ID and delivers it to every
// current subscriber of that id. The Runner is the sole caller; it
// never blocks on a slow or misbehaving subscriber beyond the delivery call
// itself, since subscriber errors are swallowed.
func (b *Broadcaster) Publish(status cardgame.TournamentStatus) {
	b.mu.Lock()
	b.latest[status.ID] = status
	subs := append([]subscription(nil), b.subscribers[status.ID]...)
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s.sub, status)
	}
}

// Subscribe registers sub for tournamentID's updates and immediately
// delivers the current status, if any, so a late subscriber is never stuck
// with no data. The returned func removes the subscription.
func (b *Broadcaster) Subscribe(tournamentID string, sub Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[tournamentID] = append(b.subscribers[tournamentID], subscription{id: id, sub: sub})
	current, ok := b.latest[tournamentID]
	b.mu.Unlock()

	if ok {
		b.deliver(sub, current)
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[tournamentID]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[tournamentID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subscribers[tournamentID]) == 0 {
			delete(b.subscribers, tournamentID)
		}
	}
}

// Current returns the latest known status for tournamentID, if any.
func (b *Broadcaster) Current(tournamentID string) (cardgame.TournamentStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	status, ok := b.latest[tournamentID]
	return status, ok
}

// deliver swallows any panic or error path a subscriber triggers, per
// "broadcasting must never fail tournament execution".
func (b *Broadcaster) deliver(sub Subscriber, status cardgame.TournamentStatus) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn().Interface("panic", r).Str("tournament", status.ID).Msg("broadcast subscriber panicked, swallowing")
		}
	}()
	sub(status)
}
