package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/cache"
	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
	"github.com/Idan-Levin/slack-shopping-agent/internal/product"
)

// State is the multi-turn conversation memory for one thread: the
// product candidates last shown and, once one is chosen, the pending
// quantity question. It is keyed explicitly and expires, rather than
// living as ambient process state.
type State struct {
	SessionID  string              `json:"session_id"`
	Candidates []product.Candidate `json:"candidates,omitempty"`
	Chosen     *product.Candidate  `json:"chosen,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// SessionKey derives the state key for a channel/thread pair.
func SessionKey(channel, threadTS string) string {
	return fmt.Sprintf("%s:%s", channel, threadTS)
}

// StateStore persists conversation state in the cache backend with a
// TTL, so stale "how many do you need?" exchanges expire on their own.
type StateStore struct {
	cache  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// StateModule provides the conversation state store to Fx.
var StateModule = fx.Provide(NewStateStore)

// NewStateStore builds a StateStore from configuration.
func NewStateStore(store cache.Store, cfg config.Config, logger *zap.Logger) *StateStore {
	return &StateStore{
		cache:  store,
		ttl:    cfg.Cache.StateTTL,
		logger: logger,
	}
}

func stateKey(sessionID string) string {
	return "conversation:" + sessionID
}

// Get loads the state for a session, or returns a fresh one when none
// exists or the stored one expired.
func (s *StateStore) Get(ctx context.Context, sessionID string) *State {
	fresh := &State{SessionID: sessionID, UpdatedAt: time.Now().UTC()}
	if s.cache == nil {
		return fresh
	}

	bytes, err := s.cache.Get(ctx, stateKey(sessionID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return fresh
	}
	if err != nil {
		s.logger.Warn("conversation state read failed", zap.String("session", sessionID), zap.Error(err))
		return fresh
	}

	var state State
	if err := json.Unmarshal(bytes, &state); err != nil {
		s.logger.Warn("conversation state corrupt, starting over", zap.String("session", sessionID), zap.Error(err))
		return fresh
	}
	return &state
}

// Put stores the state, refreshing its expiry.
func (s *StateStore) Put(ctx context.Context, state *State) {
	if s.cache == nil || state == nil {
		return
	}
	state.UpdatedAt = time.Now().UTC()
	bytes, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("conversation state marshal failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, stateKey(state.SessionID), bytes, s.ttl); err != nil {
		s.logger.Warn("conversation state write failed", zap.String("session", state.SessionID), zap.Error(err))
	}
}

// Clear drops the state for a session, typically after an add or a
// cancellation completes the exchange.
func (s *StateStore) Clear(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, stateKey(sessionID)); err != nil {
		s.logger.Warn("conversation state delete failed", zap.String("session", sessionID), zap.Error(err))
	}
}
