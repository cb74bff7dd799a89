// Package wizard holds the multi-step subscription setup state keyed by
// chat. Sessions are ephemeral: 10 minutes of inactivity and they are
// gone, and any menu action clears them before dispatch.
package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
)

// Step is where the conversation stands.
type Step string

const (
	StepIdle            Step = "idle"
	StepAwaitCity       Step = "awaiting_city"
	StepAwaitQuantity   Step = "awaiting_quantity"
	StepAwaitBudget     Step = "awaiting_budget"
	StepAwaitScore      Step = "awaiting_score"
	StepAwaitSearchWord Step = "awaiting_search_keyword"
	StepAwaitSearchCity Step = "awaiting_search_city"
)

// SessionTTL is how long an untouched session survives.
const SessionTTL = 10 * time.Minute

// pruneEvery is the background sweep interval.
const pruneEvery = 5 * time.Minute

// Session is one in-flight wizard conversation.
type Session struct {
	Step           Step
	PendingSub     models.Subscription
	SelectedCities []string
	PendingKeyword string
	CreatedAt      time.Time
}

// Store is the chat-keyed session map. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Begin starts (or restarts) a session at the given step.
func (s *Store) Begin(chatID string, step Step) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{Step: step, CreatedAt: time.Now()}
	s.sessions[chatID] = session
	return session
}

// Get returns the live session for the chat, expiring it lazily.
func (s *Store) Get(chatID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return nil, false
	}
	if time.Since(session.CreatedAt) > SessionTTL {
		delete(s.sessions, chatID)
		return nil, false
	}
	return session, true
}

// Advance mutates the session under the lock and moves it to the next
// step. Returns false when no live session exists.
func (s *Store) Advance(chatID string, next Step, mutate func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok || time.Since(session.CreatedAt) > SessionTTL {
		delete(s.sessions, chatID)
		return false
	}
	if mutate != nil {
		mutate(session)
	}
	session.Step = next
	return true
}

// Clear drops the session. Called on every menu action so a half-done
// wizard never swallows an unrelated button press.
func (s *Store) Clear(chatID string) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
}

// Len reports live session count (expired sessions may linger until the
// next sweep).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunPruner sweeps expired sessions until ctx is cancelled.
func (s *Store) RunPruner(ctx context.Context) {
	ticker := time.NewTicker(pruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.prune(); dropped > 0 {
				log.Debug().Int("dropped", dropped).Msg("wizard sessions pruned")
			}
		}
	}
}

func (s *Store) prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for chatID, session := range s.sessions {
		if time.Since(session.CreatedAt) > SessionTTL {
			delete(s.sessions, chatID)
			dropped++
		}
	}
	return dropped
}
