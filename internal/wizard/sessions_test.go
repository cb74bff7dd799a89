package wizard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewStore()
	s.Begin("chat1", StepAwaitCity)

	session, ok := s.Get("chat1")
	require.True(t, ok)
	assert.Equal(t, StepAwaitCity, session.Step)

	ok = s.Advance("chat1", StepAwaitQuantity, func(sess *Session) {
		sess.SelectedCities = append(sess.SelectedCities, "portland")
	})
	require.True(t, ok)

	session, _ = s.Get("chat1")
	assert.Equal(t, StepAwaitQuantity, session.Step)
	assert.Equal(t, []string{"portland"}, session.SelectedCities)
}

func TestSessionClearOnMenuAction(t *testing.T) {
	s := NewStore()
	s.Begin("chat1", StepAwaitBudget)
	s.Clear("chat1")

	_, ok := s.Get("chat1")
	assert.False(t, ok)
	assert.False(t, s.Advance("chat1", StepAwaitScore, nil))
}

func TestSessionExpiresLazily(t *testing.T) {
	s := NewStore()
	session := s.Begin("chat1", StepAwaitCity)
	session.CreatedAt = time.Now().Add(-SessionTTL - time.Minute)

	_, ok := s.Get("chat1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "lazy expiry removes the entry")
}

func TestPruneSweepsExpired(t *testing.T) {
	s := NewStore()
	stale := s.Begin("stale", StepAwaitCity)
	stale.CreatedAt = time.Now().Add(-11 * time.Minute)
	s.Begin("fresh", StepAwaitCity)

	assert.Equal(t, 1, s.prune())
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestBeginRestartsSession(t *testing.T) {
	s := NewStore()
	s.Begin("chat1", StepAwaitCity)
	s.Advance("chat1", StepAwaitQuantity, func(sess *Session) {
		sess.SelectedCities = []string{"portland"}
	})

	s.Begin("chat1", StepAwaitSearchWord)
	session, ok := s.Get("chat1")
	require.True(t, ok)
	assert.Equal(t, StepAwaitSearchWord, session.Step)
	assert.Empty(t, session.SelectedCities, "restart discards prior progress")
}
