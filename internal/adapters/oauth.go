package adapters

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshSkew triggers refresh slightly before actual expiry.
const refreshSkew = 60 * time.Second

// tokenSource manages one OAuth access token. Concurrent callers needing a
// refresh coalesce onto a single in-flight fetch; the rest await the same
// outcome.
type tokenSource struct {
	fetch func(ctx context.Context) (token string, ttl time.Duration, err error)

	mu     sync.Mutex
	token  string
	expiry time.Time
	group  singleflight.Group
}

func newTokenSource(fetch func(ctx context.Context) (string, time.Duration, error)) *tokenSource {
	return &tokenSource{fetch: fetch}
}

// Token returns a valid access token, refreshing when it is absent or
// within refreshSkew of expiry.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.token != "" && time.Until(t.expiry) > refreshSkew {
		token := t.token
		t.mu.Unlock()
		return token, nil
	}
	t.mu.Unlock()

	v, err, _ := t.group.Do("refresh", func() (any, error) {
		// Another caller may have refreshed while we queued.
		t.mu.Lock()
		if t.token != "" && time.Until(t.expiry) > refreshSkew {
			token := t.token
			t.mu.Unlock()
			return token, nil
		}
		t.mu.Unlock()

		token, ttl, err := t.fetch(ctx)
		if err != nil {
			return "", err
		}
		t.mu.Lock()
		t.token = token
		t.expiry = time.Now().Add(ttl)
		t.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the token after a 401 so the next call refreshes.
func (t *tokenSource) Invalidate() {
	t.mu.Lock()
	t.token = ""
	t.expiry = time.Time{}
	t.mu.Unlock()
}
