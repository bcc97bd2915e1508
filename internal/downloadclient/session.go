package downloadclient

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/avast/retry-go/v4"
)

// ErrAuth marks a back-end rejecting a cached session
var ErrAuth = errors.New("download client authentication failed")

// SessionStore caches one authenticated session per client id. Sessions are
// created lazily on first use and dropped when the back-end rejects them.
type SessionStore[T any] struct {
	mu       sync.Mutex
	sessions map[int64]T
}

// NewSessionStore creates an empty session cache
func NewSessionStore[T any]() *SessionStore[T] {
	return &SessionStore[T]{sessions: make(map[int64]T)}
}

// Get returns the cached session for a client, logging in when there is none
func (s *SessionStore[T]) Get(ctx context.Context, clientID int64, login func(context.Context) (T, error)) (T, error) {
	s.mu.Lock()
	if session, ok := s.sessions[clientID]; ok {
		s.mu.Unlock()
		return session, nil
	}
	s.mu.Unlock()

	session, err := login(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent caller may have logged in first; keep theirs
	if existing, ok := s.sessions[clientID]; ok {
		return existing, nil
	}
	s.sessions[clientID] = session
	return session, nil
}

// Invalidate drops a client's cached session
func (s *SessionStore[T]) Invalidate(clientID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, clientID)
}

// Len reports how many sessions are cached
func (s *SessionStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// isAuthError reports whether err looks like an expired or rejected session
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized")
}

// withSession runs fn against the client's session and, when the back-end
// rejects it, logs in again and retries exactly once.
func withSession[T any](ctx context.Context, store *SessionStore[T], clientID int64, login func(context.Context) (T, error), fn func(T) error) error {
	return retry.Do(
		func() error {
			session, err := store.Get(ctx, clientID, login)
			if err != nil {
				return err
			}
			return fn(session)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isAuthError),
		retry.OnRetry(func(uint, error) {
			store.Invalidate(clientID)
		}),
	)
}
