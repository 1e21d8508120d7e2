package keycloakauth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dunv/ulog"
	"github.com/google/uuid"
)

const defaultSessionTTL = 30 * time.Minute

// Session is the server side state behind a JSESSIONID cookie.
type Session struct {
	ID        string
	Principal *Principal
	CsrfToken string
	ExpiresAt time.Time
}

// SessionStore keeps sessions in memory. Entries live until they expire or are
// invalidated, a janitor removes expired ones.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		sessions: map[string]*Session{},
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create stores a new session for principal and sets its cookie. A fresh id is
// used for every login.
func (s *SessionStore) Create(w http.ResponseWriter, r *http.Request, principal *Principal) *Session {
	session := &Session{
		ID:        uuid.New().String(),
		Principal: principal,
		CsrfToken: uuid.New().String(),
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	// readable by the admin UI so it can echo the token in X-XSRF-TOKEN
	http.SetCookie(w, &http.Cookie{
		Name:     CsrfCookieName,
		Value:    session.CsrfToken,
		Path:     "/",
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

// Get returns the live session referenced by the request cookie, nil otherwise.
// Every access slides the expiry.
func (s *SessionStore) Get(r *http.Request) *Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[cookie.Value]
	if !ok {
		return nil
	}
	now := s.now()
	if now.After(session.ExpiresAt) {
		delete(s.sessions, session.ID)
		return nil
	}
	session.ExpiresAt = now.Add(s.ttl)
	return session
}

// Invalidate removes the session of the request (if any) and deletes the cookies.
// The removed session is returned so logout can still reach its id token.
func (s *SessionStore) Invalidate(w http.ResponseWriter, r *http.Request) *Session {
	var session *Session
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		s.mu.Lock()
		session = s.sessions[cookie.Value]
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}

	for _, name := range []string{SessionCookieName, CsrfCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Unix(0, 0),
		})
	}
	return session
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// removeExpired drops all sessions past their expiry and returns how many were removed.
func (s *SessionStore) removeExpired() int {
	now := s.now()
	removed := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor removes expired sessions every interval until ctx is done.
func (s *SessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.removeExpired(); removed > 0 {
				ulog.Tracef("removed %d expired sessions", removed)
			}
		}
	}
}
