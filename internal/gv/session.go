package gv

import (
	"fmt"
	"sync"
)

// Session is the process-wide authentication state. It is hydrated from a
// CredentialStore at startup and injected into the remote client, which
// reads the token on every request so login and logout take effect at once.
type Session struct {
	mu     sync.RWMutex
	creds  *Credentials
	store  CredentialStore
	logger Logger
	onEnd  []func()
}

// NewSession creates an empty session backed by store. A nil store keeps
// the session in memory only.
func NewSession(store CredentialStore, logger Logger) *Session {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Session{store: store, logger: logger}
}

// Hydrate loads persisted credentials, if any.
func (s *Session) Hydrate() error {
	if s.store == nil {
		return nil
	}
	creds, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	if creds != nil {
		s.logger.Debug("session hydrated", "user_id", creds.User.ID)
	}
	return nil
}

// Login installs and persists creds. Signing in as a different account
// ends the current session first, so nothing cached for the previous
// account survives into the new one.
func (s *Session) Login(creds *Credentials) error {
	if creds == nil || creds.Token == "" {
		return fmt.Errorf("login: empty token")
	}
	if s.store != nil {
		if err := s.store.Save(creds); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
	}

	s.mu.Lock()
	prev := s.creds
	s.creds = creds
	var hooks []func()
	if prev != nil && !sameAccount(prev, creds) {
		hooks = append(hooks, s.onEnd...)
	}
	s.mu.Unlock()

	if len(hooks) > 0 {
		s.logger.Info("account switched", "from_user_id", prev.User.ID, "to_user_id", creds.User.ID)
		for _, fn := range hooks {
			fn()
		}
	}
	s.logger.Info("logged in", "user_id", creds.User.ID)
	return nil
}

// sameAccount compares user ids when both are known, tokens otherwise.
func sameAccount(a, b *Credentials) bool {
	if a.User.ID != 0 && b.User.ID != 0 {
		return a.User.ID == b.User.ID
	}
	return a.Token == b.Token
}

// Logout clears the session in memory and in the store, then runs the
// registered teardown hooks.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.creds = nil
	hooks := append([]func(){}, s.onEnd...)
	s.mu.Unlock()

	var err error
	if s.store != nil {
		if cerr := s.store.Clear(); cerr != nil {
			err = fmt.Errorf("clearing credentials: %w", cerr)
		}
	}
	for _, fn := range hooks {
		fn()
	}

	s.logger.Info("logged out")
	return err
}

// OnEnd registers fn to run whenever the session ends: on Logout, and on a
// Login that replaces a different account.
func (s *Session) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// Token returns the current bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.Token
}

// User returns the signed-in user.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return User{}, false
	}
	return s.creds.User, true
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
