// Package session owns the client-side authentication lifecycle: one
// store per process tracks who is signed in, restores the session from
// persisted credentials at startup and hands the guard what it needs to
// gate navigation.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/soficodes/bloghub/internal/client"
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/notifications"
)

type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Authenticator is the slice of the API the store needs.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (client.Session, error)
	Register(ctx context.Context, name, email, password string) (client.Session, error)
	FetchProfile(ctx context.Context, token string) (identity.Identity, error)
	UpdateProfile(ctx context.Context, token, name string) (identity.Identity, error)
	RevokeSession(ctx context.Context, token string) error
}

// navigation targets handed to callers after auth transitions
const (
	TargetLogin    = "/login"
	TargetLanding  = "/"
	TargetBlogHome = "/blogs"
)

// Store is the single source of truth for the session. Network calls run
// without the lock; each mutating entry point bumps a generation counter
// and a settling call that observes a newer generation discards its
// result instead of clobbering the state that superseded it.
type Store struct {
	api      Authenticator
	storage  TokenStorage
	notifier notifications.Notifier // nil disables notices

	mu    sync.Mutex
	state State
	user  *identity.Identity
	token string
	gen   uint64
}

func NewStore(api Authenticator, storage TokenStorage, notifier notifications.Notifier) *Store {
	return &Store{
		api:     api,
		storage: storage,

		notifier: notifier,
		state:    StateUninitialized,
	}
}

// Snapshot returns the current state and a copy of the signed-in user,
// nil when nobody is.
func (s *Store) Snapshot() (State, *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return s.state, nil
	}

	u := *s.user

	return s.state, &u
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLoading reports whether the session has not settled yet. Callers
// rendering on top of the store show a placeholder until this is false.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateUninitialized || s.state == StateRestoring
}

// Token returns the access token for API calls, empty when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Restore settles the session from persisted credentials. With no stored
// token it goes straight to anonymous without touching the network. Only
// the first call does anything; later calls return immediately.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()

	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil
	}

	token, err := s.storage.Load()

	if err != nil || token == "" {
		s.state = StateAnonymous
		s.mu.Unlock()
		return err
	}

	s.state = StateRestoring
	gen := s.gen
	s.mu.Unlock()

	u, err := s.api.FetchProfile(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		// a login or logout won the race; its outcome stands
		return nil
	}

	if err != nil {
		s.state = StateAnonymous

		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrInvalidCredentials) {
			// the credential is dead, drop it so the next start is clean
			_ = s.storage.Clear()
			return nil
		}

		// transient failure: keep the stored token for the next start
		s.notice("Session restore failed", "Could not reach the server, continuing signed out.", err)
		return err
	}

	s.state = StateAuthenticated
	s.user = &u
	s.token = token

	return nil
}

// Login exchanges credentials for a session and returns where to
// navigate next.
func (s *Store) Login(ctx context.Context, email, password string) (string, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sess, err := s.api.Authenticate(ctx, email, password)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return "", context.Canceled
	}

	if err != nil {
		// a failed attempt never tears down a session that is already
		// signed in
		if s.state != StateAuthenticated {
			s.state = StateAnonymous
			s.user = nil
			s.token = ""
		}
		return "", err
	}

	s.settleAuthenticated(sess)

	return sess.RedirectTo, nil
}

// Signup registers a new account. New accounts are regular users, so the
// target is always the blog feed.
func (s *Store) Signup(ctx context.Context, name, email, password string) (string, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sess, err := s.api.Register(ctx, name, email, password)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return "", context.Canceled
	}

	if err != nil {
		if s.state != StateAuthenticated {
			s.state = StateAnonymous
			s.user = nil
			s.token = ""
		}
		return "", err
	}

	s.settleAuthenticated(sess)

	return sess.RedirectTo, nil
}

// Logout always succeeds locally: state and storage are cleared before
// the server hears about it, and a failed revocation is only noticed,
// never surfaced as a logout failure.
func (s *Store) Logout(ctx context.Context) string {
	s.mu.Lock()
	s.gen++
	token := s.token
	s.state = StateAnonymous
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	if err := s.storage.Clear(); err != nil {
		s.notice("Sign out", "Could not remove the stored credential.", err)
	}

	if token != "" {
		if err := s.api.RevokeSession(ctx, token); err != nil {
			s.notice("Sign out", "Server-side revocation failed, the session will expire on its own.", err)
		}
	}

	return TargetLanding
}

// UpdateName renames the signed-in user and refreshes the cached
// profile.
func (s *Store) UpdateName(ctx context.Context, name string) (identity.Identity, error) {
	s.mu.Lock()

	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return identity.Identity{}, client.ErrUnauthorized
	}

	token := s.token
	gen := s.gen
	s.mu.Unlock()

	u, err := s.api.UpdateProfile(ctx, token, name)

	if err != nil {
		return identity.Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen == gen && s.state == StateAuthenticated {
		s.user = &u
	}

	return u, nil
}

// callers hold the lock
func (s *Store) settleAuthenticated(sess client.Session) {
	s.state = StateAuthenticated
	u := sess.User
	s.user = &u
	s.token = sess.AccessToken

	if err := s.storage.Save(sess.AccessToken); err != nil {
		s.notice("Sign in", "Could not persist the session, it will not survive a restart.", err)
	}
}

func (s *Store) notice(title, detail string, err error) {
	if s.notifier == nil {
		return
	}

	if err != nil {
		detail = detail + " cause: " + err.Error()
	}

	s.notifier.Notify(context.Background(), notifications.Notice{
		Title:  title,
		Detail: detail,
		Err:    err != nil,
	})
}
