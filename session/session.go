// Package session holds the active provider credential of the process.
//
// A Session starts Unauthenticated, optionally restored from a Store, and becomes
// Authenticated only through SetAuthenticated after a successful activation. There
// is no logout transition. Clearing a credential is a Store operation.
//
// Concurrent activations are not serialized: the last successful SetAuthenticated wins.
// Signed calls only read the session and may run concurrently with each other.
package session

import (
	"context"
	"fmt"
	"sync/atomic"

	httpsig "github.com/leelynne/gbusiness-httpsig"
)

// State is the tag of the session variant.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Auth is a snapshot of the session. Credential is the zero value unless State is Authenticated.
type Auth struct {
	State      State
	Credential Credential
}

// Store persists the credential outside the process.
type Store interface {
	// Restore returns the stored credential. ok is false when nothing is stored.
	Restore(ctx context.Context) (cred Credential, ok bool, err error)
	// Persist replaces the stored credential.
	Persist(ctx context.Context, cred Credential) error
	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Session is safe for concurrent use.
type Session struct {
	store Store
	cur   atomic.Pointer[Auth]
}

// New returns an Unauthenticated session. store may be nil, in which case credentials are kept in memory only.
func New(store Store) *Session {
	s := &Session{store: store}
	s.cur.Store(&Auth{State: Unauthenticated})
	return s
}

// Restore returns a session seeded from store. An empty store yields an Unauthenticated session.
func Restore(ctx context.Context, store Store) (*Session, error) {
	s := New(store)
	if store == nil {
		return s, nil
	}
	cred, ok, err := store.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore credential: %w", err)
	}
	if !ok {
		return s, nil
	}
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("restored credential is invalid: %w", err)
	}
	s.cur.Store(&Auth{State: Authenticated, Credential: cred})
	return s, nil
}

// Current returns the current snapshot.
func (s *Session) Current() Auth {
	return *s.cur.Load()
}

// SetAuthenticated persists cred and then makes it the active credential.
// If persisting fails the session is left unchanged.
func (s *Session) SetAuthenticated(ctx context.Context, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Persist(ctx, cred); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}
	s.cur.Store(&Auth{State: Authenticated, Credential: cred})
	return nil
}

// Credential returns the active credential or an error with code httpsig.ErrUnauthenticated.
func (s *Session) Credential() (Credential, error) {
	a := s.cur.Load()
	if a.State != Authenticated {
		return Credential{}, httpsig.NewError(httpsig.ErrUnauthenticated, "No active credential. Activate a key first")
	}
	return a.Credential, nil
}
