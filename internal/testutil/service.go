package testutil

import (
	"testing"

	"gv-go/internal/api"
	"gv-go/internal/credstore"
	"gv-go/internal/database"
	"gv-go/internal/gv"
)

// Env bundles a service wired against a FakeAPI, the way the CLI wires it.
type Env struct {
	API     *FakeAPI
	Client  *api.Client
	Session *gv.Session
	Creds   *credstore.MemoryStore
	Cache   *database.SQLiteDatabase
	Clock   *StubClock
	IDGen   *StubIDGenerator
	Service *gv.GVService
}

// EnvOption customizes NewEnv.
type EnvOption func(*envOptions)

type envOptions struct {
	loggedOut bool
	noCache   bool
}

// LoggedOut starts the environment without a session.
func LoggedOut() EnvOption {
	return func(o *envOptions) { o.loggedOut = true }
}

// WithoutCache disables the snapshot cache.
func WithoutCache() EnvOption {
	return func(o *envOptions) { o.noCache = true }
}

// NewTestSession returns a memory-backed session, signed in with FakeToken
// unless loggedOut is set.
func NewTestSession(t *testing.T, loggedOut bool) (*gv.Session, *credstore.MemoryStore) {
	t.Helper()

	store := credstore.NewMemoryStore()
	session := gv.NewSession(store, nil)
	if !loggedOut {
		creds := &gv.Credentials{
			Token: FakeToken,
			User:  gv.User{ID: 1, Name: "Ana", Email: FakeEmail, Verified: true},
		}
		if err := session.Login(creds); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
	}
	return session, store
}

// NewTestClient returns an api client for f using session.
func NewTestClient(t *testing.T, f *FakeAPI, session *gv.Session, idgen gv.IDGenerator) *api.Client {
	t.Helper()

	client, err := api.NewClient(api.Options{
		BaseURL: f.URL(),
		Session: session,
		IDGen:   idgen,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// NewEnv starts a FakeAPI and wires a service against it.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	env := &Env{
		API:   NewFakeAPI(t),
		Clock: FixedClock(),
		IDGen: NewStubIDGenerator(),
	}
	env.Session, env.Creds = NewTestSession(t, o.loggedOut)
	env.Client = NewTestClient(t, env.API, env.Session, env.IDGen)

	var cache gv.Cache
	if !o.noCache {
		env.Cache = NewTestCache(t)
		cache = env.Cache
	}
	env.Service = gv.NewGVService(env.Client.Remote(), env.Session, cache, nil, env.Clock, env.IDGen)
	return env
}
