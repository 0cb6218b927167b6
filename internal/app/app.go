package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"gv-go/internal/api"
	"gv-go/internal/attachment"
	"gv-go/internal/config"
	"gv-go/internal/credstore"
	"gv-go/internal/database"
	"gv-go/internal/encryption"
	"gv-go/internal/gv"
)

// Version is reported in the User-Agent header.
var Version = "dev"

// GVApp is the application layer between the CLI and GVService.
// It constructs all dependencies from config, resolves raw attachment paths
// and closes the cache and log file on Close.
type GVApp struct {
	cfg       *config.Config
	cache     *database.SQLiteDatabase
	encryptor gv.Encryptor
	creds     gv.CredentialStore
	session   *gv.Session
	client    *api.Client
	service   *gv.GVService
	resolver  *attachment.Resolver
	logger    gv.Logger
	clock     gv.Clock
	op        *Operation
	logFile   *os.File
}

type options struct {
	httpClient *http.Client
	stderr     io.Writer
	clock      gv.Clock
	passphrase encryption.PassphraseFunc
}

// Option customizes NewGVApp.
type Option func(*options)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithStderr sets where log lines are mirrored besides the log file.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// WithPassphrase supplies the passphrase for a protected private key. It is
// only called when the stored session has to be decrypted.
func WithPassphrase(fn encryption.PassphraseFunc) Option {
	return func(o *options) { o.passphrase = fn }
}

// WithClock replaces the wall clock.
func WithClock(c gv.Clock) Option {
	return func(o *options) { o.clock = c }
}

// NewGVApp creates a fully wired GVApp from the given config.
// operation identifies the CLI command being run (e.g. "ListDonations", "Vote").
// The caller must call Close when done.
func NewGVApp(cfg *config.Config, operation string, opts ...Option) (*GVApp, error) {
	o := options{stderr: os.Stderr, clock: gv.RealClock{}}
	for _, fn := range opts {
		fn(&o)
	}

	op := NewOperation(operation, o.clock.Now())
	logger, logFile, err := newLogger(cfg.Log, op.ID, o.stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := wire(cfg, op, logger, o)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

func wire(cfg *config.Config, op *Operation, logger gv.Logger, o options) (*GVApp, error) {
	var encOpts []encryption.AgeOption
	if o.passphrase != nil {
		encOpts = append(encOpts, encryption.WithPassphrase(o.passphrase))
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption, encOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if cfg.Session.Type != "memory" && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not found: run 'gv config init' first")
	}

	creds, err := credstore.NewCredentialStoreFromConfig(cfg.Session, enc)
	if err != nil {
		return nil, fmt.Errorf("creating credential store: %w", err)
	}

	session := gv.NewSession(creds, logger)
	if err := session.Hydrate(); err != nil {
		if errors.Is(err, encryption.ErrPassphrase) {
			return nil, fmt.Errorf("unlocking session: %w", err)
		}
		// An unreadable session is dropped rather than blocking every command.
		logger.Warn("discarding stored session", "error", err)
		if cerr := creds.Clear(); cerr != nil {
			return nil, fmt.Errorf("clearing unreadable session: %w", cerr)
		}
	}

	cache, err := database.NewDatabaseFromConfig(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	client, err := api.NewClient(api.Options{
		BaseURL:        cfg.API.BaseURL,
		HTTPClient:     o.httpClient,
		RequestTimeout: timeout,
		Session:        session,
		Logger:         logger,
		UserAgent:      "gv/" + Version,
	})
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	svc := gv.NewGVService(client.Remote(), session, cache, logger, o.clock, gv.UUIDGenerator{})

	logger.Debug("operation started", "operation", op.Name, "api", cfg.API.BaseURL)

	return &GVApp{
		cfg:       cfg,
		cache:     cache,
		encryptor: enc,
		creds:     creds,
		session:   session,
		client:    client,
		service:   svc,
		resolver:  attachment.NewResolver(cfg.Attachments),
		logger:    logger,
		clock:     o.clock,
		op:        op,
	}, nil
}

// Service returns the wired service.
func (a *GVApp) Service() *gv.GVService { return a.service }

// Session returns the process session.
func (a *GVApp) Session() *gv.Session { return a.session }

// Logger returns the application logger.
func (a *GVApp) Logger() gv.Logger { return a.logger }

// Payload builds a request payload from plain fields and a map of form
// field name to local file path. Empty paths are skipped.
func (a *GVApp) Payload(fields map[string]any, files map[string]string) (gv.Payload, error) {
	p := gv.Payload{Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		p.Fields[k] = v
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if files[name] == "" {
			continue
		}
		f, err := a.resolver.Resolve(name, files[name])
		if err != nil {
			return gv.Payload{}, fmt.Errorf("attachment %s: %w", name, err)
		}
		p.Attachments = append(p.Attachments, f)
	}
	return p, nil
}

// Fail records err as the outcome of the operation.
func (a *GVApp) Fail(err error) {
	a.op.Fail(err)
}

// Close finishes the operation log entry and closes the cache and log file.
func (a *GVApp) Close() error {
	var firstErr error

	elapsed := a.clock.Now().Sub(a.op.StartedAt)
	if a.op.Failed() {
		a.logger.Warn("operation finished", "operation", a.op.Name, "status", a.op.Status,
			"duration", elapsed, "kind", gv.KindOf(a.op.Err).String(), "error", a.op.Err)
	} else {
		a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status, "duration", elapsed)
	}

	if err := a.cache.Close(); err != nil {
		firstErr = fmt.Errorf("closing cache: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
