package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gv-go/internal/config"
	"gv-go/internal/encryption"
	"gv-go/internal/gv"
	"gv-go/internal/testutil"
)

func newTestConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.NewConfig(baseURL, t.TempDir())
	cfg.Session.Type = "memory"
	cfg.Cache.Type = "memory"
	cfg.Encryption.Type = "test"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, stderr *bytes.Buffer) *GVApp {
	t.Helper()
	a, err := NewGVApp(cfg, "Test", WithStderr(stderr), WithClock(testutil.FixedClock()))
	if err != nil {
		t.Fatalf("NewGVApp() error = %v", err)
	}
	return a
}

func TestNewGVApp_Memory(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	f.SeedDonations(gv.Donation{ID: 1, Title: "Flood relief"})
	cfg := newTestConfig(t, f.URL())

	var stderr bytes.Buffer
	a := newTestApp(t, cfg, &stderr)

	if _, err := a.Service().Login(context.Background(), testutil.FakeEmail, testutil.FakePassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	listing, err := a.Service().Donations.List(context.Background(), gv.ListQuery{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listing.Items) != 1 {
		t.Errorf("List() returned %d items, want 1", len(listing.Items))
	}

	req, _ := f.LastRequest("GET /donations")
	if ua := req.Header.Get("User-Agent"); ua != "gv/"+Version {
		t.Errorf("User-Agent = %q", ua)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Log.Dir, "gv.log")); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestNewGVApp_MissingKeys(t *testing.T) {
	cfg := config.NewConfig("http://localhost:8000/api", t.TempDir())
	cfg.Cache.Type = "memory"

	_, err := NewGVApp(cfg, "Test", WithStderr(&bytes.Buffer{}))
	if err == nil {
		t.Fatal("NewGVApp() expected error without keys")
	}
	if !strings.Contains(err.Error(), "gv config init") {
		t.Errorf("error = %v, want hint to run config init", err)
	}
}

func TestNewGVApp_PersistedSession(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	cfg := config.NewConfig(f.URL(), t.TempDir())
	cfg.Cache.Type = "memory"
	if err := encryption.NewAgeEncryptor(cfg.Encryption).Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var stderr bytes.Buffer
	first := newTestApp(t, cfg, &stderr)
	if _, err := first.Service().Login(context.Background(), testutil.FakeEmail, testutil.FakePassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	first.Close()

	second := newTestApp(t, cfg, &stderr)
	defer second.Close()
	if got := second.Session().Token(); got != testutil.FakeToken {
		t.Errorf("Token() = %q, want hydrated token", got)
	}

	t.Run("logout removes the session file", func(t *testing.T) {
		if err := second.Service().Logout(); err != nil {
			t.Fatalf("Logout() error = %v", err)
		}
		if _, err := os.Stat(cfg.Session.Path); !os.IsNotExist(err) {
			t.Errorf("session file still present: %v", err)
		}
	})
}

func TestNewGVApp_ProtectedKey(t *testing.T) {
	f := testutil.NewFakeAPI(t)
	cfg := config.NewConfig(f.URL(), t.TempDir())
	cfg.Cache.Type = "memory"
	passphrase := func(p string) encryption.PassphraseFunc {
		return func() (string, error) { return p, nil }
	}
	if err := encryption.NewAgeEncryptor(cfg.Encryption, encryption.WithPassphrase(passphrase("s3cret"))).Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	open := func(p string) (*GVApp, error) {
		return NewGVApp(cfg, "Test", WithStderr(&bytes.Buffer{}), WithClock(testutil.FixedClock()), WithPassphrase(passphrase(p)))
	}

	first, err := open("s3cret")
	if err != nil {
		t.Fatalf("NewGVApp() error = %v", err)
	}
	if _, err := first.Service().Login(context.Background(), testutil.FakeEmail, testutil.FakePassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	first.Close()

	t.Run("right passphrase hydrates the session", func(t *testing.T) {
		a, err := open("s3cret")
		if err != nil {
			t.Fatalf("NewGVApp() error = %v", err)
		}
		defer a.Close()
		if got := a.Session().Token(); got != testutil.FakeToken {
			t.Errorf("Token() = %q, want hydrated token", got)
		}
	})

	t.Run("wrong passphrase keeps the session file", func(t *testing.T) {
		if _, err := open("nope"); !errors.Is(err, encryption.ErrPassphrase) {
			t.Fatalf("NewGVApp() error = %v, want ErrPassphrase", err)
		}
		if _, err := os.Stat(cfg.Session.Path); err != nil {
			t.Errorf("session file removed after a wrong passphrase: %v", err)
		}
	})
}

func TestNewGVApp_CorruptSession(t *testing.T) {
	cfg := config.NewConfig("http://localhost:8000/api", t.TempDir())
	cfg.Cache.Type = "memory"
	if err := encryption.NewAgeEncryptor(cfg.Encryption).Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := os.WriteFile(cfg.Session.Path, []byte("garbage"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var stderr bytes.Buffer
	a := newTestApp(t, cfg, &stderr)
	defer a.Close()

	if a.Session().Authenticated() {
		t.Error("Authenticated() = true with corrupt session")
	}
	if !strings.Contains(stderr.String(), "discarding stored session") {
		t.Errorf("stderr = %q, want discard warning", stderr.String())
	}
	if _, err := os.Stat(cfg.Session.Path); !os.IsNotExist(err) {
		t.Errorf("corrupt session file not removed: %v", err)
	}
}

func TestGVApp_Payload(t *testing.T) {
	cfg := newTestConfig(t, "http://localhost:8000/api")
	a := newTestApp(t, cfg, &bytes.Buffer{})
	defer a.Close()

	dir := t.TempDir()
	photo := filepath.Join(dir, "photo.JPG")
	os.WriteFile(photo, []byte("jpg"), 0644)
	script := filepath.Join(dir, "run.sh")
	os.WriteFile(script, []byte("#!/bin/sh"), 0755)

	t.Run("resolves allowed files", func(t *testing.T) {
		p, err := a.Payload(map[string]any{"title": "x"}, map[string]string{"image": photo, "document": ""})
		if err != nil {
			t.Fatalf("Payload() error = %v", err)
		}
		if p.Fields["title"] != "x" {
			t.Errorf("Fields = %v", p.Fields)
		}
		if len(p.Attachments) != 1 || p.Attachments[0].FieldName() != "image" || p.Attachments[0].FileName() != "photo.JPG" {
			t.Errorf("Attachments = %+v", p.Attachments)
		}
	})

	t.Run("rejects disallowed files", func(t *testing.T) {
		if _, err := a.Payload(nil, map[string]string{"image": script}); err == nil {
			t.Error("Payload() expected error for disallowed file")
		}
	})

	t.Run("rejects missing files", func(t *testing.T) {
		_, err := a.Payload(nil, map[string]string{"image": filepath.Join(dir, "nope.png")})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Payload() error = %v, want ErrNotExist", err)
		}
	})
}

func TestGVApp_CloseLogsFailure(t *testing.T) {
	cfg := newTestConfig(t, "http://localhost:8000/api")
	var stderr bytes.Buffer
	a := newTestApp(t, cfg, &stderr)

	a.Fail(gv.NewError(gv.KindForbidden, 403, "only verified users can donate"))
	a.Close()

	out := stderr.String()
	if !strings.Contains(out, "operation finished") || !strings.Contains(out, "status=error") {
		t.Errorf("stderr = %q, want failed operation line", out)
	}
}
