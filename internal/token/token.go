// Package token implements the TokenStore: a small per-backend-kind state
// machine over a file-backed brokerage access token cache. It tracks each
// token's issue time and TTL, drops anything already expired on load,
// refuses to hand out a token inside its refresh buffer, and persists
// atomically (write-temp-then-rename) with a backup copy.
package token

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// Entry is one stored token, keyed by backend kind ("real", "paper").
type Entry struct {
	AccessToken string    `json:"access_token"`
	IssuedAt    time.Time `json:"issued_at"`
	TTLSeconds  int64     `json:"ttl_seconds"`
}

// ExpiresAt is IssuedAt + TTLSeconds.
func (e Entry) ExpiresAt() time.Time {
	return e.IssuedAt.Add(time.Duration(e.TTLSeconds) * time.Second)
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Store holds tokens keyed by backend kind, backed by a JSON file with an
// optional backup copy.
type Store struct {
	mu            sync.Mutex
	path          string
	backupPath    string
	refreshBuffer time.Duration
	entries       map[string]Entry
}

// Open loads path (an empty store if absent), falling back to backupPath
// if the primary cannot be read or parsed, drops any entry already expired,
// and rewrites both files so the cleanup is durable across restarts.
func Open(path, backupPath string, refreshBuffer time.Duration) (*Store, error) {
	s := &Store{path: path, backupPath: backupPath, refreshBuffer: refreshBuffer, entries: make(map[string]Entry)}

	raw, err := readEntries(path)
	if err != nil && backupPath != "" {
		raw, err = readEntries(backupPath)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for k, e := range raw {
		if !e.expired(now) {
			s.entries[k] = e
		}
	}

	if err := s.persist(); err != nil {
		return nil, err
	}
	return s, nil
}

func readEntries(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, stockerr.Wrap(stockerr.KindIO, "token", "read store", err)
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, stockerr.Wrap(stockerr.KindParsing, "token", "parse store", err)
	}
	return raw, nil
}

// persist writes entries to path via write-temp-then-rename and, if
// configured, refreshes backupPath the same way.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return stockerr.Wrap(stockerr.KindParsing, "token", "marshal store", err)
	}
	if err := atomicWrite(s.path, data); err != nil {
		return err
	}
	if s.backupPath != "" {
		if err := atomicWrite(s.backupPath, data); err != nil {
			return err
		}
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stockerr.Wrap(stockerr.KindIO, "token", "create store dir", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return stockerr.Wrap(stockerr.KindIO, "token", "write temp store", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return stockerr.Wrap(stockerr.KindIO, "token", "rename store", err)
	}
	return nil
}

// NeedsRefresh reports whether the token for kind is missing or will
// expire within the refresh buffer — the precondition every Real/Paper
// call checks before using a cached token.
func (s *Store) NeedsRefresh(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[kind]
	if !ok {
		return true
	}
	return !time.Now().Add(s.refreshBuffer).Before(e.ExpiresAt())
}

// Get returns the token for kind, refusing to hand back one that needs
// refreshing — callers treat a refusal the same as "no token", triggering
// the refresh flow.
func (s *Store) Get(kind string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[kind]
	if !ok || !time.Now().Add(s.refreshBuffer).Before(e.ExpiresAt()) {
		return Entry{}, false
	}
	return e, true
}

// Set stores a freshly issued token under kind and persists immediately.
func (s *Store) Set(kind, accessToken string, issuedAt time.Time, ttlSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[kind] = Entry{AccessToken: accessToken, IssuedAt: issuedAt, TTLSeconds: ttlSeconds}
	return s.persist()
}

// SetFromJWT stores accessToken under kind, reading issue/expiry from the
// JWT's "iat"/"exp" claims rather than the caller's clock. The signature
// is not verified here — this store only ever holds tokens the brokerage
// itself handed back over TLS, and verification would require a signing
// key this repo never holds.
func (s *Store) SetFromJWT(kind, accessToken string) error {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return stockerr.Wrap(stockerr.KindToken, "token", "parse jwt claims", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return stockerr.New(stockerr.KindToken, "token", "jwt has no exp claim")
	}

	issuedAt := time.Now()
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Time
	}

	ttl := int64(exp.Time.Sub(issuedAt).Seconds())
	if ttl < 0 {
		return stockerr.New(stockerr.KindToken, "token", "jwt exp precedes iat")
	}

	return s.Set(kind, accessToken, issuedAt, ttl)
}
