// Package approval persists human sign-off requests as files on disk. One
// file per request, keyed by the decision's charge id, so an operator can
// inspect and resolve pending requests with nothing but a text editor.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tillerhq/tiller/internal/model"
)

// validKey matches alphanumeric, dash, underscore, colon, and dot.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9:._-]+$`)

// validateKey rejects keys that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key contains invalid characters: only alphanumeric, dash, underscore, colon, and dot are allowed")
	}
	return nil
}

// Status represents the state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Request is a single approval request and its resolution state.
type Request struct {
	Key        string             `json:"key"`
	Status     Status             `json:"status"`
	Identity   string             `json:"identity"`
	ActionType string             `json:"action_type"`
	Rationale  string             `json:"rationale"`
	Role       model.ApproverRole `json:"role,omitempty"`
	ResolvedBy string             `json:"resolved_by,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
}

// Store manages approval request files on disk.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create approval directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default approval store directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tiller-pending")
	}
	return filepath.Join(home, ".tiller", "pending")
}

// Open creates a pending request file. No-op if the key already exists, so
// a held decision retried many times produces one request.
func (s *Store) Open(key, identity, actionType, rationale string) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid approval key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	if _, err := os.Stat(path); err == nil {
		return nil // already exists
	}

	r := Request{
		Key:        key,
		Status:     StatusPending,
		Identity:   identity,
		ActionType: actionType,
		Rationale:  rationale,
		CreatedAt:  time.Now().UTC(),
	}
	return s.writeAtomic(path, r)
}

// Approve resolves a request, recording who granted it and under what role.
// duration > 0 sets an expiration; duration == 0 means one-time (consumed
// on first use).
func (s *Store) Approve(key string, role model.ApproverRole, by string, duration time.Duration) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid approval key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(key)
	if err != nil {
		return fmt.Errorf("approval %q not found: %w", key, err)
	}

	r.Status = StatusApproved
	r.Role = role
	r.ResolvedBy = by
	now := time.Now().UTC()
	r.ResolvedAt = &now
	if duration > 0 {
		exp := now.Add(duration)
		r.ExpiresAt = &exp
	}
	return s.writeAtomic(s.path(key), *r)
}

// Deny resolves a request as denied.
func (s *Store) Deny(key, by string) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid approval key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(key)
	if err != nil {
		return fmt.Errorf("approval %q not found: %w", key, err)
	}

	r.Status = StatusDenied
	r.ResolvedBy = by
	now := time.Now().UTC()
	r.ResolvedAt = &now
	return s.writeAtomic(s.path(key), *r)
}

// Check returns the current status of a request, flipping approved entries
// past their deadline to expired.
func (s *Store) Check(key string) (Status, error) {
	if err := validateKey(key); err != nil {
		return "", fmt.Errorf("invalid approval key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(key)
	if err != nil {
		return "", fmt.Errorf("approval %q not found", key)
	}

	if r.Status == StatusApproved && r.ExpiresAt != nil && time.Now().UTC().After(*r.ExpiresAt) {
		r.Status = StatusExpired
		s.writeAtomic(s.path(key), *r)
		return StatusExpired, nil
	}
	return r.Status, nil
}

// Grant returns the approval value for a key if and only if the request is
// currently approved and unexpired. The pipeline attaches the returned
// value to the decision context; a missing or unresolved request yields the
// zero approval, never an error the gates could misread as a grant.
func (s *Store) Grant(key string) (model.Approval, error) {
	if err := validateKey(key); err != nil {
		return model.Approval{}, fmt.Errorf("invalid approval key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(key)
	if err != nil {
		return model.Approval{}, fmt.Errorf("approval %q not found", key)
	}
	if r.Status == StatusApproved && r.ExpiresAt != nil && time.Now().UTC().After(*r.ExpiresAt) {
		r.Status = StatusExpired
		s.writeAtomic(s.path(key), *r)
		return model.Approval{}, nil
	}
	if r.Status != StatusApproved {
		return model.Approval{}, nil
	}
	return model.Approval{Granted: true, Role: r.Role, By: r.ResolvedBy}, nil
}

// Consume marks a one-time approval as used. Approvals never carry over
// between actions.
func (s *Store) Consume(key string) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid approval key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(key)
	if err != nil {
		return fmt.Errorf("approval %q not found: %w", key, err)
	}

	if r.Status == StatusConsumed {
		return fmt.Errorf("approval %q already consumed", key)
	}

	r.Status = StatusConsumed
	now := time.Now().UTC()
	r.ResolvedAt = &now
	return s.writeAtomic(s.path(key), *r)
}

// List returns all requests in the store.
func (s *Store) List() ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var requests []Request
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".json")
		r, err := s.read(key)
		if err != nil {
			continue
		}
		requests = append(requests, *r)
	}
	return requests, nil
}

// Cleanup removes all request files in the store.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string) (*Request, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}

	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) writeAtomic(path string, r Request) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
