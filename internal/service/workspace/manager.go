// Package workspace manages cloned repository checkouts with a TTL so
// repeated analyses of the same project reuse one checkout.
package workspace

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"repo_onboarder/pkg/repofs"
)

// ErrUnavailable is returned when a workspace cannot be provided.
// Callers fall back to context-only operation.
var ErrUnavailable = errors.New("workspace unavailable")

// Cloner materializes a repository checkout at dir and reports the
// commit it checked out.
type Cloner interface {
	Clone(ctx context.Context, repoURL, dir string) (commitSHA string, err error)
}

// Provider hands out repository accessors for projects.
type Provider interface {
	Acquire(ctx context.Context, projectID, repoURL string) (*Session, error)
	Release(projectID, repoURL string)
}

// Session is a live checkout with its accessor.
type Session struct {
	ID        string
	Dir       string
	CommitSHA string
	Workspace *repofs.Accessor
	expiresAt time.Time
}

// Manager caches sessions keyed by repository URL and project ID.
type Manager struct {
	base   string
	ttl    time.Duration
	cloner Cloner
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	lock     *flock.Flock
}

// NewManager creates a manager rooted at base. A non-positive ttl
// defaults to one hour.
func NewManager(base string, ttl time.Duration, cloner Cloner) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		base:     base,
		ttl:      ttl,
		cloner:   cloner,
		now:      time.Now,
		sessions: make(map[string]*Session),
		lock:     flock.New(filepath.Join(base, ".workspace.lock")),
	}
}

func sessionKey(repoURL, projectID string) string {
	sum := md5.Sum([]byte(repoURL))
	return hex.EncodeToString(sum[:])[:8] + "_" + projectID
}

// Acquire returns a session for the project, cloning if no valid
// checkout exists. An expired or vanished checkout is evicted and
// cloned again.
func (m *Manager) Acquire(ctx context.Context, projectID, repoURL string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(repoURL, projectID)
	if sess, ok := m.sessions[key]; ok {
		if m.now().Before(sess.expiresAt) && dirExists(sess.Dir) {
			sess.expiresAt = m.now().Add(m.ttl)
			return sess, nil
		}
		m.evictLocked(key, sess)
	}

	sess, err := m.cloneLocked(ctx, key, repoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.sessions[key] = sess
	return sess, nil
}

// Release evicts the project's session and removes its checkout.
func (m *Manager) Release(projectID, repoURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(repoURL, projectID)
	if sess, ok := m.sessions[key]; ok {
		m.evictLocked(key, sess)
	}
}

// Sweep evicts every expired session. Intended to be called
// periodically by the owner.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, sess := range m.sessions {
		if !now.Before(sess.expiresAt) {
			m.evictLocked(key, sess)
		}
	}
}

func (m *Manager) cloneLocked(ctx context.Context, key, repoURL string) (*Session, error) {
	if m.cloner == nil {
		return nil, errors.New("no cloner configured")
	}
	if err := os.MkdirAll(m.base, 0o755); err != nil {
		return nil, err
	}

	// The file lock guards against another process cloning into or
	// sweeping the same base directory.
	if err := m.lock.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = m.lock.Unlock() }()

	dir := filepath.Join(m.base, key)
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}

	commit, err := m.cloner.Clone(ctx, repoURL, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	accessor, err := repofs.New(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Session{
		ID:        uuid.NewString(),
		Dir:       dir,
		CommitSHA: commit,
		Workspace: accessor,
		expiresAt: m.now().Add(m.ttl),
	}, nil
}

func (m *Manager) evictLocked(key string, sess *Session) {
	delete(m.sessions, key)
	if err := m.lock.Lock(); err == nil {
		_ = os.RemoveAll(sess.Dir)
		_ = m.lock.Unlock()
	}
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
