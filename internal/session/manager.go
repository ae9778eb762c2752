// Package session tracks continuous work sessions per actor and archives
// them to the activity ledger when they end.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/model"
	"github.com/jvs-project/warden/pkg/pathutil"
)

// DefaultIdleTimeout ends a session after this much inactivity.
const DefaultIdleTimeout = 30 * time.Minute

const sessionExt = ".json"

// errCorrupt marks a session file that exists but cannot be decoded.
var errCorrupt = errors.New("session file corrupt")

// Recorder receives the ledger entries a Manager produces.
type Recorder interface {
	Append(ctx context.Context, entry model.LedgerEntry) error
}

// Manager persists one session file per actor. Files are named by a hash of
// the actor id so any id can be stored; the id itself lives in the file.
type Manager struct {
	dir         string
	ledger      Recorder
	idleTimeout time.Duration
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIdleTimeout sets the inactivity gap after which a session is closed.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithLockTimeout bounds the wait for the per-actor lock.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lockTimeout = d }
}

// NewManager creates a session manager storing files in dir and archiving
// finished sessions to l.
func NewManager(dir string, l Recorder, opts ...Option) *Manager {
	m := &Manager{
		dir:         dir,
		ledger:      l,
		idleTimeout: DefaultIdleTimeout,
		lockTimeout: fsutil.DefaultLockTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Touch records activity for actorID. A new session starts when none is
// open or the stored one is unreadable. When the gap since the last activity
// exceeds the idle timeout, a fresh session is persisted first, then the old
// one is archived as a worktime entry and the gap recorded as a break entry;
// a failed append is returned but never repeated by a later Touch. Otherwise
// the gap is added to the session's cumulative minutes.
func (m *Manager) Touch(ctx context.Context, actorID string) (*model.WorkSession, error) {
	if err := pathutil.ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var result *model.WorkSession
	err := fsutil.WithLock(ctx, m.lockPath(actorID), m.lockTimeout, func() error {
		now := m.now().UTC()
		s, err := m.readOrDiscard(ctx, actorID)
		if err != nil {
			return err
		}

		var idle *model.WorkSession
		switch {
		case s == nil:
			s = fresh(actorID, now)
		case s.IsIdle(now, m.idleTimeout):
			idle = s
			s = fresh(actorID, now)
		default:
			if gap := now.Sub(s.LastActivityAt); gap > 0 {
				s.CumulativeMinutes += gap.Minutes()
				s.LastActivityAt = now
			}
		}

		if err := m.write(s); err != nil {
			return err
		}
		result = s
		if idle == nil {
			return nil
		}
		return errors.Join(
			m.archive(ctx, idle),
			m.recordBreak(ctx, actorID, idle.LastActivityAt, now))
	})
	return result, err
}

// End removes actorID's open session, if any, and archives it. It reports
// whether a session was open. The file is removed before the archive entry
// is written so a retry cannot archive the same session twice.
func (m *Manager) End(ctx context.Context, actorID string) (*model.WorkSession, bool, error) {
	if err := pathutil.ValidateActorID(actorID); err != nil {
		return nil, false, err
	}

	var ended *model.WorkSession
	err := fsutil.WithLock(ctx, m.lockPath(actorID), m.lockTimeout, func() error {
		s, err := m.readOrDiscard(ctx, actorID)
		if err != nil || s == nil {
			return err
		}
		if err := os.Remove(m.sessionPath(actorID)); err != nil && !os.IsNotExist(err) {
			return errclass.ErrIO.Wrap(err, "remove session")
		}
		ended = s
		return m.archive(ctx, s)
	})
	return ended, ended != nil, err
}

// Get returns actorID's open session, or nil when there is none.
func (m *Manager) Get(actorID string) (*model.WorkSession, error) {
	if err := pathutil.ValidateActorID(actorID); err != nil {
		return nil, err
	}
	return m.read(actorID)
}

// List returns every open session ordered by actor.
func (m *Manager) List() ([]*model.WorkSession, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "read sessions dir")
	}

	var sessions []*model.WorkSession
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		s, err := readFile(filepath.Join(m.dir, name))
		if err != nil || s == nil {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ActorID < sessions[j].ActorID
	})
	return sessions, nil
}

func fresh(actorID string, now time.Time) *model.WorkSession {
	return &model.WorkSession{ActorID: actorID, StartedAt: now, LastActivityAt: now}
}

func (m *Manager) archive(ctx context.Context, s *model.WorkSession) error {
	entry := model.LedgerEntry{
		Time:    s.LastActivityAt,
		Kind:    model.EntryWorkTime,
		ActorID: s.ActorID,
		Fields: map[string]string{
			"started": s.StartedAt.Format(time.RFC3339),
			"ended":   s.LastActivityAt.Format(time.RFC3339),
			"minutes": formatMinutes(s.CumulativeMinutes),
		},
	}
	if err := m.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

func (m *Manager) recordBreak(ctx context.Context, actorID string, from, to time.Time) error {
	entry := model.LedgerEntry{
		Time:    to,
		Kind:    model.EntryBreak,
		ActorID: actorID,
		Fields: map[string]string{
			"from":    from.Format(time.RFC3339),
			"to":      to.Format(time.RFC3339),
			"minutes": formatMinutes(to.Sub(from).Minutes()),
		},
	}
	if err := m.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("record break: %w", err)
	}
	return nil
}

// fileKey names actorID's files: the first 16 hex digits of its sha256.
func fileKey(actorID string) string {
	sum := sha256.Sum256([]byte(actorID))
	return hex.EncodeToString(sum[:])[:16]
}

func (m *Manager) sessionPath(actorID string) string {
	return filepath.Join(m.dir, fileKey(actorID)+sessionExt)
}

func (m *Manager) lockPath(actorID string) string {
	return filepath.Join(m.dir, fileKey(actorID)+".lock")
}

func (m *Manager) read(actorID string) (*model.WorkSession, error) {
	s, err := readFile(m.sessionPath(actorID))
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", actorID, err)
	}
	return s, nil
}

// readOrDiscard is read, except that an undecodable file is recorded as an
// error entry and treated as absent; the caller's next write replaces it.
func (m *Manager) readOrDiscard(ctx context.Context, actorID string) (*model.WorkSession, error) {
	s, err := m.read(actorID)
	if !errors.Is(err, errCorrupt) {
		return s, err
	}
	entry := model.LedgerEntry{
		Time:    m.now(),
		Kind:    model.EntryError,
		ActorID: actorID,
		Fields: map[string]string{
			"component": "session",
			"error":     err.Error(),
			"action":    "discarded unreadable session",
		},
	}
	if aerr := m.ledger.Append(ctx, entry); aerr != nil {
		return nil, fmt.Errorf("record corrupt session: %w", aerr)
	}
	if rerr := os.Remove(m.sessionPath(actorID)); rerr != nil && !os.IsNotExist(rerr) {
		return nil, errclass.ErrIO.Wrap(rerr, "remove corrupt session")
	}
	return nil, nil
}

func readFile(path string) (*model.WorkSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "read session")
	}
	var s model.WorkSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if s.ActorID == "" {
		return nil, fmt.Errorf("%w: no actor id", errCorrupt)
	}
	return &s, nil
}

func (m *Manager) write(s *model.WorkSession) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := fsutil.AtomicWrite(m.sessionPath(s.ActorID), data, 0644); err != nil {
		return errclass.ErrIO.Wrap(err, "write session")
	}
	return nil
}

func formatMinutes(min float64) string {
	return fmt.Sprintf("%.1f", min)
}
