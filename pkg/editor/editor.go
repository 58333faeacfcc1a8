// Package editor tracks the files that are open for editing. Each open file
// is a Session holding an in-memory buffer, which is autosaved through the
// workspace after edits go quiet.
package editor

import (
	"context"
	goSync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/metrics"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/tree"
)

// DefaultAutosaveDelay is how long after the last edit a session is saved.
const DefaultAutosaveDelay = time.Second

// Workspace is the subset of the workspace that sessions are loaded from
// and saved to.
type Workspace interface {
	Content(ctx context.Context, path string) (string, error)
	Save(ctx context.Context, path, content string) error
	Tree() []*tree.FileNode
	ActivePath() (string, bool)
	SetActivePath(path string)
	ClearActivePath()
}

// Session is a snapshot of an open file.
type Session struct {
	Path            string `json:"path"`
	Content         string `json:"content"`
	OriginalContent string `json:"originalContent"`
	IsSaving        bool   `json:"isSaving"`
}

// Modified returns whether the buffer differs from what was last loaded or
// saved.
func (s Session) Modified() bool {
	return s.Content != s.OriginalContent
}

type session struct {
	Session

	// At most one pending autosave.
	timer clockwork.Timer

	// Held for the duration of a save so that saves of the same session
	// never overlap.
	saveLock goSync.Mutex
}

// Manager owns the open sessions. The active selection lives in the
// workspace so that it survives renames and deletes done outside the
// editor.
type Manager struct {
	ws    Workspace
	clock clockwork.Clock
	delay time.Duration

	lock     goSync.Mutex
	sessions []*session
	disposed bool
}

// NewManager returns a Manager without any open sessions. The Manager must
// be subscribed to the workspace to stay in sync with the file tree.
func NewManager(ws Workspace, clock clockwork.Clock, delay time.Duration) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Manager{ws: ws, clock: clock, delay: delay}
}

// Sessions returns the open sessions in the order they were opened.
func (m *Manager) Sessions() []Session {
	m.lock.Lock()
	defer m.lock.Unlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.Session)
	}
	return sessions
}

// Session returns the open session for `path`.
func (m *Manager) Session(path string) (Session, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	s, _ := m.find(runtime.Clean(path))
	if s == nil {
		return Session{}, false
	}
	return s.Session, true
}

// Active returns the session of the active file.
func (m *Manager) Active() (Session, bool) {
	path, ok := m.ws.ActivePath()
	if !ok {
		return Session{}, false
	}
	return m.Session(path)
}

func (m *Manager) find(path string) (*session, int) {
	for i, s := range m.sessions {
		if s.Path == path {
			return s, i
		}
	}
	return nil, -1
}

func (m *Manager) indexOf(target *session) int {
	for i, s := range m.sessions {
		if s == target {
			return i
		}
	}
	return -1
}

func (m *Manager) recordSessions() {
	metrics.SetOpenSessions(len(m.sessions))
}

// Activate opens `path` if it isn't open already, and makes it the active
// file. Only files in the current tree can be opened.
func (m *Manager) Activate(ctx context.Context, path string) error {
	path = runtime.Clean(path)

	m.lock.Lock()
	if m.disposed {
		m.lock.Unlock()
		return errors.ErrDisposed
	}
	s, _ := m.find(path)
	m.lock.Unlock()

	if s != nil {
		m.ws.SetActivePath(path)
		return nil
	}

	node := tree.Find(m.ws.Tree(), path)
	if node == nil || node.IsDir() {
		return errors.FileNotFound{Path: path}
	}

	content, err := m.ws.Content(ctx, path)
	if err != nil {
		return errors.WithContext(err, "load file")
	}

	m.lock.Lock()
	if existing, _ := m.find(path); existing == nil {
		m.sessions = append(m.sessions, &session{Session: Session{
			Path:            path,
			Content:         content,
			OriginalContent: content,
		}})
		m.recordSessions()
	}
	m.lock.Unlock()

	m.ws.SetActivePath(path)
	log.WithField("path", path).Debug("Opened file")
	return nil
}

// Edit replaces the buffer of the open session for `path`, and schedules an
// autosave. Edits that arrive before the autosave fires push it back, so a
// burst of edits results in a single save of the final content.
func (m *Manager) Edit(path, content string) error {
	path = runtime.Clean(path)

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.disposed {
		return errors.ErrDisposed
	}

	s, _ := m.find(path)
	if s == nil {
		return errors.FileNotFound{Path: path}
	}

	s.Content = content
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = m.clock.AfterFunc(m.delay, func() { m.autosave(s) })
	return nil
}

func (m *Manager) autosave(s *session) {
	m.lock.Lock()
	if m.indexOf(s) < 0 || !s.Modified() {
		m.lock.Unlock()
		return
	}
	path, content := s.Path, s.Content
	s.timer = nil
	m.lock.Unlock()

	if err := m.save(context.Background(), s, content); err != nil {
		log.WithError(err).WithField("path", path).Warn("Autosave failed. " +
			"The changes are kept in the editor.")
	}
}

// Save writes `content` for the open session at `path`. On success, the
// session is no longer modified unless it was edited during the save. On
// failure, the buffer is left untouched.
func (m *Manager) Save(ctx context.Context, path, content string) error {
	path = runtime.Clean(path)

	m.lock.Lock()
	s, _ := m.find(path)
	m.lock.Unlock()

	if s == nil {
		return errors.FileNotFound{Path: path}
	}
	return m.save(ctx, s, content)
}

// SaveCurrent saves the buffer of the session at `path` if it's modified.
func (m *Manager) SaveCurrent(ctx context.Context, path string) error {
	path = runtime.Clean(path)

	m.lock.Lock()
	s, _ := m.find(path)
	if s == nil {
		m.lock.Unlock()
		return errors.FileNotFound{Path: path}
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	modified, content := s.Modified(), s.Content
	m.lock.Unlock()

	if !modified {
		return nil
	}
	return m.save(ctx, s, content)
}

// SaveActive saves the active session if it's modified.
func (m *Manager) SaveActive(ctx context.Context) error {
	path, ok := m.ws.ActivePath()
	if !ok {
		return nil
	}
	return m.SaveCurrent(ctx, path)
}

func (m *Manager) save(ctx context.Context, s *session, content string) error {
	s.saveLock.Lock()
	defer s.saveLock.Unlock()

	m.lock.Lock()
	s.IsSaving = true
	path := s.Path
	m.lock.Unlock()

	err := m.ws.Save(ctx, path, content)

	m.lock.Lock()
	s.IsSaving = false
	if err == nil {
		s.OriginalContent = content
	}
	m.lock.Unlock()

	if err != nil {
		return err
	}
	log.WithField("path", path).Debug("Saved session")
	return nil
}

// Close closes the session for `path`, saving it first if it's modified. If
// the save fails, the session stays open and the error is returned. When
// the active session is closed, the session opened just before it becomes
// active.
func (m *Manager) Close(ctx context.Context, path string) error {
	path = runtime.Clean(path)

	m.lock.Lock()
	s, _ := m.find(path)
	if s == nil {
		m.lock.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	modified, content := s.Modified(), s.Content
	m.lock.Unlock()

	if modified {
		if err := m.save(ctx, s, content); err != nil {
			return errors.WithContext(err, "save before close")
		}
	}

	m.lock.Lock()
	idx := m.indexOf(s)
	if idx < 0 {
		m.lock.Unlock()
		return nil
	}
	closed := s.Path
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	remaining := len(m.sessions)
	var next string
	if remaining > 0 {
		if idx > 0 {
			idx--
		}
		next = m.sessions[idx].Path
	}
	m.recordSessions()
	m.lock.Unlock()

	if active, ok := m.ws.ActivePath(); ok && active == closed {
		if remaining > 0 {
			m.ws.SetActivePath(next)
		} else {
			m.ws.ClearActivePath()
		}
	}
	log.WithField("path", closed).Debug("Closed file")
	return nil
}

// TreeChanged drops the sessions of files that no longer exist. If the
// active session was dropped, the first remaining session becomes active.
func (m *Manager) TreeChanged(nodes []*tree.FileNode) {
	paths := tree.Paths(nodes)

	m.lock.Lock()
	var kept []*session
	dropped := map[string]struct{}{}
	for _, s := range m.sessions {
		if _, ok := paths[s.Path]; ok {
			kept = append(kept, s)
			continue
		}

		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		dropped[s.Path] = struct{}{}
		log.WithField("path", s.Path).Info("Closing file that no longer exists")
	}
	m.sessions = kept

	var first string
	if len(kept) > 0 {
		first = kept[0].Path
	}
	m.recordSessions()
	m.lock.Unlock()

	if len(dropped) == 0 {
		return
	}

	active, ok := m.ws.ActivePath()
	if _, wasDropped := dropped[active]; !ok || !wasDropped {
		return
	}
	if first != "" {
		m.ws.SetActivePath(first)
	} else {
		m.ws.ClearActivePath()
	}
}

// PathRenamed moves the sessions under `oldPath` to `newPath`. Buffers,
// including unsaved edits, are kept.
func (m *Manager) PathRenamed(oldPath, newPath string, isDir bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, s := range m.sessions {
		if s.Path == oldPath || (isDir && runtime.IsWithin(s.Path, oldPath)) {
			s.Path = runtime.Rebase(s.Path, oldPath, newPath)
		}
	}
}

// ResetState closes every session without saving.
func (m *Manager) ResetState() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, s := range m.sessions {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
	}
	m.sessions = nil
	m.recordSessions()
}

// Dispose stops all pending autosaves. The Manager can't be used
// afterwards.
func (m *Manager) Dispose() {
	m.ResetState()

	m.lock.Lock()
	defer m.lock.Unlock()
	m.disposed = true
}
