// Package transcode runs ffmpeg jobs that turn containers browsers cannot play
// into a faststart MP4 (remux) or an H.264/AAC HLS ladder (transcode).
package transcode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/metrics"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
)

type Mode string

const (
	ModeRemux     Mode = "remux"
	ModeTranscode Mode = "transcode"
)

// ErrNotReady is returned by Open while the requested output does not exist yet.
var ErrNotReady = stderrors.New("transcode output not ready")

type Options struct {
	Enabled     bool
	Mode        Mode
	Dir         string
	Workers     int
	Retention   time.Duration
	FailedGrace time.Duration
	// Containers lists the extensions offered a fallback, e.g. ".mkv".
	Containers []string
}

type source struct {
	URL        string
	Filename   string
	Registered time.Time
}

type session struct {
	mu     sync.RWMutex
	state  models.TranscodeSession
	source source
	dir    string
	cancel context.CancelFunc
}

func (s *session) snapshot() models.TranscodeSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Manager owns every transcode session. A content key maps to at most one
// session, and therefore to at most one running ffmpeg process.
type Manager struct {
	opts     Options
	fs       afero.Fs
	runner   Runner
	pool     *ants.Pool
	sessions *xsync.MapOf[string, *session]
	sources  *xsync.MapOf[string, source]
	db       database.Database
	now      func() time.Time
	after    func(time.Duration, func())
	logger   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(opts Options, fs afero.Fs, runner Runner, log logger.Logger) (*Manager, error) {
	if opts.Mode == "" {
		opts.Mode = ModeRemux
	}
	if opts.Mode != ModeRemux && opts.Mode != ModeTranscode {
		return nil, errors.NewConfigurationError("unknown transcode mode "+string(opts.Mode), nil)
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Join(os.TempDir(), constants.AppName)
	}
	if opts.Workers <= 0 {
		opts.Workers = constants.DefaultTranscodeWorkers
	}
	if opts.Retention <= 0 {
		opts.Retention = constants.TranscodeRetention
	}
	if opts.FailedGrace <= 0 {
		opts.FailedGrace = constants.TranscodeFailedKeep
	}
	if len(opts.Containers) == 0 {
		opts.Containers = []string{".mkv"}
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.Discard()
	}
	if err := fs.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.NewConfigurationError("transcode directory", err)
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		fs:       fs,
		runner:   runner,
		pool:     pool,
		sessions: xsync.NewMapOf[string, *session](),
		sources:  xsync.NewMapOf[string, source](),
		now:      time.Now,
		after:    func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetDB persists session records so completed output survives a restart.
func (m *Manager) SetDB(db database.Database) {
	m.db = db
}

func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) Enabled() bool {
	return m.opts.Enabled
}

func (m *Manager) Mode() Mode {
	return m.opts.Mode
}

// SessionID is the content key for an upstream URL and file name.
func SessionID(sourceURL, filename string) string {
	sum := sha256.Sum256([]byte(sourceURL + "\x00" + filename))
	return hex.EncodeToString(sum[:16])
}

// Eligible reports whether a file of this name gets a fallback.
func (m *Manager) Eligible(filename string) bool {
	if !m.opts.Enabled {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, c := range m.opts.Containers {
		if strings.EqualFold(c, ext) {
			return true
		}
	}
	return false
}

// OutputURL is the route serving the main output of a session.
func (m *Manager) OutputURL(id string) string {
	if m.opts.Mode == ModeTranscode {
		return "/transcode/" + id + "/" + OutputPlaylist
	}
	return "/transcode/" + id + "/" + OutputMP4
}

// FallbackURL registers the source without starting anything. The job starts
// on the first request for the session.
func (m *Manager) FallbackURL(sourceURL, filename string) string {
	id := SessionID(sourceURL, filename)
	m.sources.Store(id, source{URL: sourceURL, Filename: filename, Registered: m.now()})
	return m.OutputURL(id)
}

// Start returns the session for the source, starting a job if none exists.
func (m *Manager) Start(sourceURL, filename string) models.TranscodeSession {
	id := SessionID(sourceURL, filename)
	src := source{URL: sourceURL, Filename: filename, Registered: m.now()}
	m.sources.Store(id, src)
	return m.acquire(id, src)
}

// Acquire returns the session state for id, lazily starting a job for a
// registered source.
func (m *Manager) Acquire(id string) (models.TranscodeSession, error) {
	if s, ok := m.sessions.Load(id); ok {
		return s.snapshot(), nil
	}
	src, ok := m.sources.Load(id)
	if !ok {
		return models.TranscodeSession{}, errors.NewSessionNotFoundError(id)
	}
	return m.acquire(id, src), nil
}

func (m *Manager) acquire(id string, src source) models.TranscodeSession {
	s, loaded := m.sessions.LoadOrCompute(id, func() *session {
		now := m.now()
		return &session{
			state: models.TranscodeSession{
				ID:        id,
				Status:    models.TranscodeRemuxing,
				Mode:      string(m.opts.Mode),
				OutputURL: m.OutputURL(id),
				CreatedAt: now,
			},
			source: src,
			dir:    filepath.Join(m.opts.Dir, id),
		}
	})
	if !loaded {
		m.launch(s)
	}
	return s.snapshot()
}

func (m *Manager) launch(s *session) {
	ctx, cancel := context.WithCancel(m.ctx)
	s.mu.Lock()
	s.cancel = cancel
	id := s.state.ID
	s.mu.Unlock()

	metrics.TranscodeSessions.WithLabelValues("started").Inc()
	m.persist(s)
	m.logger.Infof("[Transcode] session %s queued (%s) for %s", id, m.opts.Mode, s.source.Filename)

	// Submit blocks while every worker is busy; callers only poll.
	go func() {
		if err := m.pool.Submit(func() { m.run(ctx, s) }); err != nil {
			m.fail(ctx, s, err)
		}
	}()
}

func (m *Manager) run(ctx context.Context, s *session) {
	if ctx.Err() != nil {
		return
	}
	if err := m.fs.MkdirAll(s.dir, 0o755); err != nil {
		m.fail(ctx, s, err)
		return
	}

	args := remuxArgs(s.source.URL, s.dir)
	if m.opts.Mode == ModeTranscode {
		args = hlsArgs(s.source.URL, s.dir)
	}
	err := m.runner.Run(ctx, args, func(p Progress) {
		s.mu.Lock()
		if pct := p.Percent(); pct > s.state.Progress {
			s.state.Progress = pct
		}
		s.mu.Unlock()
	})
	if err != nil {
		m.fail(ctx, s, err)
		return
	}
	m.complete(s)
}

func (m *Manager) complete(s *session) {
	now := m.now()
	s.mu.Lock()
	s.state.Status = models.TranscodeCompleted
	if m.opts.Mode == ModeTranscode {
		s.state.Status = models.TranscodeTranscoded
	}
	s.state.Progress = 100
	s.state.CompletedAt = &now
	status, id := s.state.Status, s.state.ID
	s.mu.Unlock()

	metrics.TranscodeSessions.WithLabelValues(string(status)).Inc()
	m.persist(s)
	m.logger.Infof("[Transcode] session %s %s", id, status)
}

// fail keeps the error visible until the grace period ends, then drops the
// session and its partial output.
func (m *Manager) fail(ctx context.Context, s *session, err error) {
	if ctx.Err() != nil {
		return
	}
	now := m.now()
	s.mu.Lock()
	s.state.Status = models.TranscodeFailed
	s.state.Error = err.Error()
	s.state.FailedAt = &now
	id := s.state.ID
	s.mu.Unlock()

	metrics.TranscodeSessions.WithLabelValues(string(models.TranscodeFailed)).Inc()
	m.persist(s)
	m.logger.WithField("kind", errors.KindTranscodeFailed).
		Warnf("[Transcode] session %s failed: %v", id, err)

	m.after(m.opts.FailedGrace, func() {
		if m.remove(id, s) {
			m.logger.Debugf("[Transcode] dropped failed session %s", id)
		}
	})
}

// remove deletes id only while it still maps to expected.
func (m *Manager) remove(id string, expected *session) bool {
	removed := false
	m.sessions.Compute(id, func(old *session, loaded bool) (*session, bool) {
		if !loaded || old != expected {
			return old, !loaded
		}
		removed = true
		return nil, true
	})
	if removed {
		m.destroy(expected)
	}
	return removed
}

func (m *Manager) destroy(s *session) {
	s.mu.RLock()
	cancel, id := s.cancel, s.state.ID
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if err := m.fs.RemoveAll(s.dir); err != nil {
		m.logger.Warnf("[Transcode] failed to remove %s: %v", s.dir, err)
	}
	if m.db != nil {
		if err := m.db.DeleteSession(id); err != nil {
			m.logger.Warnf("[Transcode] failed to forget session %s: %v", id, err)
		}
	}
}

// Open returns one output file of a session: output.mp4 once a remux is done,
// or the playlist and segments as ffmpeg writes them.
func (m *Manager) Open(id, name string) (afero.File, os.FileInfo, error) {
	s, ok := m.sessions.Load(id)
	if !ok {
		return nil, nil, errors.NewSessionNotFoundError(id)
	}
	if !m.validOutput(name) {
		return nil, nil, errors.NewInvalidRequestError("unknown output " + name)
	}

	state := s.snapshot()
	if state.Status == models.TranscodeFailed {
		return nil, nil, errors.NewTranscodeFailedError(id, stderrors.New(state.Error))
	}
	if name == OutputMP4 && !state.Status.Done() {
		return nil, nil, ErrNotReady
	}

	f, err := m.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotReady
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

func (m *Manager) validOutput(name string) bool {
	if m.opts.Mode == ModeRemux {
		return name == OutputMP4
	}
	return name == OutputPlaylist || segmentRe.MatchString(name)
}

// Delete stops a session and removes its files.
func (m *Manager) Delete(id string) error {
	s, ok := m.sessions.LoadAndDelete(id)
	m.sources.Delete(id)
	if !ok {
		return errors.NewSessionNotFoundError(id)
	}
	m.destroy(s)
	metrics.TranscodeSessions.WithLabelValues("deleted").Inc()
	m.logger.Infof("[Transcode] session %s deleted", id)
	return nil
}

// Clear deletes every session and returns how many there were.
func (m *Manager) Clear() int {
	var ids []string
	m.sessions.Range(func(id string, _ *session) bool {
		ids = append(ids, id)
		return true
	})
	n := 0
	for _, id := range ids {
		if m.Delete(id) == nil {
			n++
		}
	}
	m.sources.Clear()
	return n
}

// PurgeExpired drops sessions completed more than the retention ago and
// failed sessions past their grace period. Registrations that never started
// expire with the same retention.
func (m *Manager) PurgeExpired() int {
	now := m.now()
	type expired struct {
		id string
		s  *session
	}
	var list []expired
	m.sessions.Range(func(id string, s *session) bool {
		state := s.snapshot()
		switch {
		case state.Status.Done() && state.CompletedAt != nil && now.Sub(*state.CompletedAt) > m.opts.Retention:
			list = append(list, expired{id, s})
		case state.Status == models.TranscodeFailed && now.Sub(failedAt(state)) > m.opts.FailedGrace:
			list = append(list, expired{id, s})
		}
		return true
	})

	purged := 0
	for _, e := range list {
		if m.remove(e.id, e.s) {
			m.sources.Delete(e.id)
			purged++
		}
	}

	m.sources.Range(func(id string, src source) bool {
		if _, active := m.sessions.Load(id); !active && now.Sub(src.Registered) > m.opts.Retention {
			m.sources.Delete(id)
		}
		return true
	})

	if purged > 0 {
		metrics.TranscodeSessions.WithLabelValues("purged").Add(float64(purged))
		m.logger.Infof("[Transcode] purged %d expired sessions", purged)
	}
	return purged
}

func failedAt(state models.TranscodeSession) time.Time {
	if state.FailedAt != nil {
		return *state.FailedAt
	}
	return state.CreatedAt
}

func (m *Manager) Len() int {
	return m.sessions.Size()
}

// Restore reloads finished sessions recorded before a restart and removes
// leftovers of everything else, including output produced under another
// mode.
func (m *Manager) Restore() int {
	if m.db == nil {
		return 0
	}
	records, err := m.db.GetSessions()
	if err != nil {
		m.logger.Warnf("[Transcode] failed to read session records: %v", err)
		return 0
	}

	now := m.now()
	restored := 0
	for _, r := range records {
		status := models.TranscodeStatus(r.Status)
		_, statErr := m.fs.Stat(r.Dir)
		stale := now.Sub(r.UpdatedAt) > m.opts.Retention || r.Mode != string(m.opts.Mode)
		if !status.Done() || statErr != nil || stale || r.Dir == "" {
			if r.Dir != "" {
				_ = m.fs.RemoveAll(r.Dir)
			}
			_ = m.db.DeleteSession(r.ID)
			continue
		}
		completed := r.UpdatedAt
		src := source{URL: r.SourceURL, Filename: r.Filename, Registered: r.CreatedAt}
		m.sources.Store(r.ID, src)
		m.sessions.Store(r.ID, &session{
			state: models.TranscodeSession{
				ID:          r.ID,
				Status:      status,
				Progress:    100,
				Mode:        string(m.opts.Mode),
				OutputURL:   m.OutputURL(r.ID),
				CreatedAt:   r.CreatedAt,
				CompletedAt: &completed,
			},
			source: src,
			dir:    r.Dir,
		})
		restored++
	}
	if restored > 0 {
		m.logger.Infof("[Transcode] restored %d finished sessions", restored)
	}
	return restored
}

func (m *Manager) persist(s *session) {
	if m.db == nil {
		return
	}
	state := s.snapshot()
	record := &database.SessionRecord{
		ID:        state.ID,
		SourceURL: s.source.URL,
		Filename:  s.source.Filename,
		Dir:       s.dir,
		Status:    string(state.Status),
		Mode:      string(m.opts.Mode),
		CreatedAt: state.CreatedAt,
		UpdatedAt: m.now(),
	}
	if err := m.db.StoreSession(record); err != nil {
		m.logger.Warnf("[Transcode] failed to record session %s: %v", state.ID, err)
	}
}

// Close stops running jobs and releases the worker pool.
func (m *Manager) Close() {
	m.cancel()
	m.pool.Release()
}
