package transcode

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sourceURL  = "https://cdn.alldebrid.com/dl/abc/Oppenheimer.2023.1080p.mkv"
	sourceFile = "Oppenheimer.2023.1080p.mkv"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	fs       afero.Fs
	release  chan struct{}
	err      error
	progress []Progress
}

func (f *fakeRunner) Run(ctx context.Context, args []string, report func(Progress)) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for _, p := range f.progress {
		report(p)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return afero.WriteFile(f.fs, args[len(args)-1], []byte("video"), 0o644)
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, mode Mode, runner *fakeRunner) (*Manager, afero.Fs, *testClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	runner.fs = fs
	m, err := NewManager(Options{Enabled: true, Mode: mode, Dir: "/transcode", Workers: 2}, fs, runner, nil)
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)}
	m.SetClock(clock.Now)
	t.Cleanup(m.Close)
	return m, fs, clock
}

func waitForStatus(t *testing.T, m *Manager, id string, status models.TranscodeStatus) models.TranscodeSession {
	t.Helper()
	var last models.TranscodeSession
	require.Eventually(t, func() bool {
		s, err := m.Acquire(id)
		if err != nil {
			return false
		}
		last = s
		return s.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestConcurrentStartsShareOneJob(t *testing.T) {
	runner := &fakeRunner{
		release: make(chan struct{}),
		progress: []Progress{
			{Duration: 100 * time.Second, Position: 25 * time.Second},
			{Duration: 100 * time.Second, Position: 50 * time.Second},
		},
	}
	m, _, _ := newTestManager(t, ModeRemux, runner)

	ids := make([]string, 10)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = m.Start(sourceURL, sourceFile).ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, SessionID(sourceURL, sourceFile), ids[0])
	assert.Equal(t, 1, m.Len())

	require.Eventually(t, func() bool {
		s, _ := m.Acquire(ids[0])
		return s.Progress == 50
	}, 2*time.Second, 5*time.Millisecond)
	a, _ := m.Acquire(ids[0])
	b, _ := m.Acquire(ids[0])
	assert.Equal(t, a.Progress, b.Progress)
	assert.Equal(t, models.TranscodeRemuxing, a.Status)

	close(runner.release)
	done := waitForStatus(t, m, ids[0], models.TranscodeCompleted)
	assert.Equal(t, float64(100), done.Progress)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "/transcode/"+ids[0]+"/output.mp4", done.OutputURL)
	assert.Equal(t, 1, runner.Calls())

	f, info, err := m.Open(ids[0], OutputMP4)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(5), info.Size())
}

func TestFallbackURLStartsLazily(t *testing.T) {
	runner := &fakeRunner{}
	m, _, _ := newTestManager(t, ModeRemux, runner)

	url := m.FallbackURL(sourceURL, sourceFile)
	id := SessionID(sourceURL, sourceFile)
	assert.Equal(t, "/transcode/"+id+"/output.mp4", url)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, runner.Calls())

	_, err := m.Acquire(id)
	require.NoError(t, err)
	waitForStatus(t, m, id, models.TranscodeCompleted)
	assert.Equal(t, 1, runner.Calls())

	_, err = m.Acquire("unknown")
	assert.True(t, errors.Is(err, errors.KindSessionNotFound))
}

func TestTranscodeModeServesHLS(t *testing.T) {
	runner := &fakeRunner{}
	m, _, _ := newTestManager(t, ModeTranscode, runner)

	id := m.Start(sourceURL, sourceFile).ID
	done := waitForStatus(t, m, id, models.TranscodeTranscoded)
	assert.Equal(t, "/transcode/"+id+"/playlist.m3u8", done.OutputURL)

	f, _, err := m.Open(id, OutputPlaylist)
	require.NoError(t, err)
	f.Close()

	_, _, err = m.Open(id, "segment_00000.ts")
	assert.ErrorIs(t, err, ErrNotReady)

	_, _, err = m.Open(id, OutputMP4)
	assert.True(t, errors.Is(err, errors.KindInvalidRequest))
	_, _, err = m.Open(id, "../../etc/passwd")
	assert.True(t, errors.Is(err, errors.KindInvalidRequest))
}

func TestOutputNotReadyWhileRemuxing(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	m, _, _ := newTestManager(t, ModeRemux, runner)

	id := m.Start(sourceURL, sourceFile).ID
	_, _, err := m.Open(id, OutputMP4)
	assert.ErrorIs(t, err, ErrNotReady)
	close(runner.release)
	waitForStatus(t, m, id, models.TranscodeCompleted)
}

func TestFailedSessionDroppedAfterGrace(t *testing.T) {
	runner := &fakeRunner{err: stderrors.New("exit status 1: Invalid data found")}
	m, _, _ := newTestManager(t, ModeRemux, runner)
	grace := make(chan func(), 1)
	m.after = func(_ time.Duration, fn func()) { grace <- fn }

	id := m.Start(sourceURL, sourceFile).ID
	failed := waitForStatus(t, m, id, models.TranscodeFailed)
	assert.Contains(t, failed.Error, "Invalid data found")

	_, _, err := m.Open(id, OutputMP4)
	assert.True(t, errors.Is(err, errors.KindTranscodeFailed))

	select {
	case fn := <-grace:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("grace period never scheduled")
	}
	assert.Equal(t, 0, m.Len())
}

func TestPurgeExpiredRemovesOldOutput(t *testing.T) {
	runner := &fakeRunner{}
	m, fs, clock := newTestManager(t, ModeRemux, runner)

	id := m.Start(sourceURL, sourceFile).ID
	waitForStatus(t, m, id, models.TranscodeCompleted)

	assert.Equal(t, 0, m.PurgeExpired())
	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, m.PurgeExpired())
	assert.Equal(t, 0, m.Len())

	exists, err := afero.DirExists(fs, filepath.Join("/transcode", id))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.Acquire(id)
	assert.True(t, errors.Is(err, errors.KindSessionNotFound))
}

func TestDeleteAndClear(t *testing.T) {
	runner := &fakeRunner{}
	m, _, _ := newTestManager(t, ModeRemux, runner)

	first := m.Start(sourceURL, sourceFile).ID
	m.Start(sourceURL, "other.mkv")
	waitForStatus(t, m, first, models.TranscodeCompleted)

	require.NoError(t, m.Delete(first))
	assert.True(t, errors.Is(m.Delete(first), errors.KindSessionNotFound))
	assert.Equal(t, 1, m.Clear())
	assert.Equal(t, 0, m.Len())
}

func TestRestoreFinishedSessions(t *testing.T) {
	db, err := database.NewBolt(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	m, fs, clock := newTestManager(t, ModeRemux, &fakeRunner{})
	m.SetDB(db)

	require.NoError(t, fs.MkdirAll("/transcode/done", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/transcode/done/output.mp4", []byte("video"), 0o644))
	require.NoError(t, db.StoreSession(&database.SessionRecord{
		ID: "done", SourceURL: sourceURL, Filename: sourceFile, Dir: "/transcode/done",
		Status: string(models.TranscodeCompleted), Mode: string(ModeRemux),
		CreatedAt: clock.Now(), UpdatedAt: clock.Now(),
	}))
	require.NoError(t, db.StoreSession(&database.SessionRecord{
		ID: "partial", Dir: "/transcode/partial", Status: string(models.TranscodeRemuxing),
		Mode: string(ModeRemux), CreatedAt: clock.Now(), UpdatedAt: clock.Now(),
	}))

	assert.Equal(t, 1, m.Restore())

	f, _, err := m.Open("done", OutputMP4)
	require.NoError(t, err)
	f.Close()

	records, err := db.GetSessions()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "done", records[0].ID)
}

func TestRestoreUsesRecordedTimes(t *testing.T) {
	db, err := database.NewBolt(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	m, fs, clock := newTestManager(t, ModeRemux, &fakeRunner{})
	m.SetDB(db)

	require.NoError(t, afero.WriteFile(fs, "/transcode/old/output.mp4", []byte("video"), 0o644))
	require.NoError(t, db.StoreSession(&database.SessionRecord{
		ID: "old", Dir: "/transcode/old", Status: string(models.TranscodeCompleted), Mode: string(ModeRemux),
		CreatedAt: clock.Now().Add(-3 * time.Hour), UpdatedAt: clock.Now().Add(-2 * time.Hour),
	}))

	assert.Equal(t, 0, m.Restore())
	records, err := db.GetSessions()
	require.NoError(t, err)
	assert.Empty(t, records)
	exists, err := afero.DirExists(fs, "/transcode/old")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRestoreDiscardsOtherMode(t *testing.T) {
	db, err := database.NewBolt(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	m, fs, clock := newTestManager(t, ModeTranscode, &fakeRunner{})
	m.SetDB(db)

	require.NoError(t, afero.WriteFile(fs, "/transcode/mp4/output.mp4", []byte("video"), 0o644))
	require.NoError(t, db.StoreSession(&database.SessionRecord{
		ID: "mp4", Dir: "/transcode/mp4", Status: string(models.TranscodeCompleted), Mode: string(ModeRemux),
		CreatedAt: clock.Now(), UpdatedAt: clock.Now(),
	}))

	assert.Equal(t, 0, m.Restore())
	_, err = m.Acquire("mp4")
	assert.True(t, errors.Is(err, errors.KindSessionNotFound))

	records, err := db.GetSessions()
	require.NoError(t, err)
	assert.Empty(t, records)
	exists, err := afero.DirExists(fs, "/transcode/mp4")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPersistRecordsModeAndClock(t *testing.T) {
	db, err := database.NewBolt(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	m, _, clock := newTestManager(t, ModeRemux, &fakeRunner{})
	m.SetDB(db)

	id := m.Start(sourceURL, sourceFile).ID
	waitForStatus(t, m, id, models.TranscodeCompleted)

	require.Eventually(t, func() bool {
		records, err := db.GetSessions()
		return err == nil && len(records) == 1 && records[0].Status == string(models.TranscodeCompleted)
	}, 2*time.Second, 5*time.Millisecond)
	records, err := db.GetSessions()
	require.NoError(t, err)
	assert.Equal(t, string(ModeRemux), records[0].Mode)
	assert.True(t, records[0].UpdatedAt.Equal(clock.Now()))
}

func TestFailedGraceCountsFromFailure(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), err: stderrors.New("exit status 1: Invalid data found")}
	m, _, clock := newTestManager(t, ModeRemux, runner)
	m.after = func(time.Duration, func()) {}

	id := m.Start(sourceURL, sourceFile).ID
	clock.Advance(10 * time.Minute)
	close(runner.release)
	failed := waitForStatus(t, m, id, models.TranscodeFailed)
	require.NotNil(t, failed.FailedAt)
	assert.True(t, failed.FailedAt.Equal(clock.Now()))

	assert.Equal(t, 0, m.PurgeExpired())
	assert.Equal(t, 1, m.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.PurgeExpired())
	assert.Equal(t, 0, m.Len())
}

func TestEligible(t *testing.T) {
	m, _, _ := newTestManager(t, ModeRemux, &fakeRunner{})
	assert.True(t, m.Eligible("Movie.MKV"))
	assert.False(t, m.Eligible("movie.mp4"))

	disabled, err := NewManager(Options{Dir: "/t"}, afero.NewMemMapFs(), &fakeRunner{}, nil)
	require.NoError(t, err)
	defer disabled.Close()
	assert.False(t, disabled.Eligible("movie.mkv"))

	_, err = NewManager(Options{Mode: "gpu", Dir: "/t"}, afero.NewMemMapFs(), &fakeRunner{}, nil)
	assert.True(t, errors.Is(err, errors.KindConfigurationInvalid))
}
