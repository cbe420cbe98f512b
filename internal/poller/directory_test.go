package poller

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycle(t *testing.T, p *Poller, rec *recorder) []string {
	t.Helper()
	rec.Reset()
	require.NoError(t, p.runCycle(context.Background()))
	return rec.Events()
}

func TestDirectoryPoller_InitialContentOnly(t *testing.T) {
	// Given: a directory listing two files
	dir := newStubDir("/d", okFiles("a.txt", 12, "b.xml", 11))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	// When: polling once
	events := cycle(t, p, rec)

	// Then: only the initial content is reported
	assert.Equal(t, []string{"before-cycle", "initial-content(a.txt,b.xml)", "after-cycle"}, events)
}

func TestDirectoryPoller_AddedOnSecondCycle(t *testing.T) {
	dir := newStubDir("/d",
		okFiles("a.txt", 12),
		okFiles("a.txt", 12, "b.xml", 11),
	)
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	cycle(t, p, rec)
	events := cycle(t, p, rec)

	assert.Equal(t, []string{"before-cycle", "added(b.xml)", "after-cycle"}, events)
}

func TestDirectoryPoller_IOErrorThenRecovery(t *testing.T) {
	// Given: a directory that fails once, then lists nothing
	dir := newStubDir("/d", ioFailure(), listOf())
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	// When/Then: first cycle raises, second ceases before initial content
	assert.Equal(t, []string{"before-cycle", "io-error-raised", "after-cycle"}, cycle(t, p, rec))
	assert.Equal(t, []string{"before-cycle", "io-error-ceased", "initial-content()", "after-cycle"}, cycle(t, p, rec))
	require.Len(t, rec.raised, 1)
	assert.True(t, IsIOError(rec.raised[0]))
}

func TestDirectoryPoller_WarmStartEmitsDeltaBeforeInitialContent(t *testing.T) {
	// Given: a persisted baseline {c.txt} and a live listing {a.txt}
	dir := newStubDir("/d", okFiles("a.txt", 13))
	store := &memPersister{data: map[string][]CachedEntry{
		"/d": {{Name: "c.txt", LastModified: 12}},
	}}
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}, Persister: store})
	p.restore(context.Background())

	// When: polling once
	events := cycle(t, p, rec)

	// Then: the delta against the baseline precedes the initial content
	assert.Equal(t, []string{
		"before-cycle",
		"removed(c.txt)",
		"added(a.txt)",
		"initial-content(a.txt)",
		"after-cycle",
	}, events)
}

func TestDirectoryPoller_InitialContentAdds(t *testing.T) {
	dir := newStubDir("/d", okFiles("a.txt", 12, "b.xml", 11))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}, InitialContentAdds: true})

	events := cycle(t, p, rec)

	assert.Equal(t, []string{
		"before-cycle",
		"added(a.txt)",
		"added(b.xml)",
		"initial-content(a.txt,b.xml)",
		"after-cycle",
	}, events)
}

func TestDirectoryPoller_WarmStartRule(t *testing.T) {
	tests := []struct {
		name               string
		baseline           []CachedEntry
		initialContentAdds bool
		expected           []string
	}{
		{
			name:     "no baseline, no initial adds",
			expected: []string{"before-cycle", "initial-content(a)", "after-cycle"},
		},
		{
			name:     "empty baseline counts as cold start",
			baseline: []CachedEntry{},
			expected: []string{"before-cycle", "initial-content(a)", "after-cycle"},
		},
		{
			name:     "seeded baseline",
			baseline: []CachedEntry{{Name: "a", LastModified: 1}},
			expected: []string{"before-cycle", "modified(a)", "initial-content(a)", "after-cycle"},
		},
		{
			name:               "initial adds without baseline",
			initialContentAdds: true,
			expected:           []string{"before-cycle", "added(a)", "initial-content(a)", "after-cycle"},
		},
		{
			name:               "seeded and unchanged",
			baseline:           []CachedEntry{{Name: "a", LastModified: 2}},
			initialContentAdds: true,
			expected:           []string{"before-cycle", "initial-content(a)", "after-cycle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newStubDir("/d", okFiles("a", 2))
			p, rec := newTestPoller(t, Options{
				Directories:        []Directory{dir},
				InitialContentAdds: tt.initialContentAdds,
			})
			p.dirs[0] = newDirectoryPoller(dir, tt.baseline)

			assert.Equal(t, tt.expected, cycle(t, p, rec))
		})
	}
}

func TestDirectoryPoller_EdgeTriggeredIOErrors(t *testing.T) {
	// Given: three failures followed by two successes
	dir := newStubDir("/d", ioFailure(), ioFailure(), ioFailure(), okFiles("a", 1), okFiles("a", 1))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	// When: polling five times
	var all []string
	for range 5 {
		all = append(all, cycle(t, p, rec)...)
	}

	// Then: exactly one raised and one ceased
	count := func(s string) int {
		n := 0
		for _, e := range all {
			if e == s {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("io-error-raised"))
	assert.Equal(t, 1, count("io-error-ceased"))
	assert.Equal(t, 1, count("initial-content(a)"))
}

func TestDirectoryPoller_UnchangedDirectoryKeepsBaseline(t *testing.T) {
	dir := newStubDir("/d", okFiles("a", 1, "b", 2))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	cycle(t, p, rec)
	first := p.dirs[0].previous

	events := cycle(t, p, rec)

	assert.Equal(t, []string{"before-cycle", "after-cycle"}, events)
	assert.Same(t, first, p.dirs[0].previous)
}

func TestDirectoryPoller_EventOrderWithinDirectory(t *testing.T) {
	dir := newStubDir("/d",
		okFiles("a", 1, "b", 1),
		okFiles("b", 2, "c", 1),
	)
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	cycle(t, p, rec)
	before := p.dirs[0].previous
	events := cycle(t, p, rec)

	assert.Equal(t, []string{"before-cycle", "removed(a)", "added(c)", "modified(b)", "after-cycle"}, events)
	assert.NotSame(t, before, p.dirs[0].previous)
}

func TestDirectoryPoller_ZeroModTimeIsAnIOError(t *testing.T) {
	dir := newStubDir("/d", okFiles("a", 0))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	events := cycle(t, p, rec)

	assert.Equal(t, []string{"before-cycle", "io-error-raised", "after-cycle"}, events)
	require.Len(t, rec.raised, 1)
	assert.Equal(t, apperrors.ErrCodeModTimeUnknown, apperrors.GetCode(rec.raised[0]))
	assert.True(t, p.dirs[0].firstCycle)
}

func TestDirectoryPoller_ModTimeErrorFailsWholeListing(t *testing.T) {
	vanished := &stubEntry{name: "gone", mtErr: apperrors.IOError("lstat gone", nil)}
	dir := newStubDir("/d", listOf(&stubEntry{name: "a", mtime: 1}, vanished))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	events := cycle(t, p, rec)

	assert.Equal(t, []string{"before-cycle", "io-error-raised", "after-cycle"}, events)
}

func TestDirectoryPoller_RetryLaterIsSilent(t *testing.T) {
	busy := apperrors.New(apperrors.ErrCodeRetryLater, "share busy", nil)
	dir := newStubDir("/d",
		okFiles("a", 1),
		failing(busy),
		okFiles("a", 1, "b", 2),
	)
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	cycle(t, p, rec)
	assert.Equal(t, []string{"before-cycle", "after-cycle"}, cycle(t, p, rec))
	assert.Equal(t, []string{"before-cycle", "added(b)", "after-cycle"}, cycle(t, p, rec))
	assert.True(t, p.dirs[0].accessible)
}

func TestRetryLater_LeavesSharedErrorUntouched(t *testing.T) {
	// Given: a retry-later error with details for one directory
	err := RetryLater("/d", "quota exhausted", errors.New("429"))

	// When: further details are attached
	err.WithDetail("attempt", "2").WithSuggestion("lower the request rate")

	// Then: it still matches the shared error, which stays unmodified
	assert.ErrorIs(t, err, ErrRetryLater)
	assert.Equal(t, outcomeRetryLater, classify(err))
	assert.Equal(t, "/d", err.Details["directory"])
	assert.Empty(t, ErrRetryLater.Details)
	assert.Empty(t, ErrRetryLater.Suggestion)
}

func TestDirectoryPoller_UnexpectedErrorStopsPoller(t *testing.T) {
	dir := newStubDir("/d", failing(errors.New("driver bug")))
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	events := cycle(t, p, rec)

	assert.Equal(t, []string{"before-cycle", "after-cycle"}, events)
	require.Error(t, p.Err())
	assert.Equal(t, apperrors.ErrCodeAdapterCrash, apperrors.GetCode(p.Err()))
	assert.True(t, p.stopRequested())
}

func TestDirectoryPoller_AdapterPanicStopsPoller(t *testing.T) {
	dir := newStubDir("/d")
	dir.listFunc = func(context.Context) ([]Entry, error) {
		panic("nil map write")
	}
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}})

	cycle(t, p, rec)

	require.Error(t, p.Err())
	assert.Equal(t, apperrors.ErrCodeAdapterCrash, apperrors.GetCode(p.Err()))
	assert.Contains(t, p.Err().Error(), "nil map write")
}

func TestDirectoryPoller_FilterHidesEntries(t *testing.T) {
	dir := newStubDir("/d",
		okFiles("a.txt", 1, "a.tmp", 1),
		okFiles("a.txt", 1, "a.tmp", 2, "b.tmp", 1),
	)
	noTmp := FilterFunc(func(e Entry) bool {
		return len(e.Name()) < 4 || e.Name()[len(e.Name())-4:] != ".tmp"
	})
	p, rec := newTestPoller(t, Options{Directories: []Directory{dir}, Filter: noTmp})

	assert.Equal(t, []string{"before-cycle", "initial-content(a.txt)", "after-cycle"}, cycle(t, p, rec))
	assert.Equal(t, []string{"before-cycle", "after-cycle"}, cycle(t, p, rec))
}

func TestDirectoryPoller_CancelledListingPropagates(t *testing.T) {
	dir := newStubDir("/d")
	dir.listFunc = func(ctx context.Context) ([]Entry, error) {
		return nil, context.Canceled
	}
	p, _ := newTestPoller(t, Options{Directories: []Directory{dir}})

	err := p.runCycle(context.Background())

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, p.Err())
}
