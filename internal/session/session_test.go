package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/testutil"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newRunning(t *testing.T, d time.Duration) (*session.Session, *testutil.FakeClock) {
	t.Helper()

	clock := testutil.NewFakeClock(epoch)
	s := session.New(session.Options{Task: "write report", Duration: d, Clock: clock})

	_, err := s.Start()
	require.NoError(t, err)

	return s, clock
}

func TestStart(t *testing.T) {
	t.Parallel()

	s, _ := newRunning(t, 25*time.Minute)

	timer := s.Timer()
	assert.Equal(t, epoch, timer.Start)
	assert.Equal(t, epoch.Add(25*time.Minute), timer.End)
	assert.Equal(t, 25*time.Minute, timer.Planned)
	assert.Equal(t, session.Running, s.State())
	assert.NotEmpty(t, s.ID())

	_, err := s.Start()
	assert.ErrorIs(t, err, session.ErrAlreadyStarted)
}

func TestStart_RejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	s := session.New(session.Options{Duration: 0})
	_, err := s.Start()

	assert.ErrorIs(t, err, session.ErrInvalidDuration)
	assert.Equal(t, session.NotStarted, s.State())
}

func TestExtend_Monotonic(t *testing.T) {
	t.Parallel()

	s, clock := newRunning(t, 10*time.Minute)
	prev := s.Timer()

	for i := 1; i <= 4; i++ {
		clock.Advance(time.Minute)

		timer, err := s.Extend()
		require.NoError(t, err)

		assert.Equal(t, prev.End.Add(session.ExtendIncrement), timer.End)
		assert.Equal(t, prev.Planned+session.ExtendIncrement, timer.Planned)
		prev = timer
	}

	assert.Equal(t, 30*time.Minute, prev.Planned)
}

func TestExtend_NotRunning(t *testing.T) {
	t.Parallel()

	s := session.New(session.Options{Duration: time.Minute})
	_, err := s.Extend()
	assert.ErrorIs(t, err, session.ErrNotStarted)

	_, err = s.Start()
	require.NoError(t, err)
	s.End(true)

	_, err = s.Extend()
	assert.ErrorIs(t, err, session.ErrSessionEnded)
}

func TestActualDurationIgnoresPlanned(t *testing.T) {
	t.Parallel()

	s, clock := newRunning(t, 25*time.Minute)

	_, err := s.Extend()
	require.NoError(t, err)
	clock.Advance(7 * time.Minute)

	res, ok := s.End(false)
	require.True(t, ok)

	assert.Equal(t, 7*time.Minute, res.Actual)
	assert.Equal(t, 30*time.Minute, res.Planned)
	assert.Equal(t, epoch, res.StartedAt)
	assert.Equal(t, epoch.Add(7*time.Minute), res.EndedAt)
	assert.Equal(t, "write report", res.Task)
	assert.Equal(t, s.ID(), res.ID)
}

func TestRequestEnd_ConfirmationGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		confirm string
		wantErr error
	}{
		{"empty", "", session.ErrNotConfirmed},
		{"wrong case", "i choose to break my focus", session.ErrNotConfirmed},
		{"trailing space", session.DefaultConfirmationPhrase + " ", session.ErrNotConfirmed},
		{"exact", session.DefaultConfirmationPhrase, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, clock := newRunning(t, 25*time.Minute)
			clock.Advance(5 * time.Minute)

			res, err := s.RequestEnd(tt.confirm)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, session.Running, s.State(), "Declining leaves the session running")
				return
			}

			require.NoError(t, err)
			assert.False(t, res.Completed)
			assert.Equal(t, session.Ended, s.State())
		})
	}
}

func TestRequestEnd_AfterExpiryIsUnconditional(t *testing.T) {
	t.Parallel()

	s, clock := newRunning(t, 25*time.Minute)
	clock.Advance(25 * time.Minute)

	res, err := s.RequestEnd("")
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestRequestEnd_CustomPhrase(t *testing.T) {
	t.Parallel()

	s := session.New(session.Options{Duration: time.Hour, Phrase: "let me go"})
	_, err := s.Start()
	require.NoError(t, err)

	_, err = s.RequestEnd(session.DefaultConfirmationPhrase)
	assert.ErrorIs(t, err, session.ErrNotConfirmed)

	_, err = s.RequestEnd("let me go")
	assert.NoError(t, err)
}

func TestRequestEnd_AfterEnd(t *testing.T) {
	t.Parallel()

	s, _ := newRunning(t, time.Minute)
	first, _ := s.End(true)

	res, err := s.RequestEnd(session.DefaultConfirmationPhrase)
	assert.ErrorIs(t, err, session.ErrSessionEnded)
	assert.Equal(t, first, res)
}

func TestTick_EndsOnExpiry(t *testing.T) {
	t.Parallel()

	s, clock := newRunning(t, 25*time.Minute)

	clock.Advance(24 * time.Minute)
	_, ended := s.Tick()
	assert.False(t, ended)
	assert.False(t, s.Expired())

	clock.Advance(time.Minute)
	assert.True(t, s.Expired())

	res, ended := s.Tick()
	require.True(t, ended)
	assert.True(t, res.Completed)
	assert.Equal(t, 25*time.Minute, res.Actual)

	_, ended = s.Tick()
	assert.False(t, ended)
}

func TestEnd_ConcurrentCallersShareOneResult(t *testing.T) {
	t.Parallel()

	s, clock := newRunning(t, 25*time.Minute)
	clock.Advance(time.Minute)

	const callers = 16

	var wg sync.WaitGroup
	results := make([]session.Result, callers)
	firsts := make([]bool, callers)

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], firsts[i] = s.End(i%2 == 0)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range callers {
		if firsts[i] {
			winners++
		}
		assert.Equal(t, results[0], results[i])
	}

	assert.Equal(t, 1, winners)
}

func TestInterventionsCounted(t *testing.T) {
	t.Parallel()

	s, _ := newRunning(t, time.Minute)
	s.RecordIntervention()
	s.RecordIntervention()

	res, _ := s.End(true)
	assert.Equal(t, 2, res.Interventions)

	s.RecordIntervention()
	assert.Equal(t, 2, s.Status().Interventions, "Interventions after end are ignored")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s, clock := newRunning(t, 25*time.Minute)
	clock.Advance(10 * time.Minute)

	st := s.Status()
	assert.Equal(t, "running", st.State)
	assert.Equal(t, 15*time.Minute, st.Remaining)

	clock.Advance(time.Hour)
	assert.Zero(t, s.Timer().Remaining(clock.Now()))
}
