package analysis

import (
	"sync"
	"testing"
	"time"

	"github.com/quick-analysis/backend/internal/clock"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testResult = FixedResult("Possible Pneumonia Detected",
	"We recommend you visit a pulmonologist for further examination.")

type recorder struct {
	mu     sync.Mutex
	states []models.AnalysisState
}

func (r *recorder) record(st models.AnalysisState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recorder) count(phase models.Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.states {
		if st.Phase == phase {
			n++
		}
	}
	return n
}

func newTestSimulator(delay time.Duration) (*Simulator, *clock.Fake, *recorder) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := &recorder{}
	sim := New(clk, Config{CompletionDelay: delay, RotationInterval: 5 * time.Second, MessageCount: 6}, rec.record)
	return sim, clk, rec
}

func TestNew_Defaults(t *testing.T) {
	sim := New(nil, Config{}, nil)
	assert.Equal(t, DefaultConfig(), sim.Config())
	assert.Equal(t, models.PhaseIdle, sim.State().Phase)
}

func TestSimulator_PendingThenComplete(t *testing.T) {
	sim, clk, _ := newTestSimulator(10 * time.Second)

	require.NoError(t, sim.Start(testResult))
	st := sim.State()
	assert.Equal(t, models.PhasePending, st.Phase)
	assert.Equal(t, 0, st.MessageIndex)

	clk.Advance(5 * time.Second)
	st = sim.State()
	assert.Equal(t, models.PhasePending, st.Phase)
	assert.Equal(t, 1, st.MessageIndex)

	clk.Advance(5 * time.Second)
	st = sim.State()
	require.Equal(t, models.PhaseComplete, st.Phase)
	require.NotNil(t, st.Result)
	assert.Equal(t, "Possible Pneumonia Detected", st.Result.Title)
	assert.Equal(t, 85, st.Result.ConfidencePercent)
	assert.Equal(t, testResult.Recommendation, st.Result.Recommendation)
	assert.Equal(t, int64(10000), st.CompletedAt-st.StartedAt)
	assert.Equal(t, 0, clk.Pending(), "both timers must be cleared on completion")
}

func TestSimulator_NeverCompletesEarly(t *testing.T) {
	sim, clk, _ := newTestSimulator(5 * time.Second)
	require.NoError(t, sim.Start(testResult))

	clk.Advance(5*time.Second - time.Millisecond)
	assert.Equal(t, models.PhasePending, sim.State().Phase)

	clk.Advance(time.Millisecond)
	assert.Equal(t, models.PhaseComplete, sim.State().Phase)
}

func TestSimulator_MessagesCycleIndependentOfDelay(t *testing.T) {
	sim, clk, _ := newTestSimulator(time.Hour)
	require.NoError(t, sim.Start(testResult))

	var seen []int
	for i := 0; i < 13; i++ {
		seen = append(seen, sim.State().MessageIndex)
		clk.Advance(5 * time.Second)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 5, 0}, seen)
	assert.Equal(t, models.PhasePending, sim.State().Phase)
}

func TestSimulator_StartWhilePendingIsRejected(t *testing.T) {
	sim, clk, rec := newTestSimulator(10 * time.Second)
	require.NoError(t, sim.Start(testResult))
	pendingTimers := clk.Pending()

	clk.Advance(3 * time.Second)
	err := sim.Start(testResult)
	assert.ErrorIs(t, err, ErrAnalysisPending)
	assert.Equal(t, pendingTimers, clk.Pending(), "no duplicate timers")

	clk.Advance(time.Minute)
	assert.Equal(t, 1, rec.count(models.PhaseComplete), "completion fires exactly once")
}

func TestSimulator_StartAfterFinish(t *testing.T) {
	sim, clk, _ := newTestSimulator(time.Second)
	require.NoError(t, sim.Start(testResult))
	clk.Advance(time.Second)

	assert.ErrorIs(t, sim.Start(testResult), ErrAlreadyFinished)
}

func TestSimulator_Cancel(t *testing.T) {
	sim, clk, rec := newTestSimulator(10 * time.Second)

	assert.False(t, sim.Cancel("nothing running"))

	require.NoError(t, sim.Start(testResult))
	assert.True(t, sim.Cancel("session expired"))
	assert.Equal(t, 0, clk.Pending())

	st := sim.State()
	assert.Equal(t, models.PhaseFailed, st.Phase)
	assert.Equal(t, "session expired", st.Reason)

	clk.Advance(time.Minute)
	assert.Equal(t, models.PhaseFailed, sim.State().Phase)
	assert.Equal(t, 0, rec.count(models.PhaseComplete))
}

func TestSimulator_CloseStopsTimers(t *testing.T) {
	sim, clk, rec := newTestSimulator(10 * time.Second)
	require.NoError(t, sim.Start(testResult))
	notified := len(rec.states)

	sim.Close()
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Minute)
	assert.Len(t, rec.states, notified, "no callbacks after teardown")
	assert.Equal(t, CancelledReason, sim.State().Reason)
	assert.ErrorIs(t, sim.Start(testResult), ErrClosed)
	assert.ErrorIs(t, sim.Reset(), ErrClosed)

	sim.Close()
}

func TestSimulator_Reset(t *testing.T) {
	sim, clk, _ := newTestSimulator(time.Second)

	assert.NoError(t, sim.Reset(), "reset while idle is a no-op")

	require.NoError(t, sim.Start(testResult))
	assert.ErrorIs(t, sim.Reset(), ErrAnalysisPending)

	clk.Advance(time.Second)
	require.NoError(t, sim.Reset())
	assert.Equal(t, models.IdleState(), sim.State())

	require.NoError(t, sim.Start(testResult))
	clk.Advance(time.Second)
	assert.Equal(t, models.PhaseComplete, sim.State().Phase)
}

func TestSimulator_StateIsACopy(t *testing.T) {
	sim, clk, _ := newTestSimulator(time.Second)
	require.NoError(t, sim.Start(testResult))
	clk.Advance(time.Second)

	st := sim.State()
	st.Result.Title = "mutated"
	assert.Equal(t, testResult.Title, sim.State().Result.Title)
}

func TestSimulator_SystemClock(t *testing.T) {
	done := make(chan models.AnalysisState, 4)
	sim := New(clock.System{}, Config{
		CompletionDelay:  20 * time.Millisecond,
		RotationInterval: time.Hour,
		MessageCount:     6,
	}, func(st models.AnalysisState) {
		if st.Phase == models.PhaseComplete {
			done <- st
		}
	})
	defer sim.Close()

	require.NoError(t, sim.Start(testResult))

	select {
	case st := <-done:
		assert.Equal(t, 85, st.Result.ConfidencePercent)
	case <-time.After(2 * time.Second):
		t.Fatal("analysis did not complete")
	}
}
