package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quick-analysis/backend/internal/analysis"
	"github.com/quick-analysis/backend/internal/clock"
	"github.com/quick-analysis/backend/internal/i18n"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/staging"
)

type released struct {
	files []models.StagedFile
}

func (r *released) record(files []models.StagedFile) {
	r.files = append(r.files, files...)
}

func (r *released) ids() []string {
	var out []string
	for _, f := range r.files {
		out = append(out, f.FileID)
	}
	return out
}

func newTestFlow(t *testing.T, mutate func(*Options)) (*Flow, *clock.Fake, *released) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	rel := &released{}
	opts := Options{
		ID:      "flow-1",
		Catalog: i18n.Default(),
		Clock:   clk,
		Analysis: analysis.Config{
			CompletionDelay:  5 * time.Second,
			RotationInterval: 5 * time.Second,
		},
		Release: rel.record,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f := New(opts)
	t.Cleanup(f.Close)
	return f, clk, rel
}

func chest() staging.Candidate {
	return staging.Candidate{Name: "chest.png", Size: 1048576, FileID: "blob-chest"}
}

func TestNew_Defaults(t *testing.T) {
	f, _, _ := newTestFlow(t, nil)

	snap := f.Snapshot()
	assert.Equal(t, "flow-1", snap.ID)
	assert.Equal(t, "Eng", snap.Locale)
	assert.False(t, snap.DarkMode)
	assert.Empty(t, snap.Files)
	assert.Equal(t, models.PhaseIdle, snap.State.Phase)
	assert.False(t, snap.CanSubmit)
	assert.False(t, snap.CanReset)
	assert.Empty(t, snap.Error)
}

func TestNew_UnknownLocaleFallsBack(t *testing.T) {
	f, _, _ := newTestFlow(t, func(o *Options) { o.Locale = "xx" })
	assert.Equal(t, "Eng", f.Snapshot().Locale)
}

func TestStartAnalysis_FullTimeline(t *testing.T) {
	f, clk, _ := newTestFlow(t, nil)

	sel, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.Len(t, sel.Accepted, 1)
	assert.True(t, f.Snapshot().CanSubmit)

	require.NoError(t, f.StartAnalysis())
	snap := f.Snapshot()
	assert.Equal(t, models.PhasePending, snap.State.Phase)
	assert.Equal(t, 0, snap.State.MessageIndex)
	assert.False(t, snap.CanSubmit)

	clk.Advance(4999 * time.Millisecond)
	assert.Equal(t, models.PhasePending, f.Snapshot().State.Phase)

	clk.Advance(time.Millisecond)
	snap = f.Snapshot()
	require.Equal(t, models.PhaseComplete, snap.State.Phase)
	require.NotNil(t, snap.State.Result)
	assert.Equal(t, models.AnalysisResult{
		Title:             "Possible Pneumonia Detected",
		ConfidencePercent: 85,
		Recommendation:    i18n.Default().DefaultLocale().Strings.Recommendation,
	}, *snap.State.Result)
	assert.Equal(t, 0, clk.Pending())
}

func TestStartAnalysis_RotatesWithLongerDelay(t *testing.T) {
	f, clk, _ := newTestFlow(t, func(o *Options) { o.Analysis.CompletionDelay = 10 * time.Second })

	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())

	clk.Advance(5 * time.Second)
	snap := f.Snapshot()
	assert.Equal(t, models.PhasePending, snap.State.Phase)
	assert.Equal(t, 1, snap.State.MessageIndex)

	clk.Advance(5 * time.Second)
	assert.Equal(t, models.PhaseComplete, f.Snapshot().State.Phase)
}

func TestStartAnalysis_NoFiles(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"Eng", i18n.Default().Resolve("Eng").Strings.ErrorNoFile},
		{"한", i18n.Default().Resolve("한").Strings.ErrorNoFile},
		{"ja", i18n.Default().Resolve("日").Strings.ErrorNoFile},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			f, clk, _ := newTestFlow(t, func(o *Options) { o.Locale = tt.locale })

			err := f.StartAnalysis()
			assert.ErrorIs(t, err, ErrNoFilesSelected)

			snap := f.Snapshot()
			assert.Equal(t, models.PhaseIdle, snap.State.Phase)
			assert.Equal(t, tt.want, snap.Error)
			assert.Equal(t, 0, clk.Pending())
		})
	}
}

func TestStartAnalysis_RejectedWhilePending(t *testing.T) {
	f, clk, _ := newTestFlow(t, nil)
	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())
	timers := clk.Pending()

	assert.ErrorIs(t, f.StartAnalysis(), ErrAnalysisPending)
	assert.Equal(t, timers, clk.Pending())

	_, err = f.AddFiles([]staging.Candidate{{Name: "more.png", Size: 1}})
	assert.ErrorIs(t, err, ErrAnalysisPending)

	_, err = f.RemoveFile(0)
	assert.ErrorIs(t, err, ErrAnalysisPending)
	assert.Len(t, f.Snapshot().Files, 1)
}

func TestStartAnalysis_AfterCompletion(t *testing.T) {
	f, clk, _ := newTestFlow(t, nil)
	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())
	clk.Advance(5 * time.Second)

	assert.ErrorIs(t, f.StartAnalysis(), ErrAlreadyFinished)
}

func TestStartAnalysis_ResultUsesSubmitLocale(t *testing.T) {
	f, clk, _ := newTestFlow(t, func(o *Options) { o.Locale = "ko" })
	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())

	require.NoError(t, f.SetLocale("Eng"))
	clk.Advance(5 * time.Second)

	snap := f.Snapshot()
	assert.Equal(t, "Eng", snap.Locale)
	require.NotNil(t, snap.State.Result)
	assert.Equal(t, i18n.Default().Resolve("한").Strings.AnalysisTitle, snap.State.Result.Title)
}

func TestAddFiles_ErrorResetPolicy(t *testing.T) {
	invalid := i18n.Default().DefaultLocale().Strings.ErrorInvalidFile

	tests := []struct {
		name      string
		policy    staging.ResetPolicy
		selection []staging.Candidate
		wantError string
	}{
		{"non-empty clears", staging.ResetIfNonEmpty, []staging.Candidate{chest()}, ""},
		{"empty sets invalid", staging.ResetIfNonEmpty, nil, invalid},
		{"all rejected sets invalid", staging.ResetIfNonEmpty, []staging.Candidate{{Name: "notes.txt", Size: 3}}, invalid},
		{"always clears on empty", staging.ResetAlways, nil, ""},
		{"always clears on rejected", staging.ResetAlways, []staging.Candidate{{Name: "notes.txt", Size: 3}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, _ := newTestFlow(t, func(o *Options) { o.ResetPolicy = tt.policy })
			require.ErrorIs(t, f.StartAnalysis(), ErrNoFilesSelected)

			_, err := f.AddFiles(tt.selection)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, f.Snapshot().Error)
		})
	}
}

func TestAddFiles_ReleasesRejected(t *testing.T) {
	f, _, rel := newTestFlow(t, nil)

	sel, err := f.AddFiles([]staging.Candidate{
		chest(),
		{Name: "virus.exe", Size: 10, FileID: "blob-exe"},
		{Name: "huge.dicom", Size: staging.DefaultMaxFileSize + 1, FileID: "blob-huge"},
	})
	require.NoError(t, err)

	assert.Len(t, sel.Accepted, 1)
	assert.Len(t, sel.Rejected, 2)
	assert.Equal(t, []string{"blob-exe", "blob-huge"}, rel.ids())
}

func TestRemoveFile(t *testing.T) {
	f, _, rel := newTestFlow(t, nil)
	_, err := f.AddFiles([]staging.Candidate{
		{Name: "a.png", Size: 1, FileID: "a"},
		{Name: "b.jpg", Size: 2, FileID: "b"},
		{Name: "c.pdf", Size: 3, FileID: "c"},
	})
	require.NoError(t, err)

	ok, err := f.RemoveFile(1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.RemoveFile(7)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.RemoveFile(-1)
	require.NoError(t, err)
	assert.False(t, ok)

	files := f.Snapshot().Files
	require.Len(t, files, 2)
	assert.Equal(t, "a.png", files[0].Name)
	assert.Equal(t, "c.pdf", files[1].Name)
	assert.Equal(t, []string{"b"}, rel.ids())
}

func TestPlaceholders(t *testing.T) {
	f, clk, _ := newTestFlow(t, nil)

	_, err := f.DownloadReport()
	assert.ErrorIs(t, err, ErrNotComplete)

	_, err = f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())
	clk.Advance(5 * time.Second)

	notice, err := f.DownloadReport()
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Equal(t, "PDF Download not implemented", notice)
	assert.Equal(t, notice, f.Snapshot().Notice)

	notice, err = f.ShareResult()
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Equal(t, "Share Result not implemented", notice)

	assert.Equal(t, models.PhaseComplete, f.Snapshot().State.Phase)
}

func TestSetLocale(t *testing.T) {
	f, _, _ := newTestFlow(t, nil)
	v := f.Snapshot().Version

	require.NoError(t, f.SetLocale("日"))
	snap := f.Snapshot()
	assert.Equal(t, "日", snap.Locale)
	assert.Greater(t, snap.Version, v)
	assert.Equal(t, models.PhaseIdle, snap.State.Phase)

	require.NoError(t, f.SetLocale("zh"))
	assert.Equal(t, "中", f.Snapshot().Locale)

	err := f.SetLocale("klingon")
	assert.ErrorIs(t, err, ErrUnknownLocale)
	assert.Equal(t, "中", f.Snapshot().Locale)
}

func TestSetLocale_RelocalizesError(t *testing.T) {
	f, _, _ := newTestFlow(t, nil)
	require.ErrorIs(t, f.StartAnalysis(), ErrNoFilesSelected)

	require.NoError(t, f.SetLocale("한"))
	assert.Equal(t, i18n.Default().Resolve("한").Strings.ErrorNoFile, f.Snapshot().Error)
}

func TestSetDarkMode(t *testing.T) {
	f, _, _ := newTestFlow(t, nil)
	require.NoError(t, f.SetDarkMode(true))
	assert.True(t, f.Snapshot().DarkMode)
	require.NoError(t, f.SetDarkMode(false))
	assert.False(t, f.Snapshot().DarkMode)
}

func TestStartOver(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		f, clk, _ := newTestFlow(t, nil)
		_, err := f.AddFiles([]staging.Candidate{chest()})
		require.NoError(t, err)
		require.NoError(t, f.StartAnalysis())
		clk.Advance(5 * time.Second)

		assert.ErrorIs(t, f.StartOver(), ErrStartOverDisabled)
		assert.False(t, f.Snapshot().CanReset)
	})

	t.Run("enabled", func(t *testing.T) {
		f, clk, rel := newTestFlow(t, func(o *Options) { o.AllowStartOver = true })
		_, err := f.AddFiles([]staging.Candidate{chest()})
		require.NoError(t, err)
		require.NoError(t, f.StartAnalysis())

		assert.ErrorIs(t, f.StartOver(), ErrAnalysisPending)

		clk.Advance(5 * time.Second)
		assert.True(t, f.Snapshot().CanReset)
		require.NoError(t, f.StartOver())

		snap := f.Snapshot()
		assert.Equal(t, models.PhaseIdle, snap.State.Phase)
		assert.Empty(t, snap.Files)
		assert.Equal(t, []string{"blob-chest"}, rel.ids())

		_, err = f.AddFiles([]staging.Candidate{chest()})
		require.NoError(t, err)
		assert.NoError(t, f.StartAnalysis())
	})
}

func TestCancel(t *testing.T) {
	f, clk, _ := newTestFlow(t, nil)
	assert.False(t, f.Cancel("expired"))

	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())

	assert.True(t, f.Cancel("expired"))
	snap := f.Snapshot()
	assert.Equal(t, models.PhaseFailed, snap.State.Phase)
	assert.Equal(t, "expired", snap.State.Reason)
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Minute)
	assert.Equal(t, models.PhaseFailed, f.Snapshot().State.Phase)
}

func TestClose(t *testing.T) {
	f, clk, rel := newTestFlow(t, nil)
	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)
	require.NoError(t, f.StartAnalysis())

	ch, _ := f.Subscribe()
	<-ch

	f.Close()
	assert.True(t, f.Closed())
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, []string{"blob-chest"}, rel.ids())

	_, open := <-ch
	assert.False(t, open)

	assert.ErrorIs(t, f.StartAnalysis(), ErrClosed)
	assert.ErrorIs(t, f.SetLocale("Eng"), ErrClosed)
	_, err = f.AddFiles([]staging.Candidate{chest()})
	assert.ErrorIs(t, err, ErrClosed)

	f.Close()
}

func TestSubscribe_ReceivesTimerChanges(t *testing.T) {
	f, clk, _ := newTestFlow(t, func(o *Options) { o.Analysis.CompletionDelay = 10 * time.Second })
	_, err := f.AddFiles([]staging.Candidate{chest()})
	require.NoError(t, err)

	ch, cancel := f.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, models.PhaseIdle, first.State.Phase)

	require.NoError(t, f.StartAnalysis())
	pending := <-ch
	assert.Equal(t, models.PhasePending, pending.State.Phase)

	clk.Advance(5 * time.Second)
	rotated := <-ch
	assert.Equal(t, 1, rotated.State.MessageIndex)

	clk.Advance(5 * time.Second)
	done := <-ch
	assert.Equal(t, models.PhaseComplete, done.State.Phase)
	assert.Greater(t, done.Version, rotated.Version)
}

func TestSubscribe_LatestWins(t *testing.T) {
	f, _, _ := newTestFlow(t, nil)
	ch, cancel := f.Subscribe()

	require.NoError(t, f.SetDarkMode(true))
	require.NoError(t, f.SetLocale("한"))
	require.NoError(t, f.SetLocale("日"))

	snap := <-ch
	assert.Equal(t, "日", snap.Locale)
	assert.True(t, snap.DarkMode)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}
