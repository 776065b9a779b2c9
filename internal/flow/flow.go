// Package flow owns one upload-and-analyze session: the staged files, the
// analysis simulator and the display preferences. All mutation goes through
// the Flow methods; readers get immutable snapshots.
package flow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quick-analysis/backend/internal/analysis"
	"github.com/quick-analysis/backend/internal/clock"
	"github.com/quick-analysis/backend/internal/i18n"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/staging"
)

var (
	ErrNoFilesSelected   = errors.New("no files selected")
	ErrNotImplemented    = errors.New("not implemented")
	ErrNotComplete       = errors.New("analysis not complete")
	ErrStartOverDisabled = errors.New("start over is disabled")
	ErrUnknownLocale     = errors.New("unknown locale")
	ErrClosed            = errors.New("flow closed")

	// Re-exported so callers only need this package.
	ErrAnalysisPending = analysis.ErrAnalysisPending
	ErrAlreadyFinished = analysis.ErrAlreadyFinished
)

type errorKind int

const (
	errorNone errorKind = iota
	errorNoFiles
	errorInvalidFile
)

type noticeKind int

const (
	noticeNone noticeKind = iota
	noticePDF
	noticeShare
)

// Options configures a Flow.
type Options struct {
	ID             string
	Catalog        *i18n.Catalog
	Clock          clock.Clock
	Analysis       analysis.Config
	Rules          staging.Rules
	ResetPolicy    staging.ResetPolicy
	AllowStartOver bool
	Locale         string
	DarkMode       bool

	// Release is called with files that leave the flow (removed, cleared or
	// rejected) so their stored bytes can be dropped. It runs under the
	// flow's lock and must not call back into the flow.
	Release func(files []models.StagedFile)
}

// Flow is one upload-and-analyze session.
type Flow struct {
	mu        sync.Mutex
	id        string
	catalog   *i18n.Catalog
	clock     clock.Clock
	staging   *staging.Staging
	sim       *analysis.Simulator
	policy    staging.ResetPolicy
	startOver bool
	release   func([]models.StagedFile)

	locale    i18n.Locale
	darkMode  bool
	errKind   errorKind
	notice    noticeKind
	version   uint64
	createdAt time.Time
	closed    bool

	subs map[chan models.FlowSnapshot]struct{}
}

// New creates an idle flow.
func New(opts Options) *Flow {
	if opts.Catalog == nil {
		opts.Catalog = i18n.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Rules.AllowedExtensions == nil {
		opts.Rules = staging.DefaultRules()
	}
	if opts.ResetPolicy == "" {
		opts.ResetPolicy = staging.ResetIfNonEmpty
	}
	if opts.Analysis.MessageCount <= 0 {
		opts.Analysis.MessageCount = len(opts.Catalog.WaitingMessages())
	}

	f := &Flow{
		id:        opts.ID,
		catalog:   opts.Catalog,
		clock:     opts.Clock,
		staging:   staging.New(opts.Rules),
		policy:    opts.ResetPolicy,
		startOver: opts.AllowStartOver,
		release:   opts.Release,
		locale:    opts.Catalog.Resolve(opts.Locale),
		darkMode:  opts.DarkMode,
		createdAt: opts.Clock.Now(),
		subs:      make(map[chan models.FlowSnapshot]struct{}),
	}
	f.sim = analysis.New(opts.Clock, opts.Analysis, f.onAnalysisChange)
	return f
}

// ID returns the flow identifier.
func (f *Flow) ID() string {
	return f.id
}

// Rules returns the validation rules applied to staged files.
func (f *Flow) Rules() staging.Rules {
	return f.staging.Rules()
}

// AddFiles stages the valid candidates and applies the error reset policy.
// Files can only be staged while no analysis is pending or finished.
func (f *Flow) AddFiles(selected []staging.Candidate) (staging.Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireIdleLocked(); err != nil {
		f.releaseCandidatesLocked(selected)
		return staging.Selection{}, err
	}

	sel := f.staging.Add(selected)
	if len(sel.Rejected) > 0 {
		f.releaseRejectedLocked(selected, sel)
	}

	if sel.ClearsError(f.policy) {
		f.errKind = errorNone
	} else {
		f.errKind = errorInvalidFile
	}
	f.notice = noticeNone
	f.changedLocked()
	return sel, nil
}

// RemoveFile drops the staged file at index. An out-of-range index is a
// no-op and reports false.
func (f *Flow) RemoveFile(index int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireIdleLocked(); err != nil {
		return false, err
	}
	removed, ok := f.staging.Remove(index)
	if !ok {
		return false, nil
	}
	f.releaseLocked([]models.StagedFile{removed})
	f.changedLocked()
	return true, nil
}

// StartAnalysis submits the staged files. With nothing staged it records the
// localized "please upload files" error, leaves the state Idle and schedules
// nothing.
func (f *Flow) StartAnalysis() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	switch f.sim.State().Phase {
	case models.PhasePending:
		return ErrAnalysisPending
	case models.PhaseComplete, models.PhaseFailed:
		return ErrAlreadyFinished
	}

	if f.staging.Len() == 0 {
		f.errKind = errorNoFiles
		f.changedLocked()
		return ErrNoFilesSelected
	}

	s := f.locale.Strings
	if err := f.sim.Start(analysis.FixedResult(s.AnalysisTitle, s.Recommendation)); err != nil {
		return err
	}
	f.errKind = errorNone
	f.notice = noticeNone
	f.changedLocked()
	return nil
}

// DownloadReport is a placeholder: it always reports ErrNotImplemented
// together with the notice to show.
func (f *Flow) DownloadReport() (string, error) {
	return f.placeholder(noticePDF)
}

// ShareResult is a placeholder like DownloadReport.
func (f *Flow) ShareResult() (string, error) {
	return f.placeholder(noticeShare)
}

func (f *Flow) placeholder(kind noticeKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", ErrClosed
	}
	if f.sim.State().Phase != models.PhaseComplete {
		return "", ErrNotComplete
	}
	f.notice = kind
	f.changedLocked()
	return f.noticeTextLocked(), ErrNotImplemented
}

// SetLocale switches the display language. It never touches the analysis.
func (f *Flow) SetLocale(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	l, ok := f.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLocale, name)
	}
	if l.Key != f.locale.Key {
		f.locale = l
		f.changedLocked()
	}
	return nil
}

// SetDarkMode switches the display theme.
func (f *Flow) SetDarkMode(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.darkMode != on {
		f.darkMode = on
		f.changedLocked()
	}
	return nil
}

// StartOver returns a finished flow to Idle with nothing staged.
func (f *Flow) StartOver() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if !f.startOver {
		return ErrStartOverDisabled
	}
	if err := f.sim.Reset(); err != nil {
		return err
	}
	f.releaseLocked(f.staging.Clear())
	f.errKind = errorNone
	f.notice = noticeNone
	f.changedLocked()
	return nil
}

// Cancel fails a pending analysis with reason.
func (f *Flow) Cancel(reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.sim.Cancel(reason) {
		return false
	}
	f.changedLocked()
	return true
}

// Snapshot returns a read-only copy of the flow.
func (f *Flow) Snapshot() models.FlowSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot after
// each change. Slow readers skip intermediate snapshots. The channel is
// closed when the flow is closed or cancel is called.
func (f *Flow) Subscribe() (<-chan models.FlowSnapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan models.FlowSnapshot, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	ch <- f.snapshotLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close tears the flow down: both analysis timers are cancelled, staged
// files are released and subscribers are closed.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.sim.Close()
	f.releaseLocked(f.staging.Clear())
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

// Closed reports whether the flow was torn down.
func (f *Flow) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Flow) onAnalysisChange(models.AnalysisState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.changedLocked()
}

func (f *Flow) requireIdleLocked() error {
	if f.closed {
		return ErrClosed
	}
	switch f.sim.State().Phase {
	case models.PhasePending:
		return ErrAnalysisPending
	case models.PhaseComplete, models.PhaseFailed:
		return ErrAlreadyFinished
	}
	return nil
}

func (f *Flow) changedLocked() {
	f.version++
	if len(f.subs) == 0 {
		return
	}
	snap := f.snapshotLocked()
	for ch := range f.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (f *Flow) snapshotLocked() models.FlowSnapshot {
	st := f.sim.State()
	return models.FlowSnapshot{
		ID:        f.id,
		Locale:    f.locale.Key,
		DarkMode:  f.darkMode,
		Files:     f.staging.Files(),
		State:     st,
		Error:     f.errorTextLocked(),
		Notice:    f.noticeTextLocked(),
		CanSubmit: !f.closed && st.Phase == models.PhaseIdle && f.staging.Len() > 0,
		CanReset:  !f.closed && f.startOver && st.Phase.IsTerminal(),
		Version:   f.version,
		CreatedAt: f.createdAt,
	}
}

func (f *Flow) errorTextLocked() string {
	switch f.errKind {
	case errorNoFiles:
		return f.locale.Strings.ErrorNoFile
	case errorInvalidFile:
		return f.locale.Strings.ErrorInvalidFile
	}
	return ""
}

func (f *Flow) noticeTextLocked() string {
	switch f.notice {
	case noticePDF:
		return f.locale.Strings.PDFNotImplemented
	case noticeShare:
		return f.locale.Strings.ShareNotImplemented
	}
	return ""
}

func (f *Flow) releaseLocked(files []models.StagedFile) {
	if f.release == nil || len(files) == 0 {
		return
	}
	f.release(files)
}

func (f *Flow) releaseCandidatesLocked(selected []staging.Candidate) {
	var files []models.StagedFile
	for _, c := range selected {
		if c.FileID != "" {
			files = append(files, models.StagedFile{Name: c.Name, SizeBytes: c.Size, FileID: c.FileID})
		}
	}
	f.releaseLocked(files)
}

func (f *Flow) releaseRejectedLocked(selected []staging.Candidate, sel staging.Selection) {
	accepted := make(map[string]bool, len(sel.Accepted))
	for _, a := range sel.Accepted {
		if a.FileID != "" {
			accepted[a.FileID] = true
		}
	}
	var rejected []staging.Candidate
	for _, c := range selected {
		if c.FileID != "" && !accepted[c.FileID] {
			rejected = append(rejected, c)
		}
	}
	f.releaseCandidatesLocked(rejected)
}
