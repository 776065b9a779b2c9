// Package ui drives a flow from the terminal with bubbletea.
package ui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/i18n"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/presenter"
	"github.com/quick-analysis/backend/internal/staging"
)

// snapshotMsg carries a flow change into the update loop.
type snapshotMsg struct {
	snap models.FlowSnapshot
}

// closedMsg reports that the flow stopped publishing.
type closedMsg struct{}

// Model renders one flow and maps keys onto its operations.
type Model struct {
	flow       *flow.Flow
	catalog    *i18n.Catalog
	candidates []staging.Candidate

	updates <-chan models.FlowSnapshot
	cancel  func()

	snap     models.FlowSnapshot
	status   string
	width    int
	quitting bool
}

// NewModel subscribes to f. candidates are staged when the user presses 'a'.
func NewModel(f *flow.Flow, catalog *i18n.Catalog, candidates []staging.Candidate) *Model {
	if catalog == nil {
		catalog = i18n.Default()
	}
	updates, cancel := f.Subscribe()
	return &Model{
		flow:       f,
		catalog:    catalog,
		candidates: candidates,
		updates:    updates,
		cancel:     cancel,
		snap:       f.Snapshot(),
		width:      72,
	}
}

// Init starts listening for flow changes.
func (m *Model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m *Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

// Update handles key presses and flow changes.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case snapshotMsg:
		m.snap = msg.snap
		return m, m.waitForSnapshot()

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) (tea.Model, tea.Cmd) {
	m.status = ""
	var err error

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	case "a":
		var sel staging.Selection
		sel, err = m.flow.AddFiles(m.candidates)
		for _, r := range sel.Rejected {
			m.status = r.Name + ": " + r.Reason
		}
	case "x":
		_, err = m.flow.RemoveFile(0)
	case "s":
		err = m.flow.StartAnalysis()
	case "d":
		_, err = m.flow.DownloadReport()
	case "h":
		_, err = m.flow.ShareResult()
	case "r":
		err = m.flow.StartOver()
	case "l":
		err = m.flow.SetLocale(m.nextLocale())
	case "t":
		err = m.flow.SetDarkMode(!m.snap.DarkMode)
	}

	// No-files and placeholder notices are already on the rendered view.
	if err != nil && !errors.Is(err, flow.ErrNoFilesSelected) && !errors.Is(err, flow.ErrNotImplemented) {
		m.status = err.Error()
	}
	m.snap = m.flow.Snapshot()
	return m, nil
}

// nextLocale cycles through the catalog in declaration order.
func (m *Model) nextLocale() string {
	locales := m.catalog.Locales()
	for i, l := range locales {
		if l.Key == m.snap.Locale {
			return locales[(i+1)%len(locales)].Key
		}
	}
	return m.catalog.DefaultLocale().Key
}

// View renders the current snapshot.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	v := presenter.Render(m.snap, m.catalog, m.flow.Rules())
	out := presenter.Terminal(v, m.width)
	if m.status != "" {
		out += "\n" + m.status + "\n"
	}
	return out + "\n" + helpLine
}

const helpLine = "a add files · x remove first · s start · d download · h share · r start over · l language · t theme · q quit"

// Run blocks until the user quits or the flow closes.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
