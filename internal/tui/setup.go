// ABOUTME: Interactive TUI wizard for configuring the feedsync cache and feed source.
// ABOUTME: 3-step bubbletea model collecting backend, data directory, and feed URL or path.
package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harper/feedsync/internal/config"
)

// Step represents the current wizard step.
type Step int

const (
	StepBackend Step = iota
	StepDataDir
	StepSource
	StepDone
)

const stepCount = 3

// SetupModel is the bubbletea model for the setup wizard.
type SetupModel struct {
	step     Step
	inputs   [stepCount]textinput.Model
	base     config.Config
	errMsg   string
	quitting bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// NewSetupModel creates a new setup wizard model, pre-filling with existing config values.
func NewSetupModel(existing *config.Config) SetupModel {
	var base config.Config
	if existing != nil {
		base = *existing
	}

	backendInput := textinput.New()
	backendInput.Placeholder = config.BackendSQLite
	backendInput.Focus()
	backendInput.Width = 50
	backendInput.SetValue(base.Backend)

	dataDirInput := textinput.New()
	dataDirInput.Placeholder = config.DefaultDataDir()
	dataDirInput.Width = 50
	dataDirInput.SetValue(base.DataDir)

	sourceInput := textinput.New()
	sourceInput.Placeholder = "https://example.com/feed.xml"
	sourceInput.Width = 50
	switch {
	case base.SourceURL != "":
		sourceInput.SetValue(base.SourceURL)
	case base.SourcePath != "":
		sourceInput.SetValue(base.SourcePath)
	}

	return SetupModel{
		step:   StepBackend,
		inputs: [stepCount]textinput.Model{backendInput, dataDirInput, sourceInput},
		base:   base,
	}
}

// Init implements tea.Model.
func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			return m, tea.Quit
		}

		if m.step < StepDone {
			return m.updateInput(msg)
		}
	default:
		// Forward other messages (e.g. cursor blink) to the active input
		if m.step < StepDone {
			idx := int(m.step)
			var cmd tea.Cmd
			m.inputs[idx], cmd = m.inputs[idx].Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SetupModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		return m.handleEnter()
	}

	idx := int(m.step)
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m SetupModel) handleEnter() (tea.Model, tea.Cmd) {
	idx := int(m.step)
	val := strings.TrimSpace(m.inputs[idx].Value())

	switch m.step {
	case StepBackend:
		if val == "" {
			val = config.BackendSQLite
		}
		val = strings.ToLower(val)
		if val != config.BackendSQLite && val != config.BackendMemory && val != config.BackendCharm {
			m.errMsg = fmt.Sprintf("unknown backend %q", val)
			return m, nil
		}
		m.inputs[idx].SetValue(val)
	case StepDataDir:
		if val == "" {
			val = config.DefaultDataDir()
		}
		m.inputs[idx].SetValue(val)
	case StepSource:
		if val == "" {
			m.errMsg = "a feed URL or file path is required"
			return m, nil
		}
		if isURL(val) {
			if _, err := url.ParseRequestURI(val); err != nil {
				m.errMsg = fmt.Sprintf("invalid URL: %v", err)
				return m, nil
			}
		}
		m.inputs[idx].SetValue(val)
	}

	m.errMsg = ""
	m.inputs[idx].Blur()

	switch m.step {
	case StepBackend:
		m.step = StepDataDir
		m.inputs[StepDataDir].Focus()
		return m, textinput.Blink
	case StepDataDir:
		m.step = StepSource
		m.inputs[StepSource].Focus()
		return m, textinput.Blink
	case StepSource:
		m.step = StepDone
		return m, tea.Quit
	}

	return m, nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// View implements tea.Model.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   FEEDSYNC"))
	b.WriteString(titleStyle.Render(" - Setup"))
	b.WriteString("\n\n")
	b.WriteString("Configure the local cache and the feed it mirrors.\n\n")

	switch m.step {
	case StepBackend:
		b.WriteString(stepStyle.Render("Step 1 of 3: Storage Backend"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(sqlite, memory, or charm, press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepBackend].View())
		b.WriteString("\n")

	case StepDataDir:
		b.WriteString(fmt.Sprintf("  Backend: %s\n\n", m.inputs[StepBackend].Value()))
		b.WriteString(stepStyle.Render("Step 2 of 3: Data Directory"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("(press Enter for default: %s)", config.DefaultDataDir())))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepDataDir].View())
		b.WriteString("\n")

	case StepSource:
		b.WriteString(fmt.Sprintf("  Backend:        %s\n", m.inputs[StepBackend].Value()))
		b.WriteString(fmt.Sprintf("  Data directory:  %s\n\n", m.inputs[StepDataDir].Value()))
		b.WriteString(stepStyle.Render("Step 3 of 3: Feed Source"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(an http(s) feed URL or a local JSON file path)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepSource].View())
		b.WriteString("\n")

	case StepDone:
		cfg := m.Result()
		b.WriteString(successStyle.Render("Setup complete!"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  Backend:        %s\n", cfg.Backend))
		b.WriteString(fmt.Sprintf("  Data directory:  %s\n", cfg.DataDir))
		b.WriteString(fmt.Sprintf("  Source (%s):   %s\n", cfg.SourceKind, m.inputs[StepSource].Value()))
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}

	return b.String()
}

// Result returns the existing config with the entered values applied.
func (m SetupModel) Result() *config.Config {
	cfg := m.base
	cfg.Backend = m.inputs[StepBackend].Value()
	cfg.DataDir = m.inputs[StepDataDir].Value()

	src := m.inputs[StepSource].Value()
	if isURL(src) {
		cfg.SourceKind = config.SourceHTTP
		cfg.SourceURL = src
		cfg.SourcePath = ""
	} else {
		cfg.SourceKind = config.SourceFile
		cfg.SourcePath = src
		cfg.SourceURL = ""
	}
	return &cfg
}

// ShouldSave returns true if the wizard completed and the user did not cancel.
func (m SetupModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
