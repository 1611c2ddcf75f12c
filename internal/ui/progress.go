// Package ui renders the progress of foldkit scan in a terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Stage is how far a file has come through a scan.
type Stage uint8

const (
	StageQueued Stage = iota
	StageParse
	StageAnalyze
	StageReconcile
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageParse:
		return "parsing"
	case StageAnalyze:
		return "analyzing"
	case StageReconcile:
		return "folding"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return ""
	}
}

func (s Stage) progress() float64 {
	switch s {
	case StageParse:
		return 0.2
	case StageAnalyze:
		return 0.5
	case StageReconcile:
		return 0.8
	case StageDone, StageError:
		return 1
	default:
		return 0
	}
}

// Event reports a file entering a stage. Regions is set with StageDone.
type Event struct {
	File    string
	Stage   Stage
	Regions int
	Err     error
}

// Sink receives scan events.
type Sink interface {
	Emit(Event)
}

// ChannelSink forwards events to a channel.
type ChannelSink struct{ Ch chan<- Event }

func (s ChannelSink) Emit(ev Event) {
	if s.Ch != nil {
		s.Ch <- ev
	}
}

// NopSink drops events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	width   int
	regions int
	failed  int
	done    bool
}

type fileItem struct {
	path    string
	stage   Stage
	regions int
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows events for files
// until the channel is closed.
func NewProgressModel(title string, files []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d regions)", m.title, m.regions)
	if m.failed > 0 {
		header = fmt.Sprintf("%s, %d failed", header, m.failed)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 12
	if nameWidth < 20 {
		nameWidth = 20
	}
	for _, item := range m.items {
		status := styleStage(item.stage).Render(fmt.Sprintf("%12s", item.stage))
		line := "  " + status + " " + truncate(item.path, nameWidth)
		if item.stage == StageDone {
			line += fmt.Sprintf("  %d", item.regions)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev Event) tea.Cmd {
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.stage = ev.Stage
	switch ev.Stage {
	case StageDone:
		item.regions = ev.Regions
		m.regions += ev.Regions
	case StageError:
		m.failed++
	}
	total := 0.0
	for _, it := range m.items {
		total += it.stage.progress()
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

func styleStage(s Stage) lipgloss.Style {
	switch s {
	case StageDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case StageError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case StageParse, StageAnalyze, StageReconcile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
