package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rekav/img2ascii"
	"github.com/rekav/img2ascii/log"
)

// maxTranscript bounds the scrollback kept by the console.
const maxTranscript = 5000

type transcriptLine struct {
	text string
	kind img2ascii.LineKind
}

// transcript is the console's scrollback. It is the LineSink for the
// poller and the converter.
type transcript struct {
	mu    sync.Mutex
	lines []transcriptLine
	dirty bool
}

func (t *transcript) WriteLine(line string, kind img2ascii.LineKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, transcriptLine{text: line, kind: kind})
	if over := len(t.lines) - maxTranscript; over > 0 {
		t.lines = append(t.lines[:0], t.lines[over:]...)
	}
	t.dirty = true
}

func (t *transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = t.lines[:0]
	t.dirty = true
}

// takeDirty reports whether lines changed since the last call.
func (t *transcript) takeDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.dirty
	t.dirty = false
	return d
}

func (t *transcript) render(s styles) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for i, l := range t.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch l.kind {
		case img2ascii.LineSystem:
			b.WriteString(s.system.Render(l.text))
		case img2ascii.LineError:
			b.WriteString(s.error.Render(l.text))
		default:
			b.WriteString(s.normal.Render(l.text))
		}
	}
	return b.String()
}

type styles struct {
	normal lipgloss.Style
	system lipgloss.Style
	error  lipgloss.Style
	status lipgloss.Style
	prompt lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		normal: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		system: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		error:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
	}
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model is the interactive console: a scrollback viewport over a
// single-line prompt.
type model struct {
	ctx      context.Context
	console  *console
	poller   *img2ascii.Poller
	out      *transcript
	interval time.Duration

	input    textinput.Model
	viewport viewport.Model
	styles   styles
	ready    bool
}

func newModel(ctx context.Context, c *console, out *transcript, interval time.Duration) model {
	s := defaultStyles()
	in := textinput.New()
	in.Prompt = "> "
	in.PromptStyle = s.prompt
	in.Placeholder = "to_ascii <url> [key=value ...]"
	in.CharLimit = 4096
	in.Focus()

	return model{
		ctx:      ctx,
		console:  c,
		poller:   c.poller,
		out:      out,
		interval: interval,
		input:    in,
		styles:   s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 2
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.refresh(true)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(line) != "" {
				m.out.WriteLine("> "+line, img2ascii.LineNormal)
			}
			if m.console.Execute(line) {
				return m, tea.Quit
			}
			m.refresh(false)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tickMsg:
		if _, err := m.poller.Tick(m.ctx); err != nil {
			log.Debug("tick: %v", err)
		}
		m.refresh(false)
		return m, tick(m.interval)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// refresh copies the transcript into the viewport when it changed and
// keeps the view pinned to the newest line.
func (m *model) refresh(force bool) {
	if !m.ready {
		return
	}
	if !m.out.takeDirty() && !force {
		return
	}
	m.viewport.SetContent(m.out.render(m.styles))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	status := "ready"
	if m.poller.Pending() {
		status = "waiting for image..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.styles.status.Render(status),
		m.input.View(),
	)
}
