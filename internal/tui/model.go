// Package tui is the full-screen terminal client built on Bubble Tea.
package tui

import (
	"context"
	"strings"

	"OreChat/internal/chat"
	"OreChat/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	title        = "ORE AI"
	eventBuffer  = 256
	headerHeight = 2
	footerHeight = 3
)

// eventMsg carries a controller event into the Bubble Tea loop
type eventMsg session.Event

// submitDoneMsg is sent when a Submit call returns
type submitDoneMsg session.Outcome

// Model is the root Bubble Tea model of the chat screen
type Model struct {
	ctx  context.Context
	ctrl *session.Controller

	events      chan session.Event
	done        chan struct{}
	unsubscribe func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	turns   []chat.Turn
	partial string
	ready   bool
	pending bool
	width   int
	height  int
}

// New creates the model for an unstarted controller. Init starts it.
func New(ctx context.Context, ctrl *session.Controller) *Model {
	input := textinput.New()
	input.Placeholder = "Digite sua mensagem..."
	input.CharLimit = 4000

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := &Model{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   make(chan session.Event, eventBuffer),
		done:     make(chan struct{}),
		input:    input,
		viewport: viewport.New(80, 24-headerHeight-footerHeight),
		spinner:  sp,
		width:    80,
		height:   24,
	}
	m.unsubscribe = ctrl.Subscribe(m.forward)
	return m
}

// forward hands events from controller goroutines to the UI loop
func (m *Model) forward(ev session.Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg(ev)
		case <-m.done:
			return nil
		}
	}
}

func (m *Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg(m.ctrl.Submit(m.ctx, text))
	}
}

// Close detaches the model from the controller
func (m *Model) Close() {
	select {
	case <-m.done:
	default:
		close(m.done)
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.ctrl.Start()
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.input.Width = max(10, msg.Width-4)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.apply(session.Event(msg))
		return m, m.waitForEvent()

	case submitDoneMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.Close()
		return m, tea.Quit

	case tea.KeyEnter:
		if !m.ready || m.pending {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		return m, m.submit(text)

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if !m.ready || m.pending {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply folds a controller event into view state
func (m *Model) apply(ev session.Event) {
	switch ev.Kind {
	case session.EventReady:
		m.ready = true
		m.input.Focus()

	case session.EventTurnAppended:
		m.turns = append(m.turns, ev.Turn)
		switch ev.Turn.Role {
		case chat.RoleUser:
			m.input.Reset()
		case chat.RoleAssistant:
			m.partial = ""
		}

	case session.EventPartial:
		m.partial = ev.Partial

	case session.EventPendingChanged:
		m.pending = ev.Pending
		if ev.Pending {
			m.input.Blur()
		} else if m.ready {
			m.input.Focus()
		}
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	bubbleWidth := max(20, m.width*4/5)
	var b strings.Builder
	for _, t := range m.turns {
		b.WriteString(m.renderTurn(t, bubbleWidth))
		b.WriteString("\n\n")
	}
	if m.partial != "" {
		b.WriteString(assistantStyle.MaxWidth(bubbleWidth).Render(m.partial))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderTurn(t chat.Turn, width int) string {
	switch {
	case t.Role == chat.RoleUser:
		bubble := userStyle.Width(min(width, lipgloss.Width(t.Content)+2)).Render(t.Content)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
	case t.Failed:
		return failedStyle.MaxWidth(width).Render(t.Content)
	default:
		return assistantStyle.Width(min(width, lipgloss.Width(t.Content)+2)).Render(t.Content)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	status := connectedStyle.Render("Conectado")
	if !m.ready {
		status = connectingStyle.Render(m.spinner.View() + " Conectando...")
	}
	left := titleStyle.Render(title + " · " + string(m.ctrl.Persona()))
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(status))
	header := headerStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + status)

	footer := ""
	if m.pending {
		footer = statusStyle.Render(m.spinner.View() + " Digitando...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		footer,
		m.input.View(),
	)
}
