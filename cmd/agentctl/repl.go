package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/corehost/agentcore/internal/controller"
	"github.com/corehost/agentcore/internal/domain"
)

// replModel is a minimal bubbletea program consuming the message bus,
// grounded on the teacher's internal/tui.Model shape (a single text input
// plus an append-only transcript) but trimmed to what this exercise's
// host core actually streams: text/thinking deltas, tool events, and the
// turn-finished terminal event.
type replModel struct {
	ctrl      *controller.Controller
	sessName  string
	agentName string
	input     textinput.Model
	lines     []string
	cancel    context.CancelFunc
	busy      bool
}

type busEventMsg domain.StreamEvent
type turnDoneMsg struct{ err error }

func newREPL(ctrl *controller.Controller, sessionName, agentName string) replModel {
	ti := textinput.New()
	ti.Placeholder = "say something, or /exit"
	ti.Focus()
	return replModel{ctrl: ctrl, sessName: sessionName, agentName: agentName, input: ti}
}

func (m replModel) Init() tea.Cmd {
	return listenForEvents(m.ctrl)
}

func listenForEvents(ctrl *controller.Controller) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-ctrl.Bus.Events():
			return busEventMsg(ev)
		case <-ctrl.Bus.Done():
			return nil
		}
	}
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
	case busEventMsg:
		m.lines = append(m.lines, renderEvent(domain.StreamEvent(msg)))
		if domain.StreamEvent(msg).Kind == domain.EventTurnFinished {
			m.busy = false
		}
		return m, listenForEvents(m.ctrl)
	case turnDoneMsg:
		if msg.err != nil {
			m.lines = append(m.lines, errorLineStyle.Render("error: "+msg.err.Error()))
		}
		m.busy = false
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m replModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if text == "" {
		return m, nil
	}
	if text == "/exit" {
		return m, tea.Quit
	}

	m.lines = append(m.lines, userIconStyle.Render("you> ")+text)
	m.busy = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	sessName, agentName, ctrl := m.sessName, m.agentName, m.ctrl

	return m, tea.Batch(func() tea.Msg {
		blob, _ := ctrl.Sessions.Load(sessName)
		_, err := ctrl.Turn(ctx, sessName, agentName, text, blob.Messages, 180000)
		return turnDoneMsg{err: err}
	})
}

func renderEvent(ev domain.StreamEvent) string {
	switch ev.Kind {
	case domain.EventTextDelta:
		return asstIconStyle.Render("asst> ") + highlightCodeBlocks(ev.Text)
	case domain.EventThinkingDelta:
		return thinkingStyle.Render("(thinking) " + ev.Text)
	case domain.EventToolStarted:
		return toolNameStyle.Render(fmt.Sprintf("-> %s(%s)", ev.ToolName, string(ev.ToolArgs)))
	case domain.EventToolFinished:
		style := toolOKStyle
		if !ev.ToolOK {
			style = toolFailStyle
		}
		return style.Render(fmt.Sprintf("<- %s", ev.OutputPreview))
	case domain.EventCompacted:
		return footerStyle.Render(fmt.Sprintf("[compacted %d messages: %s]", ev.DroppedCount, ev.Summary))
	case domain.EventRetrying:
		return footerStyle.Render(fmt.Sprintf("[retry %d after %dms: %s]", ev.RetryAttempt, ev.RetryAfterMs, ev.RetryMessage))
	case domain.EventNestedAgentStarted:
		return footerStyle.Render(fmt.Sprintf("[%s -> %s started]", ev.ParentAgent, ev.ChildAgent))
	case domain.EventNestedAgentFinished:
		return footerStyle.Render(fmt.Sprintf("[%s -> %s finished]", ev.ParentAgent, ev.ChildAgent))
	case domain.EventTurnFinished:
		return footerStyle.Render(fmt.Sprintf("[turn %s]", ev.Reason))
	default:
		return ""
	}
}

func (m replModel) View() string {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(promptStyle.Render("> "))
	b.WriteString(m.input.View())
	return b.String()
}
