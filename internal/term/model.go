package term

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/server"
)

// Messages flowing into Update.
type (
	stateMsg  server.SessionState
	submitMsg server.SubmitResponse
	errMsg    struct{ err error }
	tickMsg   time.Time
)

// Model is the Bubble Tea model for one pending question.
type Model struct {
	client    *Client
	sessionID string

	state  *server.SessionState
	cursor int
	chosen map[string]bool

	note     textinput.Model
	noteMode bool

	spinner spinner.Model

	// finished holds the terminal message once the session resolved, by this
	// client or elsewhere.
	finished string
	flash    string
	err      error
}

// NewModel creates the model; the session is fetched on Init.
func NewModel(client *Client, sessionID string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	note := textinput.New()
	note.Placeholder = "additional note"
	note.CharLimit = 2000

	return Model{
		client:    client,
		sessionID: sessionID,
		chosen:    make(map[string]bool),
		note:      note,
		spinner:   sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchState(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetchState() tea.Cmd {
	return func() tea.Msg {
		state, err := m.client.State(m.sessionID)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg(state)
	}
}

func (m Model) submit(req server.SubmitRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Submit(m.sessionID, req)
		if err != nil {
			return errMsg{err}
		}
		return submitMsg(resp)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		state := server.SessionState(msg)
		m.state = &state
		if state.Status == "completed" && m.finished == "" {
			m.finished = "Answered elsewhere: " + state.Outcome.Kind
			return m, tea.Quit
		}
		return m, nil

	case submitMsg:
		switch {
		case msg.WebURL != "":
			m.finished = "Continue in your browser: " + msg.WebURL
		case msg.Status == "already-set":
			m.finished = "Answered elsewhere: " + msg.Outcome.Kind
		default:
			m.finished = "Recorded: " + msg.Outcome.Kind
		}
		return m, tea.Quit

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case tickMsg:
		if m.finished != "" {
			return m, nil
		}
		return m, tea.Batch(m.fetchState(), tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.noteMode {
		switch msg.String() {
		case "enter", "esc":
			m.noteMode = false
			m.note.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.note, cmd = m.note.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		// Leave without answering; the session stays pending for another
		// surface or the timeout.
		m.finished = "Left pending."
		return m, tea.Quit
	}

	if m.state == nil {
		return m, nil
	}
	options := m.state.Request.Options

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(options)-1 {
			m.cursor++
		}
	case " ":
		if m.state.Request.SelectionMode == choice.SelectionMulti {
			id := options[m.cursor].ID
			m.chosen[id] = !m.chosen[id]
		}
	case "enter":
		return m, m.submit(m.submission())
	case "c":
		return m, m.submit(server.SubmitRequest{
			Action:               server.ActionCancel,
			AdditionalAnnotation: m.note.Value(),
		})
	case "w":
		return m, m.submit(server.SubmitRequest{Action: server.ActionSwitchToWeb})
	case "n":
		m.noteMode = true
		m.note.Focus()
	}
	return m, nil
}

// submission builds the selected-ids payload from the cursor or the
// multi-select checkboxes.
func (m Model) submission() server.SubmitRequest {
	req := server.SubmitRequest{
		Action:               server.ActionSubmit,
		AdditionalAnnotation: m.note.Value(),
	}
	if m.state.Request.SelectionMode == choice.SelectionSingle {
		req.SelectedIDs = []string{m.state.Request.Options[m.cursor].ID}
		return req
	}
	for _, opt := range m.state.Request.Options {
		if m.chosen[opt.ID] {
			req.SelectedIDs = append(req.SelectedIDs, opt.ID)
		}
	}
	return req
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.finished != "" {
		return doneStyle.Render(m.finished) + "\n"
	}
	if m.state == nil {
		return m.spinner.View() + " Loading...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.state.Request.Title))
	b.WriteString("\n")
	b.WriteString(countdownStyle.Render(formatRemaining(m.state.RemainingSeconds)))
	b.WriteString("\n\n")
	b.WriteString(m.state.Request.Prompt)
	b.WriteString("\n\n")

	for i, opt := range m.state.Request.Options {
		b.WriteString(m.renderOption(i, opt))
		b.WriteString("\n")
	}

	if m.note.Value() != "" || m.noteMode {
		b.WriteString("\nNote: " + m.note.View() + "\n")
	}

	help := "↑/↓ move · enter submit · c cancel · w open in browser · n note · q leave"
	if m.state.Request.SelectionMode == choice.SelectionMulti {
		help = "↑/↓ move · space toggle · enter submit · c cancel · w open in browser · n note · q leave"
	}
	b.WriteString("\n" + dimStyle.Render(help) + "\n")

	return boxStyle.Render(b.String()) + "\n"
}

func (m Model) renderOption(i int, opt choice.Option) string {
	marker := "  "
	if i == m.cursor {
		marker = "> "
	}

	label := opt.ID
	if m.state.Request.SelectionMode == choice.SelectionMulti {
		box := "[ ]"
		if m.chosen[opt.ID] {
			box = "[x]"
		}
		label = box + " " + label
	}
	if opt.Recommended {
		label += " " + recommendedStyle.Render("(recommended)")
	}
	if opt.Description != "" {
		label += "\n    " + dimStyle.Render(opt.Description)
	}

	line := marker + label
	if i == m.cursor {
		return selectedStyle.Render(line)
	}
	return line
}

func formatRemaining(seconds float64) string {
	s := int(seconds)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("Time remaining: %dm %02ds", s/60, s%60)
}
