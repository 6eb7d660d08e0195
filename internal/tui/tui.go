package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/fatih/color"
	"github.com/markusylisiurunen/roundtrip/internal/agent"
	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
)

type agentMsg struct {
	err  error
	done bool
}

func waitAgentCmd(subscription <-chan agent.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-subscription
		if !ok {
			return agentMsg{done: true}
		}
		switch event := event.(type) {
		case *agent.ErrorEvent:
			return agentMsg{err: event.Err}
		default:
			return agentMsg{}
		}
	}
}

type Model struct {
	logger logger.Logger
	model  string

	viewport  viewport.Model
	textinput textinput.Model

	agent        *agent.Agent
	subscription <-chan agent.Event
	unsubscribe  func()
	lastErr      error

	cancelFunc context.CancelFunc
	copyText   func(string) error
}

func Initial(logger logger.Logger, model string, a *agent.Agent) Model {
	m := Model{
		logger:   logger,
		model:    model,
		agent:    a,
		copyText: clipboard.WriteAll,
	}
	m.subscription, m.unsubscribe = m.agent.Subscribe()
	// init the viewport
	vp := viewport.New(0, 0)
	vp.KeyMap.Up.SetKeys("up")
	vp.KeyMap.Down.SetKeys("down")
	vp.KeyMap.PageUp.SetEnabled(false)
	vp.KeyMap.PageDown.SetEnabled(false)
	vp.KeyMap.HalfPageUp.SetEnabled(false)
	vp.KeyMap.HalfPageDown.SetEnabled(false)
	m.viewport = vp
	// init the textinput
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.Placeholder = "ask about the weather anywhere"
	ti.Focus()
	ti.CharLimit = 1024
	m.textinput = ti
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitAgentCmd(m.subscription), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(agentMsg); ok {
		if msg.done {
			return m, nil
		}
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.logger.Error(msg.err.Error())
				m.lastErr = msg.err
			}
			return m, waitAgentCmd(m.subscription)
		}
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoBottom()
		return m, waitAgentCmd(m.subscription)
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.cancelFunc != nil {
				m.cancelFunc()
			}
			if m.unsubscribe != nil {
				m.unsubscribe()
			}
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEsc {
			if m.agent.GetIsRunning() && m.cancelFunc != nil {
				m.cancelFunc()
				m.cancelFunc = nil
				return m, nil
			}
		}
		if msg.Type == tea.KeyEnter {
			value := strings.TrimSpace(m.textinput.Value())
			if strings.HasPrefix(value, "/") {
				m.handleSlashCommand()
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
			if value == "" || m.agent.GetIsRunning() {
				return m, nil
			}
			ctx, cancel := context.WithCancel(context.Background())
			m.cancelFunc = cancel
			m.lastErr = nil
			m.agent.Send(ctx, value)
			m.textinput.Reset()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.viewport.SetContent(m.renderContent())
		if m.viewport.PastBottom() {
			m.viewport.GotoBottom()
		}
		m.textinput.Width = msg.Width - 3
		return m, nil
	}
	var cmd1, cmd2 tea.Cmd
	m.viewport, cmd1 = m.viewport.Update(msg)
	m.textinput, cmd2 = m.textinput.Update(msg)
	return m, tea.Batch(cmd1, cmd2)
}

func (m Model) View() string {
	var s string
	s += m.viewport.View()
	s += "\n\n" + m.textinput.View()
	s += "\n\n" + color.New(color.Faint).Sprint(m.renderFooter())
	return s
}

func (m Model) renderContent() string {
	var blocks []string
	messages, _ := m.agent.GetState()
	for _, msg := range messages {
		switch {
		case msg.FunctionCall != nil:
			blocks = append(blocks, renderFunctionCall(*msg.FunctionCall))
		case msg.FunctionCallOutput != nil:
			content := wrapWithPrefix(msg.FunctionCallOutput.Output, "  ↳ ", m.viewport.Width)
			blocks = append(blocks, color.New(color.Faint).Sprint(content))
		case msg.Role == llm.RoleUser:
			content := wrapWithPrefix("› "+msg.Content.Text(), "", m.viewport.Width)
			blocks = append(blocks, color.New(color.Faint).Sprint(strings.TrimSpace(content)))
		case msg.Role == llm.RoleAssistant:
			if content := msg.Content.Text(); content != "" {
				blocks = append(blocks, m.renderMarkdown(content))
			}
		}
	}
	if citations := m.agent.GetCitations(); len(citations) > 0 && !m.agent.GetIsRunning() {
		blocks = append(blocks, renderCitations(citations, m.viewport.Width))
	}
	if m.lastErr != nil {
		blocks = append(blocks, color.New(color.FgRed).Sprint(wrapWithPrefix(m.lastErr.Error(), "! ", m.viewport.Width)))
	}
	return strings.Join(blocks, "\n\n")
}

func renderFunctionCall(call llm.FunctionCall) string {
	return color.New(color.FgYellow).Sprint("●") +
		color.New(color.Bold).Sprintf(" %s", call.Name) +
		color.New(color.Faint).Sprintf(" %s", call.Arguments)
}

func renderCitations(citations []llm.Citation, width int) string {
	var lines []string
	seen := make(map[string]bool)
	for _, c := range citations {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		title := c.Title
		if title == "" {
			title = c.URL
		}
		lines = append(lines, wrapWithPrefix(fmt.Sprintf("[%d] %s %s", len(lines)+1, title, c.URL), "", width))
	}
	return color.New(color.FgCyan).Sprint(strings.Join(lines, "\n"))
}

func (m Model) renderMarkdown(content string) string {
	var margin uint = 0
	dark := styles.DarkStyleConfig
	dark.Document.Color = nil
	dark.Document.Margin = &margin
	dark.H1 = dark.H2
	dark.H1.Prefix = "# "
	dark.Code.Prefix = ""
	dark.Code.Suffix = ""
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStyles(dark),
		glamour.WithWordWrap(m.viewport.Width),
	)
	markdown, _ := renderer.Render(strings.TrimSpace(content))
	return strings.TrimSpace(markdown)
}

func (m Model) renderFooter() string {
	if value := m.textinput.Value(); strings.HasPrefix(value, "/") {
		for _, cmd := range m.listSlashCommands() {
			if value == "/"+cmd || strings.HasPrefix(value, "/"+cmd+" ") {
				return m.getSlashCommandHelp(cmd)
			}
		}
		return strings.Join(m.listSlashCommands(), ", ")
	}
	_, usage := m.agent.GetState()
	var meta string
	meta += fmt.Sprintf("%s, ", m.model)
	if m.agent.GetWebSearch() {
		meta += "web search on, "
	}
	if snapshots := m.agent.GetSnapshots(); len(snapshots) > 0 {
		last := snapshots[len(snapshots)-1]
		meta += fmt.Sprintf("turn %d: %d items ~%s tokens, ", last.Turn, last.Items, formatTokens(last.EstimatedTokens))
	}
	meta += fmt.Sprintf("cost: %.4f $, ", usage.TotalCost)
	meta += fmt.Sprintf("tokens: %s", formatTokens(usage.PromptTokens+usage.CompletionTokens))
	if m.agent.GetIsRunning() {
		return describeState(m.agent.GetRoundTripState()) + " (" + meta + ")"
	}
	return "esc to cancel, ctrl+c to quit. (" + meta + ")"
}

func describeState(state llm.State) string {
	switch state {
	case llm.StateExecutingTool:
		return "running tools..."
	case llm.StateAwaitingFollowupResponse:
		return "sending tool output..."
	default:
		return "working..."
	}
}

// slash commands ----------------------------------------------------------------------------------

func (m Model) listSlashCommands() []string {
	return []string{
		"clear",
		"copy",
		"search",
	}
}

func (m Model) getSlashCommandHelp(cmd string) string {
	switch cmd {
	case "clear":
		return "clears the conversation history."
	case "copy":
		return "copies the last assistant message to the clipboard."
	case "search":
		if m.agent.GetWebSearch() {
			return "turns web search off."
		}
		return "turns web search on."
	default:
		return ""
	}
}

func (m *Model) handleSlashCommand() {
	defer m.textinput.Reset()
	fields := strings.Fields(m.textinput.Value())
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "/clear":
		m.agent.Reset()
		m.lastErr = nil
	case "/copy":
		m.handleCopySlashCommand()
	case "/search":
		m.agent.SetWebSearch(!m.agent.GetWebSearch())
	}
}

func (m *Model) handleCopySlashCommand() {
	messages, _ := m.agent.GetState()
	var content string
	for _, msg := range slices.Backward(messages) {
		if msg.Role == llm.RoleAssistant && msg.FunctionCall == nil {
			content = msg.Content.Text()
			break
		}
	}
	if content == "" {
		return
	}
	if err := m.copyText(content); err != nil {
		m.logger.Error("failed to copy to clipboard: %v", err)
	}
}
