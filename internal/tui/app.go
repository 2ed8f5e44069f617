package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outlookterm/internal/model"
	"outlookterm/internal/present"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// InboxFetcher loads the current inbox page. Implementations acquire their
// own token.
type InboxFetcher interface {
	FetchRecentInbox(ctx context.Context) (model.Page, error)
}

// PageStore persists the last successful page.
type PageStore interface {
	ReplacePage(ctx context.Context, p model.Page) error
	LastFetchedAt(ctx context.Context) (time.Time, error)
}

type viewState int

const (
	viewInbox viewState = iota // list and detail panes
	viewAuth                   // waiting for sign-in
)

type pane int

const (
	paneList pane = iota
	paneDetail
)

// Options configures NewAppModel. Only Fetcher is required.
type Options struct {
	Fetcher  InboxFetcher
	Store    PageStore
	Prompter *Prompter
	OpenURL  func(string) error
	Log      *logrus.Entry
	Now      func() time.Time
}

type AppModel struct {
	// Core state
	fetcher InboxFetcher
	store   PageStore
	openURL func(string) error
	log     *logrus.Entry
	now     func() time.Time
	Err     error
	status  string

	// Refresh bookkeeping. Only the result carrying the current seq is
	// applied; cancel aborts the refresh in flight.
	seq           int
	cancel        context.CancelFunc
	busy          bool
	spinner       spinner.Model
	lastRefreshed time.Time

	// Auth flow
	prompter  *Prompter
	textInput textinput.Model
	authURL   string

	// View state machine
	view  viewState
	focus pane

	// Sub-models
	list     list.Model
	detail   viewport.Model
	surface  *detailSurface
	binding  *present.HTMLBinding
	detailID string

	// Layout
	width, height int

	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so the sign-in prompt
// can reach the Update loop from the fetch goroutine.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
	if m.prompter != nil {
		m.prompter.attach(p.Send)
	}
}

func NewAppModel(opts Options) *AppModel {
	ti := textinput.New()
	ti.Placeholder = "Paste auth code or redirect URL here"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Inbox"
	// Remove esc from the list's built-in Quit binding so it doesn't exit
	l.KeyMap.Quit.SetKeys("q")
	l.SetShowStatusBar(false)

	m := &AppModel{
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		openURL:   opts.OpenURL,
		log:       opts.Log,
		now:       opts.Now,
		prompter:  opts.Prompter,
		spinner:   sp,
		textInput: ti,
		list:      l,
		detail:    viewport.New(0, 0),
	}
	if m.log == nil {
		m.log = logrus.NewEntry(logrus.StandardLogger())
	}
	m.log = m.log.WithField("pkg", "tui")
	if m.now == nil {
		m.now = time.Now
	}
	m.surface = &detailSurface{vp: &m.detail}
	m.binding = present.NewHTMLBinding(m.surface)
	m.resize(80, 24)
	return m
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadLastRefreshedCmd(), m.refresh(), textinput.Blink)
}

// Busy reports whether a refresh is in flight.
func (m *AppModel) Busy() bool { return m.busy }

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case authURLMsg:
		m.authURL = string(msg)
		m.textInput.Reset()
		m.view = viewAuth
		return m, nil

	case fetchResultMsg:
		return m.applyResult(msg)

	case lastRefreshedMsg:
		if m.lastRefreshed.IsZero() {
			m.lastRefreshed = time.Time(msg)
		}
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s complete", msg.action)
		}
		return m, clearStatusAfter(2 * time.Second)

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewAuth:
		m.textInput, cmd = m.textInput.Update(msg)
	case viewInbox:
		if m.focus == paneDetail {
			m.detail, cmd = m.detail.Update(msg)
		} else {
			m.list, cmd = m.list.Update(msg)
			m.syncDetail()
		}
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	if key == "ctrl+c" {
		return m.quit()
	}

	switch m.view {
	case viewAuth:
		switch key {
		case "enter":
			val := strings.TrimSpace(m.textInput.Value())
			if val == "" {
				return m, nil
			}
			m.textInput.Reset()
			if m.prompter != nil {
				m.prompter.submit(val)
			}
			m.view = viewInbox
			m.status = "Signing in..."
			return m, nil
		case "esc":
			m.log.Info("sign-in cancelled by user")
			if m.cancel != nil {
				m.cancel()
			}
			m.view = viewInbox
			return m, nil
		}
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd

	case viewInbox:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			m.syncDetail()
			return m, cmd
		}
		switch key {
		case "q":
			return m.quit()
		case "r":
			return m, m.refresh()
		case "tab":
			if m.focus == paneList {
				m.focus = paneDetail
			} else {
				m.focus = paneList
			}
			return m, nil
		case "o":
			return m, m.openSelectedCmd()
		}
		var cmd tea.Cmd
		if m.focus == paneDetail {
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
		m.list, cmd = m.list.Update(msg)
		m.syncDetail()
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m, tea.Quit
}

// refresh starts a new fetch. Any refresh still in flight is cancelled and
// its result will be ignored. The list is emptied until the result lands.
func (m *AppModel) refresh() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.seq++
	m.busy = true
	m.Err = nil
	m.status = ""
	clearCmd := m.list.SetItems(nil)
	m.clearDetail()
	m.log.WithField("seq", m.seq).Info("refresh started")
	return tea.Batch(clearCmd, m.spinner.Tick, m.fetchCmd(ctx, m.seq))
}

func (m *AppModel) applyResult(msg fetchResultMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq {
		m.log.WithFields(logrus.Fields{"seq": msg.seq, "current": m.seq}).Debug("dropping stale refresh result")
		return m, nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.busy = false
	m.status = ""
	if m.view == viewAuth {
		m.view = viewInbox
	}

	if msg.err != nil {
		m.log.WithError(msg.err).WithField("seq", msg.seq).Warn("refresh failed")
		m.Err = msg.err
		cmd := m.list.SetItems(nil)
		m.clearDetail()
		return m, cmd
	}

	m.Err = nil
	cmd := m.list.SetItems(messagesToItems(msg.page.Messages, m.now()))
	m.list.Select(0)
	m.lastRefreshed = msg.page.FetchedAt
	m.syncDetail()
	m.log.WithFields(logrus.Fields{"seq": msg.seq, "count": len(msg.page.Messages)}).Info("refresh complete")
	return m, tea.Batch(cmd, m.saveCmd(msg.page))
}

// syncDetail binds the selected message's body to the detail pane.
func (m *AppModel) syncDetail() {
	selected := m.list.SelectedItem()
	if selected == nil {
		m.clearDetail()
		return
	}
	mi := selected.(messageItem)
	if mi.ID == m.detailID {
		return
	}
	m.detailID = mi.ID
	m.binding.Set(bodyHTML(mi.Message))
}

func (m *AppModel) clearDetail() {
	m.detailID = ""
	m.binding.Reset()
	m.surface.SetContent("")
}

func (m *AppModel) selectedMessage() (model.Message, bool) {
	selected := m.list.SelectedItem()
	if selected == nil {
		return model.Message{}, false
	}
	return selected.(messageItem).Message, true
}

func (m *AppModel) resize(width, height int) {
	m.width = width
	m.height = height
	// title line, footer and pane borders
	paneH := max(height-5, 1)
	listW := max(width*2/5-2, 10)
	detailW := max(width-listW-6, 10)
	m.list.SetSize(listW, paneH)
	m.detail.Width = detailW
	m.detail.Height = max(paneH-4, 1) // room for the message header
	m.surface.rewrap()
}

// Commands

func (m *AppModel) fetchCmd(ctx context.Context, seq int) tea.Cmd {
	fetcher := m.fetcher
	return func() tea.Msg {
		page, err := fetcher.FetchRecentInbox(ctx)
		return fetchResultMsg{seq: seq, page: page, err: err}
	}
}

func (m *AppModel) saveCmd(p model.Page) tea.Cmd {
	if m.store == nil {
		return nil
	}
	st, log := m.store, m.log
	return func() tea.Msg {
		if err := st.ReplacePage(context.Background(), p); err != nil {
			log.WithError(err).Warn("saving inbox page")
		}
		return nil
	}
}

func (m *AppModel) loadLastRefreshedCmd() tea.Cmd {
	if m.store == nil {
		return nil
	}
	st, log := m.store, m.log
	return func() tea.Msg {
		at, err := st.LastFetchedAt(context.Background())
		if err != nil {
			log.WithError(err).Warn("loading last refresh time")
			return nil
		}
		if at.IsZero() {
			return nil
		}
		return lastRefreshedMsg(at)
	}
}

func (m *AppModel) openSelectedCmd() tea.Cmd {
	msg, ok := m.selectedMessage()
	if !ok {
		return nil
	}
	if msg.WebLink == "" || m.openURL == nil {
		m.status = "No web link for this message"
		return clearStatusAfter(2 * time.Second)
	}
	open, link := m.openURL, msg.WebLink
	return func() tea.Msg {
		return actionResultMsg{action: "Open in browser", err: open(link)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(1, 2)
	paneStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241"))
	focusStyle = paneStyle.BorderForeground(lipgloss.Color("39"))
)

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	if m.view == viewAuth {
		return "Sign in to Outlook. Open this URL in your browser:\n\n" +
			m.authURL + "\n\n" +
			"Waiting for the browser redirect. If it never arrives, paste the code or the full redirect URL below.\n\n" +
			m.textInput.View() + "\n" +
			footerStyle.Render("enter: submit  esc: cancel sign-in  ctrl+c: quit")
	}

	var b strings.Builder
	b.WriteString(m.titleLine())
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(errorStyle.Render("Error: " + errorText(m.Err) + "\n" + m.Err.Error()))
		b.WriteString("\n")
		b.WriteString(footerStyle.Render("r: retry  q: quit"))
		return b.String()
	}

	listPane, detailPane := paneStyle, paneStyle
	if m.focus == paneList {
		listPane = focusStyle
	} else {
		detailPane = focusStyle
	}
	detail := ""
	if msg, ok := m.selectedMessage(); ok {
		detail = bodyHeader(msg, m.now()) + "\n" + m.detail.View()
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		listPane.Render(m.list.View()),
		detailPane.Width(m.detail.Width).Render(detail),
	))
	b.WriteString("\n")
	b.WriteString(inboxFooter())

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	return b.String()
}

func (m *AppModel) titleLine() string {
	line := titleStyle.Render("outlookterm")
	if m.busy {
		line += " " + m.spinner.View() + " Loading inbox..."
	}
	if !m.lastRefreshed.IsZero() {
		line += "  last refreshed " + present.RelativeDate(&m.lastRefreshed, m.now())
	}
	return line
}
