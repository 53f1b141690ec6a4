package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
)

// eventMsg carries a bus event into the update loop
type eventMsg struct {
	ev events.Event
}

// loadedMsg is sent when a feed page or refresh finished
type loadedMsg struct {
	n   int
	err error
}

// commentsMsg is sent when a post's comments were fetched
type commentsMsg struct {
	postID int64
	err    error
}

// doneMsg reports the outcome of a one-shot action
type doneMsg struct {
	ok  string
	err error
}

// loginMsg is sent when a login attempt finished
type loginMsg struct {
	user model.User
	err  error
}

// Init starts listening for bus events and loads the first page
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent(), m.spinner.Tick}
	if m.auth.IsAuthenticated() && len(m.posts) == 0 {
		cmds = append(cmds, m.loadCmd())
	}
	return tea.Batch(cmds...)
}

// waitForEvent blocks on the bus subscription
func (m Model) waitForEvent() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	ch := m.sub.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{ev: ev}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.handleEvent(msg.ev)

	case loadedMsg:
		m.settle()
		m.syncState()
		if msg.err != nil {
			m.setError("Feed: " + api.UserMessage(msg.err))
		} else if !m.app.Feed.HasMore() && len(m.posts) > 0 {
			m.setMessage("You're all caught up")
		}
		return m, nil

	case commentsMsg:
		m.settle()
		m.syncState()
		if msg.err != nil {
			m.setError("Comments: " + api.UserMessage(msg.err))
		}
		return m, nil

	case doneMsg:
		m.settle()
		m.syncState()
		if msg.err != nil {
			m.setError(api.UserMessage(msg.err))
		} else if msg.ok != "" {
			m.setMessage(msg.ok)
		}
		return m, nil

	case loginMsg:
		m.settle()
		m.syncState()
		if msg.err != nil {
			m.setError(api.UserMessage(msg.err))
			return m, nil
		}
		m.setMessage("Logged in as " + msg.user.DisplayName())
		m.busy++
		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		// Handle mode-specific input
		switch m.mode {
		case ModeLoginEmail, ModeLoginPassword, ModeCompose, ModeComment:
			return m.updateInput(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}

		// Normal mode key handling
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

func (m Model) handleEvent(ev events.Event) (tea.Model, tea.Cmd) {
	m.syncState()
	switch ev.Topic {
	case events.TopicLogout:
		m.closeComments()
		if ev.Payload["reason"] == "session_expired" {
			m.setError("Session expired. Press i to log in")
		} else {
			m.setMessage("Logged out")
		}
	case events.TopicProfileUpdated:
		m.setMessage("Profile updated")
	}
	return m, m.waitForEvent()
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.sub != nil {
			_ = m.sub.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		m.handleUp()

	case key.Matches(msg, keys.Down):
		m.handleDown()

	case key.Matches(msg, keys.Top):
		if m.pane == PaneFeed {
			m.cursor = 0
		} else {
			m.commentCursor = 0
		}

	case key.Matches(msg, keys.Like):
		return m.handleLike()

	case key.Matches(msg, keys.Comments), key.Matches(msg, keys.Enter):
		if m.pane == PaneComments {
			m.pane = PaneFeed
			return m, nil
		}
		return m.openComments()

	case key.Matches(msg, keys.Escape):
		if m.commentsFor != 0 {
			m.closeComments()
		}

	case key.Matches(msg, keys.Compose):
		return m.startCompose()

	case key.Matches(msg, keys.Delete):
		return m.handleDelete()

	case key.Matches(msg, keys.Refresh):
		return m.handleRefresh()

	case key.Matches(msg, keys.Login):
		if m.auth.IsAuthenticated() {
			m.setMessage("Already logged in as " + m.viewer())
			return m, nil
		}
		return m.startInput(ModeLoginEmail, "Email", "")

	case key.Matches(msg, keys.Logout):
		if !m.auth.IsAuthenticated() {
			return m, nil
		}
		m.busy++
		return m, m.logoutCmd()

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp
	}

	return m, nil
}

func (m *Model) handleUp() {
	if m.pane == PaneComments {
		if m.commentCursor > 0 {
			m.commentCursor--
		}
		return
	}
	if m.cursor > 0 {
		m.cursor--
	}
}

// handleDown moves the cursor and asks for the next page when it nears the end
func (m *Model) handleDown() {
	if m.pane == PaneComments {
		if m.commentCursor < len(m.comments)-1 {
			m.commentCursor++
		}
		return
	}
	if m.cursor < len(m.posts)-1 {
		m.cursor++
	}
	if m.cursor >= len(m.posts)-1-loadAhead && m.app.Feed.HasMore() && m.auth.IsAuthenticated() {
		m.app.Feed.Trigger()
	}
}

func (m Model) handleLike() (tea.Model, tea.Cmd) {
	if !m.auth.IsAuthenticated() {
		m.setError("Log in to like posts")
		return m, nil
	}
	p := m.currentPost()
	if p == nil {
		return m, nil
	}
	id := p.PostID
	m.busy++
	return m, func() tea.Msg {
		res, err := m.app.Likes.Toggle(context.Background(), id)
		if err != nil {
			return doneMsg{err: err}
		}
		verb := "Unliked"
		if res.Liked {
			verb = "Liked"
		}
		return doneMsg{ok: fmt.Sprintf("%s #%d", verb, id)}
	}
}

func (m Model) openComments() (tea.Model, tea.Cmd) {
	p := m.currentPost()
	if p == nil {
		return m, nil
	}
	if m.commentsFor != p.PostID {
		m.commentCursor = 0
	}
	m.commentsFor = p.PostID
	m.pane = PaneComments
	m.comments = m.app.Comments.Cached(p.PostID)
	m.busy++
	return m, m.listCommentsCmd(p.PostID, false)
}

func (m *Model) closeComments() {
	m.commentsFor = 0
	m.comments = nil
	m.commentCursor = 0
	m.pane = PaneFeed
}

func (m Model) startCompose() (tea.Model, tea.Cmd) {
	if !m.auth.IsAuthenticated() {
		m.setError("Log in first (press i)")
		return m, nil
	}
	if m.pane == PaneComments && m.commentsFor != 0 {
		return m.startInput(ModeComment, "Write a comment...", "")
	}
	return m.startInput(ModeCompose, "What's new? (add an image with | url)", "")
}

func (m Model) handleDelete() (tea.Model, tea.Cmd) {
	me := m.viewer()
	if me == "" {
		return m, nil
	}

	if m.pane == PaneComments {
		c := m.currentComment()
		if c == nil {
			return m, nil
		}
		if c.UserID != me {
			m.setError("You can only delete your own comments")
			return m, nil
		}
		postID, commentID := m.commentsFor, c.ID
		m.busy++
		return m, func() tea.Msg {
			err := m.app.Comments.Delete(context.Background(), postID, commentID)
			return doneMsg{ok: "Comment deleted", err: err}
		}
	}

	p := m.currentPost()
	if p == nil {
		return m, nil
	}
	if p.Author != me {
		m.setError("You can only delete your own posts")
		return m, nil
	}
	id := p.PostID
	m.busy++
	return m, func() tea.Msg {
		err := m.app.Feed.Delete(context.Background(), id)
		return doneMsg{ok: fmt.Sprintf("Deleted #%d", id), err: err}
	}
}

func (m Model) handleRefresh() (tea.Model, tea.Cmd) {
	if m.pane == PaneComments && m.commentsFor != 0 {
		m.busy++
		return m, m.listCommentsCmd(m.commentsFor, true)
	}
	if !m.auth.IsAuthenticated() {
		return m, nil
	}
	m.setMessage("Refreshing...")
	m.cursor = 0
	m.busy++
	return m, func() tea.Msg {
		n, err := m.app.Feed.Refresh(context.Background(), true)
		return loadedMsg{n: n, err: err}
	}
}

func (m Model) startInput(mode Mode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.EchoMode = textinput.EchoNormal
	if mode == ModeLoginPassword {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
	}
	m.input.Focus()
	return m, textinput.Blink
}

// updateInput handles keys while a text field is open
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.input.Blur()
		m.loginEmail = ""
		return m, nil

	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()
		return m.submit(mode, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(mode Mode, value string) (tea.Model, tea.Cmd) {
	switch mode {
	case ModeLoginEmail:
		if value == "" {
			return m, nil
		}
		m.loginEmail = value
		return m.startInput(ModeLoginPassword, "Password", "")

	case ModeLoginPassword:
		email := m.loginEmail
		m.loginEmail = ""
		m.busy++
		m.setMessage("Logging in...")
		return m, func() tea.Msg {
			user, err := m.app.Auth.Login(context.Background(), email, value)
			return loginMsg{user: user, err: err}
		}

	case ModeCompose:
		in := parsePostInput(value)
		m.busy++
		return m, func() tea.Msg {
			p, err := m.app.Feed.Create(context.Background(), in)
			return doneMsg{ok: fmt.Sprintf("Posted #%d", p.PostID), err: err}
		}

	case ModeComment:
		postID := m.commentsFor
		m.busy++
		return m, func() tea.Msg {
			_, err := m.app.Comments.Add(context.Background(), postID, value)
			return doneMsg{ok: "Comment added", err: err}
		}
	}
	return m, nil
}

// parsePostInput splits "text | image-url"
func parsePostInput(s string) model.PostInput {
	content, img, _ := strings.Cut(s, "|")
	return model.PostInput{Content: strings.TrimSpace(content), PostImg: strings.TrimSpace(img)}
}

func (m Model) loadCmd() tea.Cmd {
	m.log.Debug("Loading next page", logger.F("page", m.app.Feed.Page()+1))
	return func() tea.Msg {
		n, err := m.app.Feed.Load(context.Background())
		return loadedMsg{n: n, err: err}
	}
}

func (m Model) listCommentsCmd(postID int64, force bool) tea.Cmd {
	return func() tea.Msg {
		_, err := m.app.Comments.List(context.Background(), postID, force)
		return commentsMsg{postID: postID, err: err}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.app.Auth.Logout(context.Background())
		return doneMsg{err: err}
	}
}
