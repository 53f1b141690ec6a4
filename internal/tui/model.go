// Package tui is the interactive feed browser.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/instafeed/internal/app"
	"github.com/existflow/instafeed/internal/auth"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneFeed Pane = iota
	PaneComments
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeLoginEmail
	ModeLoginPassword
	ModeCompose
	ModeComment
	ModeHelp
)

// loadAhead is how close to the end the cursor gets before the next page is requested
const loadAhead = 2

// Model is the main TUI model
type Model struct {
	app *app.App
	sub events.Subscription
	log *logger.Logger

	// Snapshot of client state, refreshed on every bus event
	auth     auth.State
	posts    []model.FeedPost
	comments []model.Comment

	// UI state
	width         int
	height        int
	pane          Pane
	mode          Mode
	cursor        int
	commentCursor int
	commentsFor   int64 // post whose comments are open, 0 when closed

	// Input
	input      textinput.Model
	loginEmail string

	spinner spinner.Model
	help    help.Model
	busy    int // requests in flight

	message string
	isErr   bool
}

// NewModel creates a new TUI model over a started client
func NewModel(a *app.App) Model {
	log := logger.L().Component("tui")
	log.Info("Initializing TUI model")

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = HelpStyle

	m := Model{
		app:     a,
		log:     log,
		input:   ti,
		spinner: sp,
		help:    help.New(),
		sub: a.Bus.Subscribe(
			events.TopicLogin,
			events.TopicLogout,
			events.TopicProfileUpdated,
			events.TopicFeedUpdated,
			events.TopicCommentsUpdated,
		),
	}
	m.syncState()
	if !m.auth.IsAuthenticated() {
		m.message = "Press i to log in"
	}
	return m
}

// syncState copies the client's current state into the model
func (m *Model) syncState() {
	m.auth = m.app.Auth.State()
	m.posts = m.app.Feed.Posts()
	m.cursor = clamp(m.cursor, len(m.posts))
	if m.commentsFor != 0 {
		m.comments = m.app.Comments.Cached(m.commentsFor)
		m.commentCursor = clamp(m.commentCursor, len(m.comments))
	}
}

func (m *Model) currentPost() *model.FeedPost {
	if m.cursor < len(m.posts) {
		return &m.posts[m.cursor]
	}
	return nil
}

func (m *Model) currentComment() *model.Comment {
	if m.commentCursor < len(m.comments) {
		return &m.comments[m.commentCursor]
	}
	return nil
}

// viewer returns the logged in email, empty when logged out
func (m *Model) viewer() string {
	if m.auth.User == nil {
		return ""
	}
	return m.auth.User.Email
}

func (m *Model) setMessage(text string) {
	m.message, m.isErr = text, false
}

func (m *Model) setError(text string) {
	m.message, m.isErr = text, true
}

// settle marks one request as finished
func (m *Model) settle() {
	if m.busy > 0 {
		m.busy--
	}
}
