package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	// Like colors
	Liked   = lipgloss.Color("#FF6B6B") // Red
	Unliked = lipgloss.Color("#888888")

	// Status colors
	Pending = lipgloss.Color("#FFE66D") // Yellow, optimistic entry awaiting the server
	ErrorFg = lipgloss.Color("#FF6B6B")
	OK      = lipgloss.Color("#95E1A3") // Green

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Secondary = lipgloss.Color("#6C757D")
	Surface   = lipgloss.Color("#16213e")
	Text      = lipgloss.Color("#FFFFFF")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Feed column
	FeedStyle = lipgloss.NewStyle().
			Padding(1, 2)

	// Comments column
	CommentsStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(Border).
			Padding(1, 2)

	// Post card
	PostStyle = lipgloss.NewStyle().
			Padding(0, 1).
			MarginBottom(1)

	PostSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				MarginBottom(1).
				Background(Surface).
				Bold(true)

	AuthorStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	ImageStyle  = lipgloss.NewStyle().Foreground(Secondary).Italic(true)

	// Like badges
	LikedStyle   = lipgloss.NewStyle().Foreground(Liked).Bold(true)
	UnlikedStyle = lipgloss.NewStyle().Foreground(Unliked)

	// Comment rows
	CommentStyle         = lipgloss.NewStyle().Padding(0, 1)
	CommentSelectedStyle = lipgloss.NewStyle().Padding(0, 1).Background(Surface)
	CommentPendingStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(Pending)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorFg)
	OKStyle    = lipgloss.NewStyle().Foreground(OK)

	// Input modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// FormatLikes renders the heart and count of a post
func FormatLikes(liked bool, count int) string {
	if liked {
		return LikedStyle.Render("♥ " + itoa(count))
	}
	return UnlikedStyle.Render("♡ " + itoa(count))
}
