package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/existflow/instafeed/internal/model"
)

// cardHeight is the number of lines a post card takes, margin included
const cardHeight = 4

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	switch {
	case m.mode == ModeHelp:
		body = m.renderHelp()
	case m.commentsFor != 0:
		feedWidth := m.width * 3 / 5
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderFeed(feedWidth, bodyHeight),
			m.renderComments(m.width-feedWidth, bodyHeight))
	default:
		body = m.renderFeed(m.width, bodyHeight)
	}

	// Add modal if in input mode
	if m.mode == ModeLoginEmail || m.mode == ModeLoginPassword || m.mode == ModeCompose || m.mode == ModeComment {
		body = lipgloss.Place(
			m.width, bodyHeight,
			lipgloss.Center, lipgloss.Center,
			m.renderModal(),
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	// Combine with status bar
	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

func (m Model) renderHeader() string {
	title := HeaderStyle.Render("Instafeed")

	who := HelpStyle.Render("not logged in")
	if u := m.auth.User; u != nil && m.auth.IsAuthenticated() {
		who = AuthorStyle.Render(u.DisplayName()) + HelpStyle.Render(" <"+u.Email+">")
	} else if !m.auth.Known() {
		who = HelpStyle.Render("checking session...")
	}

	activity := ""
	if m.busy > 0 || m.app.Feed.Loading() {
		activity = " " + m.spinner.View()
	}
	return title + " " + who + activity
}

func (m Model) renderFeed(width, height int) string {
	inner := width - 4
	if inner < 10 {
		inner = 10
	}

	if !m.auth.IsAuthenticated() && len(m.posts) == 0 {
		return FeedStyle.Width(width).Height(height).Render(HelpStyle.Render("Log in to see the feed. Press 'i'."))
	}
	if len(m.posts) == 0 {
		msg := "No posts yet. Press 'n' to share one."
		if m.app.Feed.Loading() {
			msg = "Loading feed..."
		}
		return FeedStyle.Width(width).Height(height).Render(HelpStyle.Render(msg))
	}

	// Window of cards around the cursor
	visible := (height - 2) / cardHeight
	if visible < 1 {
		visible = 1
	}
	start := m.cursor - visible/2
	if start > len(m.posts)-visible {
		start = len(m.posts) - visible
	}
	if start < 0 {
		start = 0
	}
	end := start + visible
	if end > len(m.posts) {
		end = len(m.posts)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderPost(m.posts[i], i == m.cursor && m.pane == PaneFeed, inner))
		b.WriteByte('\n')
	}

	switch {
	case m.app.Feed.Loading():
		b.WriteString(HelpStyle.Render("  " + m.spinner.View() + " loading more"))
	case !m.app.Feed.HasMore():
		b.WriteString(HelpStyle.Render("  · end of feed ·"))
	}

	return FeedStyle.Width(width).Height(height).Render(b.String())
}

func (m Model) renderPost(p model.FeedPost, selected bool, width int) string {
	cursor := "  "
	style := PostStyle
	if selected {
		cursor = "❯ "
		style = PostSelectedStyle
	}

	when := ""
	if !p.CreatedAt.IsZero() {
		when = humanize.Time(p.CreatedAt)
	}
	top := fmt.Sprintf("%s%s  %s  %s",
		cursor,
		FormatLikes(p.Liked, p.LikeCount),
		AuthorStyle.Render(p.Author),
		HelpStyle.Render(fmt.Sprintf("#%d · %s", p.PostID, when)))

	body := "  " + truncate(oneLine(p.Content), width-4)
	img := ""
	if p.PostImg != "" {
		img = "\n  " + ImageStyle.Render(truncate("🖼  "+p.PostImg, width-4))
	}
	return style.Width(width).Render(top + "\n" + body + img)
}

func (m Model) renderComments(width, height int) string {
	inner := width - 6
	if inner < 10 {
		inner = 10
	}

	var b strings.Builder
	header := fmt.Sprintf("Comments on #%d (%d)", m.commentsFor, len(m.comments))
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(Primary).Render(header) + "\n")
	b.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", inner)) + "\n\n")

	if len(m.comments) == 0 {
		b.WriteString(HelpStyle.Render("No comments yet. Press 'n' to write one."))
	}

	for i, c := range m.comments {
		style := CommentStyle
		cursor := "  "
		if i == m.commentCursor && m.pane == PaneComments {
			cursor = "❯ "
			style = CommentSelectedStyle
		}
		if c.Pending() {
			style = CommentPendingStyle
		}
		line := fmt.Sprintf("%s%s %s", cursor, AuthorStyle.Render(c.UserID), truncate(oneLine(c.Comment), inner-len(c.UserID)-4))
		b.WriteString(style.Render(line) + "\n")
	}

	return CommentsStyle.Width(width).Height(height).Render(b.String())
}

func (m Model) renderModal() string {
	var title string
	switch m.mode {
	case ModeLoginEmail:
		title = "Log in"
	case ModeLoginPassword:
		title = "Log in as " + m.loginEmail
	case ModeCompose:
		title = "New post"
	case ModeComment:
		title = fmt.Sprintf("Comment on #%d", m.commentsFor)
	}

	content := lipgloss.NewStyle().Bold(true).Render(title) + "\n\n"
	content += m.input.View() + "\n\n"
	content += HelpStyle.Render("enter: submit • esc: cancel")

	return ModalStyle.Render(content)
}

func (m Model) renderHelp() string {
	help := lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Keyboard Shortcuts") + "\n\n"
	help += m.help.FullHelpView(keys.FullHelp()) + "\n\n"
	help += HelpStyle.Render("Scrolling near the end of the feed loads the next page.") + "\n\n"
	help += HelpStyle.Render("Press any key to close")

	return lipgloss.Place(m.width, m.height-4, lipgloss.Center, lipgloss.Center,
		ModalStyle.Render(help))
}

func (m Model) renderStatusBar() string {
	left := ""
	if m.message != "" {
		if m.isErr {
			left = ErrorStyle.Render(m.message)
		} else {
			left = OKStyle.Render(m.message)
		}
		left += "  "
	}
	return StatusBarStyle.Width(m.width).Render(left + m.help.ShortHelpView(keys.ShortHelp()))
}
