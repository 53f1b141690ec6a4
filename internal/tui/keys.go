package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Enter    key.Binding
	Like     key.Binding
	Comments key.Binding
	Compose  key.Binding
	Delete   key.Binding
	Refresh  key.Binding
	Login    key.Binding
	Logout   key.Binding
	Help     key.Binding
	Quit     key.Binding
	Escape   key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Like:     key.NewBinding(key.WithKeys("l", " "), key.WithHelp("l", "like")),
	Comments: key.NewBinding(key.WithKeys("c", "tab"), key.WithHelp("c", "comments")),
	Compose:  key.NewBinding(key.WithKeys("n", "a"), key.WithHelp("n", "new post/comment")),
	Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Refresh:  key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "refresh")),
	Login:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "log in")),
	Logout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Escape:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
}

// ShortHelp is shown in the status bar
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Like, k.Comments, k.Compose, k.Refresh, k.Help, k.Quit}
}

// FullHelp is shown on the help screen
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Enter},
		{k.Like, k.Comments, k.Compose, k.Delete},
		{k.Refresh, k.Login, k.Logout, k.Escape},
		{k.Help, k.Quit},
	}
}
