package tui

import (
	"strconv"
	"strings"
)

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// oneLine folds newlines so a card keeps its height
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// clamp keeps i inside [0, n)
func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
