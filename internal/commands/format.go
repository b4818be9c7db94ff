package commands

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"golang.org/x/term"

	"debtr/internal/core"
	"debtr/internal/services"
)

const (
	defaultWidth = 80
	minDescWidth = 12
)

// formatAmount renders an amount the way the locale writes it.
func formatAmount(m core.Money, c core.Currency, l core.Locale) string {
	if l == core.Portuguese {
		return fmt.Sprintf("%s %s", c, strings.Replace(m.String(), ".", ",", 1))
	}
	return fmt.Sprintf("%s %s", c, m)
}

// resolveID accepts a full item id or an unambiguous prefix of one.
func resolveID(snap *services.Snapshot, arg string) (core.ItemID, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("item id required")
	}
	if _, ok := snap.Item(core.ItemID(arg)); ok {
		return core.ItemID(arg), nil
	}
	var matches []core.ItemID
	for _, v := range snap.Items {
		if strings.HasPrefix(string(v.ID), arg) {
			matches = append(matches, v.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no item matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d items, use more characters", arg, len(matches))
	}
}

// shortID is what list prints; resolveID accepts it back.
func shortID(id core.ItemID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// parseReminder accepts most human date formats, read in loc when no zone is
// given.
func parseReminder(s string, loc *time.Location) (*core.Notification, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidNotification, err)
	}
	return &core.Notification{Date: t.UTC()}, nil
}

// terminalWidth returns the width of stdout, or defaultWidth when it is not
// a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width < 1 || utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
