package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/collabhub/notifyclient/pkg/models"
)

var (
	unreadStyle = lipgloss.NewStyle().Bold(true)
	readStyle   = lipgloss.NewStyle().Faint(true)
	actionStyle = map[models.ActionStyle]lipgloss.Style{
		models.StylePrimary:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		models.StyleSecondary: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		models.StyleDanger:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// renderNotifications writes one block per notification, newest first.
func renderNotifications(w io.Writer, list []models.Notification) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No notifications")
		return
	}
	for _, n := range list {
		renderNotification(w, n)
	}
}

func renderNotification(w io.Writer, n models.Notification) {
	marker, style := "*", unreadStyle
	if n.IsRead {
		marker, style = " ", readStyle
	}
	created := ""
	if !n.CreatedAt.IsZero() {
		created = n.CreatedAt.String()
	}
	fmt.Fprintf(w, "%s %d\t%s\t%s\n", marker, n.ID, created, style.Render(n.Title))
	if n.Message != "" {
		fmt.Fprintf(w, "    %s\n", n.Message)
	}
	if len(n.Actions) > 0 {
		labels := make([]string, len(n.Actions))
		for i, a := range n.Actions {
			labels[i] = fmt.Sprintf("[%d] %s", i, actionStyle[a.Style].Render(a.Text))
		}
		fmt.Fprintf(w, "    %s\n", strings.Join(labels, "  "))
	}
	if n.Footnote != nil && *n.Footnote != "" {
		fmt.Fprintf(w, "    %s\n", readStyle.Render(*n.Footnote))
	}
}
