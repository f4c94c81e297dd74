package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(m.bannerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.mediaView())
	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

// bannerView renders the status line: phase and message, then uptime and
// resource usage when running or the retry countdown when stopped.
func (m Model) bannerView() string {
	st := m.status
	parts := []string{fmt.Sprintf("[%s] %s", st.Phase, st.Message)}
	if st.Uptime != "" {
		parts = append(parts, "up "+st.Uptime)
	}
	if st.Usage != nil {
		parts = append(parts, st.Usage.String())
	}
	if st.RetryIn != "" {
		parts = append(parts, "retry in "+st.RetryIn)
	}
	if st.Restarts > 0 {
		parts = append(parts, fmt.Sprintf("%d restarts", st.Restarts))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(
		bannerStyle(st.Level).Render(strings.Join(parts, " · ")))
}

func (m Model) mediaView() string {
	if len(m.media) == 0 {
		return mediaStyle.Render("media: none")
	}
	return mediaStyle.Render("media: " + strings.Join(m.media, ", "))
}

func (m Model) helpView() string {
	var parts []string
	for _, k := range m.keys.help() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	parts = append(parts, "↑/↓ scroll")
	return helpStyle.Render(strings.Join(parts, " · "))
}
