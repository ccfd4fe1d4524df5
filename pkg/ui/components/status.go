package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SourceStatus is the last failure seen from a source.
type SourceStatus struct {
	Source     string
	Instrument string
	Kind       string
	Reason     string
	At         time.Time
}

// StatusComponent renders sources that recently produced no quote.
type StatusComponent struct {
	down   map[string]SourceStatus
	window time.Duration
}

// NewStatusComponent creates a status component. Failures older than
// window are hidden.
func NewStatusComponent(window time.Duration) *StatusComponent {
	return &StatusComponent{down: make(map[string]SourceStatus), window: window}
}

// Update records a failure.
func (s *StatusComponent) Update(st SourceStatus) {
	s.down[st.Source] = st
}

// Clear forgets all failures.
func (s *StatusComponent) Clear() {
	s.down = make(map[string]SourceStatus)
}

// Active returns failures inside the window at now, sorted by source.
func (s *StatusComponent) Active(now time.Time) []SourceStatus {
	out := make([]SourceStatus, 0, len(s.down))
	for _, st := range s.down {
		if s.window > 0 && now.Sub(st.At) > s.window {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// View renders the status component.
func (s *StatusComponent) View(now time.Time) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("SOURCES"))
	b.WriteString("\n")

	active := s.Active(now)
	if len(active) == 0 {
		b.WriteString(okStyle.Render("  ● all sources answering"))
		return b.String()
	}
	for _, st := range active {
		ago := now.Sub(st.At).Round(time.Second)
		b.WriteString(warnStyle.Render(fmt.Sprintf("  ○ %s: %s", st.Source, st.Kind)))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %s (%s ago)", st.Instrument, ago)))
		b.WriteString("\n")
	}
	return b.String()
}
