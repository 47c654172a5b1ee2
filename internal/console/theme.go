package console

import "github.com/charmbracelet/lipgloss"

// Theme holds the console color scheme.
type Theme struct {
	Title    lipgloss.Color
	Status   lipgloss.Color
	Success  lipgloss.Color
	Error    lipgloss.Color
	Hint     lipgloss.Color
	Selected lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Title:    lipgloss.Color("#FFFFFF"), // white
	Status:   lipgloss.Color("#5FAFD7"), // light blue
	Success:  lipgloss.Color("#00D787"), // green
	Error:    lipgloss.Color("#FF005F"), // red
	Hint:     lipgloss.Color("#6C6C6C"), // dim gray
	Selected: lipgloss.Color("#FFAF00"), // amber
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status).Bold(true).MarginTop(1)
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) selectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Selected).Bold(true)
}

// badge renders a status, using the error style for the statuses that get
// distinct treatment (failed leads, declined assignments).
func (t Theme) badge(status string, alert bool) string {
	if status == "" {
		status = "unknown"
	}
	if alert {
		return t.errorStyle().Render("[" + status + "]")
	}
	return t.statusStyle().Render("[" + status + "]")
}
