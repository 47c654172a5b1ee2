package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/timeline"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <lead-id>",
	Short: "Show the activity timeline of a lead",
	Long: `Show every agent run and execution action recorded for a lead, in the
order the API returns them. Actions that created a record list the path of
that record.

Examples:
  dispatchdesk timeline L1
  dispatchdesk timeline L1 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

func runTimeline(cmd *cobra.Command, args []string) error {
	events, err := apiClient.GetTimeline(cmd.Context(), args[0])
	if err != nil {
		return apiError("get timeline", err)
	}
	entries := timeline.Normalize(events)
	return emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
		printTimeline(w, entries)
	})
}

var timelineIcons = map[timeline.Icon]string{
	timeline.IconAlert:    "✗",
	timeline.IconAgent:    "●",
	timeline.IconSettings: "⚙",
	timeline.IconCheck:    "✓",
}

func printTimeline(w io.Writer, entries []timeline.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity yet.")
		return
	}
	for _, e := range entries {
		title := e.Title
		if e.IsError {
			title = alertStyle.Render(title)
		}
		fmt.Fprintf(w, "%s %-18s %s\n", timelineIcons[e.Icon], e.Timestamp, title)
		fmt.Fprintf(w, "  %-18s %s\n", "", hintStyle.Render(e.Subtitle()))
		if e.ErrorMessage != "" {
			fmt.Fprintf(w, "  %-18s %s\n", "", alertStyle.Render(e.ErrorMessage))
		}
		if e.Link != nil {
			fmt.Fprintf(w, "  %-18s → %s\n", "", e.Link.Route)
		}
	}
}
