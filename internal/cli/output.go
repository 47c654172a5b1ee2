package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/dispatchdesk/internal/metrics"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true)
)

func checkOutputFormat(f string) error {
	switch f {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", f)
}

// emit writes v as JSON or YAML when requested, otherwise calls text.
func emit(w io.Writer, v any, text func(w io.Writer)) error {
	switch outputFmt {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	text(w)
	return nil
}

// badge renders a status, highlighting the ones that need attention.
func badge(status string, alert bool) string {
	if alert {
		return alertStyle.Render("[" + status + "]")
	}
	return "[" + status + "]"
}

// printStats displays per-endpoint request timings.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\nRequest Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n\n", snap.UptimeSeconds)
	if len(snap.Operations) == 0 {
		fmt.Fprintln(w, "No requests made.")
		return
	}
	fmt.Fprintf(w, "%-34s %6s %6s %8s %8s %8s\n", "OPERATION", "COUNT", "FAILED", "AVG(ms)", "MIN(ms)", "MAX(ms)")
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%-34s %6d %6d %8.1f %8d %8d\n",
			op.Operation, op.Count, op.Failures, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}
