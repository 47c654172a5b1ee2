package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/search"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search leads, jobs and subcontractors",
	Long: `Search leads, jobs and subcontractors with a case-insensitive substring
match. Queries shorter than two characters return nothing.

Examples:
  dispatchdesk search acme
  dispatchdesk search "tree removal" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", search.DefaultLimit, "results shown per group")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	agg := search.New(apiClient, search.WithLogger(logger), search.WithLimit(searchLimit))
	defer agg.Close()

	res, err := agg.Search(cmd.Context(), query)
	if err != nil {
		return apiError("search", err)
	}

	return emit(cmd.OutOrStdout(), res, func(w io.Writer) {
		if !search.Eligible(query) {
			fmt.Fprintf(w, "Type at least %d characters to search.\n", search.MinQueryLength)
			return
		}
		if res.Total() == 0 {
			fmt.Fprintf(w, "No results for %q.\n", search.Normalize(query))
			return
		}
		fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render("Leads"), len(res.Leads))
		for _, l := range capped(res.Leads) {
			fmt.Fprintf(w, "  %-8s %-24s %s\n", l.ID, truncate(l.FullName, 24), badge(l.Status, l.Failed()))
		}
		fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render("Jobs"), len(res.Jobs))
		for _, j := range capped(res.Jobs) {
			fmt.Fprintf(w, "  %-8s %-24s %s\n", j.ID, j.Schedule(), badge(j.Status, false))
		}
		fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render("Subcontractors"), len(res.Subcontractors))
		for _, s := range capped(res.Subcontractors) {
			fmt.Fprintf(w, "  %-8s %-24s %s\n", s.ID, truncate(s.Name, 24), s.Phone)
		}
	})
}

func capped[T any](items []T) []T {
	if searchLimit > 0 && len(items) > searchLimit {
		return items[:searchLimit]
	}
	return items
}
