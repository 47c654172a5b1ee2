package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

var jobsLeadFilter string

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List jobs or show one job",
	Long: `List scheduled jobs, or show one job with its assignments and notification.

Examples:
  dispatchdesk jobs
  dispatchdesk jobs --lead L1
  dispatchdesk jobs J1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

var quotesCmd = &cobra.Command{
	Use:   "quotes [quote-id]",
	Short: "List quotes or show one quote with its line items",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuotes,
}

var assignmentsCmd = &cobra.Command{
	Use:   "assignments [assignment-id]",
	Short: "List assignments or show one assignment",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAssignments,
}

var assignmentsDeclineCmd = &cobra.Command{
	Use:   "decline <assignment-id>",
	Short: "Mark an assignment as refused by the subcontractor",
	Long: `Mark an assignment as declined. This frees the lead for another execute
run.

Example:
  dispatchdesk assignments decline A1`,
	Args: cobra.ExactArgs(1),
	RunE: runAssignmentsDecline,
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications [notification-id]",
	Short: "List notifications or show one notification",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNotifications,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsLeadFilter, "lead", "", "only jobs for this lead id")
	assignmentsCmd.AddCommand(assignmentsDeclineCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		j, err := apiClient.GetJob(ctx, args[0])
		if err != nil {
			return apiError("get job", err)
		}
		return emit(cmd.OutOrStdout(), j, func(w io.Writer) { printJob(w, j) })
	}

	jobs, err := apiClient.GetJobs(ctx)
	if err != nil {
		return apiError("list jobs", err)
	}
	if jobsLeadFilter != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.LeadID == jobsLeadFilter {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	return emit(cmd.OutOrStdout(), jobs, func(w io.Writer) {
		if len(jobs) == 0 {
			fmt.Fprintln(w, "No jobs found.")
			return
		}
		fmt.Fprintf(w, "%-8s %-8s %-24s %-20s %s\n", "ID", "LEAD", "SCHEDULE", "SUBCONTRACTOR", "STATUS")
		for _, j := range jobs {
			sub := j.SubcontractorName()
			if sub == "" {
				sub = models.Placeholder
			}
			fmt.Fprintf(w, "%-8s %-8s %-24s %-20s %s\n", j.ID, j.LeadID, j.Schedule(), truncate(sub, 20), badge(j.Status, false))
		}
		fmt.Fprintf(w, "\n%d job(s)\n", len(jobs))
	})
}

func printJob(w io.Writer, j *models.Job) {
	fmt.Fprintf(w, "%s\n", headerStyle.Render("Job "+j.ID))
	fmt.Fprintf(w, "Lead:      %s\n", j.LeadID)
	fmt.Fprintf(w, "Status:    %s\n", badge(j.Status, false))
	fmt.Fprintf(w, "Schedule:  %s\n", j.Schedule())
	fmt.Fprintln(w, "\nAssignments:")
	if len(j.Assignments) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, a := range j.Assignments {
		name := models.Placeholder
		if a.Subcontractor != nil {
			name = a.Subcontractor.Name
		}
		fmt.Fprintf(w, "  %-8s %-20s %s\n", a.ID, name, badge(a.Status, a.Declined()))
	}
	if n := j.Notification; n != nil {
		fmt.Fprintf(w, "\nNotification: %s to %s\n", badge(n.Status, false), n.To)
	}
}

func runQuotes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		q, err := apiClient.GetQuote(ctx, args[0])
		if err != nil {
			return apiError("get quote", err)
		}
		return emit(cmd.OutOrStdout(), q, func(w io.Writer) { printQuote(w, q) })
	}

	quotes, err := apiClient.GetQuotes(ctx)
	if err != nil {
		return apiError("list quotes", err)
	}
	return emit(cmd.OutOrStdout(), quotes, func(w io.Writer) {
		if len(quotes) == 0 {
			fmt.Fprintln(w, "No quotes found.")
			return
		}
		fmt.Fprintf(w, "%-8s %-8s %14s %s\n", "ID", "LEAD", "TOTAL", "CONFIDENCE")
		for _, q := range quotes {
			fmt.Fprintf(w, "%-8s %-8s %14s %s\n", q.ID, q.LeadID, models.FormatCents(q.TotalCents), q.Confidence)
		}
		fmt.Fprintf(w, "\n%d quote(s)\n", len(quotes))
	})
}

func printQuote(w io.Writer, q *models.Quote) {
	fmt.Fprintf(w, "%s\n", headerStyle.Render("Quote "+q.ID))
	fmt.Fprintf(w, "Lead:        %s\n", q.LeadID)
	fmt.Fprintf(w, "Confidence:  %s\n\n", q.Confidence)
	fmt.Fprintf(w, "%-30s %4s %12s %12s\n", "DESCRIPTION", "QTY", "UNIT", "TOTAL")
	for _, li := range q.LineItems {
		fmt.Fprintf(w, "%-30s %4d %12s %12s\n",
			truncate(li.Description, 30), li.Quantity, models.FormatCents(li.UnitPriceCents), models.FormatCents(li.TotalCents))
	}
	fmt.Fprintf(w, "%-30s %4s %12s %12s\n", "Subtotal", "", "", models.FormatCents(q.SubtotalCents))
	fmt.Fprintf(w, "%-30s %4s %12s %12s\n", "Total", "", "", models.FormatCents(q.TotalCents))
}

func runAssignments(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		a, err := apiClient.GetAssignment(ctx, args[0])
		if err != nil {
			return apiError("get assignment", err)
		}
		return emit(cmd.OutOrStdout(), a, func(w io.Writer) { printAssignment(w, a) })
	}

	assignments, err := apiClient.GetAssignments(ctx)
	if err != nil {
		return apiError("list assignments", err)
	}
	return emit(cmd.OutOrStdout(), assignments, func(w io.Writer) {
		if len(assignments) == 0 {
			fmt.Fprintln(w, "No assignments found.")
			return
		}
		fmt.Fprintf(w, "%-8s %-8s %-20s %s\n", "ID", "JOB", "SUBCONTRACTOR", "STATUS")
		for _, a := range assignments {
			fmt.Fprintf(w, "%-8s %-8s %-20s %s\n", a.ID, orDash(a.LinkedJobID()), truncate(assignmentSub(a), 20), badge(a.Status, a.Declined()))
		}
		fmt.Fprintf(w, "\n%d assignment(s)\n", len(assignments))
	})
}

func runAssignmentsDecline(cmd *cobra.Command, args []string) error {
	a, err := apiClient.UpdateAssignment(cmd.Context(), args[0], models.AssignmentInput{Status: models.AssignmentDeclined})
	if err != nil {
		return apiError("decline assignment", err)
	}
	return emit(cmd.OutOrStdout(), a, func(w io.Writer) {
		fmt.Fprintf(w, "Assignment %s marked as refused.\n\n", a.ID)
		printAssignment(w, a)
	})
}

func printAssignment(w io.Writer, a *models.Assignment) {
	fmt.Fprintf(w, "%s\n", headerStyle.Render("Assignment "+a.ID))
	fmt.Fprintf(w, "Status:         %s\n", badge(a.Status, a.Declined()))
	fmt.Fprintf(w, "Job:            %s\n", orDash(a.LinkedJobID()))
	fmt.Fprintf(w, "Subcontractor:  %s\n", assignmentSub(*a))
	if a.Subcontractor != nil && a.Subcontractor.Phone != "" {
		fmt.Fprintf(w, "Phone:          %s\n", a.Subcontractor.Phone)
	}
}

func assignmentSub(a models.Assignment) string {
	if a.Subcontractor != nil && a.Subcontractor.Name != "" {
		return a.Subcontractor.Name
	}
	return orDash(a.SubcontractorID)
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		n, err := apiClient.GetNotification(ctx, args[0])
		if err != nil {
			return apiError("get notification", err)
		}
		return emit(cmd.OutOrStdout(), n, func(w io.Writer) { printNotification(w, n) })
	}

	notifications, err := apiClient.GetNotifications(ctx)
	if err != nil {
		return apiError("list notifications", err)
	}
	return emit(cmd.OutOrStdout(), notifications, func(w io.Writer) {
		if len(notifications) == 0 {
			fmt.Fprintln(w, "No notifications found.")
			return
		}
		fmt.Fprintf(w, "%-8s %-8s %-28s %s\n", "ID", "CHANNEL", "TO", "STATUS")
		for _, n := range notifications {
			fmt.Fprintf(w, "%-8s %-8s %-28s %s\n", n.ID, n.Channel, truncate(n.To, 28), badge(n.Status, false))
		}
		fmt.Fprintf(w, "\n%d notification(s)\n", len(notifications))
	})
}

func printNotification(w io.Writer, n *models.Notification) {
	fmt.Fprintf(w, "%s\n", headerStyle.Render("Notification "+n.ID))
	fmt.Fprintf(w, "Status:   %s\n", badge(n.Status, false))
	fmt.Fprintf(w, "Channel:  %s\n", n.Channel)
	fmt.Fprintf(w, "To:       %s\n", n.To)
	fmt.Fprintf(w, "Subject:  %s\n", models.ValueOr(n.Subject))
	fmt.Fprintf(w, "\n%s\n", n.Body)
}

func orDash(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}
