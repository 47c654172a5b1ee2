package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/lead"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

var agentMode string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the planning agent on a lead",
}

var agentRunCmd = &cobra.Command{
	Use:   "run <lead-id>",
	Short: "Run the agent in plan-only or execute mode",
	Long: `Run the planning agent on a lead.

plan_only proposes a service, price, schedule and subcontractor without
creating anything. execute also creates the quote, job, assignment and
customer notification. Execute is refused while a job for the lead already
has an active subcontractor assignment.

Examples:
  dispatchdesk agent run L1
  dispatchdesk agent run L1 --mode execute
  dispatchdesk agent run L1 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runAgentRun,
}

func init() {
	agentRunCmd.Flags().StringVarP(&agentMode, "mode", "m", string(models.ModePlanOnly), "run mode: plan_only or execute")
	agentCmd.AddCommand(agentRunCmd)
}

func runAgentRun(cmd *cobra.Command, args []string) error {
	mode, err := models.ParseRunMode(agentMode)
	if err != nil {
		return err
	}

	o := lead.New(apiClient, args[0], lead.WithLogger(logger))
	defer o.Close()

	ctx := cmd.Context()
	if err := o.LoadAll(ctx); err != nil {
		return apiError("load lead", err)
	}

	result, err := o.RunAgent(ctx, mode)
	switch {
	case errors.Is(err, lead.ErrExecuteBlocked):
		_, reason := o.View().CanRun(mode)
		return fmt.Errorf("cannot execute: %s", reason)
	case err != nil:
		return apiError("agent run", err)
	}

	v := o.View()
	return emit(cmd.OutOrStdout(), result, func(w io.Writer) {
		printAgentResult(w, v)
		if v.Stale {
			fmt.Fprintf(w, "\n%s\n", hintStyle.Render("Refresh after the run failed; the data below may be stale."))
		}
		fmt.Fprintf(w, "\n%s\n", headerStyle.Render("Activity"))
		printTimeline(w, v.Timeline)
	})
}

func printAgentResult(w io.Writer, v lead.View) {
	fmt.Fprintf(w, "%s\n", headerStyle.Render("Agent plan"))
	if v.Plan == nil {
		fmt.Fprintln(w, "No plan returned.")
	} else {
		p := v.Plan
		fmt.Fprintf(w, "Service:       %s\n", p.ServiceCode)
		fmt.Fprintf(w, "Urgency:       %s\n", p.Urgency)
		fmt.Fprintf(w, "Total:         %s\n", p.Total)
		fmt.Fprintf(w, "Schedule:      %s\n", p.Schedule)
		fmt.Fprintf(w, "Subcontractor: %s\n", p.Subcontractor)
		fmt.Fprintf(w, "Confidence:    %s\n", p.Confidence)
		fmt.Fprintf(w, "Message:       %s\n", p.CustomerMessage)
	}

	r := v.Result
	if r == nil {
		return
	}
	if msg := r.ErrorText(); msg != "" {
		fmt.Fprintf(w, "Errors:        %s\n", alertStyle.Render(msg))
	}
	if !r.Executed() {
		fmt.Fprintf(w, "\n%s\n", hintStyle.Render("Plan only: no records were created."))
		return
	}

	fmt.Fprintf(w, "\n%s\n", headerStyle.Render("Created records"))
	if r.Quote != nil {
		fmt.Fprintf(w, "Quote         %-8s %s\n", r.Quote.ID, models.FormatCents(r.Quote.TotalCents))
	}
	if r.Job != nil {
		fmt.Fprintf(w, "Job           %-8s %s %s\n", r.Job.ID, r.Job.Schedule(), badge(r.Job.Status, false))
	}
	if r.Assignment != nil {
		fmt.Fprintf(w, "Assignment    %-8s %s\n", r.Assignment.ID, badge(r.Assignment.Status, r.Assignment.Declined()))
	}
	if r.Notification != nil {
		fmt.Fprintf(w, "Notification  %-8s %s to %s\n", r.Notification.ID, r.Notification.Channel, r.Notification.To)
	}
}
