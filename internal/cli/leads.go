package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

var (
	leadFullName     string
	leadEmail        string
	leadPhone        string
	leadAddressLine1 string
	leadAddressLine2 string
	leadCity         string
	leadState        string
	leadPostalCode   string
	leadService      string
	leadNotes        string
	leadUrgency      string
	leadStatus       string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List, show, create and update leads",
	Long: `Work with intake leads.

Without a subcommand, lists all leads.

Examples:
  dispatchdesk leads
  dispatchdesk leads show L1
  dispatchdesk leads create --name "Ada Park" --service tree_removal --city Austin
  dispatchdesk leads update L1 --status qualified`,
	Args: cobra.NoArgs,
	RunE: runLeadsList,
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all leads",
	Args:  cobra.NoArgs,
	RunE:  runLeadsList,
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show one lead",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeadsShow,
}

var leadsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a lead",
	Long: `Create a lead. Only --name is required; the API assigns the id and
the initial status.`,
	Args: cobra.NoArgs,
	RunE: runLeadsCreate,
}

var leadsUpdateCmd = &cobra.Command{
	Use:   "update <lead-id>",
	Short: "Update fields on a lead",
	Long: `Update a lead. Only the flags you pass are sent; everything else is
left as it is.`,
	Args: cobra.ExactArgs(1),
	RunE: runLeadsUpdate,
}

func init() {
	for _, c := range []*cobra.Command{leadsCreateCmd, leadsUpdateCmd} {
		c.Flags().StringVar(&leadFullName, "name", "", "customer full name")
		c.Flags().StringVar(&leadEmail, "email", "", "customer email")
		c.Flags().StringVar(&leadPhone, "phone", "", "customer phone")
		c.Flags().StringVar(&leadAddressLine1, "address", "", "street address")
		c.Flags().StringVar(&leadAddressLine2, "address2", "", "address line 2")
		c.Flags().StringVar(&leadCity, "city", "", "city")
		c.Flags().StringVar(&leadState, "state", "", "state")
		c.Flags().StringVar(&leadPostalCode, "postal-code", "", "postal code")
		c.Flags().StringVar(&leadService, "service", "", "requested service code")
		c.Flags().StringVar(&leadNotes, "notes", "", "free-form notes")
		c.Flags().StringVar(&leadUrgency, "urgency", "", "urgency hint")
	}
	leadsUpdateCmd.Flags().StringVar(&leadStatus, "status", "", "lead status")
	_ = leadsCreateCmd.MarkFlagRequired("name")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsCreateCmd)
	leadsCmd.AddCommand(leadsUpdateCmd)
}

func runLeadsList(cmd *cobra.Command, args []string) error {
	leads, err := apiClient.GetLeads(cmd.Context())
	if err != nil {
		return apiError("list leads", err)
	}
	return emit(cmd.OutOrStdout(), leads, func(w io.Writer) {
		if len(leads) == 0 {
			fmt.Fprintln(w, "No leads found.")
			return
		}
		fmt.Fprintf(w, "%-10s %-24s %-18s %-12s %s\n", "ID", "NAME", "SERVICE", "URGENCY", "STATUS")
		for _, l := range leads {
			fmt.Fprintf(w, "%-10s %-24s %-18s %-12s %s\n",
				l.ID, truncate(l.FullName, 24), l.ServiceRequested, models.ValueOr(l.UrgencyHint), badge(l.Status, l.Failed()))
		}
		fmt.Fprintf(w, "\n%d lead(s)\n", len(leads))
	})
}

func runLeadsShow(cmd *cobra.Command, args []string) error {
	l, err := apiClient.GetLead(cmd.Context(), args[0])
	if err != nil {
		return apiError("get lead", err)
	}
	return emit(cmd.OutOrStdout(), l, func(w io.Writer) { printLead(w, l) })
}

func runLeadsCreate(cmd *cobra.Command, args []string) error {
	l, err := apiClient.CreateLead(cmd.Context(), leadInput(cmd))
	if err != nil {
		return apiError("create lead", err)
	}
	return emit(cmd.OutOrStdout(), l, func(w io.Writer) {
		fmt.Fprintf(w, "Created lead %s\n\n", l.ID)
		printLead(w, l)
	})
}

func runLeadsUpdate(cmd *cobra.Command, args []string) error {
	input := leadInput(cmd)
	if input == (models.LeadInput{}) {
		return fmt.Errorf("nothing to update: pass at least one field flag")
	}
	l, err := apiClient.UpdateLead(cmd.Context(), args[0], input)
	if err != nil {
		return apiError("update lead", err)
	}
	return emit(cmd.OutOrStdout(), l, func(w io.Writer) {
		fmt.Fprintf(w, "Updated lead %s\n\n", l.ID)
		printLead(w, l)
	})
}

// leadInput collects the flags the user actually set.
func leadInput(cmd *cobra.Command) models.LeadInput {
	var in models.LeadInput
	set := func(name string, dst **string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = models.Ptr(v)
		}
	}
	set("name", &in.FullName, leadFullName)
	set("email", &in.Email, leadEmail)
	set("phone", &in.Phone, leadPhone)
	set("address", &in.AddressLine1, leadAddressLine1)
	set("address2", &in.AddressLine2, leadAddressLine2)
	set("city", &in.City, leadCity)
	set("state", &in.State, leadState)
	set("postal-code", &in.PostalCode, leadPostalCode)
	set("service", &in.ServiceRequested, leadService)
	set("notes", &in.Notes, leadNotes)
	set("urgency", &in.UrgencyHint, leadUrgency)
	if cmd.Flags().Lookup("status") != nil {
		set("status", &in.Status, leadStatus)
	}
	return in
}

func printLead(w io.Writer, l *models.Lead) {
	fmt.Fprintf(w, "%s\n", headerStyle.Render(l.FullName))
	fmt.Fprintf(w, "ID:       %s\n", l.ID)
	fmt.Fprintf(w, "Status:   %s\n", badge(l.Status, l.Failed()))
	fmt.Fprintf(w, "Service:  %s\n", l.ServiceRequested)
	fmt.Fprintf(w, "Urgency:  %s\n", models.ValueOr(l.UrgencyHint))
	fmt.Fprintf(w, "Email:    %s\n", models.ValueOr(l.Email))
	fmt.Fprintf(w, "Phone:    %s\n", models.ValueOr(l.Phone))
	fmt.Fprintf(w, "Address:  %s\n", l.Address())
	if l.AddressLine2 != nil && *l.AddressLine2 != "" {
		fmt.Fprintf(w, "          %s\n", *l.AddressLine2)
	}
	fmt.Fprintf(w, "Notes:    %s\n", models.ValueOr(l.Notes))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
