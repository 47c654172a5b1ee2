package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

var subcontractorsCmd = &cobra.Command{
	Use:   "subcontractors",
	Short: "List subcontractors with their services and availability",
	Args:  cobra.NoArgs,
	RunE:  runSubcontractors,
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the service catalog with pricing guardrails",
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

func runSubcontractors(cmd *cobra.Command, args []string) error {
	subs, err := apiClient.GetSubcontractors(cmd.Context())
	if err != nil {
		return apiError("list subcontractors", err)
	}
	return emit(cmd.OutOrStdout(), subs, func(w io.Writer) {
		if len(subs) == 0 {
			fmt.Fprintln(w, "No subcontractors found.")
			return
		}
		for _, s := range subs {
			fmt.Fprintf(w, "%s %s\n", headerStyle.Render(s.Name), hintStyle.Render("("+s.ID+")"))
			fmt.Fprintf(w, "  Phone:     %s\n", s.Phone)
			fmt.Fprintf(w, "  Services:  %s\n", orDash(s.Services()))
			if len(s.Availabilities) > 0 {
				slots := make([]string, 0, len(s.Availabilities))
				for _, a := range s.Availabilities {
					slots = append(slots, fmt.Sprintf("%s %s-%s", a.Weekday(), a.WindowStart, a.WindowEnd))
				}
				fmt.Fprintf(w, "  Available: %s\n", strings.Join(slots, ", "))
			}
		}
	})
}

// serviceListing is a catalog entry with its pricing rule, if any.
type serviceListing struct {
	Service models.Service      `json:"service" yaml:"service"`
	Pricing *models.PricingRule `json:"pricing_rule,omitempty" yaml:"pricing_rule,omitempty"`
}

func runServices(cmd *cobra.Command, args []string) error {
	var (
		services []models.Service
		rules    []models.PricingRule
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() (err error) {
		services, err = apiClient.GetServices(ctx)
		return err
	})
	g.Go(func() (err error) {
		rules, err = apiClient.GetPricingRules(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return apiError("list services", err)
	}

	byCode := make(map[string]*models.PricingRule, len(rules))
	for i := range rules {
		byCode[rules[i].ServiceCode] = &rules[i]
	}
	listings := make([]serviceListing, 0, len(services))
	for _, s := range services {
		listings = append(listings, serviceListing{Service: s, Pricing: byCode[s.Code]})
	}

	return emit(cmd.OutOrStdout(), listings, func(w io.Writer) {
		if len(listings) == 0 {
			fmt.Fprintln(w, "No services found.")
			return
		}
		fmt.Fprintf(w, "%-18s %-24s %12s %12s %12s\n", "CODE", "NAME", "MIN", "BASE", "MAX")
		for _, l := range listings {
			lo, base, hi := models.Placeholder, models.Placeholder, models.Placeholder
			if p := l.Pricing; p != nil {
				lo, base, hi = models.FormatCents(p.MinPriceCents), models.FormatCents(p.BasePriceCents), models.FormatCents(p.MaxPriceCents)
			}
			fmt.Fprintf(w, "%-18s %-24s %12s %12s %12s\n", l.Service.Code, truncate(l.Service.Name, 24), lo, base, hi)
		}
	})
}
