package cli

import (
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/console"
	"github.com/raphaelgruber/dispatchdesk/internal/search"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive operator console",
	Long: `Start the interactive operator console.

Keys:
  1-4        leads, jobs, subcontractors, services
  ↑/↓ enter  move and open
  esc        back
  /          search
  p / x      run the agent (plan only / execute) on a lead
  d          mark an assignment as refused
  r          refresh
  q          quit

Logs go to the configured log file only, so they never draw over the screen.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := console.New(apiClient,
			console.WithLogger(logger),
			console.WithSignInURL(apiClient.SignInURL()),
			console.WithSearchOptions(search.WithDelay(cfg.SearchDebounce)),
		)
		return console.Run(app)
	},
}
