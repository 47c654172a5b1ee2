// Package cli provides the command-line interface for dispatchdesk.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dispatchdesk/internal/client"
	"github.com/raphaelgruber/dispatchdesk/internal/config"
	"github.com/raphaelgruber/dispatchdesk/internal/metrics"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string
	apiURL     string
	outputFmt  string
	showStats  bool

	// Global config, logger and API client
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	collector  *metrics.Collector
	apiClient  *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dispatchdesk",
	Short: "Operator console for the dispatch workflow",
	Long: `Dispatchdesk is the operator console for a local-services dispatch workflow:
review intake leads, run the planning agent in plan-only or execute mode, and
inspect the quotes, jobs, assignments and notifications it creates.

Run 'dispatchdesk console' for the interactive console.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && collector != nil {
			printStats(cmd.ErrOrStderr(), collector.Snapshot())
		}
		closeLog()
	},
}

// closeLog flushes and closes the log file, if one is open.
func closeLog() {
	if logCleanup == nil {
		return
	}
	if err := logCleanup(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	logCleanup = nil
}

// setup loads config and builds the logger and API client.
func setup(cmd *cobra.Command, args []string) error {
	// Skip for version and help commands
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}
	if err := checkOutputFormat(outputFmt); err != nil {
		return err
	}

	closeLog()

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	// The console draws on the terminal, so it logs to the file only.
	if cmd == consoleCmd {
		logger, logCleanup = config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
	} else {
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	}

	collector = metrics.NewCollector()
	apiClient = client.New(cfg.APIURL,
		client.WithToken(cfg.APIToken),
		client.WithSignInURL(cfg.SignInURL),
		client.WithTimeout(cfg.ClientTimeout),
		client.WithLogger(logger),
		client.WithMetrics(collector),
		client.WithUnauthorizedHandler(func(signInURL string) {
			logger.Warn("session expired", "sign_in_url", signInURL)
		}),
	)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request timings after the command")

	// Add subcommands
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(quotesCmd)
	rootCmd.AddCommand(assignmentsCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(subcontractorsCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(consoleCmd)
}

// apiError turns a client error into a command error carrying the
// human-readable message.
func apiError(action string, err error) error {
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%s: %s (sign in at %s)", action, client.Message(err), apiClient.SignInURL())
	}
	return fmt.Errorf("%s: %s", action, client.Message(err))
}
