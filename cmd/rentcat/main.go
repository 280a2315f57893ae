package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"rentcat/internal/app"
	"rentcat/internal/config"
	"rentcat/internal/rentcat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", rentcat.UserMessage(err))
		os.Exit(1)
	}
}

// configPath returns --config when given, else the default location.
func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults.ConfigPath, nil
}

// newApp reads the config and creates a RentcatApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "UpsertTool", "Regenerate").
func newApp(cmd *cobra.Command, operation string) (*app.RentcatApp, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var opts []app.Option
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		opts = append(opts, app.WithStderr(nil))
	}
	a, err := app.NewRentcatApp(cmd.Context(), cfg, operation, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// run wraps a command body with app setup and teardown. A returned error
// marks the operation as failed in the log.
func run(operation string, body func(cmd *cobra.Command, a *app.RentcatApp, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, operation)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := body(cmd, a, args); err != nil {
			a.Fail(err)
			return err
		}
		return nil
	}
}

// printMutation reports a saved change and what happened to the site.
func printMutation(w io.Writer, what string, res *rentcat.MutationResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "%s (%d affected), saved at %s\n", what, res.Affected, res.SavedAt.Format("2006-01-02 15:04:05"))
	printRegeneration(w, res.Regeneration)
}

func printRegeneration(w io.Writer, r rentcat.RegenerationResult) {
	switch r.Outcome {
	case rentcat.OutcomeCompleted:
		fmt.Fprintf(w, "Site regenerated in %s (run %s)\n", r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond), r.RunID)
	case rentcat.OutcomeSkippedLocked:
		fmt.Fprintln(w, "Site regeneration skipped: another run is in progress")
	case rentcat.OutcomeSkippedDebounced:
		fmt.Fprintln(w, "Site regeneration skipped: a run completed moments ago")
	case rentcat.OutcomeFailed:
		fmt.Fprintf(w, "Site regeneration failed (run %s)\n", r.RunID)
	}
}

var rootCmd = &cobra.Command{
	Use:           "rentcat",
	Short:         "Rental catalog editor and site regenerator",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		path, err := configPath(cmd)
		if err != nil {
			return err
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", path)
		fmt.Fprintf(out, "Base Dir: %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Catalog:  %s\n", cfg.CatalogPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", path)
		fmt.Fprintf(out, "Catalog:   %s\n", cfg.CatalogPath)
		fmt.Fprintf(out, "Backups:   %s\n", cfg.Backup.Dir)
		fmt.Fprintf(out, "Log Dir:   %s\n", cfg.LogDir)
		fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Type)
		mirror := "(none)"
		if cfg.Backup.Mirror != "" {
			mirror = cfg.Backup.Mirror
			if cfg.Backup.Encrypt {
				mirror += " (encrypted)"
			}
		}
		fmt.Fprintf(out, "Mirror:    %s\n", mirror)
		fmt.Fprintf(out, "Cooldown:  %s\n", cfg.Generator.Cooldown)
		for i, s := range cfg.Generator.Stages {
			fmt.Fprintf(out, "Stage %d:   %s: %s %v\n", i+1, s.Name, s.Command, s.Args)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "\nProblems:\n%v\n", err)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys for mirrored backups",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair",
	RunE: run("SetupKeys", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Encryption keys created.")
		return nil
	}),
}

// validate command
var validateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Check a catalog document without saving it",
	Args:  cobra.MaximumNArgs(1),
	RunE: run("Validate", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		errs, err := a.Validate(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(errs) == 0 {
			fmt.Fprintln(out, "Catalog is valid.")
			return nil
		}
		for _, fe := range errs {
			fmt.Fprintf(out, "%s\n", fe.Error())
		}
		return fmt.Errorf("%d problem(s) found", len(errs))
	}),
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the catalog",
	RunE: run("Stats", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		s, err := a.Stats()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Categories:     %d\n", s.Categories)
		fmt.Fprintf(out, "Subcategories:  %d\n", s.Subcategories)
		fmt.Fprintf(out, "Tools:          %d (%d enabled)\n", s.Tools, s.EnabledTools)
		return nil
	}),
}

// import / export commands
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the catalog with a JSON or YAML document",
	Args:  cobra.ExactArgs(1),
	RunE: run("Import", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		ok, err := confirm(cmd, fmt.Sprintf("Replace the whole catalog with %s?", args[0]))
		if err != nil || !ok {
			return err
		}
		res, err := a.ImportFile(cmd.Context(), args[0], format)
		printMutation(cmd.OutOrStdout(), "Catalog imported", res)
		return err
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog as JSON or YAML",
	RunE: run("Export", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if output == "" || output == "-" {
			return a.Export(cmd.OutOrStdout(), format)
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		if err := a.Export(f, format); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}),
}

// regenerate command
var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rebuild the static site",
	RunE: run("Regenerate", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		out := cmd.OutOrStdout()
		if status, _ := cmd.Flags().GetBool("status"); status {
			st, err := a.RegenerationStatus()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Running:         %t\n", st.Running)
			if st.Running {
				fmt.Fprintf(out, "Run:             %s\n", st.RunID)
			}
			if st.LastCompleted.IsZero() {
				fmt.Fprintln(out, "Last completed:  never")
			} else {
				fmt.Fprintf(out, "Last completed:  %s\n", st.LastCompleted.Local().Format("2006-01-02 15:04:05"))
			}
			if st.CooldownLeft > 0 {
				fmt.Fprintf(out, "Cooldown left:   %s\n", st.CooldownLeft.Truncate(time.Millisecond))
			}
			return nil
		}

		force, _ := cmd.Flags().GetBool("force")
		res, err := a.Regenerate(cmd.Context(), force)
		printRegeneration(out, res)
		return err
	}),
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View editing activity or regeneration runs",
	RunE: run("History", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		out := cmd.OutOrStdout()

		if runs, _ := cmd.Flags().GetBool("runs"); runs {
			results, err := a.RunHistory(limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No regeneration runs recorded.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "%s  %s  %-10s  %-8s  %s\n",
					r.RunID,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Outcome,
					r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond),
					r.Error,
				)
			}
			return nil
		}

		events, err := a.ActivityHistory(limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No activity recorded.")
			return nil
		}
		for _, e := range events {
			fmt.Fprintf(out, "#%d  %s  %-24s  %v\n",
				e.ID,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Event,
				e.Details,
			)
		}
		return nil
	}),
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $RENTCAT_CONFIG_PATH or ~/.config/rentcat.toml)")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Write log lines to the log file only")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("format", "f", "json", "Input format: json or yaml")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(regenerateCmd)
	regenerateCmd.Flags().Bool("force", false, "Ignore the cooldown")
	regenerateCmd.Flags().Bool("status", false, "Show the generator state instead of running it")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("runs", false, "Show regeneration runs instead of editing activity")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")

	addEditCommands()
	addBackupCommands()
}
