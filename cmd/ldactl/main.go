package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ldaengine/adapters/excel"
	"ldaengine/app"
	"ldaengine/internal/config"
	"ldaengine/internal/container"
	"ldaengine/internal/logging"
	"ldaengine/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ldactl",
		Short:         "Retention reports and Master List merges for roster workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("workbook", "", "workbook path (default $LDA_WORKBOOK)")
	rootCmd.PersistentFlags().String("settings", "", "settings JSON file (default $LDA_SETTINGS_FILE)")

	rootCmd.AddCommand(
		newReportCmd(),
		newMergeCmd(),
		newServeCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads .env, config and the container, applying the persistent flags.
func setup(cmd *cobra.Command) (*container.Container, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("workbook"); v != "" {
		cfg.Paths.Workbook = v
	}
	if v, _ := cmd.Flags().GetString("settings"); v != "" {
		cfg.Paths.SettingsFile = v
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return container.New(cmd.Context(), cfg, logger)
}

// consoleProgress prints coarse steps and batch counters to stderr.
func consoleProgress() ports.ProgressSink {
	return ports.ProgressFuncs{
		OnStep: func(stepID, status string) {
			if status == ports.StepActive {
				fmt.Fprintf(os.Stderr, "• %s\n", stepID)
			}
		},
		OnBatch: func(current, total int, phase, table string) {
			fmt.Fprintf(os.Stderr, "  %s %s %d/%d\n", phase, table, current, total)
		},
	}
}

func workbookOrErr(c *container.Container) (string, error) {
	if c.Config.Paths.Workbook == "" {
		return "", fmt.Errorf("no workbook: pass --workbook or set LDA_WORKBOOK")
	}
	return c.Config.Paths.Workbook, nil
}

func newReportCmd() *cobra.Command {
	var failing bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a new LDA sheet from the Master List",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			workbook, err := workbookOrErr(c)
			if err != nil {
				return err
			}
			settings := c.Settings
			if cmd.Flags().Changed("failing") {
				settings.IncludeFailingList = failing
			}

			out, err := c.Service.GenerateReport(cmd.Context(), app.ReportRequest{
				Workbook: workbook,
				Settings: settings,
				Progress: consoleProgress(),
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out.Run.Summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&failing, "failing", false, "include the failing students table")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var importPath, importSheet string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a roster export into the Master List",
		Long: `Merge a roster export (xlsx or csv) into the workbook's Master List.

Example: ldactl merge --workbook roster.xlsx --import export.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			workbook, err := workbookOrErr(c)
			if err != nil {
				return err
			}
			snap, err := excel.NewImportReader(importPath, importSheet, c.Logger).Read(cmd.Context())
			if err != nil {
				return err
			}

			out, err := c.Service.MergeMasterList(cmd.Context(), app.MergeRequest{
				Workbook: workbook,
				Settings: c.Settings,
				Import:   snap,
				Progress: consoleProgress(),
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out.Run.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&importPath, "import", "", "roster export to merge (required)")
	cmd.Flags().StringVar(&importSheet, "import-sheet", "", "worksheet of an xlsx import (default first)")
	_ = cmd.MarkFlagRequired("import")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the task pane API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := ":" + c.Config.Server.Port
			if err := c.Server().Run(ctx, addr); err != nil {
				c.Logger.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			runs, err := c.Service.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSHEET\tROWS\tSTARTED\tDURATION")
			for _, rn := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					rn.ID, rn.Kind, rn.Status, rn.Sheet, rn.RowsWritten,
					rn.StartedAt.Local().Format(time.DateTime), rn.Duration().Round(time.Millisecond))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	return cmd
}
