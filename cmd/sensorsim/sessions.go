package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/sensor.sim/internal/db"
	"github.com/banshee-data/sensor.sim/internal/export"
)

func newSessionsCmd(ro *rootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored measurement sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := db.NewDB(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			sums, err := database.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODE\tSTARTED\tSAMPLES\tMEAN ABS ERROR")
			for _, s := range sums {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\n", s.ID, s.Mode, s.StartedAt.Format("2006-01-02 15:04:05"), s.Count, s.MeanAbsoluteError)
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "sensorsim.db", "sqlite database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list (0: all)")

	var output outputOptions
	exportCmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a stored session as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[0], err)
			}
			output.resolve(cmd, ro)

			database, err := db.NewDB(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			sum, err := database.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			records, err := database.SessionRecords(cmd.Context(), id)
			if err != nil {
				return err
			}
			tbl, err := export.Build(sum.Mode, records, export.Options{Unit: output.unit, Timezone: output.timezone})
			if err != nil {
				return err
			}
			path := output.outPath
			if path == "" {
				path = "-"
			}
			return writeTable(cmd.OutOrStdout(), path, tbl)
		},
	}
	exportCmd.Flags().StringVar(&output.outPath, "out", "", "CSV file (default: stdout)")
	exportCmd.Flags().StringVar(&output.unit, "unit", "", "temperature unit")
	exportCmd.Flags().StringVar(&output.timezone, "tz", "", "timezone for timestamps")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored session and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[0], err)
			}
			database, err := db.NewDB(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			if err := database.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s\n", id)
			return nil
		},
	})

	return cmd
}
