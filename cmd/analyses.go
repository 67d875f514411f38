package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect analysis history",
	Long:  "Commands for listing, viewing, and deleting stored analyses.",
}

// -- analyses list --

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		analyses, err := st.ListAnalyses(ctx, store.Filter{
			Status:  model.AnalysisStatus(status),
			OwnerID: owner,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "analyses list")
		}

		if len(analyses) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatAnalysesList(os.Stdout, analyses)
		return nil
	},
}

// -- analyses show --

var analysesShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show the full record of an analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		analysis, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "analyses show")
		}
		if analysis == nil {
			return eris.Errorf("analysis not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	},
}

// -- analyses delete --

var analysesDeleteCmd = &cobra.Command{
	Use:   "delete <analysis-id>",
	Short: "Delete an analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteAnalysis(ctx, args[0]); err != nil {
			return eris.Wrap(err, "analyses delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	analysesListCmd.Flags().String("status", "", "filter by status (processing, completed, failed)")
	analysesListCmd.Flags().String("owner", "", "filter by owner")
	analysesListCmd.Flags().Int("limit", 50, "max number of analyses to display")

	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesShowCmd)
	analysesCmd.AddCommand(analysesDeleteCmd)
	rootCmd.AddCommand(analysesCmd)
}

// formatAnalysesList writes a tabular list of analyses to w.
func formatAnalysesList(out io.Writer, analyses []model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOWNER\tTARGETS\tSTATUS\tCOST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t------\t----\t-------")

	for _, a := range analyses {
		cost := ""
		if a.Result != nil {
			cost = fmt.Sprintf("$%.4f", a.Result.EstimatedCost)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(a.ID),
			a.OwnerID,
			len(a.Targets),
			a.Status,
			cost,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
