package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"charlm/internal/store"
)

func newRunsCmd() *cobra.Command {
	var (
		dbPath string
		runID  int64
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List training runs recorded in the run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := store.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			if runID > 0 {
				epochs, err := st.Epochs(ctx, runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "EPOCH\tTRAIN\tVAL\tPPL")
				for _, em := range epochs {
					fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.2f\n", em.Epoch, em.TrainLoss, em.ValLoss, em.Perplexity)
				}
				return nil
			}

			runs, err := st.ListRuns(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tSTARTED\tCELL\tHIDDEN\tWINDOW\tCORPUS\tMODEL")
			for _, r := range runs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Config.Cell,
					r.Config.Hidden, r.Config.Window, r.CorpusHash, r.ModelDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "charlm.db", "sqlite run history")
	cmd.Flags().Int64Var(&runID, "run", 0, "Show the epochs of this run")
	return cmd
}
