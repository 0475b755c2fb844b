package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/vowguard/internal/logging"
	"github.com/danielpatrickdp/vowguard/internal/violation"
)

// #region inspect-cmd

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		last    int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show recent evaluations from the provenance log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			store, err := violation.NewStore(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := logging.RecentEvaluations(store.DB(), last)
			if err != nil {
				return err
			}
			points, err := store.Count()
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"evaluations": entries, "violation_points": points})
			}
			printEvaluations(cmd.OutOrStdout(), entries, points)
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent evaluations")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion inspect-cmd

// #region inspect-output

func printEvaluations(w io.Writer, entries []logging.EvaluationEntry, points int) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no evaluations found")
		return
	}
	fmt.Fprintf(w, "%-12s  %-16s  %-6s  %13s  %9s  %s\n", "Evaluation", "Persona", "Honest", "Contradiction", "Integrity", "Time")
	fmt.Fprintf(w, "%-12s+-%-16s+-%-6s+-%13s+-%9s+-%s\n", "------------", "----------------", "------", "-------------", "---------", "--------------------")
	// newest first from the store; print chronologically
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "%-12s  %-16s  %-6v  %13.4f  %9.4f  %s\n",
			shortID(e.EvaluationID), e.PersonaID, e.Honest, e.ContradictionScore, e.IntegrityDelta,
			e.CreatedAt.Format("2006-01-02T15:04:05Z"))
		if !e.Honest && e.Reason != "" {
			fmt.Fprintf(w, "%-12s  %s\n", "", e.Reason)
		}
	}
	fmt.Fprintf(w, "\nviolation points in ledger: %d\n", points)
}

// #endregion inspect-output

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
