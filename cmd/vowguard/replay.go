package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/vowguard/internal/logging"
	"github.com/danielpatrickdp/vowguard/internal/replay"
)

// #region replay-cmd

func newReplayCmd(root *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Replay a fixture offline and compare outcomes with its expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.Config{Level: "warn", Format: "console"}, cmd.ErrOrStderr())
			if root.logLevel != "" {
				log = log.Level(logging.ParseLevel(root.logLevel))
			}

			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			results, _, err := replay.Replay(cmd.Context(), f, replay.DefaultReplayConfig(), log)
			if err != nil {
				return err
			}
			mismatches := replay.Check(results, f.Expected)
			summary := replay.Summarize(results)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"summary": summary, "mismatches": mismatches}); err != nil {
					return err
				}
			} else {
				printReplay(cmd.OutOrStdout(), f.Description, results, summary, mismatches)
			}

			if len(mismatches) > 0 {
				return fmt.Errorf("%d expectation(s) not met", len(mismatches))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion replay-cmd

// #region replay-output

func printReplay(w io.Writer, description string, results []replay.ReplayResult, s replay.ReplaySummary, mismatches []string) {
	if description != "" {
		fmt.Fprintf(w, "%s\n\n", description)
	}
	fmt.Fprintf(w, "%-24s  %-7s  %13s  %-8s  %6s\n", "Turn", "Honest", "Contradiction", "Declared", "Points")
	fmt.Fprintf(w, "%-24s+-%-7s+-%13s+-%-8s+-%6s\n", "------------------------", "-------", "-------------", "--------", "------")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-24s  error: %v\n", r.TurnID, r.Err)
			continue
		}
		o := r.Outcome
		fmt.Fprintf(w, "%-24s  %-7v  %13.4f  %-8v  %6d\n", r.TurnID, o.Integrity.Honest, o.Integrity.ContradictionScore, o.Declared, len(o.Points))
	}
	fmt.Fprintf(w, "\nturns=%d honest=%d dishonest=%d declared=%d dishonest_reflections=%d points=%d errors=%d\n",
		s.TotalTurns, s.Honest, s.Dishonest, s.Declared, s.DishonestReflection, s.Points, s.Errors)
	for _, m := range mismatches {
		fmt.Fprintf(w, "MISMATCH %s\n", m)
	}
}

// #endregion replay-output
