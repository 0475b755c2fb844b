package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/vowguard/internal/violation"
)

// #region export-cmd

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		out   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the durable violation ledger as a JSON export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			store, err := violation.NewStore(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			points, err := store.List(limit)
			if err != nil {
				return err
			}
			exp := violation.Summarize(points)

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := violation.WriteExport(w, exp); err != nil {
				return err
			}
			log.Info().Int("points", exp.Metadata.TotalPoints).Str("out", out).Msg("export written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&limit, "limit", 0, "export at most N points (0 = all)")
	return cmd
}

// #endregion export-cmd
