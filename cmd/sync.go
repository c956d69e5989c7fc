// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(opts *Options) *cobra.Command {
	var reinit bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bootstrap or refresh the local mirror",
		Long: `sync brings the local mirror up to date. Without a snapshot it downloads the
full history by publish date. A snapshot older than 24 hours is refreshed with
records published or modified since the last sync. A fresh snapshot is left
untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.syncer().Run(cmd.Context(), reinit || a.cfg.Reinit)
			if err != nil {
				if isInterrupted(err) {
					return &ExitError{Code: ExitFatal, Message: "sync interrupted, snapshot left unchanged"}
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d records", res.Outcome, len(res.Dataset))
			if res.Committed {
				fmt.Fprintf(out, ", %d fetched, %d chunks written", res.Fetched, res.Chunks)
			}
			fmt.Fprintf(out, " (last synced %s)\n", res.LastSynced.UTC().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reinit, "reinit", false, "Discard the snapshot and rebuild from the full history")
	return cmd
}
