// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bonial-oss/nvd-mirror/internal/output"
	"github.com/bonial-oss/nvd-mirror/internal/store"
)

func newStatusCommand(opts *Options) *cobra.Command {
	var (
		format  string
		records bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show when the mirror was last synced and how large it is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "json" && format != "table" {
				return &ExitError{Code: ExitInvalidConfig, Message: fmt.Sprintf("unsupported output format: %s", format)}
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			st := output.Status{Dir: a.cfg.Dir, Fresh: a.state.IsFresh(time.Now())}
			last, ok, err := a.state.LastSynced()
			if err != nil {
				a.logger.Warn("ignoring unreadable sync timestamp", zap.Error(err))
			} else if ok {
				st.LastSynced = last
			}

			stats, err := a.store.Stats()
			switch {
			case errors.Is(err, store.ErrNoSnapshot):
				st.Fresh = false
			case err != nil:
				return err
			default:
				st.Chunks = stats.Chunks
				st.Bytes = stats.Bytes
				if records {
					ds, err := a.store.Read()
					if err != nil {
						return err
					}
					st.Records = len(ds)
				}
			}

			w := cmd.OutOrStdout()
			if format == "json" {
				return output.WriteStatusJSON(w, st)
			}
			return output.WriteStatusTable(w, st, output.IsOutputToTerminal(w))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "table", "Output format: table, json")
	flags.BoolVar(&records, "records", true, "Count records by reading the snapshot")
	return cmd
}
