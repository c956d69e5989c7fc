// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/nvd-mirror/internal/lookup"
	"github.com/bonial-oss/nvd-mirror/internal/output"
	"github.com/bonial-oss/nvd-mirror/internal/types"
)

func newLookupCommand(opts *Options) *cobra.Command {
	var (
		format string
		sortBy string
	)

	cmd := &cobra.Command{
		Use:   "lookup CVE-ID...",
		Short: "Print the stored record for one or more CVEs",
		Long: `lookup prints the stored records for the given CVE identifiers. Identifiers
are matched case-insensitively. If no snapshot exists yet, a full sync runs
first. Exits with code 1 when any identifier is not found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return &ExitError{Code: ExitInvalidConfig, Message: fmt.Sprintf("unsupported output format: %s", format)}
			}
			if !output.ValidSortKey(sortBy) {
				return &ExitError{
					Code:    ExitInvalidConfig,
					Message: fmt.Sprintf("unsupported sort key: %s (want one of %s)", sortBy, strings.Join(output.SortKeys, ", ")),
				}
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			searcher := lookup.New(a.store, lazySyncer{a}, a.logger)
			var (
				found   []output.Entry
				missing []string
			)
			for _, id := range args {
				rec, err := searcher.Lookup(cmd.Context(), id)
				if errors.Is(err, lookup.ErrNotFound) {
					missing = append(missing, types.NormalizeID(id))
					continue
				}
				if err != nil {
					return err
				}
				found = append(found, output.Entry{ID: types.NormalizeID(id), Record: rec})
			}

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				if err := output.WriteRecordJSON(w, found); err != nil {
					return err
				}
			case "table":
				if len(found) > 0 {
					cfg := output.TableConfig{SortBy: sortBy, IsTerminal: output.IsOutputToTerminal(w)}
					if err := output.WriteRecordTable(w, found, cfg); err != nil {
						return err
					}
				}
			}

			if len(missing) > 0 {
				return &ExitError{Code: ExitNotFound, Message: "CVE not found: " + strings.Join(missing, ", ")}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "table", "Output format: table, json")
	flags.StringVar(&sortBy, "sort-by", "", "Sort table by: cve, score, published")
	return cmd
}
