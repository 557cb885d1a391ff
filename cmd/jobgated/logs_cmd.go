// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var (
		follow   bool
		maxBytes int
	)
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Print or follow a job log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxBytes < 0 {
				return fmt.Errorf("--bytes must not be negative")
			}
			c := opts.client()
			if !follow {
				text, err := c.Tail(cmd.Context(), args[0], maxBytes)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			}
			reason, err := c.Follow(cmd.Context(), args[0], cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "stream ended: %s\n", reason)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream new lines until the job finishes")
	cmd.Flags().IntVar(&maxBytes, "bytes", 0, "tail size in bytes (0: server default)")
	return cmd
}
