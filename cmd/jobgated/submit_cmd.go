// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/jobgate/internal/api"
	"github.com/ManuGH/jobgate/internal/client"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/spf13/cobra"
)

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		outputKind    string
		profile       string
		params        []string
		retryBusy     bool
		retryInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit <input>",
		Short: "Submit a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if retryBusy && retryInterval <= 0 {
				return fmt.Errorf("--retry-interval must be positive, got %s", retryInterval)
			}
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}
			req := api.SubmitRequest{
				Input:      args[0],
				OutputKind: outputKind,
				Profile:    profile,
				Parameters: parameters,
			}

			c := opts.client()
			var res jobs.Result
			if retryBusy {
				res, err = c.SubmitRetryBusy(cmd.Context(), req, retryInterval, func(pe *client.ProblemError) {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "busy: %s, retrying in %s\n", pe.Detail, retryInterval)
				})
			} else {
				res, err = c.Submit(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&outputKind, "output-kind", "k", "mov", "output file kind")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "command profile (default: daemon default)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "profile parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&retryBusy, "retry-busy", false, "retry while another job is running")
	cmd.Flags().DurationVar(&retryInterval, "retry-interval", 30*time.Second, "pause between busy retries")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show the running job, or the state of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			var out any
			if len(args) == 1 {
				st, err := c.JobState(cmd.Context(), args[0], kind)
				if err != nil {
					return err
				}
				out = st
			} else {
				holder, ok, err := c.Current(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "idle")
					return nil
				}
				out = holder
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&kind, "output-kind", "k", "mov", "output file kind of the job")
	return cmd
}
