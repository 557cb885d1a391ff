// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command jobgated runs the jobgate daemon and talks to a running one.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/jobgate/internal/client"
	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/version"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8000"

type rootOptions struct {
	server string
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, client.Options{})
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "jobgated",
		Short:         "Single-flight job execution daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	server := config.ParseString(config.EnvPrefix+"SERVER", defaultServer)
	root.PersistentFlags().StringVar(&opts.server, "server", server, "daemon base URL")

	root.AddCommand(
		newServeCmd(),
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newLogsCmd(opts),
		newHealthcheckCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// parseParams turns repeated key=value flags into a map.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", pair)
		}
		params[key] = value
	}
	return params, nil
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
