// Copyright 2025, Tailpipe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tailpipedev/tailpipe"
	"github.com/tailpipedev/tailpipe/server/pkg/boot"
	"github.com/tailpipedev/tailpipe/server/pkg/serverbase"
)

// TailpipeVersion is the current version, overridden at build time.
var TailpipeVersion = "v0.1.0"

// TailpipeBuildTime is the build timestamp, overridden at build time.
var TailpipeBuildTime = ""

// runExec runs a child command with its stdout/stderr routed through the
// interceptor streams, so the child's output reaches the terminal unchanged
// and is shipped to the collector line by line.
func runExec(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	err := tailpipe.Init(&tailpipe.Config{
		Quiet:         quiet,
		AppName:       args[0],
		ConnectOnInit: true,
		ConsoleConfig: tailpipe.ConsoleConfig{WrapStdout: true, WrapStderr: true},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize log shipping: %w", err)
	}
	defer tailpipe.Shutdown()

	var stdoutW io.Writer = os.Stdout
	var stderrW io.Writer = os.Stderr
	if tailpipe.Stdout() != nil {
		stdoutW = tailpipe.Stdout()
	}
	if tailpipe.Stderr() != nil {
		stderrW = tailpipe.Stderr()
	}

	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = stdoutW
	child.Stderr = stderrW
	if err := child.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			tailpipe.Shutdown()
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	return nil
}

func main() {
	serverbase.TailpipeVersion = TailpipeVersion
	serverbase.TailpipeBuildTime = TailpipeBuildTime

	rootCmd := &cobra.Command{
		Use:   "tailpipe",
		Short: "Tailpipe captures and ships console output from running programs",
		Long:  `Tailpipe intercepts a program's stdout/stderr, echoes it to the terminal unchanged, and ships coalesced log lines to a local collector for search and live tailing.`,
	}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the tailpipe collector server",
		Long:  `Run the tailpipe collector server, which accepts SDK connections and serves the log API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return boot.RunServer()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tailpipe version",
		Run: func(cmd *cobra.Command, args []string) {
			if TailpipeBuildTime != "" {
				fmt.Printf("%s+%s\n", TailpipeVersion, TailpipeBuildTime)
			} else {
				fmt.Printf("%s+dev\n", TailpipeVersion)
			}
		},
	}

	execCmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run a command with its output shipped to the collector",
		Long: `Run a command with its stdout/stderr intercepted: output is echoed to
the terminal unchanged and shipped to the collector line by line.
Example: tailpipe exec ./myserver --port 8080`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExec,
	}
	execCmd.Flags().Bool("quiet", false, "suppress connect/disconnect messages")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(execCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("%v", err)
	}
}
