// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/inbox/cmd/bureau-inbox/cli"
	"github.com/bureau-foundation/inbox/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that already reported their outcome return an
		// ExitError; don't add an "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Honors NO_COLOR and CLICOLOR_FORCE.
	lipgloss.SetColorProfile(termenv.EnvColorProfile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCommand(ctx, os.Stdout).Execute(os.Args[1:])
}

// rootCommand builds the command tree. Command output goes to out;
// help and logs go to stderr.
func rootCommand(ctx context.Context, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "bureau-inbox",
		Summary: "Inspect and drive the inbox hub",
		Description: `Inspect and drive the inbox hub.

Applications register with the hub and publish sources (per-folder or
per-contact unread counts) and messages. The hub exposes them as a
namespace of commands such as "chat.src.inbox" or "chat.msg.42" that
this tool lists, describes and invokes.`,
		Subcommands: []*cli.Command{
			statusCommand(ctx, out),
			appsCommand(ctx, out),
			commandsCommand(ctx, out),
			describeCommand(ctx, out),
			invokeCommand(ctx, out),
			dismissAllCommand(ctx, out),
			watchCommand(ctx, out),
			browseCommand(ctx),
			notifyCommand(ctx, out),
			versionCommand(out),
		},
	}
}

func versionCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			fmt.Fprintln(out, version.Full())
			return nil
		},
	}
}
