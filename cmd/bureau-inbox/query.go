// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inbox/cmd/bureau-inbox/cli"
	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/schema"
)

var (
	headingStyle   = lipgloss.NewStyle().Bold(true)
	attentionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// --- status ---

type statusParams struct {
	hubConnection
	cli.JSONOutput
}

func statusCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show hub health",
		Usage:   "bureau-inbox status [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			client, err := params.connect()
			if err != nil {
				return err
			}
			ctx, cancel := params.callContext(ctx)
			defer cancel()

			var status schema.StatusResponse
			if err := client.Call(ctx, schema.HubActionStatus, nil, &status); err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, status); done {
				return err
			}

			uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)
			table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(table, "socket:\t%s\n", client.SocketPath())
			fmt.Fprintf(table, "version:\t%s\n", status.Version)
			fmt.Fprintf(table, "uptime:\t%s\n", uptime)
			fmt.Fprintf(table, "applications:\t%d (%d running)\n", status.Applications, status.Running)
			fmt.Fprintf(table, "commands:\t%d\n", status.Commands)
			fmt.Fprintf(table, "attention:\t%s\n", yesNo(status.DrawsAttention))
			return table.Flush()
		},
	}
}

// --- apps ---

type appsParams struct {
	hubConnection
	cli.JSONOutput
}

func appsCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params appsParams

	return &cli.Command{
		Name:    "apps",
		Summary: "List registered applications",
		Description: `List the applications in the hub's registry. With an ID, show that
application's descriptor, sources and messages. The ID may be the
application id ("chat") or its desktop id ("chat.desktop").`,
		Usage: "bureau-inbox apps [ID] [flags]",
		Examples: []cli.Example{
			{Description: "Show one application's items", Command: "bureau-inbox apps chat"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("apps", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("expected at most one application id, got %d arguments", len(args))
			}
			client, err := params.connect()
			if err != nil {
				return err
			}
			ctx, cancel := params.callContext(ctx)
			defer cancel()

			if len(args) == 1 {
				var application schema.Application
				if err := client.Call(ctx, schema.HubActionGetApplication,
					schema.ApplicationRequest{ID: args[0]}, &application); err != nil {
					return err
				}
				if done, err := params.EmitJSON(out, application); done {
					return err
				}
				return writeApplication(out, application)
			}

			var applications []schema.Application
			if err := client.Call(ctx, schema.HubActionListApplications, nil, &applications); err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, applications); done {
				return err
			}
			if len(applications) == 0 {
				fmt.Fprintln(out, "no applications registered")
				return nil
			}

			table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(table, "ID\tRUNNING\tSOURCES\tMESSAGES\tNAME")
			for _, application := range applications {
				fmt.Fprintf(table, "%s\t%s\t%d\t%d\t%s\n",
					application.ID, yesNo(application.Running),
					len(application.Sources), len(application.Messages),
					applicationName(application))
			}
			return table.Flush()
		},
	}
}

func writeApplication(out io.Writer, application schema.Application) error {
	fmt.Fprintf(out, "%s (%s)\n", headingStyle.Render(applicationName(application)), application.ID)

	table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if descriptor := application.Descriptor; descriptor != nil {
		fmt.Fprintf(table, "  desktop id:\t%s\n", descriptor.DesktopID)
		if len(descriptor.Actions) > 0 {
			ids := make([]string, 0, len(descriptor.Actions))
			for _, action := range descriptor.Actions {
				ids = append(ids, action.ID)
			}
			fmt.Fprintf(table, "  actions:\t%s\n", strings.Join(ids, ", "))
		}
	}
	fmt.Fprintf(table, "  running:\t%s\n", yesNo(application.Running))
	if err := table.Flush(); err != nil {
		return err
	}

	if len(application.Sources) > 0 {
		fmt.Fprintf(out, "\n%s\n", headingStyle.Render("Sources"))
		table = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, source := range application.Sources {
			fmt.Fprintf(table, "  %s\t%s\t%s\t%s\n",
				source.ID, source.Label, sourceDetail(source), attentionMarker(source.DrawsAttention))
		}
		if err := table.Flush(); err != nil {
			return err
		}
	}

	if len(application.Messages) > 0 {
		fmt.Fprintf(out, "\n%s\n", headingStyle.Render("Messages"))
		table = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, message := range application.Messages {
			fmt.Fprintf(table, "  %s\t%s\t%s\t%s\n",
				message.ID, message.Title, message.Body, attentionMarker(message.DrawsAttention))
			for _, action := range message.Actions {
				fmt.Fprintf(table, "  \t  action %s\t%s\t\n", action.Name, action.Label)
			}
		}
		if err := table.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func applicationName(application schema.Application) string {
	if application.Descriptor != nil && application.Descriptor.Name != "" {
		return application.Descriptor.Name
	}
	return application.ID
}

// sourceDetail is the one value a source displays: count, then text,
// then time.
func sourceDetail(source schema.Source) string {
	switch {
	case source.Count > 0:
		return fmt.Sprintf("%d", source.Count)
	case source.Text != "":
		return source.Text
	case source.Time != 0:
		return time.Unix(0, source.Time).Format(time.DateTime)
	}
	return ""
}

func attentionMarker(drawsAttention bool) string {
	if drawsAttention {
		return attentionStyle.Render("●")
	}
	return ""
}

// --- commands ---

type commandsParams struct {
	hubConnection
	cli.JSONOutput
}

func commandsCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params commandsParams

	return &cli.Command{
		Name:    "commands",
		Summary: "List the hub's command namespace",
		Description: `List every command the hub exposes, with its parameter type and
current state. With a PREFIX, only commands whose path starts with it
are shown.`,
		Usage: "bureau-inbox commands [PREFIX] [flags]",
		Examples: []cli.Example{
			{Description: "Commands of one application", Command: "bureau-inbox commands chat."},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("commands", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("expected at most one prefix, got %d arguments", len(args))
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			client, err := params.connect()
			if err != nil {
				return err
			}
			ctx, cancel := params.callContext(ctx)
			defer cancel()

			var commands []schema.CommandInfo
			if err := client.Call(ctx, schema.HubActionListCommands, nil, &commands); err != nil {
				return err
			}
			var matching []schema.CommandInfo
			for _, command := range commands {
				if strings.HasPrefix(command.Name, prefix) {
					matching = append(matching, command)
				}
			}
			if done, err := params.EmitJSON(out, matching); done {
				return err
			}

			table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(table, "NAME\tPARAMETER\tSTATE")
			for _, command := range matching {
				state := "-"
				if command.Stateful {
					state = formatState(command.State)
				}
				fmt.Fprintf(table, "%s\t%s\t%s\n", command.Name, parameterTypeName(command.ParameterType), state)
			}
			return table.Flush()
		},
	}
}

// --- describe ---

type describeParams struct {
	hubConnection
	cli.JSONOutput
}

func describeCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params describeParams

	return &cli.Command{
		Name:    "describe",
		Summary: "Describe one command",
		Usage:   "bureau-inbox describe NAME [flags]",
		Examples: []cli.Example{
			{Description: "Show a source's count and attention flag", Command: "bureau-inbox describe chat.src.inbox"},
			{Description: "Show what the panel indicator displays", Command: "bureau-inbox describe messages"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("describe", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one command name, got %d arguments", len(args))
			}
			client, err := params.connect()
			if err != nil {
				return err
			}
			ctx, cancel := params.callContext(ctx)
			defer cancel()

			info, err := describe(ctx, client, args[0])
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, info); done {
				return err
			}

			table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(table, "name:\t%s\n", info.Name)
			fmt.Fprintf(table, "parameter:\t%s\n", parameterTypeName(info.ParameterType))
			fmt.Fprintf(table, "stateful:\t%s\n", yesNo(info.Stateful))
			if info.Stateful {
				fmt.Fprintf(table, "state:\t%s\n", formatState(info.State))
			}
			return table.Flush()
		},
	}
}

func describe(ctx context.Context, client hubCaller, name string) (schema.CommandInfo, error) {
	var info schema.CommandInfo
	err := client.Call(ctx, schema.HubActionDescribeCommand, schema.CommandRequest{Name: name}, &info)
	return info, err
}

// hubCaller is the part of service.ServiceClient the commands use.
type hubCaller interface {
	Call(ctx context.Context, action string, fields any, result any) error
}

func parameterTypeName(parameterType string) string {
	switch capability.ParameterType(parameterType) {
	case capability.NoParameter:
		return "none"
	case capability.Boolean:
		return "b (boolean)"
	case capability.String:
		return "s (string)"
	case capability.Int64:
		return "x (int64)"
	case capability.Uint32:
		return "u (uint32)"
	case capability.Double:
		return "d (double)"
	case capability.Variant:
		return "v (any)"
	}
	return parameterType
}

// formatState renders a command state as compact JSON.
func formatState(state any) string {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("%v", state)
	}
	return string(encoded)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
