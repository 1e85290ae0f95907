// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inbox/cmd/bureau-inbox/cli"
	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// --- invoke ---

type invokeParams struct {
	hubConnection
	cli.JSONOutput
}

func invokeCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params invokeParams

	return &cli.Command{
		Name:    "invoke",
		Summary: "Invoke a command",
		Description: `Invoke a command in the hub's namespace. The command is described
first and VALUE is parsed according to its parameter type:

  b  true or false (defaults to true when VALUE is omitted)
  s  any string
  x  signed integer
  u  unsigned 32-bit integer
  d  floating point number
  v  JSON, or a plain string if VALUE is not valid JSON

Commands without a parameter reject a VALUE. Exits with status 2 if
the command disappeared before it could be invoked.`,
		Usage: "bureau-inbox invoke NAME [VALUE] [flags]",
		Examples: []cli.Example{
			{Description: "Open a source in its application", Command: "bureau-inbox invoke chat.src.inbox"},
			{Description: "Launch an application", Command: "bureau-inbox invoke chat.launch"},
			{Description: "Reply to a message inline", Command: "bureau-inbox invoke chat.msg-actions.42.reply 'on my way'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("invoke", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("expected NAME and an optional VALUE, got %d arguments", len(args))
			}
			name := args[0]
			value, hasValue := "", len(args) == 2
			if hasValue {
				value = args[1]
			}

			client, err := params.connect()
			if err != nil {
				return err
			}
			ctx, cancel := params.callContext(ctx)
			defer cancel()

			info, err := describe(ctx, client, name)
			if err != nil {
				return err
			}
			parameter, err := parseParameter(info.ParameterType, value, hasValue)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			found, err := invoke(ctx, client, name, parameter)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, schema.CommandResponse{Found: found}); done {
				if err == nil && !found {
					return &cli.ExitError{Code: 2}
				}
				return err
			}
			if !found {
				fmt.Fprintf(out, "%s: no such command\n", name)
				return &cli.ExitError{Code: 2}
			}
			fmt.Fprintf(out, "invoked %s\n", name)
			return nil
		},
	}
}

func invoke(ctx context.Context, client hubCaller, name string, parameter any) (bool, error) {
	var response schema.CommandResponse
	if err := client.Call(ctx, schema.HubActionInvoke, schema.CommandRequest{
		Name:      name,
		Parameter: parameter,
	}, &response); err != nil {
		return false, err
	}
	return response.Found, nil
}

// parseParameter converts a command-line VALUE to the Go value the
// hub expects for parameterType.
func parseParameter(parameterType, value string, hasValue bool) (any, error) {
	switch capability.ParameterType(parameterType) {
	case capability.NoParameter:
		if hasValue {
			return nil, fmt.Errorf("takes no parameter, got %q", value)
		}
		return nil, nil
	case capability.Boolean:
		if !hasValue {
			return true, nil
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", value)
		}
		return parsed, nil
	}

	if !hasValue {
		return nil, fmt.Errorf("requires a parameter of type %s", parameterTypeName(parameterType))
	}

	switch capability.ParameterType(parameterType) {
	case capability.String:
		return value, nil
	case capability.Int64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a signed integer, got %q", value)
		}
		return parsed, nil
	case capability.Uint32:
		parsed, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("expected an integer between 0 and %d, got %q", uint32(math.MaxUint32), value)
		}
		return uint32(parsed), nil
	case capability.Double:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", value)
		}
		return parsed, nil
	case capability.Variant:
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil || decoded == nil {
			return value, nil
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("unknown parameter type %q", parameterType)
}

// --- dismiss-all ---

func dismissAllCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params hubConnection

	return &cli.Command{
		Name:    "dismiss-all",
		Summary: "Dismiss every source and message",
		Description: `Remove every source and message from the menu. Each running
application is told which of its items were dismissed.`,
		Usage: "bureau-inbox dismiss-all [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dismiss-all", pflag.ContinueOnError)
			params.AddFlags(flagSet)
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

			found, err := invoke(ctx, client, applist.CommandRemoveAll, nil)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("hub has no %q command", applist.CommandRemoveAll)
			}
			fmt.Fprintln(out, "dismissed all items")
			return nil
		},
	}
}
