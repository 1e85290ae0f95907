// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inbox/cmd/bureau-inbox/cli"
	"github.com/bureau-foundation/inbox/lib/inboxui"
	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
)

// --- watch ---

type watchParams struct {
	hubConnection
	cli.JSONOutput
	Heartbeats bool
}

func watchCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Print the hub's event stream",
		Description: `Subscribe to the hub and print each frame: the initial snapshot,
then registry events and indicator changes as they happen. Runs until
interrupted or the hub goes away.

With --json, each frame is written as one line of JSON.`,
		Usage: "bureau-inbox watch [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.BoolVar(&params.Heartbeats, "heartbeats", false, "also print heartbeat frames")
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
			stream, err := client.OpenStream(ctx, schema.HubActionSubscribe, nil)
			if err != nil {
				return err
			}
			defer stream.Close()

			encoder := json.NewEncoder(out)
			for {
				var frame schema.HubFrame
				if err := stream.Recv(&frame); err != nil {
					if ctx.Err() != nil || errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				if frame.Type == schema.HubFrameHeartbeat && !params.Heartbeats {
					continue
				}
				if params.OutputJSON {
					if err := encoder.Encode(frame); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintln(out, frameLine(frame))
				if frame.Type == schema.HubFrameError {
					return fmt.Errorf("hub ended the stream: %s", frame.Message)
				}
			}
		},
	}
}

// frameLine renders one subscribe frame as a line of text.
func frameLine(frame schema.HubFrame) string {
	switch frame.Type {
	case schema.HubFrameState:
		running := 0
		for _, application := range frame.Applications {
			if application.Running {
				running++
			}
		}
		return fmt.Sprintf("state: %d applications (%d running)", len(frame.Applications), running)
	case schema.HubFrameCaughtUp:
		return "caught up"
	case schema.HubFrameIndicator:
		if frame.Indicator == nil {
			return "indicator"
		}
		return fmt.Sprintf("indicator: visible=%t attention=%t icon=%s",
			frame.Indicator.Visible, frame.Indicator.DrawsAttention, frame.Indicator.Icon)
	case schema.HubFrameEvent:
		if frame.Event == nil {
			return "event"
		}
		return eventLine(*frame.Event)
	case schema.HubFrameResync:
		return "resync: events were dropped, snapshot follows"
	case schema.HubFrameError:
		return "error: " + frame.Message
	}
	return string(frame.Type)
}

func eventLine(event schema.Event) string {
	parts := []string{string(event.Kind), event.AppID}
	switch event.Kind {
	case schema.EventSourceAdded, schema.EventSourceChanged:
		parts = append(parts, event.SourceID)
		if event.Label != "" {
			parts = append(parts, fmt.Sprintf("%q", event.Label))
		}
		if event.State != nil {
			parts = append(parts, fmt.Sprintf("count=%d", event.State.Count))
			if event.State.DrawsAttention {
				parts = append(parts, "attention")
			}
		}
	case schema.EventSourceRemoved:
		parts = append(parts, event.SourceID)
	case schema.EventMessageAdded:
		parts = append(parts, event.MessageID)
		if event.Title != "" {
			parts = append(parts, fmt.Sprintf("%q", event.Title))
		}
		if event.DrawsAttention {
			parts = append(parts, "attention")
		}
	case schema.EventMessageRemoved:
		parts = append(parts, event.MessageID)
	}
	return "event: " + strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// --- browse ---

func browseCommand(ctx context.Context) *cli.Command {
	var params hubConnection

	return &cli.Command{
		Name:    "browse",
		Summary: "Browse the messaging menu interactively",
		Description: `Open an interactive view of every application, source, message and
message action. Enter activates the selected item, x dismisses it and
D dismisses everything.`,
		Usage: "bureau-inbox browse [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("browse", pflag.ContinueOnError)
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

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stream, err := client.OpenStream(ctx, schema.HubActionSubscribe, nil)
			if err != nil {
				return err
			}
			defer stream.Close()

			frames := make(chan schema.HubFrame, 64)
			go func() {
				defer close(frames)
				for {
					var frame schema.HubFrame
					if err := stream.Recv(&frame); err != nil {
						return
					}
					select {
					case frames <- frame:
					case <-ctx.Done():
						return
					}
				}
			}()

			program := tea.NewProgram(
				inboxui.NewModel(frames, hubCommander{client: client}),
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			)
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
}

// hubCommander invokes commands for the interactive browser.
type hubCommander struct {
	client *service.ServiceClient
}

func (c hubCommander) Invoke(ctx context.Context, name string, parameter any) (bool, error) {
	return invoke(ctx, c.client, name, parameter)
}
