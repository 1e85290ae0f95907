// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inbox/cmd/bureau-inbox/cli"
	"github.com/bureau-foundation/inbox/lib/messagingmenu"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// socketWaitTimeout bounds how long notify waits for its own
// application socket to appear before registering.
const socketWaitTimeout = 5 * time.Second

type notifyParams struct {
	hubConnection
	cli.JSONOutput
	DesktopID string
	SourceID  string
	Label     string
	Count     uint32
	Text      string
	Title     string
	Body      string
	Reply     bool
	Attention bool
	Wait      time.Duration
	Verbose   bool
}

// notifyResult is what notify reports when it exits.
type notifyResult struct {
	Outcome   string `json:"outcome"`
	SourceID  string `json:"source_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Parameter any    `json:"parameter,omitempty"`
}

func notifyCommand(ctx context.Context, out io.Writer) *cli.Command {
	var params notifyParams

	return &cli.Command{
		Name:    "notify",
		Summary: "Post a source or message and wait for the user",
		Description: `Register as an application, post one item, and wait until the user
activates or dismisses it. The application must be known to the hub
by a desktop entry or manifest.

Without --title a source is posted; with --title a message is posted
instead, optionally with an inline reply action (--reply). The outcome
is printed when the wait ends. Exits with status 2 if the item was
dismissed and 3 if --wait expired first.`,
		Usage: "bureau-inbox notify --app DESKTOP_ID [flags]",
		Examples: []cli.Example{
			{
				Description: "Show an unread count until the user clicks it",
				Command:     "bureau-inbox notify --app chat.desktop --source inbox --label Inbox --count 3",
			},
			{
				Description: "Ask a question with an inline reply",
				Command:     "bureau-inbox notify --app chat.desktop --title 'Build finished' --body 'Deploy now?' --reply --wait 10m",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("notify", pflag.ContinueOnError)
			params.AddFlags(flagSet)
			params.JSONOutput.AddFlag(flagSet)
			flagSet.StringVar(&params.DesktopID, "app", "", "desktop id to register as (required)")
			flagSet.StringVar(&params.SourceID, "source", "notify", "source id")
			flagSet.StringVar(&params.Label, "label", "", "source label")
			flagSet.Uint32Var(&params.Count, "count", 0, "source count")
			flagSet.StringVar(&params.Text, "text", "", "source text, shown when there is no count")
			flagSet.StringVar(&params.Title, "title", "", "post a message with this title instead of a source")
			flagSet.StringVar(&params.Body, "body", "", "message body")
			flagSet.BoolVar(&params.Reply, "reply", false, "give the message an inline reply action")
			flagSet.BoolVar(&params.Attention, "attention", true, "draw the user's attention")
			flagSet.DurationVar(&params.Wait, "wait", 0, "give up after this long (0 waits until interrupted)")
			flagSet.BoolVarP(&params.Verbose, "verbose", "v", false, "log protocol activity to stderr")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if params.DesktopID == "" {
				return fmt.Errorf("--app is required")
			}
			hubSocket, err := resolveSocketPath(params.SocketPath)
			if err != nil {
				return err
			}
			result, err := runNotify(ctx, params, hubSocket)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(out, result); !done {
				printNotifyResult(out, result)
			} else if err != nil {
				return err
			}
			switch result.Outcome {
			case "dismissed":
				return &cli.ExitError{Code: 2}
			case "expired":
				return &cli.ExitError{Code: 3}
			}
			return nil
		},
	}
}

// runNotify serves a one-item application until the item is activated
// or dismissed, ctx ends, or params.Wait expires.
func runNotify(ctx context.Context, params notifyParams, hubSocket string) (notifyResult, error) {
	level := slog.LevelWarn
	if params.Verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(level)

	socketDir := filepath.Dir(hubSocket)
	if err := os.MkdirAll(socketDir, 0o700); err != nil {
		return notifyResult{}, fmt.Errorf("creating socket directory: %w", err)
	}
	socketPath := filepath.Join(socketDir, "notify-"+uuid.NewString()+".sock")

	app, err := messagingmenu.New(messagingmenu.Config{
		DesktopID:     params.DesktopID,
		SocketPath:    socketPath,
		HubSocketPath: hubSocket,
		Logger:        logger,
	})
	if err != nil {
		return notifyResult{}, err
	}

	outcomes := make(chan notifyResult, 1)
	report := func(result notifyResult) {
		select {
		case outcomes <- result:
		default:
		}
	}
	app.OnActivateSource(func(sourceID string) {
		report(notifyResult{Outcome: "activated", SourceID: sourceID})
	})
	app.OnActivateMessage(func(messageID, action string, parameter any) {
		report(notifyResult{Outcome: "activated", MessageID: messageID, Action: action, Parameter: parameter})
	})

	messageID := ""
	if params.Title != "" {
		messageID = uuid.NewString()
	}
	app.OnDismiss(func(sourceIDs, messageIDs []string) {
		switch {
		case messageID != "" && slices.Contains(messageIDs, messageID):
			report(notifyResult{Outcome: "dismissed", MessageID: messageID})
		case messageID == "" && slices.Contains(sourceIDs, params.SourceID):
			report(notifyResult{Outcome: "dismissed", SourceID: params.SourceID})
		}
	})

	if messageID != "" {
		message := schema.Message{
			ID:             messageID,
			Title:          params.Title,
			Body:           params.Body,
			Time:           time.Now().UnixNano(),
			DrawsAttention: params.Attention,
		}
		if params.Reply {
			message.Actions = []schema.ActionSpec{{Name: "reply", Label: "Reply", ParameterType: "s"}}
		}
		if err := app.AddMessage(message); err != nil {
			return notifyResult{}, err
		}
	} else {
		if err := app.AppendSource(schema.Source{
			ID:             params.SourceID,
			Label:          params.Label,
			Count:          params.Count,
			Text:           params.Text,
			DrawsAttention: params.Attention,
		}); err != nil {
			return notifyResult{}, err
		}
	}

	serveCtx, stopServing := context.WithCancel(ctx)
	serveDone := make(chan error, 1)
	go func() { serveDone <- app.Serve(serveCtx) }()
	defer func() {
		stopServing()
		<-serveDone
	}()

	if err := waitForSocket(ctx, socketPath, serveDone); err != nil {
		return notifyResult{}, err
	}

	callCtx, cancel := params.callContext(ctx)
	appID, err := app.Register(callCtx)
	cancel()
	if err != nil {
		return notifyResult{}, err
	}
	logger.Debug("waiting for the user", "app", appID)

	defer func() {
		// Unregister outlives ctx so an interrupted notify still
		// cleans up after itself.
		callCtx, cancel := params.callContext(context.Background())
		defer cancel()
		if err := app.Unregister(callCtx); err != nil {
			logger.Warn("unregister failed", "error", err)
		}
	}()

	var expired <-chan time.Time
	if params.Wait > 0 {
		timer := time.NewTimer(params.Wait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case result := <-outcomes:
		return result, nil
	case <-expired:
		return notifyResult{Outcome: "expired"}, nil
	case <-ctx.Done():
		return notifyResult{Outcome: "interrupted"}, nil
	case err := <-serveDone:
		if err == nil {
			err = errors.New("application socket closed")
		}
		return notifyResult{}, err
	}
}

// waitForSocket polls until Serve has bound path.
func waitForSocket(ctx context.Context, path string, serveDone <-chan error) error {
	deadline := time.Now().Add(socketWaitTimeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("application socket %s did not appear", path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serveDone:
			return fmt.Errorf("serving %s: %w", path, err)
		case <-ticker.C:
		}
	}
}

func printNotifyResult(out io.Writer, result notifyResult) {
	item := result.SourceID
	if result.MessageID != "" {
		item = "message " + result.MessageID
	} else if item != "" {
		item = "source " + item
	}

	switch result.Outcome {
	case "activated":
		if result.Action != "" {
			fmt.Fprintf(out, "activated %s action %s", item, result.Action)
			if result.Parameter != nil {
				fmt.Fprintf(out, ": %v", result.Parameter)
			}
			fmt.Fprintln(out)
			return
		}
		fmt.Fprintf(out, "activated %s\n", item)
	case "dismissed":
		fmt.Fprintf(out, "dismissed %s\n", item)
	case "expired":
		fmt.Fprintln(out, "no response before --wait expired")
	default:
		fmt.Fprintln(out, result.Outcome)
	}
}
