// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bureau-foundation/inbox/lib/schema"
)

// ExecLauncher starts applications by running their Exec lines. The
// launched process is detached from the caller: Launch returns once it
// has started, and a goroutine reaps it.
type ExecLauncher struct {
	Logger *slog.Logger
}

// Launch runs the application's main Exec line.
func (l *ExecLauncher) Launch(descriptor *schema.Descriptor) error {
	return l.run(descriptor.DesktopID, descriptor.Exec)
}

// LaunchAction runs the Exec line of the named desktop action.
func (l *ExecLauncher) LaunchAction(descriptor *schema.Descriptor, action string) error {
	desktopAction, ok := descriptor.Action(action)
	if !ok {
		return fmt.Errorf("%s has no action %q", descriptor.DesktopID, action)
	}
	return l.run(descriptor.DesktopID, desktopAction.Exec)
}

func (l *ExecLauncher) run(desktopID, execLine string) error {
	argv, err := SplitExec(execLine)
	if err != nil {
		return fmt.Errorf("%s: %w", desktopID, err)
	}

	command := exec.Command(argv[0], argv[1:]...)
	if err := command.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", desktopID, err)
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("launched application", "desktop_id", desktopID, "pid", command.Process.Pid)
	go func() {
		if err := command.Wait(); err != nil {
			logger.Debug("launched application exited", "desktop_id", desktopID, "error", err)
		}
	}()
	return nil
}

// SplitExec splits an Exec value into argv. Field codes (%f, %U, %i
// and so on) are removed since nothing is ever passed to a launched
// application, and %% becomes a literal percent sign.
func SplitExec(execLine string) ([]string, error) {
	words, err := shellquote.Split(execLine)
	if err != nil {
		return nil, fmt.Errorf("parsing Exec %q: %w", execLine, err)
	}

	var argv []string
	for _, word := range words {
		if isFieldCode(word) {
			continue
		}
		if word = stripFieldCodes(word); word != "" {
			argv = append(argv, word)
		}
	}
	if len(argv) == 0 {
		return nil, errors.New("empty Exec line")
	}
	return argv, nil
}

func isFieldCode(word string) bool {
	return len(word) == 2 && word[0] == '%' && word[1] != '%'
}

func stripFieldCodes(word string) string {
	if !strings.Contains(word, "%") {
		return word
	}
	var builder strings.Builder
	for i := 0; i < len(word); i++ {
		if word[i] != '%' || i == len(word)-1 {
			builder.WriteByte(word[i])
			continue
		}
		i++
		if word[i] == '%' {
			builder.WriteByte('%')
		}
	}
	return builder.String()
}
