// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework of the bureau-inbox CLI.
//
// [Command] is a named command with optional nested subcommands, a
// lazily built [pflag.FlagSet], and a Run function. [Command.Execute]
// routes arguments through the tree, parses flags, and prints help.
// Unknown commands and flags get a "did you mean" suggestion when an
// edit distance of at most 3 finds a close match.
//
// The package also carries the pieces every command shares: the
// --json output mode ([JSONOutput]), the logger ([NewCommandLogger]),
// and [ExitError] for commands whose non-zero exit is an answer rather
// than a failure.
package cli
