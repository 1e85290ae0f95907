// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements named, invocable commands and the
// dotted namespace that composes them.
//
// A [Capability] is a command with an optional typed parameter and
// optional observable state. A [Map] is a flat, insertion-ordered set
// of capabilities. A [Namespace] composes maps and nested namespaces
// under string prefixes and resolves dotted paths such as
// "thunderbird.src.inbox" to the map that owns the final segment:
//
//	root := capability.NewNamespace()
//	app := capability.NewNamespace()
//	sources := capability.NewMap(logger)
//	app.Insert("src", sources)
//	root.Insert("thunderbird", app)
//	root.Invoke("thunderbird.src.inbox", true)
//
// Resolution is greedy: at each level the longest registered prefix
// wins and the remainder is handed to that child. Inserting at an
// occupied prefix replaces the child outright, so any path that
// resolved into the old child simply stops resolving. Callers treat
// [ErrNotFound] as a benign miss, since a user can always invoke an
// item a moment after it was retracted.
//
// Nothing in this package is safe for concurrent use. The owner
// serializes access.
package capability
