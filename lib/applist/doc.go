// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package applist is the hub's application registry. It tracks every
// known application, the sources and messages each running application
// publishes, and exposes all of it as one capability namespace
// (lib/capability) plus an event stream.
//
// Each application occupies a subtree of the root namespace under its
// canonical id:
//
//	<app>.launch                       start the application
//	<app>.<action>                     static desktop action
//	<app>.src.<source>                 activate (true) or dismiss (false)
//	<app>.msg.<message>                activate (true) or dismiss (false)
//	<app>.msg-actions.<message>.<name> message sub-action
//
// plus two unprefixed root commands: "messages" (stateful indicator
// state) and "remove-all".
//
// Applications connect asynchronously through a [Transport]. A session
// is established by [Registry.SetRemote]: the registry opens a channel,
// subscribes to the application's changes, lists its existing sources
// and messages, replays changes that arrived during the listing, and
// watches for the process going away. When a session
// ends for any reason, the application's source, message, and
// sub-action groups are replaced with fresh empty ones, so a command
// path resolved before the teardown misses afterwards instead of
// reaching a stale item.
//
// All registry state is guarded by one mutex. Remote events, session
// completions, and public calls all serialize on it. Event listeners
// and state observers run while it is held and must not call back into
// the registry.
package applist
