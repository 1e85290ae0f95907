// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package desktop resolves desktop identities ("chat.desktop") to
// application descriptors and launches applications.
//
// Two sources of descriptors are supported:
//
//   - [KeyfileProvider] reads freedesktop.org desktop entry files from
//     a list of application directories, searched in order.
//   - [ManifestProvider] reads JSONC manifests (JSON with comments and
//     trailing commas) from a single directory, for applications that
//     ship no desktop entry.
//
// [Chain] consults several providers in order. A provider reports an
// uninstalled application with an error wrapping [ErrNotFound].
//
// [ExecLauncher] runs an application's Exec line, or one of its
// desktop actions, with field codes removed.
package desktop
