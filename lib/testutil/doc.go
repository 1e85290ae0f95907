// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for inbox packages.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes. [RequireReceive] and
// [RequireClosed] wrap the select-with-timeout pattern so tests never
// hang on a missing event. [UniqueID] hands out distinct identifiers
// for sources, messages and applications shared between subtests.
//
// Helpers call t.Fatalf on failure.
package testutil
