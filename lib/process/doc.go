// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the one raw-stderr path inbox binaries are
// allowed: reporting a fatal error from main() before (or instead of)
// the structured logger.
package process
