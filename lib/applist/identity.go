// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package applist

import (
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/inbox/lib/capability"
)

const desktopSuffix = ".desktop"

// CanonicalID converts a desktop identity into the id an application
// is registered under: a trailing ".desktop" is stripped and every
// "." is replaced with "_" so the id is a single namespace segment.
// CanonicalID is idempotent.
func CanonicalID(identity string) string {
	identity = strings.TrimSuffix(identity, desktopSuffix)
	return strings.ReplaceAll(identity, capability.Delimiter, "_")
}

// symbolicIcon returns the symbolic variant of a themed icon name.
// Icons given as file paths have no symbolic variant.
func symbolicIcon(icon string) string {
	if icon == "" || filepath.IsAbs(icon) || strings.ContainsRune(icon, filepath.Separator) {
		return ""
	}
	if strings.HasSuffix(icon, "-symbolic") {
		return icon
	}
	return icon + "-symbolic"
}
