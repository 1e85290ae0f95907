// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the inbox
// hub.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_INBOX_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, production) that override base values when
// [Config].Environment matches. Production defaults log at info level
// and serve metrics on 127.0.0.1:9464.
//
// Variable expansion is performed on path fields after loading:
// ${XDG_RUNTIME_DIR}, ${HOME}, and ${VAR:-default} patterns are
// expanded from the environment.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Remote, Metrics, Log, Applications
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other inbox packages.
package config
