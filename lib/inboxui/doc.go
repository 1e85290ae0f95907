// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inboxui is an interactive terminal view of the inbox hub,
// built on bubbletea.
//
// The view is driven by frames from the hub's subscribe stream. A
// [Mirror] folds those frames into a local copy of every application
// and the indicator state; [Model] renders the mirror as a list of
// applications with their sources and messages and sends user actions
// back through a [Commander].
package inboxui
