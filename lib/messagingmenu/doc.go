// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messagingmenu is the library applications use to appear in
// the inbox.
//
// An [App] publishes two kinds of items. Sources are persistent,
// labelled entries such as a mailbox, each with a count, a time or a
// short text. Messages are individual notifications with a title, a
// body and optional actions. The App serves the application protocol
// on its own Unix socket and tells the hub about that socket with
// [App.Register]. The hub then connects back: it lists the current
// items, subscribes to changes, and forwards the user's activations
// and dismissals.
//
// Activating or dismissing an item removes it, the same as on the hub
// side. The application learns about activations through
// [App.OnActivateSource] and [App.OnActivateMessage].
//
// Typical use:
//
//	app, err := messagingmenu.New(messagingmenu.Config{
//		DesktopID:     "chat.desktop",
//		SocketPath:    filepath.Join(runtimeDir, "chat-inbox.sock"),
//		HubSocketPath: hubSocket,
//	})
//	app.OnActivateSource(func(sourceID string) { openConversation(sourceID) })
//	go app.Serve(ctx)
//	app.Register(ctx)
//	app.AppendSource(schema.Source{ID: "inbox", Label: "Inbox", Count: 3})
package messagingmenu
