// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-inbox is the command-line client of the inbox hub.
//
// It talks to bureau-inbox-service over the hub socket (--socket,
// BUREAU_INBOX_SOCKET, or the socket named by the hub configuration):
//
//	status        hub health summary
//	apps [ID]     registered applications and their items
//	commands      the command namespace, optionally filtered by prefix
//	describe      one command's parameter type and state
//	invoke        run a command, parsing the value by its parameter type
//	dismiss-all   clear every source and message
//	watch         print the subscribe stream
//	browse        interactive messaging menu
//	notify        register a throwaway application and post a source
//	              or message, waiting for the user to activate it
//	version       build information
package main
