// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the CBOR-over-Unix-socket plumbing shared by
// the inbox hub and the applications that publish into it.
//
// Two interaction shapes run over the same socket:
//
//   - Request/response: the client writes one CBOR map carrying an
//     "action" field, the server replies with one [Response] envelope
//     and closes the connection.
//   - Stream: the client writes the same kind of request, the server
//     acknowledges with {ok: true} and then writes a sequence of
//     self-delimiting CBOR frames until either side goes away.
//
// [SocketServer] dispatches both. [ServiceClient] issues calls and
// opens streams.
//
// # Peer identity
//
// Every accepted connection's SO_PEERCRED credentials are attached to
// the handler context; [PeerFromContext] retrieves them. The socket's
// filesystem permissions are the access boundary. Credentials are used
// for logging and for tying a registration to the process behind it.
package service
