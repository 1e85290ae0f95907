// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the inbox's standard CBOR encoding configuration.
//
// Every socket exchange in the inbox is CBOR: requests from client
// applications to the hub, requests from the hub back to each
// application, presentation-layer queries, and the frames written on
// subscribe streams. JSON appears only at the edges (CLI --json output
// and application manifests on disk).
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that only ever crosses a socket. A `json`
// tag marks a type that is also printed by the CLI; fxamacker/cbor
// falls back to `json` tags when `cbor` tags are absent. Never put both
// tags on one field.
package codec
