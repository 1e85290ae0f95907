// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"net"

	"golang.org/x/sys/unix"
)

// Peer is the kernel-reported identity of the process on the other end
// of a Unix socket connection.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

type peerKey struct{}

// WithPeer returns a context carrying peer.
func WithPeer(ctx context.Context, peer Peer) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFromContext returns the peer attached by the socket server.
func PeerFromContext(ctx context.Context) (Peer, bool) {
	peer, ok := ctx.Value(peerKey{}).(Peer)
	return peer, ok
}

// peerCredentials reads SO_PEERCRED from a Unix connection.
func peerCredentials(conn net.Conn) (Peer, bool) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Peer{}, false
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return Peer{}, false
	}

	var credentials *unix.Ucred
	var credentialsErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credentialsErr != nil {
		return Peer{}, false
	}
	return Peer{PID: credentials.Pid, UID: credentials.Uid, GID: credentials.Gid}, true
}
