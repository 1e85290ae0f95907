// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/inbox/lib/schema"
)

// ErrNotFound is wrapped by every provider error for an application
// that is not installed.
var ErrNotFound = errors.New("application not installed")

// Provider resolves a desktop identity to a descriptor.
type Provider interface {
	Resolve(identity string) (*schema.Descriptor, error)
}

// Chain consults each provider in order and returns the first
// descriptor found. Errors other than [ErrNotFound] stop the search.
type Chain []Provider

func (c Chain) Resolve(identity string) (*schema.Descriptor, error) {
	for _, provider := range c {
		descriptor, err := provider.Resolve(identity)
		if err == nil {
			return descriptor, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", identity, ErrNotFound)
}

// Static serves descriptors from memory, keyed by desktop id.
type Static map[string]*schema.Descriptor

func (s Static) Resolve(identity string) (*schema.Descriptor, error) {
	if descriptor, ok := s[desktopID(identity)]; ok {
		return descriptor, nil
	}
	return nil, fmt.Errorf("%s: %w", identity, ErrNotFound)
}

// desktopID normalizes an identity to its "<name>.desktop" form.
func desktopID(identity string) string {
	if strings.HasSuffix(identity, ".desktop") {
		return identity
	}
	return identity + ".desktop"
}

// validIdentity rejects identities that could escape a search
// directory.
func validIdentity(identity string) error {
	if identity == "" || identity == ".desktop" {
		return errors.New("empty desktop identity")
	}
	if strings.ContainsAny(identity, "/\x00") || strings.HasPrefix(identity, ".") {
		return fmt.Errorf("invalid desktop identity %q", identity)
	}
	return nil
}
