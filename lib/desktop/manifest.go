// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/inbox/lib/schema"
)

// ManifestProvider reads "<name>.jsonc" manifests from Dir, where name
// is the desktop identity without its ".desktop" suffix. A manifest is
// a JSON-encoded [schema.Descriptor], extended with // line comments,
// /* block comments */, and trailing commas:
//
//	{
//	  // Shown in the messaging menu.
//	  "name": "Chat",
//	  "icon": "chat",
//	  "exec": "chat --minimized",
//	  "actions": [
//	    {"id": "compose", "name": "Compose", "exec": "chat --compose"},
//	  ],
//	}
type ManifestProvider struct {
	Dir string
}

func (p *ManifestProvider) Resolve(identity string) (*schema.Descriptor, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}
	id := desktopID(identity)
	path := filepath.Join(p.Dir, strings.TrimSuffix(id, ".desktop")+".jsonc")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", identity, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	descriptor, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if descriptor.DesktopID == "" {
		descriptor.DesktopID = id
	}
	return descriptor, nil
}

// ParseManifest strips JSONC comments and trailing commas from data
// and decodes the descriptor.
func ParseManifest(data []byte) (*schema.Descriptor, error) {
	var descriptor schema.Descriptor
	if err := json.Unmarshal(jsonc.ToJSON(data), &descriptor); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if descriptor.Name == "" {
		return nil, errors.New("manifest has no name")
	}
	for index, action := range descriptor.Actions {
		if action.ID == "" {
			return nil, fmt.Errorf("action %d has no id", index)
		}
	}
	return &descriptor, nil
}
