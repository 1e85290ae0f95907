// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/inbox/lib/schema"
)

const (
	groupEntry        = "Desktop Entry"
	groupActionPrefix = "Desktop Action "
)

// KeyfileProvider reads desktop entry files from Dirs, typically
// $XDG_DATA_HOME/applications followed by each
// $XDG_DATA_DIRS/applications. The first directory holding the entry
// wins.
type KeyfileProvider struct {
	Dirs []string
}

// Resolve finds and parses the desktop entry for identity. Entries
// that are hidden or are not of type Application are reported as not
// installed.
func (p *KeyfileProvider) Resolve(identity string) (*schema.Descriptor, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}
	id := desktopID(identity)

	for _, dir := range p.Dirs {
		for _, candidate := range candidatePaths(dir, id) {
			data, err := os.ReadFile(candidate)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", candidate, err)
			}
			descriptor, err := ParseEntry(id, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", candidate, err)
			}
			return descriptor, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", identity, ErrNotFound)
}

// candidatePaths lists where id may live under dir. A dash in the id
// may stand for a subdirectory separator: "kde-konsole.desktop" can be
// dir/kde/konsole.desktop.
func candidatePaths(dir, id string) []string {
	paths := []string{filepath.Join(dir, id)}
	prefix := ""
	rest := id
	for {
		index := strings.IndexByte(rest, '-')
		if index <= 0 {
			break
		}
		prefix = filepath.Join(prefix, rest[:index])
		rest = rest[index+1:]
		paths = append(paths, filepath.Join(dir, prefix, rest))
	}
	return paths
}

// ParseEntry parses a desktop entry file. Localized keys are ignored;
// the untranslated values are used.
func ParseEntry(id string, data []byte) (*schema.Descriptor, error) {
	groups, err := parseKeyfile(data)
	if err != nil {
		return nil, err
	}

	entry, ok := groups[groupEntry]
	if !ok {
		return nil, fmt.Errorf("missing [%s] group", groupEntry)
	}
	if kind := entry["Type"]; kind != "" && kind != "Application" {
		return nil, fmt.Errorf("%s: type %q is not an application: %w", id, kind, ErrNotFound)
	}
	if entry["Hidden"] == "true" {
		return nil, fmt.Errorf("%s: hidden: %w", id, ErrNotFound)
	}
	if entry["Name"] == "" {
		return nil, errors.New("missing Name key")
	}

	descriptor := &schema.Descriptor{
		DesktopID: id,
		Name:      entry["Name"],
		Icon:      entry["Icon"],
		Exec:      entry["Exec"],
	}
	for _, actionID := range splitList(entry["Actions"]) {
		group, ok := groups[groupActionPrefix+actionID]
		if !ok {
			continue
		}
		descriptor.Actions = append(descriptor.Actions, schema.DescriptorAction{
			ID:   actionID,
			Name: group["Name"],
			Exec: group["Exec"],
		})
	}
	return descriptor, nil
}

// parseKeyfile reads the group/key/value structure shared by desktop
// entries. Values are unescaped.
func parseKeyfile(data []byte) (map[string]map[string]string, error) {
	groups := make(map[string]map[string]string)
	var current map[string]string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("line %d: malformed group header", lineNumber)
			}
			name := line[1 : len(line)-1]
			if _, exists := groups[name]; exists {
				return nil, fmt.Errorf("line %d: duplicate group [%s]", lineNumber, name)
			}
			current = make(map[string]string)
			groups[name] = current
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: key outside of any group", lineNumber)
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected key=value", lineNumber)
		}
		key = strings.TrimSpace(key)
		if strings.Contains(key, "[") {
			// Localized variant.
			continue
		}
		current[key] = unescapeValue(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func unescapeValue(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var builder strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i == len(value)-1 {
			builder.WriteByte(value[i])
			continue
		}
		i++
		switch value[i] {
		case 's':
			builder.WriteByte(' ')
		case 'n':
			builder.WriteByte('\n')
		case 't':
			builder.WriteByte('\t')
		case 'r':
			builder.WriteByte('\r')
		case '\\':
			builder.WriteByte('\\')
		default:
			builder.WriteByte('\\')
			builder.WriteByte(value[i])
		}
	}
	return builder.String()
}

// splitList splits a semicolon-separated list value, dropping empty
// elements.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ";") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
