// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"testing"

	"github.com/bureau-foundation/inbox/lib/codec"
)

func TestDescriptorAction(t *testing.T) {
	descriptor := Descriptor{
		DesktopID: "chat.desktop",
		Actions: []DescriptorAction{
			{ID: "compose", Name: "Compose", Exec: "chat --compose"},
			{ID: "new-window"},
		},
	}
	action, ok := descriptor.Action("compose")
	if !ok || action.Exec != "chat --compose" {
		t.Errorf("Action(compose) = %+v, %v", action, ok)
	}
	if _, ok := descriptor.Action("missing"); ok {
		t.Error("Action(missing) found an action")
	}
}

func TestSourceState(t *testing.T) {
	source := Source{ID: "inbox", Label: "Inbox", Icon: "mail", Count: 3, Time: 42, Text: "new", DrawsAttention: true}
	want := SourceState{Count: 3, Time: 42, Text: "new", DrawsAttention: true}
	if got := source.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

// Peers that are not Go decode frames by their wire keys.
func TestFrameWireKeys(t *testing.T) {
	data, err := codec.Marshal(AppFrame{
		Type:   AppFrameSourceAdded,
		Source: &Source{ID: "inbox", Count: 1},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["type"] != "source_added" {
		t.Errorf("type = %v", decoded["type"])
	}
	if _, ok := decoded["message"]; ok {
		t.Error("empty message was encoded")
	}
	source, ok := decoded["source"].(map[string]any)
	if !ok || source["id"] != "inbox" || source["count"] != uint64(1) {
		t.Errorf("source = %#v", decoded["source"])
	}
	if _, ok := source["draws_attention"]; ok {
		t.Error("false draws_attention was encoded")
	}
}
