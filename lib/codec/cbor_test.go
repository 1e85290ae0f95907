// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleRequest struct {
	Action   string `cbor:"action"`
	SourceID string `cbor:"source_id,omitempty"`
	Count    uint32 `cbor:"count"`
}

func TestMarshalDeterministic(t *testing.T) {
	request := sampleRequest{Action: "activate-source", SourceID: "inbox", Count: 3}

	first, err := Marshal(request)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(request)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestMapKeysSorted(t *testing.T) {
	// Core Deterministic Encoding sorts map keys bytewise on their
	// encoded form, so insertion order must not leak into the output.
	first, err := Marshal(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(map[string]any{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("map encoding depends on insertion order: %x != %x", first, second)
	}
}

func TestUntypedMapsDecodeWithStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{
		"parameter": map[string]any{"reply": "on my way"},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	nested, ok := decoded["parameter"].(map[string]any)
	if !ok {
		t.Fatalf("nested value has type %T, want map[string]any", decoded["parameter"])
	}
	if nested["reply"] != "on my way" {
		t.Errorf("reply = %v, want %q", nested["reply"], "on my way")
	}
}

func TestStreamFramesAreSelfDelimiting(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	frames := []sampleRequest{
		{Action: "source-added", SourceID: "a", Count: 1},
		{Action: "source-removed", SourceID: "a"},
	}
	for _, frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range frames {
		var got sampleRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode frame %d: %v", i, err)
		}
		if got != want {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleRequest{Action: "dismiss"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"dismiss"`) {
		t.Errorf("diagnostic %q does not mention the action", diagnostic)
	}
}
