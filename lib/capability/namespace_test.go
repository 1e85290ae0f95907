// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"errors"
	"reflect"
	"testing"
)

// appTree builds root -> "chat" -> {local: launch, "src": sources,
// "msg-actions": per-message namespace}.
func appTree(t *testing.T) (root *Namespace, sources *Map, messageActions *Namespace) {
	t.Helper()
	root = NewNamespace()
	rootLocal := NewMap(nil)
	rootLocal.Insert(New("remove-all", NoParameter, nil))
	root.Insert("", rootLocal)

	app := NewNamespace()
	static := NewMap(nil)
	static.Insert(New("launch", NoParameter, nil))
	app.Insert("", static)

	sources = NewMap(nil)
	sources.Insert(NewStateful("inbox", Boolean, uint32(3), nil))
	app.Insert("src", sources)

	messageActions = NewNamespace()
	app.Insert("msg-actions", messageActions)

	root.Insert("chat", app)
	return root, sources, messageActions
}

func TestNamespaceListAll(t *testing.T) {
	root, _, messageActions := appTree(t)
	reply := NewMap(nil)
	reply.Insert(New("reply", String, nil))
	messageActions.Insert("m1", reply)

	want := []string{
		"remove-all",
		"chat.launch",
		"chat.src.inbox",
		"chat.msg-actions.m1.reply",
	}
	if got := root.ListAll(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListAll() = %v, want %v", got, want)
	}
}

func TestNamespaceResolve(t *testing.T) {
	root, sources, messageActions := appTree(t)
	dotted := NewMap(nil)
	dotted.Insert(New("reply", String, nil))
	messageActions.Insert("thread.42", dotted)

	tests := []struct {
		path      string
		wantOwner *Map
		wantName  string
	}{
		{"chat.src.inbox", sources, "inbox"},
		{"chat.src.folder.work", sources, "folder.work"},
		{"chat.msg-actions.thread.42.reply", dotted, "reply"},
	}
	for _, test := range tests {
		owner, name, ok := root.Resolve(test.path)
		if !ok || owner != test.wantOwner || name != test.wantName {
			t.Errorf("Resolve(%q) = (%p, %q, %v), want (%p, %q, true)",
				test.path, owner, name, ok, test.wantOwner, test.wantName)
		}
	}

	owner, name, ok := root.Resolve("remove-all")
	if !ok || name != "remove-all" || !owner.Has("remove-all") {
		t.Errorf("unprefixed path did not resolve to the local map")
	}
}

func TestNamespaceResolveWithoutLocalMap(t *testing.T) {
	namespace := NewNamespace()
	if _, _, ok := namespace.Resolve("anything"); ok {
		t.Error("Resolve succeeded with no local map and no children")
	}
	if err := namespace.Invoke("anything", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Invoke = %v, want ErrNotFound", err)
	}
}

func TestNamespaceReplacementMakesStalePathsMiss(t *testing.T) {
	root, _, _ := appTree(t)
	app, _ := root.Lookup("chat")

	app.(*Namespace).Insert("src", NewMap(nil))

	if err := root.Invoke("chat.src.inbox", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Invoke on replaced map = %v, want ErrNotFound", err)
	}
	want := []string{"remove-all", "chat.launch"}
	if got := root.ListAll(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListAll() after replacement = %v, want %v", got, want)
	}
}

func TestNamespaceReplacementKeepsPosition(t *testing.T) {
	namespace := NewNamespace()
	for _, prefix := range []string{"a", "b", "c"} {
		m := NewMap(nil)
		m.Insert(New("x", NoParameter, nil))
		namespace.Insert(prefix, m)
	}
	replacement := NewMap(nil)
	replacement.Insert(New("y", NoParameter, nil))
	namespace.Insert("a", replacement)

	want := []string{"a.y", "b.x", "c.x"}
	if got := namespace.ListAll(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListAll() = %v, want %v", got, want)
	}
}

func TestNamespaceObserverPrefixesAndDetaches(t *testing.T) {
	root, sources, _ := appTree(t)
	var observed []string
	root.Observe(func(name string, state any) {
		observed = append(observed, name)
	})

	if err := root.ChangeState("chat.src.inbox", uint32(4)); err != nil {
		t.Fatalf("ChangeState: %v", err)
	}

	app, _ := root.Lookup("chat")
	app.(*Namespace).Insert("src", NewMap(nil))

	// The detached map must not leak notifications into the tree.
	if err := sources.ChangeState("inbox", uint32(5)); err != nil {
		t.Fatalf("ChangeState on detached map: %v", err)
	}

	if want := []string{"chat.src.inbox"}; !reflect.DeepEqual(observed, want) {
		t.Errorf("observed %v, want %v", observed, want)
	}
}

func TestNamespaceRemove(t *testing.T) {
	root, _, _ := appTree(t)
	root.Remove("chat")
	root.Remove("chat")
	if got := root.ListAll(); !reflect.DeepEqual(got, []string{"remove-all"}) {
		t.Errorf("ListAll() after Remove = %v", got)
	}
	if _, ok := root.Describe("chat.launch"); ok {
		t.Error("Describe found a capability under a removed prefix")
	}
}

func TestNamespaceDescribeUsesFullPath(t *testing.T) {
	root, _, _ := appTree(t)
	info, ok := root.Describe("chat.src.inbox")
	if !ok {
		t.Fatal("Describe did not find chat.src.inbox")
	}
	want := Info{Name: "chat.src.inbox", ParameterType: Boolean, Stateful: true, State: uint32(3)}
	if !reflect.DeepEqual(info, want) {
		t.Errorf("Describe = %+v, want %+v", info, want)
	}
}

func TestNamespaceLocalMustBeMap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("inserting a namespace at the empty prefix did not panic")
		}
	}()
	NewNamespace().Insert("", NewNamespace())
}
