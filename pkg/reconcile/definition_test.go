// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefinitionAccessors(t *testing.T) {
	var d Definition
	raw := `{"name":"x","flag":true,"cmds":["a","b"],"vars":{"A":1,"B":"two","C":false},"bad":[1]}`
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatal(err)
	}
	if s, err := d.String("name"); err != nil || s != "x" {
		t.Errorf("String(name) = %q, %v", s, err)
	}
	if s, err := d.String("missing"); err != nil || s != "" {
		t.Errorf("String(missing) = %q, %v", s, err)
	}
	if b, err := d.Bool("missing", true); err != nil || !b {
		t.Errorf("Bool(missing, true) = %t, %v", b, err)
	}
	if b, err := d.Bool("flag", false); err != nil || !b {
		t.Errorf("Bool(flag) = %t, %v", b, err)
	}
	cmds, err := d.StringList("cmds")
	if err != nil {
		t.Fatalf("StringList(cmds) error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, cmds); diff != "" {
		t.Errorf("StringList(cmds) mismatch (-want +got):\n%s", diff)
	}
	vars, err := d.StringMap("vars")
	if err != nil {
		t.Fatalf("StringMap(vars) error = %v", err)
	}
	if diff := cmp.Diff(map[string]string{"A": "1", "B": "two", "C": "false"}, vars); diff != "" {
		t.Errorf("StringMap(vars) mismatch (-want +got):\n%s", diff)
	}
	if _, err := d.StringList("bad"); err == nil {
		t.Error("StringList(bad) succeeded, want error")
	}
	if _, err := d.String("flag"); err == nil {
		t.Error("String(flag) succeeded, want error")
	}
}

func TestCanonicalJSON(t *testing.T) {
	a := Definition{"b": 1, "a": map[string]string{"y": "2", "x": "1"}}
	b := Definition{"a": map[string]any{"x": "1", "y": "2"}, "b": float64(1)}
	ja, err := a.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	jb, err := b.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(ja) != string(jb) {
		t.Errorf("CanonicalJSON differ: %s != %s", ja, jb)
	}
	if want := `{"a":{"x":"1","y":"2"},"b":1}`; string(ja) != want {
		t.Errorf("CanonicalJSON() = %s, want %s", ja, want)
	}
}

func TestWithout(t *testing.T) {
	d := Definition{"a": 1, "b": 2}
	got := d.Without("a")
	if diff := cmp.Diff(Definition{"b": 2}, got); diff != "" {
		t.Errorf("Without() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := d["a"]; !ok {
		t.Error("Without() mutated receiver")
	}
}
