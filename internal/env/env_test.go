package env

import (
	"strings"
	"testing"
)

func toMap(kvs []string) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func TestMergePrecedence(t *testing.T) {
	e := New()
	e.base = map[string]string{"A": "os", "B": "os", "C": "os"}
	e.Set("B", "global")
	e.Set("D", "global")

	got := toMap(e.Merge([]string{"C=proc", "E=proc"}))
	want := map[string]string{"A": "os", "B": "global", "C": "proc", "D": "global", "E": "proc"}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q (all: %v)", k, got[k], v, got)
		}
	}
}

func TestMergeExpansion(t *testing.T) {
	e := New()
	e.base = map[string]string{"HOME": "/home/u"}
	got := toMap(e.Merge([]string{"DATA=${HOME}/data"}))
	if got["DATA"] != "/home/u/data" {
		t.Fatalf("DATA = %q", got["DATA"])
	}
}

func TestFromOS(t *testing.T) {
	t.Setenv("SIDEKICK_TEST_VAR", "present")
	e := New()
	e.FromOS()
	got := toMap(e.Merge(nil))
	if got["SIDEKICK_TEST_VAR"] != "present" {
		t.Fatal("OS env not picked up as base")
	}
}
