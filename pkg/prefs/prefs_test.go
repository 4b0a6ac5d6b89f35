package prefs

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadFrom_NonExistent(t *testing.T) {
	p, err := LoadFrom("/nonexistent/prefs.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if len(p.Pinned) != 0 || len(p.Recents) != 0 {
		t.Errorf("expected empty prefs, got %+v", p)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	p := Prefs{
		Pinned:  []string{"acme/top-50"},
		Recents: []string{"acme", "globex/onsite"},
	}
	if err := SaveTo(p, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load after save failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, p) {
		t.Errorf("round trip changed prefs: %+v != %+v", loaded, p)
	}
}

func TestTouchMovesToFront(t *testing.T) {
	p := Prefs{Recents: []string{"a", "b", "c"}}

	p.Touch("c")
	if want := []string{"c", "a", "b"}; !reflect.DeepEqual(p.Recents, want) {
		t.Errorf("Recents = %v, want %v", p.Recents, want)
	}

	p.Touch("new")
	if want := []string{"new", "c", "a", "b"}; !reflect.DeepEqual(p.Recents, want) {
		t.Errorf("Recents = %v, want %v", p.Recents, want)
	}
}

func TestTouchBoundsRecents(t *testing.T) {
	var p Prefs
	for i := 0; i < MaxRecents*2; i++ {
		p.Touch(fmt.Sprintf("scope-%d", i))
	}
	if len(p.Recents) != MaxRecents {
		t.Errorf("got %d recents, want %d", len(p.Recents), MaxRecents)
	}
	if p.Recents[0] != fmt.Sprintf("scope-%d", MaxRecents*2-1) {
		t.Errorf("newest entry should lead, got %q", p.Recents[0])
	}
}

func TestPinUnpin(t *testing.T) {
	var p Prefs

	p.Pin("acme")
	p.Pin("acme")
	if len(p.Pinned) != 1 {
		t.Errorf("double pin produced %v", p.Pinned)
	}
	if !p.IsPinned("acme") {
		t.Error("expected acme pinned")
	}

	p.Unpin("acme")
	if p.IsPinned("acme") {
		t.Error("expected acme unpinned")
	}
	p.Unpin("never-pinned")
}

func TestLoadTrimsOversizedRecents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	var p Prefs
	for i := 0; i < MaxRecents+5; i++ {
		p.Recents = append(p.Recents, fmt.Sprintf("scope-%d", i))
	}
	if err := SaveTo(p, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Recents) != MaxRecents {
		t.Errorf("got %d recents after load, want %d", len(loaded.Recents), MaxRecents)
	}
}
