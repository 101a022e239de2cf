//go:build !no_automation

package automation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManagerCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	m, err := NewManager(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("scripts dir not created: %v", err)
	}
	scripts, err := m.List()
	if err != nil || len(scripts) != 0 {
		t.Errorf("List() = %v, %v", scripts, err)
	}
}

func TestManagerList(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b_night.lua", "-- {\"name\": \"Night\", \"enabled\": false}\ncurtain.close(1)\n")
	writeScript(t, dir, "a_plain.lua", "\n\ncurtain.log(\"hi\")\n")
	writeScript(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.lua"), 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 2 {
		t.Fatalf("got %d scripts, want 2", len(scripts))
	}

	plain, night := scripts[0], scripts[1]
	if plain.ID != "a_plain" || plain.Meta.Name != "a_plain" || !plain.Meta.Enabled {
		t.Errorf("plain = %+v", plain)
	}
	if plain.LuaCode != "curtain.log(\"hi\")\n" {
		t.Errorf("plain code = %q", plain.LuaCode)
	}
	if night.ID != "b_night" || night.Meta.Name != "Night" || night.Meta.Enabled {
		t.Errorf("night = %+v", night)
	}
	if night.LuaCode != "curtain.close(1)\n" {
		t.Errorf("night code = %q", night.LuaCode)
	}
}

func TestManagerGet(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "evening.lua", "-- {\"description\": \"close at dusk\"}\ncurtain.close(2)")
	m, _ := NewManager(dir, testLogger())

	s, err := m.Get("evening")
	if err != nil {
		t.Fatal(err)
	}
	if s.Meta.Name != "evening" || !s.Meta.Enabled || s.Meta.Description != "close at dusk" {
		t.Errorf("meta = %+v", s.Meta)
	}

	for _, id := range []string{"", "..", "../etc/passwd", "a/b"} {
		if _, err := m.Get(id); err == nil {
			t.Errorf("Get(%q) should fail", id)
		}
	}
	if _, err := m.Get("missing"); err == nil {
		t.Error("Get(missing) should fail")
	}
}
