package styles

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRegistry_SubscribeAndInsert(t *testing.T) {
	reg := NewRegistry()

	var got []Artifact
	cancel := reg.Subscribe(ByClassPrefix("ace_"), func(a Artifact) {
		got = append(got, a)
	})
	defer cancel()

	reg.Insert(Artifact{ID: "theme.css", Class: "ace_editor", CSS: "x"})
	reg.Insert(Artifact{ID: "other.css", Class: "cm-editor", CSS: "y"})

	if len(got) != 1 || got[0].ID != "theme.css" {
		t.Fatalf("expected only the matching artifact, got %v", got)
	}
}

func TestRegistry_ReplaysExisting(t *testing.T) {
	reg := NewRegistry()
	reg.Insert(Artifact{ID: "early.css", Class: "ace_editor", CSS: "x"})

	var got []Artifact
	cancel := reg.Subscribe(ByClassPrefix("ace_"), func(a Artifact) {
		got = append(got, a)
	})
	defer cancel()

	if len(got) != 1 || got[0].ID != "early.css" {
		t.Fatalf("expected replay of existing artifact, got %v", got)
	}
}

func TestRegistry_InsertSameIDReplaces(t *testing.T) {
	reg := NewRegistry()

	var count int
	cancel := reg.Subscribe(nil, func(Artifact) { count++ })
	defer cancel()

	reg.Insert(Artifact{ID: "a.css", Class: "ace_editor", CSS: "v1"})
	reg.Insert(Artifact{ID: "a.css", Class: "ace_editor", CSS: "v2"})

	if reg.Len() != 1 {
		t.Fatalf("expected 1 artifact, got %d", reg.Len())
	}
	if count != 2 {
		t.Fatalf("expected notification for the rewrite, got %d", count)
	}
}

func TestRegistry_CancelIdempotent(t *testing.T) {
	reg := NewRegistry()

	var count int
	cancel := reg.Subscribe(nil, func(Artifact) { count++ })
	cancel()
	cancel()

	reg.Insert(Artifact{ID: "a.css"})
	if count != 0 {
		t.Fatal("cancelled subscriber should not be notified")
	}
}

func TestClassSignature(t *testing.T) {
	tests := []struct {
		css  string
		want string
	}{
		{"/* class: ace_editor */\n.x{}", "ace_editor"},
		{".ace_scroller { color: red }", ".ace_scroller"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := classSignature(tt.css); got != tt.want {
			t.Errorf("classSignature(%q) = %q, want %q", tt.css, got, tt.want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcher_AdoptsDroppedArtifacts(t *testing.T) {
	dir := t.TempDir()

	// One artifact already on disk before the watch starts.
	early := filepath.Join(dir, "early.css")
	if err := os.WriteFile(early, []byte("/* class: ace_editor */\nbody{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	w, err := Watch(dir, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	waitFor(t, func() bool { return reg.Len() == 1 })

	// The engine drops another one later; non-CSS files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "late.css"), []byte(".ace_line{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return reg.Len() == 2 })
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	w, err := Watch(t.TempDir(), NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	first := w.Close()
	second := w.Close() // no-op, no panic
	if second != first {
		t.Fatalf("second Close returned a different result: %v vs %v", second, first)
	}
}
