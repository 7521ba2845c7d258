package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestInitialWalkEmitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")
	writeFile(t, dir, "b.txt", "world")

	cfg := DefaultConfig(dir)
	cfg.EnableWatcher = false
	gen := genstate.New()
	events := make(chan model.FileSyncEvent, 16)
	status := make(chan model.StatusUpdate, 16)
	s := New(cfg, gen, events, status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-events:
			seen[ev.FA.Path] = true
		case <-deadline:
			t.Fatalf("timed out waiting for 2 events, saw %d", len(seen))
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil on cancellation", err)
	}
}

func TestRunReturnsErrorForMissingRoot(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "does-not-exist"))
	cfg.MaxWalkRetries = 1
	gen := genstate.New()
	events := make(chan model.FileSyncEvent, 4)
	status := make(chan model.StatusUpdate, 4)
	s := New(cfg, gen, events, status)

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing root, got nil")
	}
}

func TestWalkRespectsIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "vendor"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "keep.txt", "keep")
	writeFile(t, filepath.Join(dir, "vendor"), "drop.txt", "drop")

	cfg := DefaultConfig(dir)
	cfg.EnableWatcher = false
	cfg.IgnorePatterns = []string{"vendor/**"}
	gen := genstate.New()
	events := make(chan model.FileSyncEvent, 16)
	status := make(chan model.StatusUpdate, 16)
	s := New(cfg, gen, events, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case ev := <-events:
		if filepath.Base(ev.FA.Path) != "keep.txt" {
			t.Errorf("expected only keep.txt to be emitted, got %s", ev.FA.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for keep.txt")
	}

	select {
	case ev := <-events:
		t.Errorf("expected no further events, got %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
