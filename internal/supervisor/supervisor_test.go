package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arashk/dirdex/internal/indexpool"
	"github.com/arashk/dirdex/internal/tokenize"
	"github.com/arashk/dirdex/internal/watch"
)

func testConfig(t *testing.T, root string) Config {
	t.Helper()
	wc := watch.DefaultConfig(root)
	wc.MaxWalkRetries = 1
	return Config{
		Watch:     wc,
		IndexPool: indexpool.DefaultConfig(tokenize.Word),
		Mode:      tokenize.Word,
	}
}

func TestStatusIsBrokenBeforeFirstGeneration(t *testing.T) {
	sup := New(testConfig(t, t.TempDir()))
	ctx := context.Background()
	// No Run() call yet: Submit should report the request lost and Status
	// should fall back to broken immediately.
	st := sup.Status(ctx)
	if !st.IsBroken {
		t.Errorf("expected broken status with no generation running")
	}
}

func TestSupervisorIndexesAndReportsStatus(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	sup := New(testConfig(t, dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	deadline := time.Now().Add(3 * time.Second)
	var st = sup.Status(ctx)
	for st.InitialSyncTime == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		st = sup.Status(ctx)
	}
	if st.InitialSyncTime == nil {
		t.Fatal("timed out waiting for initial sync to complete")
	}
	if st.IndexedFiles != 1 {
		t.Errorf("IndexedFiles = %d, want 1", st.IndexedFiles)
	}

	candidates, cancelFind := sup.Find("hello")
	defer cancelFind()
	found := false
	for fa := range candidates {
		if filepath.Base(fa.Path) == "a.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected to find a.txt for query 'hello'")
	}
}

func TestForceFailureTriggersRestart(t *testing.T) {
	sup := New(testConfig(t, t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statuses := sup.Statuses()
	go sup.Run(ctx)

	sawFailed := false
	deadline := time.After(3 * time.Second)
	for !sawFailed {
		select {
		case u, ok := <-statuses:
			if !ok {
				t.Fatal("status stream closed before observing IndexFailed")
			}
			if u.Kind == Initializing {
				sup.ForceFailure()
			}
			if u.Kind == IndexFailed {
				sawFailed = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for IndexFailed after ForceFailure")
		}
	}
}

func TestTerminatedClosesStatusStream(t *testing.T) {
	sup := New(testConfig(t, t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())

	statuses := sup.Statuses()
	runDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(runDone)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	sawTerminated := false
	for u := range statuses {
		if u.Kind == Terminated {
			sawTerminated = true
		}
	}
	if !sawTerminated {
		t.Errorf("expected Terminated before the status stream closed")
	}
}
