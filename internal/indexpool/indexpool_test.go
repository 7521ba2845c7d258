package indexpool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/tokenize"
)

func TestRunTokenizesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	gen := genstate.New()
	fa := gen.FileAddresses.Intern(path)

	events := make(chan model.FileSyncEvent, 1)
	updates := make(chan model.IndexUpdateRequest, 1)
	events <- model.FileSyncEvent{T: gen.Next(), FA: fa, Source: model.SourceInitialSync, Type: model.EventCreate}
	close(events)

	ctx := context.Background()
	Run(ctx, DefaultConfig(tokenize.Word), gen, events, updates)

	select {
	case upd := <-updates:
		content, ok := upd.(model.UpdateFileContent)
		if !ok {
			t.Fatalf("expected UpdateFileContent, got %T", upd)
		}
		if _, ok := content.Tokens[gen.Tokens.Intern("hello")]; !ok {
			t.Errorf("expected 'hello' token, got %v", content.Tokens)
		}
	default:
		t.Fatal("expected an update to have been emitted")
	}
}

func TestRunSkipsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	gen := genstate.New()
	fa := gen.FileAddresses.Intern(path)

	events := make(chan model.FileSyncEvent, 1)
	updates := make(chan model.IndexUpdateRequest, 1)
	events <- model.FileSyncEvent{T: gen.Next(), FA: fa, Type: model.EventCreate}
	close(events)

	cfg := DefaultConfig(tokenize.Word)
	cfg.MaxFileSize = 5

	Run(context.Background(), cfg, gen, events, updates)

	select {
	case upd := <-updates:
		t.Errorf("expected no update for an oversized file, got %v", upd)
	default:
	}
}

func TestRunEmitsRemoveFileForDeleteEvent(t *testing.T) {
	gen := genstate.New()
	fa := gen.FileAddresses.Intern("/tmp/gone.txt")

	events := make(chan model.FileSyncEvent, 1)
	updates := make(chan model.IndexUpdateRequest, 1)
	events <- model.FileSyncEvent{T: gen.Next(), FA: fa, Type: model.EventDelete}
	close(events)

	Run(context.Background(), DefaultConfig(tokenize.Word), gen, events, updates)

	select {
	case upd := <-updates:
		if _, ok := upd.(model.RemoveFile); !ok {
			t.Errorf("expected RemoveFile, got %T", upd)
		}
	default:
		t.Fatal("expected a RemoveFile update")
	}
}

func TestRunReturnsOnContextCancellation(t *testing.T) {
	gen := genstate.New()
	events := make(chan model.FileSyncEvent)
	updates := make(chan model.IndexUpdateRequest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, DefaultConfig(tokenize.Word), gen, events, updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
