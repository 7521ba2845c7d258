package indexactor

import (
	"context"
	"testing"
	"time"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/tokenize"
)

func newTestActor(mode tokenize.Mode) (*Actor, *genstate.Generation, chan model.StatusUpdate, chan model.IndexUpdateRequest, chan UserRequest) {
	gen := genstate.New()
	statusCh := make(chan model.StatusUpdate, 16)
	updatesCh := make(chan model.IndexUpdateRequest, 16)
	requestCh := make(chan UserRequest, 4)
	a := New(gen, mode, statusCh, updatesCh, requestCh, nil)
	return a, gen, statusCh, updatesCh, requestCh
}

func tokensOf(gen *genstate.Generation, words ...string) map[*model.Token]struct{} {
	out := make(map[*model.Token]struct{}, len(words))
	for _, w := range words {
		out[gen.Tokens.Intern(w)] = struct{}{}
	}
	return out
}

func runActorBriefly(t *testing.T, a *Actor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	return cancel
}

func statusOf(t *testing.T, requestCh chan UserRequest) model.StatusResult {
	t.Helper()
	result := make(chan model.StatusResult, 1)
	requestCh <- StatusRequest{Result: result, Lost: func() { t.Fatal("status request lost") }}
	select {
	case r := <-result:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status")
		return model.StatusResult{}
	}
}

func findOf(t *testing.T, requestCh chan UserRequest, query string) []string {
	t.Helper()
	candidates := make(chan *model.FileAddress)
	requestCh <- FindRequest{
		Query:      query,
		Candidates: candidates,
		Alive:      func() bool { return true },
		Lost:       func() { t.Fatal("find request lost") },
	}
	var out []string
	for fa := range candidates {
		out = append(out, fa.Path)
	}
	return out
}

func TestApplyUpdateFileContentThenQuery(t *testing.T) {
	a, gen, _, updatesCh, requestCh := newTestActor(tokenize.Word)
	cancel := runActorBriefly(t, a)
	defer cancel()

	fa := gen.FileAddresses.Intern("/a.txt")
	updatesCh <- model.UpdateFileContent{T: gen.Next(), FA: fa, Tokens: tokensOf(gen, "hello", "world")}

	// synchronize on the actor having applied the update
	time.Sleep(50 * time.Millisecond)

	got := findOf(t, requestCh, "hello")
	if len(got) != 1 || got[0] != "/a.txt" {
		t.Errorf("find(hello) = %v, want [/a.txt]", got)
	}
}

func TestDiscardsStaleUpdate(t *testing.T) {
	a, gen, _, updatesCh, requestCh := newTestActor(tokenize.Word)
	cancel := runActorBriefly(t, a)
	defer cancel()

	fa := gen.FileAddresses.Intern("/a.txt")
	t1 := gen.Next()
	t2 := gen.Next()

	// Apply newer first, then an older (out-of-order) update; the older
	// one must be silently discarded rather than overwriting it.
	updatesCh <- model.UpdateFileContent{T: t2, FA: fa, Tokens: tokensOf(gen, "new")}
	time.Sleep(20 * time.Millisecond)
	updatesCh <- model.UpdateFileContent{T: t1, FA: fa, Tokens: tokensOf(gen, "old")}
	time.Sleep(20 * time.Millisecond)

	got := findOf(t, requestCh, "new")
	if len(got) != 1 {
		t.Errorf("expected the newer token to survive, got %v", got)
	}
	got = findOf(t, requestCh, "old")
	if len(got) != 0 {
		t.Errorf("expected the stale update to be discarded, got %v", got)
	}
}

func TestRemoveFileDetachesFromReverse(t *testing.T) {
	a, gen, _, updatesCh, requestCh := newTestActor(tokenize.Word)
	cancel := runActorBriefly(t, a)
	defer cancel()

	fa := gen.FileAddresses.Intern("/a.txt")
	updatesCh <- model.UpdateFileContent{T: gen.Next(), FA: fa, Tokens: tokensOf(gen, "hello")}
	time.Sleep(20 * time.Millisecond)
	updatesCh <- model.RemoveFile{T: gen.Next(), FA: fa}
	time.Sleep(20 * time.Millisecond)

	got := findOf(t, requestCh, "hello")
	if len(got) != 0 {
		t.Errorf("expected no matches after removal, got %v", got)
	}

	st := statusOf(t, requestCh)
	if st.IndexedFiles != 0 || st.KnownTokens != 0 {
		t.Errorf("expected empty index after removal, got %+v", st)
	}
}

func TestStatusCountersAdvanceWithModifications(t *testing.T) {
	a, gen, statusCh, updatesCh, requestCh := newTestActor(tokenize.Word)
	cancel := runActorBriefly(t, a)
	defer cancel()

	statusCh <- model.StatusUpdate{Kind: model.StatusWatcherStarted, At: time.Now()}
	fa := gen.FileAddresses.Intern("/a.txt")
	statusCh <- model.StatusUpdate{Kind: model.StatusFileUpdated, At: time.Now()}
	statusCh <- model.StatusUpdate{Kind: model.StatusAllFilesDiscovered, At: time.Now()}
	updatesCh <- model.UpdateFileContent{T: gen.Next(), FA: fa, Tokens: tokensOf(gen, "hello")}
	time.Sleep(30 * time.Millisecond)

	st := statusOf(t, requestCh)
	if st.TotalModifications != 1 || st.HandledModifications != 1 {
		t.Errorf("expected total=handled=1, got %+v", st)
	}
	if st.InitialSyncTime == nil {
		t.Errorf("expected InitialSyncTime to be stamped once handled==total")
	}
}

func TestTrigramQueryShortAndIntersection(t *testing.T) {
	a, gen, _, updatesCh, requestCh := newTestActor(tokenize.Trigram)
	cancel := runActorBriefly(t, a)
	defer cancel()

	fa := gen.FileAddresses.Intern("/a.txt")
	tokens := tokenize.Tokens(tokenize.Trigram, "hello")
	set := make(map[*model.Token]struct{}, len(tokens))
	for text := range tokens {
		set[gen.Tokens.Intern(text)] = struct{}{}
	}
	updatesCh <- model.UpdateFileContent{T: gen.Next(), FA: fa, Tokens: set}
	time.Sleep(20 * time.Millisecond)

	if got := findOf(t, requestCh, "hel"); len(got) != 1 {
		t.Errorf("trigram intersection for 'hel' = %v, want 1 match", got)
	}
	if got := findOf(t, requestCh, "zz"); len(got) != 0 {
		t.Errorf("expected no matches for unrelated short query, got %v", got)
	}
}
