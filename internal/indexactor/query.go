package indexactor

import (
	"strings"

	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/tokenize"
)

// liveness throttles calls to a FindRequest's Alive probe so a scan checks
// it periodically rather than on every single element (which would turn an
// atomic load into the dominant cost of the scan) while still noticing a
// cancelled consumer within a bounded number of iterations (spec §5/§9:
// cancellation must be observed "between filter steps" on a large scan,
// not only once streaming starts).
type liveness struct {
	alive func() bool
	n     int
}

const livenessCheckEvery = 1024

// ok reports whether the scan should keep going. It always returns true
// when alive is nil (e.g. in tests that don't wire cancellation).
func (l *liveness) ok() bool {
	if l.alive == nil {
		return true
	}
	l.n++
	if l.n%livenessCheckEvery != 0 {
		return true
	}
	return l.alive()
}

// candidates computes the in-memory candidate set for query under the
// actor's configured mode (spec §4.3 "Query algorithm"). This is
// deliberately approximate — trigram intersection can admit false
// positives from reordered characters, and the word-mode heuristics below
// admit near-matches — because the search engine (component E) re-verifies
// every candidate against the actual file content before it ever reaches a
// caller (spec §9 "Two-phase search"). alive is polled periodically during
// the scan itself, not only while the result streams to the consumer, so a
// cancelled query over a large index does not block the actor goroutine for
// the full scan.
func (a *Actor) candidates(query string, alive func() bool) []*model.FileAddress {
	lv := &liveness{alive: alive}
	if a.mode == tokenize.Trigram {
		return a.trigramCandidates(query, lv)
	}
	return a.wordCandidates(query, lv)
}

// --- word mode (spec §4.3) ---

func (a *Actor) wordCandidates(query string, lv *liveness) []*model.FileAddress {
	tokens := tokenize.QueryTokens(query)
	switch len(tokens) {
	case 0:
		return a.allFiles()
	case 1:
		return a.wordSingleToken(tokens[0], lv)
	case 2:
		return a.wordTwoTokens(tokens[0], tokens[1], lv)
	default:
		return a.wordManyTokens(tokens, lv)
	}
}

func (a *Actor) allFiles() []*model.FileAddress {
	out := make([]*model.FileAddress, 0, len(a.forward))
	for fa := range a.forward {
		out = append(out, fa)
	}
	return out
}

// wordSingleToken streams reverse[q] first, then every reverse-index key
// containing q as a substring, deduplicated (spec §4.3 n==1).
func (a *Actor) wordSingleToken(q string, lv *liveness) []*model.FileAddress {
	seen := make(map[*model.FileAddress]struct{})
	out := make([]*model.FileAddress, 0)

	add := func(fa *model.FileAddress) {
		if _, ok := seen[fa]; ok {
			return
		}
		seen[fa] = struct{}{}
		out = append(out, fa)
	}

	if exact := a.exactToken(q); exact != nil {
		for fa := range a.reverse[exact] {
			add(fa)
		}
	}
	for tok, bucket := range a.reverse {
		if !lv.ok() {
			return out
		}
		if tok.Text == q {
			continue // already added above
		}
		if strings.Contains(tok.Text, q) {
			for fa := range bucket {
				add(fa)
			}
		}
	}
	return out
}

// wordTwoTokens implements the asymmetric start/end heuristic of spec §4.3
// n==2 exactly as specified — it is intentionally not symmetrized (see
// DESIGN.md Open Question decisions).
func (a *Actor) wordTwoTokens(s, e string, lv *liveness) []*model.FileAddress {
	seen := make(map[*model.FileAddress]struct{})
	out := make([]*model.FileAddress, 0)
	add := func(fa *model.FileAddress) {
		if _, ok := seen[fa]; ok {
			return
		}
		seen[fa] = struct{}{}
		out = append(out, fa)
	}

	for fa := range a.forward {
		if !lv.ok() {
			return out
		}
		containsS := a.hasExact(fa, s)
		containsE := a.hasExact(fa, e)
		endsWithS := a.hasSuffix(fa, s)
		startsWithE := a.hasPrefix(fa, e)

		matches := (containsS && (containsE || startsWithE)) || // (i)
			(containsE && (containsS || endsWithS)) || // (ii)
			(endsWithS && startsWithE) // (iii)

		if matches {
			add(fa)
		}
	}
	return out
}

// wordManyTokens implements spec §4.3 n>=3: start from the smallest
// reverse[c] among the core tokens, then filter to files containing every
// core token plus the start/end heuristics.
func (a *Actor) wordManyTokens(tokens []string, lv *liveness) []*model.FileAddress {
	s, e := tokens[0], tokens[len(tokens)-1]
	core := tokens[1 : len(tokens)-1] // non-empty: caller only reaches here for n>=3

	var smallest *model.Token
	var smallestSize = -1
	coreExact := make([]*model.Token, 0, len(core))
	for _, c := range core {
		tok := a.exactToken(c)
		coreExact = append(coreExact, tok)
		size := 0
		if tok != nil {
			size = len(a.reverse[tok])
		}
		if smallestSize == -1 || size < smallestSize {
			smallestSize = size
			smallest = tok
		}
	}
	if smallest == nil {
		return nil
	}

	out := make([]*model.FileAddress, 0)
	for fa := range a.reverse[smallest] {
		if !lv.ok() {
			return out
		}
		if !a.containsAllExact(fa, coreExact) {
			continue
		}
		if !(a.hasExact(fa, s) || a.hasSuffix(fa, s)) {
			continue
		}
		if !(a.hasExact(fa, e) || a.hasPrefix(fa, e)) {
			continue
		}
		out = append(out, fa)
	}
	return out
}

func (a *Actor) containsAllExact(fa *model.FileAddress, tokens []*model.Token) bool {
	fileTokens := a.forward[fa]
	for _, tok := range tokens {
		if tok == nil {
			return false
		}
		if _, ok := fileTokens[tok]; !ok {
			return false
		}
	}
	return true
}

// exactToken returns the interned token pointer for text if it currently
// has a reverse bucket, or nil otherwise. The lookup goes through Intern, so
// a text that was never indexed is added to the token pool as an
// unreferenced entry.
func (a *Actor) exactToken(text string) *model.Token {
	tok := a.gen.Tokens.Intern(text)
	if _, ok := a.reverse[tok]; ok {
		return tok
	}
	return nil
}

func (a *Actor) hasExact(fa *model.FileAddress, text string) bool {
	tok := a.exactToken(text)
	if tok == nil {
		return false
	}
	_, ok := a.forward[fa][tok]
	return ok
}

func (a *Actor) hasPrefix(fa *model.FileAddress, prefix string) bool {
	for tok := range a.forward[fa] {
		if strings.HasPrefix(tok.Text, prefix) {
			return true
		}
	}
	return false
}

func (a *Actor) hasSuffix(fa *model.FileAddress, suffix string) bool {
	for tok := range a.forward[fa] {
		if strings.HasSuffix(tok.Text, suffix) {
			return true
		}
	}
	return false
}

// --- trigram mode (spec §4.3) ---

func (a *Actor) trigramCandidates(query string, lv *liveness) []*model.FileAddress {
	q := strings.ToLower(query)
	switch {
	case len(q) == 0:
		return a.allFiles()
	case len(q) < 3:
		return a.trigramShortQuery(q, lv)
	default:
		return a.trigramIntersection(q, lv)
	}
}

// trigramShortQuery selects every reverse-index token containing query as a
// substring and streams the union of their file sets (spec §4.3, len 1-2).
func (a *Actor) trigramShortQuery(q string, lv *liveness) []*model.FileAddress {
	seen := make(map[*model.FileAddress]struct{})
	out := make([]*model.FileAddress, 0)
	for tok, bucket := range a.reverse {
		if !lv.ok() {
			return out
		}
		if !strings.Contains(tok.Text, q) {
			continue
		}
		for fa := range bucket {
			if _, ok := seen[fa]; ok {
				continue
			}
			seen[fa] = struct{}{}
			out = append(out, fa)
		}
	}
	return out
}

// trigramIntersection computes the intersection of reverse[t] across every
// trigram of query, in order, short-circuiting on an empty intermediate
// result (spec §4.3, len >= 3).
func (a *Actor) trigramIntersection(q string, lv *liveness) []*model.FileAddress {
	trigrams := make([]string, 0, len(q)-2)
	for i := 0; i+3 <= len(q); i++ {
		trigrams = append(trigrams, q[i:i+3])
	}
	if len(trigrams) == 0 {
		return nil
	}

	var current map[*model.FileAddress]struct{}
	for i, tg := range trigrams {
		if !lv.ok() {
			return nil
		}
		tok := a.exactToken(tg)
		var bucket map[*model.FileAddress]struct{}
		if tok != nil {
			bucket = a.reverse[tok]
		}

		if i == 0 {
			current = make(map[*model.FileAddress]struct{}, len(bucket))
			for fa := range bucket {
				current[fa] = struct{}{}
			}
			continue
		}

		next := make(map[*model.FileAddress]struct{})
		for fa := range current {
			if !lv.ok() {
				return nil
			}
			if _, ok := bucket[fa]; ok {
				next[fa] = struct{}{}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}

	out := make([]*model.FileAddress, 0, len(current))
	for fa := range current {
		out = append(out, fa)
	}
	return out
}
