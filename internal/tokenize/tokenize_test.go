package tokenize

import "testing"

func TestWordTokens(t *testing.T) {
	got := Tokens(Word, "Hello, World! foo_bar 123")
	want := []string{"hello", "world", "foo", "bar", "123"}
	for _, w := range want {
		if _, ok := got[w]; !ok {
			t.Errorf("word tokens missing %q: %v", w, got)
		}
	}
	if _, ok := got["foo_bar"]; ok {
		t.Errorf("underscore should split tokens, got foo_bar as one token")
	}
}

func TestTrigramTokensPadsShortLines(t *testing.T) {
	got := Tokens(Trigram, "ab")
	if _, ok := got["ab "]; !ok {
		t.Errorf("expected short line padded to 'ab ', got %v", got)
	}
}

func TestTrigramTokensWindowsEachLine(t *testing.T) {
	got := Tokens(Trigram, "abcd")
	for _, want := range []string{"abc", "bcd"} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing trigram %q in %v", want, got)
		}
	}
}

func TestQueryTokensPreservesOrderAndDuplicates(t *testing.T) {
	got := QueryTokens("the cat the")
	want := []string{"the", "cat", "the"}
	if len(got) != len(want) {
		t.Fatalf("QueryTokens(%q) = %v, want %v", "the cat the", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("QueryTokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("trigram") != Trigram {
		t.Errorf("ParseMode(trigram) != Trigram")
	}
	if ParseMode("word") != Word {
		t.Errorf("ParseMode(word) != Word")
	}
	if ParseMode("bogus") != Word {
		t.Errorf("ParseMode(bogus) should default to Word")
	}
}
