package intern

import "testing"

func TestFileAddressesInternSharesInstance(t *testing.T) {
	p := NewFileAddresses()
	a := p.Intern("/tmp/a")
	b := p.Intern("/tmp/a")
	if a != b {
		t.Errorf("Intern returned distinct pointers for the same path")
	}
}

func TestFileAddressesForgetAllowsRecreate(t *testing.T) {
	p := NewFileAddresses()
	a := p.Intern("/tmp/a")
	p.Forget("/tmp/a")
	b := p.Intern("/tmp/a")
	if a == b {
		t.Errorf("expected a fresh instance after Forget, got the same pointer")
	}
}

func TestTokensInternSharesInstance(t *testing.T) {
	p := NewTokens()
	a := p.Intern("hello")
	b := p.Intern("hello")
	if a != b {
		t.Errorf("Intern returned distinct pointers for the same text")
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestTokensPruneOnlyWhenUnreferenced(t *testing.T) {
	p := NewTokens()
	p.Intern("hello")

	p.Prune("hello", true)
	if p.Len() != 1 {
		t.Errorf("Prune with stillReferenced=true should not remove the entry")
	}

	p.Prune("hello", false)
	if p.Len() != 0 {
		t.Errorf("Prune with stillReferenced=false should remove the entry")
	}
}
