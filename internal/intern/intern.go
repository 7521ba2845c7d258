// Package intern provides concurrent interning pools for FileAddresses and
// Tokens, so that equal values collapse to one shared instance and can be
// compared by identity (spec §3, §9 design note).
//
// Go has no built-in weak map, so these pools offer Forget/Prune for callers
// that want to evict an entry explicitly. The Index actor, the only
// long-term owner of interned values (an entry in `forward` or `reverse`),
// deliberately never calls either: a pointer it has handed out to an
// in-flight worker must stay valid, and recreating it fresh on a later
// re-reference would let two different pointers exist for the same path or
// text within one generation. Instead the actor retains every entry for the
// whole lifetime of its generation and relies on a supervisor restart (a
// fresh generation, fresh pools) to reclaim memory.
package intern

import (
	"sync"

	"github.com/arashk/dirdex/internal/model"
)

// FileAddresses interns *model.FileAddress values.
type FileAddresses struct {
	mu    sync.Mutex
	byKey map[string]*model.FileAddress
}

// NewFileAddresses creates an empty interning pool.
func NewFileAddresses() *FileAddresses {
	return &FileAddresses{byKey: make(map[string]*model.FileAddress)}
}

// Intern returns the shared *model.FileAddress for path, creating it on
// first reference.
func (p *FileAddresses) Intern(path string) *model.FileAddress {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fa, ok := p.byKey[path]; ok {
		return fa
	}
	fa := &model.FileAddress{Path: path}
	p.byKey[path] = fa
	return fa
}

// Forget removes path from the pool. Safe to call even if the index no
// longer references it; it simply allows the entry to be recreated fresh
// next time the same path is interned.
func (p *FileAddresses) Forget(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byKey, path)
}

// Tokens interns *model.Token values.
type Tokens struct {
	mu    sync.Mutex
	byKey map[string]*model.Token
}

// NewTokens creates an empty interning pool.
func NewTokens() *Tokens {
	return &Tokens{byKey: make(map[string]*model.Token)}
}

// Intern returns the shared *model.Token for text, creating it on first
// reference.
func (p *Tokens) Intern(text string) *model.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.byKey[text]; ok {
		return t
	}
	t := &model.Token{Text: text}
	p.byKey[text] = t
	return t
}

// Prune drops text from the pool if it is no longer referenced by any
// reverse-index bucket; callers pass the current liveness of the token so
// the pool never needs to scan the reverse index itself.
func (p *Tokens) Prune(text string, stillReferenced bool) {
	if stillReferenced {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byKey, text)
}

// Len reports the number of distinct interned tokens, for diagnostics.
func (p *Tokens) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byKey)
}
