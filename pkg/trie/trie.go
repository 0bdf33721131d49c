// Package trie provides a generic prefix tree keyed by string.
//
// Keys are segmented per rune, so Unicode keys prefix-match the way a
// reader expects. Iteration is in lexicographic rune order.
package trie

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Trie maps string keys to values of type T with prefix queries.
// The zero value is ready to use. Not safe for concurrent use.
type Trie[T any] struct {
	children map[rune]*Trie[T]
	set      bool
	value    T
}

// New creates a new empty Trie.
func New[T any]() *Trie[T] {
	return &Trie[T]{}
}

// Set stores value under key, overwriting any existing value.
func (t *Trie[T]) Set(key string, value T) {
	node := t
	for _, r := range key {
		if node.children == nil {
			node.children = make(map[rune]*Trie[T])
		}
		ch, ok := node.children[r]
		if !ok {
			ch = &Trie[T]{}
			node.children[r] = ch
		}
		node = ch
	}
	node.value = value
	node.set = true
}

// Get returns the value stored under key.
func (t *Trie[T]) Get(key string) (T, bool) {
	node := t.descend(key)
	if node == nil || !node.set {
		var zero T
		return zero, false
	}
	return node.value, true
}

// Delete removes key, pruning branches left empty by the removal.
// Reports whether the key was present.
func (t *Trie[T]) Delete(key string) bool {
	return t.remove([]rune(key))
}

func (t *Trie[T]) remove(key []rune) bool {
	if len(key) == 0 {
		if !t.set {
			return false
		}
		t.set = false
		var zero T
		t.value = zero
		return true
	}
	ch, ok := t.children[key[0]]
	if !ok {
		return false
	}
	if !ch.remove(key[1:]) {
		return false
	}
	if !ch.set && len(ch.children) == 0 {
		delete(t.children, key[0])
	}
	return true
}

// WithPrefix iterates all entries whose key starts with prefix, in
// lexicographic key order. An empty prefix iterates the whole trie.
func (t *Trie[T]) WithPrefix(prefix string) iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		node := t.descend(prefix)
		if node == nil {
			return
		}
		node.walk(prefix, yield)
	}
}

// Keys returns the keys under prefix, in lexicographic order.
func (t *Trie[T]) Keys(prefix string) []string {
	var keys []string
	for k := range t.WithPrefix(prefix) {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries in the trie.
func (t *Trie[T]) Len() int {
	n := 0
	for range t.WithPrefix("") {
		n++
	}
	return n
}

func (t *Trie[T]) descend(key string) *Trie[T] {
	node := t
	for _, r := range key {
		ch, ok := node.children[r]
		if !ok {
			return nil
		}
		node = ch
	}
	return node
}

func (t *Trie[T]) walk(key string, yield func(string, T) bool) bool {
	if t.set {
		if !yield(key, t.value) {
			return false
		}
	}
	runes := make([]rune, 0, len(t.children))
	for r := range t.children {
		runes = append(runes, r)
	}
	slices.Sort(runes)
	for _, r := range runes {
		if !t.children[r].walk(key+string(r), yield) {
			return false
		}
	}
	return true
}

// String lists the trie's entries one per line, for debugging.
func (t *Trie[T]) String() string {
	var lines []string
	for k, v := range t.WithPrefix("") {
		lines = append(lines, fmt.Sprintf("%s: %v", k, v))
	}
	return strings.Join(lines, "\n")
}
