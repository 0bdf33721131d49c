package trie_test

import (
	"slices"
	"testing"

	"github.com/loroworks/loro/go/pkg/trie"
)

func TestSetGet(t *testing.T) {
	tr := trie.New[int]()

	tr.Set("apple", 1)
	tr.Set("apricot", 2)

	v, ok := tr.Get("apple")
	if !ok || v != 1 {
		t.Fatalf("Get(apple) = %v, %v, want 1, true", v, ok)
	}
	v, ok = tr.Get("apricot")
	if !ok || v != 2 {
		t.Fatalf("Get(apricot) = %v, %v, want 2, true", v, ok)
	}

	// A stored key's strict prefix is not itself a key.
	if _, ok := tr.Get("ap"); ok {
		t.Fatal("Get(ap) found a value, want miss")
	}
	if _, ok := tr.Get("applepie"); ok {
		t.Fatal("Get(applepie) found a value, want miss")
	}
}

func TestOverwrite(t *testing.T) {
	tr := trie.New[string]()

	tr.Set("key", "old")
	tr.Set("key", "new")

	v, ok := tr.Get("key")
	if !ok || v != "new" {
		t.Fatalf("Get = %q, %v, want %q, true", v, ok, "new")
	}
	if got := tr.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}

func TestEmptyKey(t *testing.T) {
	tr := trie.New[int]()

	tr.Set("", 42)
	v, ok := tr.Get("")
	if !ok || v != 42 {
		t.Fatalf("Get(\"\") = %v, %v, want 42, true", v, ok)
	}

	keys := tr.Keys("")
	if !slices.Equal(keys, []string{""}) {
		t.Fatalf("Keys = %v, want [\"\"]", keys)
	}
}

func TestDelete(t *testing.T) {
	tr := trie.New[int]()

	tr.Set("cat", 1)
	tr.Set("car", 2)
	tr.Set("ca", 3)

	if !tr.Delete("cat") {
		t.Fatal("Delete(cat) = false, want true")
	}
	if _, ok := tr.Get("cat"); ok {
		t.Fatal("Get(cat) found a value after delete")
	}

	// Siblings and prefixes survive.
	if _, ok := tr.Get("car"); !ok {
		t.Fatal("Get(car) missed after deleting sibling")
	}
	if _, ok := tr.Get("ca"); !ok {
		t.Fatal("Get(ca) missed after deleting extension")
	}

	if tr.Delete("cat") {
		t.Fatal("Delete(cat) = true on second delete, want false")
	}
	if tr.Delete("dog") {
		t.Fatal("Delete(dog) = true for absent key, want false")
	}

	if got := tr.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
}

func TestDeleteKeepsExtensions(t *testing.T) {
	tr := trie.New[int]()

	tr.Set("do", 1)
	tr.Set("dog", 2)

	if !tr.Delete("do") {
		t.Fatal("Delete(do) = false, want true")
	}
	if _, ok := tr.Get("dog"); !ok {
		t.Fatal("Get(dog) missed after deleting its prefix")
	}
}

func TestWithPrefixOrder(t *testing.T) {
	tr := trie.New[int]()
	for i, k := range []string{"banana", "apple", "apricot", "cherry", "ape"} {
		tr.Set(k, i)
	}

	got := tr.Keys("ap")
	want := []string{"ape", "apple", "apricot"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keys(ap) = %v, want %v", got, want)
	}

	got = tr.Keys("")
	want = []string{"ape", "apple", "apricot", "banana", "cherry"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}

	if got := tr.Keys("z"); got != nil {
		t.Fatalf("Keys(z) = %v, want nil", got)
	}
}

func TestWithPrefixIncludesExactKey(t *testing.T) {
	tr := trie.New[int]()
	tr.Set("sun", 1)
	tr.Set("sunny", 2)

	got := tr.Keys("sun")
	want := []string{"sun", "sunny"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keys(sun) = %v, want %v", got, want)
	}
}

func TestWithPrefixStopEarly(t *testing.T) {
	tr := trie.New[int]()
	for i, k := range []string{"a", "b", "c"} {
		tr.Set(k, i)
	}

	var seen []string
	for k := range tr.WithPrefix("") {
		seen = append(seen, k)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Fatalf("seen = %v, want [a b]", seen)
	}
}

func TestUnicodeKeys(t *testing.T) {
	tr := trie.New[int]()
	tr.Set("über", 1)
	tr.Set("übrig", 2)
	tr.Set("uber", 3)

	got := tr.Keys("üb")
	want := []string{"über", "übrig"}
	if !slices.Equal(got, want) {
		t.Fatalf("Keys(üb) = %v, want %v", got, want)
	}

	v, ok := tr.Get("über")
	if !ok || v != 1 {
		t.Fatalf("Get(über) = %v, %v, want 1, true", v, ok)
	}
}
