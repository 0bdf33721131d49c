// Package vocab maintains a learner's vocabulary book.
//
// Each word is one msgpack-encoded record in a kv store under
// "vocab:{word}". An in-memory prefix index over the words is rebuilt
// from the store on open and serves lookups and listings; the store is
// the source of truth across restarts.
package vocab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/loroworks/loro/go/pkg/kv"
	"github.com/loroworks/loro/go/pkg/trie"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a word is not in the book.
	ErrNotFound = errors.New("vocab: word not found")

	// ErrEmptyWord is returned when a word normalizes to nothing.
	ErrEmptyWord = errors.New("vocab: empty word")
)

const keyPrefix = "vocab:"

// Record is one vocabulary entry.
type Record struct {
	// Word is the entry in lowercase dictionary form.
	Word string `json:"word" msgpack:"word"`

	// AddedAt is when the word entered the book.
	AddedAt time.Time `json:"added_at" msgpack:"added_at"`

	// LastHeardAt is when the word last occurred in a spoken reply.
	LastHeardAt time.Time `json:"last_heard_at,omitempty" msgpack:"last_heard_at,omitempty"`

	// HeardCount is how many spoken replies have used the word.
	HeardCount int `json:"heard_count" msgpack:"heard_count"`
}

// Book is a vocabulary book backed by a kv store.
// Safe for concurrent use.
type Book struct {
	store kv.Store
	now   func() time.Time

	mu    sync.Mutex
	index *trie.Trie[Record]
}

// Option configures a Book.
type Option func(*Book)

// WithClock substitutes the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// Open loads the vocabulary book from store and builds the word index.
// Malformed records are skipped.
func Open(ctx context.Context, store kv.Store, opts ...Option) (*Book, error) {
	b := &Book{
		store: store,
		now:   time.Now,
		index: trie.New[Record](),
	}
	for _, opt := range opts {
		opt(b)
	}
	for entry, err := range store.Scan(ctx, keyPrefix) {
		if err != nil {
			return nil, fmt.Errorf("vocab: load book: %w", err)
		}
		var rec Record
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			continue
		}
		b.index.Set(rec.Word, rec)
	}
	return b, nil
}

// Add puts word into the book. Adding a word that is already present
// returns the existing record unchanged.
func (b *Book) Add(ctx context.Context, word string) (Record, error) {
	w, err := normalize(word)
	if err != nil {
		return Record{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.index.Get(w); ok {
		return rec, nil
	}
	rec := Record{Word: w, AddedAt: b.now()}
	if err := b.putLocked(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Touch records that word was just used in a spoken reply, bumping its
// heard count. Returns ErrNotFound for words not in the book.
func (b *Book) Touch(ctx context.Context, word string) (Record, error) {
	w, err := normalize(word)
	if err != nil {
		return Record{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.index.Get(w)
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.HeardCount++
	rec.LastHeardAt = b.now()
	if err := b.putLocked(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// TouchText touches every book word that occurs in text and returns the
// updated records. Words are matched case-insensitively on word
// boundaries; repeats within one text count once.
func (b *Book) TouchText(ctx context.Context, text string) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	seen := make(map[string]bool)
	var touched []Record
	for _, w := range splitWords(text) {
		if seen[w] {
			continue
		}
		seen[w] = true
		rec, ok := b.index.Get(w)
		if !ok {
			continue
		}
		rec.HeardCount++
		rec.LastHeardAt = now
		if err := b.putLocked(ctx, rec); err != nil {
			return touched, err
		}
		touched = append(touched, rec)
	}
	return touched, nil
}

// Get returns the record for word.
func (b *Book) Get(word string) (Record, bool) {
	w, err := normalize(word)
	if err != nil {
		return Record{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Get(w)
}

// List returns the records whose word starts with prefix, in word
// order. An empty prefix lists the whole book.
func (b *Book) List(prefix string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	var records []Record
	for _, rec := range b.index.WithPrefix(strings.ToLower(prefix)) {
		records = append(records, rec)
	}
	return records
}

// Len returns the number of words in the book.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Len()
}

// Remove deletes word from the book. Returns ErrNotFound if absent.
func (b *Book) Remove(ctx context.Context, word string) error {
	w, err := normalize(word)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.index.Delete(w) {
		return ErrNotFound
	}
	if err := b.store.Delete(ctx, keyPrefix+w); err != nil {
		return fmt.Errorf("vocab: remove %q: %w", w, err)
	}
	return nil
}

func (b *Book) putLocked(ctx context.Context, rec Record) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("vocab: encode %q: %w", rec.Word, err)
	}
	if err := b.store.Set(ctx, keyPrefix+rec.Word, data); err != nil {
		return fmt.Errorf("vocab: store %q: %w", rec.Word, err)
	}
	b.index.Set(rec.Word, rec)
	return nil
}

func normalize(word string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return "", ErrEmptyWord
	}
	return w, nil
}

// splitWords lowercases text and splits it into words, keeping
// apostrophes so contractions stay whole.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
