package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

type Option func(*Store)

// WithStableIDs makes the store assign IDs from a monotonically increasing
// counter instead of deriving them from the current position in the list.
// Stable IDs don't change when earlier todos are removed.
func WithStableIDs() Option {
	return func(s *Store) { s.positionalIDs = false }
}

// New creates an empty store. By default a todo's ID is its current
// position in the list and removing a todo shifts the IDs of all later todos.
func New(opts ...Option) *Store {
	s := &Store{
		positionalIDs: true,
		searchIndex:   mustMakeBleveIndex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func mustMakeBleveIndex() bleve.Index {
	doc := bleve.NewDocumentMapping()

	name := bleve.NewTextFieldMapping()
	name.Store = false
	name.Analyzer = "en"
	doc.AddFieldMappingsAt("Name", name)

	desc := bleve.NewTextFieldMapping()
	desc.Store = false
	desc.Analyzer = "en"
	doc.AddFieldMappingsAt("Description", desc)

	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "en"
	m.DefaultMapping = doc

	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		panic(err)
	}
	return idx
}

type Todo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Created     time.Time `json:"-"`
}

// entry is a stored todo. key is the stable identity of the entry
// and is used as search index document ID regardless of the ID mode.
type entry struct {
	key  int64
	todo Todo
}

type Store struct {
	lock          sync.Mutex
	todos         []entry
	nextKey       int64
	positionalIDs bool
	searchIndex   bleve.Index
}

const (
	NameMaxLength        = 1024      // 1 KiB
	DescriptionMaxLength = 16 * 1024 // 16 KiB
)

var ErrInvalidIndex = errors.New("invalid index")

type ErrorValidation struct {
	NameTooLong        bool
	DescriptionTooLong bool
}

func Validate(name, description string) ErrorValidation {
	return ErrorValidation{
		NameTooLong:        len(name) > NameMaxLength,
		DescriptionTooLong: len(description) > DescriptionMaxLength,
	}
}

func (v ErrorValidation) IsErr() bool {
	return v.NameTooLong || v.DescriptionTooLong
}

func (v ErrorValidation) Error() string {
	var s []string
	if v.NameTooLong {
		s = append(s, "name too long")
	}
	if v.DescriptionTooLong {
		s = append(s, "description too long")
	}
	if len(s) == 0 {
		return "invalid"
	}
	return strings.Join(s, ", ")
}

// todoAt returns the todo at position i with its externally visible ID.
// The caller must hold the lock.
func (s *Store) todoAt(i int) Todo {
	t := s.todos[i].todo
	if s.positionalIDs {
		t.ID = int64(i)
	}
	return t
}

func (s *Store) checkIndex(i int) error {
	if i < 0 || i >= len(s.todos) {
		return fmt.Errorf("%w: %d (len %d)", ErrInvalidIndex, i, len(s.todos))
	}
	return nil
}

// List returns all todos in insertion order.
func (s *Store) List(_ context.Context) []Todo {
	s.lock.Lock()
	defer s.lock.Unlock()

	l := make([]Todo, len(s.todos))
	for i := range s.todos {
		l[i] = s.todoAt(i)
	}
	return l
}

func (s *Store) Len(_ context.Context) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.todos)
}

// Get returns the todo at the zero-based position i.
func (s *Store) Get(_ context.Context, i int) (Todo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.checkIndex(i); err != nil {
		return Todo{}, err
	}
	return s.todoAt(i), nil
}

// Add appends a new todo and returns it with its assigned ID.
func (s *Store) Add(
	_ context.Context, name, description string, completed bool, now time.Time,
) (Todo, error) {
	if err := Validate(name, description); err.IsErr() {
		return Todo{}, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	key := s.nextKey
	if err := s.searchIndex.Index(strconv.FormatInt(key, 10), map[string]any{
		"Name":        name,
		"Description": description,
	}); err != nil {
		return Todo{}, fmt.Errorf("indexing todo: %w", err)
	}
	s.nextKey++

	s.todos = append(s.todos, entry{
		key: key,
		todo: Todo{
			ID:          key,
			Name:        name,
			Description: description,
			Completed:   completed,
			Created:     now,
		},
	})
	return s.todoAt(len(s.todos) - 1), nil
}

// RemoveAt removes the todo at the zero-based position i and returns it
// with the ID it had before removal.
func (s *Store) RemoveAt(_ context.Context, i int) (Todo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.checkIndex(i); err != nil {
		return Todo{}, err
	}
	t := s.todoAt(i)
	key := s.todos[i].key
	if err := s.searchIndex.Delete(strconv.FormatInt(key, 10)); err != nil {
		return Todo{}, fmt.Errorf("deleting todo from index: %w", err)
	}
	s.todos = slices.Delete(s.todos, i, i+1)
	return t, nil
}

// Search returns all todos matching term by name or description
// in insertion order. An empty term matches everything.
func (s *Store) Search(ctx context.Context, term string) ([]Todo, error) {
	if strings.TrimSpace(term) == "" {
		return s.List(ctx), nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	req := bleve.NewSearchRequest(buildBleveQuery(term))
	req.Size = len(s.todos)
	idxRes, err := s.searchIndex.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make(map[int64]struct{}, len(idxRes.Hits))
	for _, h := range idxRes.Hits {
		key, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits[key] = struct{}{}
	}

	res := []Todo{}
	for i, e := range s.todos {
		if _, ok := hits[e.key]; ok {
			res = append(res, s.todoAt(i))
		}
	}
	return res, nil
}

func buildBleveQuery(term string) blevequery.Query {
	terms := strings.Fields(strings.TrimSpace(term))

	// Strategy 1: Exact phrase match (highest priority)
	fullText := strings.Join(terms, " ")

	namePhrase := bleve.NewMatchPhraseQuery(fullText)
	namePhrase.SetField("Name")
	namePhrase.SetBoost(10.0)

	descPhrase := bleve.NewMatchPhraseQuery(fullText)
	descPhrase.SetField("Description")
	descPhrase.SetBoost(2.0)

	queries := []blevequery.Query{namePhrase, descPhrase}

	// Strategy 2: Individual term matches
	for _, term := range terms {
		nameMatch := bleve.NewMatchQuery(term)
		nameMatch.SetField("Name")
		nameMatch.SetBoost(3.0)

		descMatch := bleve.NewMatchQuery(term)
		descMatch.SetField("Description")

		queries = append(queries, nameMatch, descMatch)
	}

	// Strategy 3: Fuzzy matching for typos
	for _, term := range terms {
		if len(term) <= 3 {
			continue
		}
		nameFuzzy := bleve.NewFuzzyQuery(term)
		nameFuzzy.SetField("Name")
		nameFuzzy.SetFuzziness(1)
		nameFuzzy.SetBoost(0.5)

		descFuzzy := bleve.NewFuzzyQuery(term)
		descFuzzy.SetField("Description")
		descFuzzy.SetFuzziness(1)
		descFuzzy.SetBoost(0.3)

		queries = append(queries, nameFuzzy, descFuzzy)
	}

	return bleve.NewDisjunctionQuery(queries...)
}
