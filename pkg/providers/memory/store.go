package memory

import (
	"context"
	"sync"

	"github.com/lightningdb/chililog/pkg/abstract"
)

// Store keeps entries in memory, per repository, in save order.
// A second save of an entry id already stored is accepted and ignored.
type Store struct {
	mu      sync.Mutex
	entries map[string][]*abstract.RepositoryEntry
	ids     map[string]struct{}
	// OnSave, when set, runs before every save; a non-nil error fails the save.
	OnSave func(repository string, entry *abstract.RepositoryEntry) error
}

var _ abstract.EntryStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{entries: map[string][]*abstract.RepositoryEntry{}, ids: map[string]struct{}{}}
}

func (s *Store) Save(_ context.Context, repository string, entry *abstract.RepositoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OnSave != nil {
		if err := s.OnSave(repository, entry); err != nil {
			return err
		}
	}
	key := repository + "/" + entry.ID
	if _, ok := s.ids[key]; ok {
		return nil
	}
	s.ids[key] = struct{}{}
	s.entries[repository] = append(s.entries[repository], entry)
	return nil
}

func (s *Store) Count(_ context.Context, repository string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries[repository])), nil
}

// Entries returns the saved entries of repository.
func (s *Store) Entries(repository string) []*abstract.RepositoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*abstract.RepositoryEntry(nil), s.entries[repository]...)
}

func (s *Store) Close(context.Context) error {
	return nil
}
