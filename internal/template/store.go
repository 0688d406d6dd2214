package template

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docforge.org/internal/blob"
	"docforge.org/internal/ids"
)

// Store defines template version chain operations.
type Store interface {
	// Append stores content as a new head version. A lost write race
	// surfaces as ErrNotWritable and may be retried by the caller.
	Append(ctx context.Context, name string, format Format, content []byte, changeLog string) (Version, error)
	// Rollback copies the target version's content into a new head version
	// through the same path as Append. The full chain, including the
	// rolled-back-from version, stays retrievable.
	Rollback(ctx context.Context, name string, format Format, target int) (Version, error)
	// Resolve returns the head version when number is zero, else the exact
	// match.
	Resolve(ctx context.Context, name string, format Format, number int) (Version, error)
	// History returns the full chain in ascending version order.
	History(ctx context.Context, name string, format Format) ([]Version, error)
	// Content loads the version's template content from the object store.
	Content(ctx context.Context, v Version) ([]byte, error)
}

type chainKey struct {
	name   string
	format Format
}

// InMemory implements Store with in-process concurrency safety. Content
// bytes live in the object-store collaborator, never in the chain itself.
type InMemory struct {
	mu     sync.RWMutex
	chains map[chainKey][]Version
	blobs  blob.Store
}

// NewInMemory creates an empty store backed by the given object store.
func NewInMemory(blobs blob.Store) *InMemory {
	return &InMemory{
		chains: make(map[chainKey][]Version),
		blobs:  blobs,
	}
}

func (s *InMemory) Append(ctx context.Context, name string, format Format, content []byte, changeLog string) (Version, error) {
	if name == "" {
		return Version{}, fmt.Errorf("%w: empty template name", ErrTemplateNotFound)
	}
	ref, err := s.blobs.Put(ctx, ids.Ref("tpl"), content)
	if err != nil {
		return Version{}, fmt.Errorf("store template content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(name, format, ref, changeLog), nil
}

func (s *InMemory) appendLocked(name string, format Format, contentRef, changeLog string) Version {
	key := chainKey{name, format}
	chain := s.chains[key]

	next := 1
	if n := len(chain); n > 0 {
		next = chain[n-1].Number + 1
		chain[n-1].IsLatest = false
	}
	v := Version{
		TemplateName: name,
		Format:       format,
		Number:       next,
		ContentRef:   contentRef,
		CreatedAt:    time.Now().UTC(),
		ChangeLog:    changeLog,
		IsLatest:     true,
	}
	s.chains[key] = append(chain, v)
	return v
}

func (s *InMemory) Rollback(ctx context.Context, name string, format Format, target int) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.chains[chainKey{name, format}]
	if !ok {
		return Version{}, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, name, format)
	}
	var from *Version
	for i := range chain {
		if chain[i].Number == target {
			from = &chain[i]
			break
		}
	}
	if from == nil {
		return Version{}, fmt.Errorf("%w: %s/%s v%d", ErrVersionNotFound, name, format, target)
	}

	// A rollback is a copy, not a pointer move: the target's content ref is
	// re-recorded under a fresh version number via the append path.
	return s.appendLocked(name, format, from.ContentRef, fmt.Sprintf("rollback to v%d", target)), nil
}

func (s *InMemory) Resolve(ctx context.Context, name string, format Format, number int) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.chains[chainKey{name, format}]
	if !ok || len(chain) == 0 {
		return Version{}, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, name, format)
	}
	if number == 0 {
		return chain[len(chain)-1], nil
	}
	for _, v := range chain {
		if v.Number == number {
			return v, nil
		}
	}
	return Version{}, fmt.Errorf("%w: %s/%s v%d", ErrVersionNotFound, name, format, number)
}

func (s *InMemory) History(ctx context.Context, name string, format Format) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.chains[chainKey{name, format}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, name, format)
	}
	out := make([]Version, len(chain))
	copy(out, chain)
	return out, nil
}

func (s *InMemory) Content(ctx context.Context, v Version) ([]byte, error) {
	return s.blobs.Get(ctx, v.ContentRef)
}
