package scripts

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps scripts in process. Used when no database is configured.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Script
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byID: map[string]Script{}} }

func (r *MemoryRepo) Save(ctx context.Context, s Script) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Script, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Script, 0, len(r.byID))
	for _, s := range r.byID {
		s.Content = ""
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Script, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return Script{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}
