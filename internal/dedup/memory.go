package dedup

import (
	"context"
	"sync"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"
)

// MemoryStore keeps the response ledger in process memory. It is the
// default backend and loses state on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	answered map[string]*models.ResponseRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		answered: make(map[string]*models.ResponseRecord),
	}
}

func (s *MemoryStore) AlreadyAnswered(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.answered[signature]
	return ok, nil
}

func (s *MemoryStore) Record(_ context.Context, rec *models.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answered[rec.RequestSignature] = rec
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.answered), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
