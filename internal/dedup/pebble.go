package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists the response ledger in an embedded pebble database.
// It survives restarts without any external infrastructure.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Join(dir, "responses"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) AlreadyAnswered(_ context.Context, signature string) (bool, error) {
	_, closer, err := s.db.Get([]byte(signature))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting record for %s: %w", signature, err)
	}
	if err := closer.Close(); err != nil {
		return true, fmt.Errorf("closing value: %w", err)
	}
	return true, nil
}

func (s *PebbleStore) Record(_ context.Context, rec *models.ResponseRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal response record: %w", err)
	}

	if err := s.db.Set([]byte(rec.RequestSignature), b, pebble.Sync); err != nil {
		return fmt.Errorf("setting record for %s: %w", rec.RequestSignature, err)
	}
	return nil
}

// GetRecord returns the stored record for an answered signature.
func (s *PebbleStore) GetRecord(_ context.Context, signature string) (*models.ResponseRecord, error) {
	val, closer, err := s.db.Get([]byte(signature))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record for %s: %w", signature, err)
	}
	defer closer.Close()

	var rec models.ResponseRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal response record: %w", err)
	}
	return &rec, nil
}

func (s *PebbleStore) Len(_ context.Context) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
