package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/config"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(sig string) *models.ResponseRecord {
	return &models.ResponseRecord{
		RequestSignature:  sig,
		ResponseSignature: "resp-" + sig,
		From:              "SenderAddress",
		RequestMemo:       "question",
		ResponseMemo:      "answer",
		AnalysisOK:        true,
		RespondedAt:       time.Now().UTC(),
	}
}

// runStoreContract checks the behavior every backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	answered, err := store.AlreadyAnswered(ctx, "sig-one")
	require.NoError(t, err)
	assert.False(t, answered)

	require.NoError(t, store.Record(ctx, testRecord("sig-one")))

	answered, err = store.AlreadyAnswered(ctx, "sig-one")
	require.NoError(t, err)
	assert.True(t, answered)

	// Unrelated signatures stay unanswered
	answered, err = store.AlreadyAnswered(ctx, "sig-two")
	require.NoError(t, err)
	assert.False(t, answered)

	// Recording twice overwrites, never errors
	require.NoError(t, store.Record(ctx, testRecord("sig-one")))

	require.NoError(t, store.Record(ctx, testRecord("sig-two")))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_Contract(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	runStoreContract(t, store)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	const numGoroutines = 10
	const numOps = 100

	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer func() { done <- true }()
			for j := 0; j < numOps; j++ {
				sig := fmt.Sprintf("sig.%d.%d", id, j)

				err := store.Record(ctx, testRecord(sig))
				assert.NoError(t, err)

				answered, err := store.AlreadyAnswered(ctx, sig)
				assert.NoError(t, err)
				assert.True(t, answered)
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, numGoroutines*numOps, n)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), &config.Config{DedupBackend: "memory"}, quietLogger())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpen_Pebble(t *testing.T) {
	store, err := Open(context.Background(), &config.Config{
		DedupBackend: "pebble",
		DedupDir:     t.TempDir(),
	}, quietLogger())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*PebbleStore)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{DedupBackend: "etcd"}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dedup backend")
}
