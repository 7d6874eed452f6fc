package storage

import (
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vessellog/crypto"
)

type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{
		next: time.Date(2024, time.March, 1, 8, 0, 0, 0, time.Local),
		step: time.Second,
	}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()

	key := make([]byte, crypto.MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c, err := crypto.NewCipher(key, "")
	require.NoError(t, err)
	return c
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	return newTestStoreAt(t, t.TempDir(), newTestCipher(t), opts...)
}

func newTestStoreAt(t *testing.T, dataDir string, sealer Sealer, opts ...Option) *Store {
	t.Helper()

	opts = append([]Option{WithClock(newStepClock().Now)}, opts...)
	store, _, err := Open(dataDir, sealer, opts...)
	require.NoError(t, err, "open test store")
	t.Cleanup(func() {
		require.NoError(t, store.Close(), "close test store")
	})

	return store
}

func mustSave(t *testing.T, store *Store, sender, recipient, received, sent string) {
	t.Helper()

	require.True(t, store.Save(t.Context(), sender, recipient, received, sent),
		"save %s -> %s", sender, recipient)
}

func mustQuery(t *testing.T, store *Store, opts QueryOptions) QueryResult {
	t.Helper()

	result, err := store.Query(t.Context(), opts)
	require.NoError(t, err)
	return result
}

func mustCount(t *testing.T, store *Store) int64 {
	t.Helper()

	stats, err := store.Stats(t.Context())
	require.NoError(t, err)
	return stats.TotalCount
}

func senderPairs(records []Record) []string {
	pairs := make([]string, 0, len(records))
	for _, r := range records {
		pairs = append(pairs, r.Sender+">"+r.Recipient)
	}
	return pairs
}
