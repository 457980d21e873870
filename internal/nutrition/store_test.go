package nutrition

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func friedRice() Record {
	return Record{Name: "Fried Rice", Calories: 250, Protein: 5, Fat: 8, Carbs: 40}
}

func TestStoreMissingFileStartsEmpty(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	assert.Equal(t, 0, store.Len())
	_, ok := store.Lookup("anything")
	assert.False(t, ok)
}

func TestStoreAppendAndLookupVariants(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	require.NoError(t, store.Append(friedRice()))

	for _, query := range []string{"Fried Rice", "fried rice", "FRIED  RICE!!", "friedrice"} {
		rec, ok := store.Lookup(query)
		require.True(t, ok, "query %q should hit", query)
		assert.Equal(t, friedRice(), rec)
	}
}

func TestStoreFuzzyFallback(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	require.NoError(t, store.Append(friedRice()))

	// No exact entry for "rice", but "rice" is contained in "friedrice".
	rec, ok := store.Lookup("rice")
	require.True(t, ok)
	assert.Equal(t, "Fried Rice", rec.Name)

	_, ok = store.Lookup("noodles")
	assert.False(t, ok)
}

func TestStoreExactMatchWinsOverFuzzy(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	require.NoError(t, store.Append(friedRice()))
	require.NoError(t, store.Append(Record{Name: "Rice", Calories: 130, Protein: 2.7, Fat: 0.3, Carbs: 28}))

	rec, ok := store.Lookup("rice")
	require.True(t, ok)
	assert.Equal(t, "Rice", rec.Name)
}

func TestStoreDuplicateAppendSkipped(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	require.NoError(t, store.Append(friedRice()))
	require.NoError(t, store.Append(Record{Name: "fried rice!", Calories: 999}))

	assert.Equal(t, 1, store.Len())
	rec, ok := store.Lookup("fried rice")
	require.True(t, ok)
	assert.Equal(t, 250.0, rec.Calories)
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	err := store.Append(Record{Name: "123 !?"})
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	store := OpenStore(path, testLogger())
	require.NoError(t, store.Append(friedRice()))
	require.NoError(t, store.Close())

	reopened := OpenStore(path, testLogger())
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Len())
	rec, ok := reopened.Lookup("FRIED RICE")
	require.True(t, ok)
	assert.Equal(t, friedRice(), rec)
}

func TestStoreConcurrentAppends(t *testing.T) {
	store := OpenStore(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()

	records := []Record{
		{Name: "Banana", Calories: 89, Protein: 1.1, Fat: 0.3, Carbs: 22.8},
		{Name: "Apple", Calories: 52, Protein: 0.3, Fat: 0.2, Carbs: 13.8},
		{Name: "Oatmeal", Calories: 68, Protein: 2.4, Fat: 1.4, Carbs: 12},
	}

	done := make(chan struct{})
	for _, rec := range records {
		go func(r Record) {
			defer func() { done <- struct{}{} }()
			_ = store.Append(r)
			_, _ = store.Lookup(r.Name)
		}(rec)
	}
	for range records {
		<-done
	}

	assert.Equal(t, len(records), store.Len())
	for _, rec := range records {
		_, ok := store.Lookup(rec.Name)
		assert.True(t, ok, "record %q", rec.Name)
	}
}
