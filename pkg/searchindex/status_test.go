package searchindex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusMapCoversEveryIndexType(t *testing.T) {
	m := NewStatusMap()

	assert.Equal(t, len(AllIndexTypes()), m.Len())
	for _, it := range AllIndexTypes() {
		s, ok := m.Get(it)
		require.True(t, ok, it)
		assert.Equal(t, IndexStatusNotCreated, s, it)
	}
}

func TestStatusMapRejectsUnknownType(t *testing.T) {
	m := NewStatusMap()

	err := m.Set(IndexType("chart_search_index"), IndexStatusCreated)
	assert.ErrorIs(t, err, ErrInvalidIndexType)
	assert.Equal(t, len(AllIndexTypes()), m.Len())

	_, ok := m.Get(IndexType("chart_search_index"))
	assert.False(t, ok)
}

func TestStatusMapSnapshotIsCopy(t *testing.T) {
	m := NewStatusMap()
	require.NoError(t, m.Set(TopicSearchIndex, IndexStatusFailed))

	snap := m.Snapshot()
	assert.Equal(t, IndexStatusFailed, snap[TopicSearchIndex])

	snap[TopicSearchIndex] = IndexStatusCreated
	delete(snap, TableSearchIndex)

	s, _ := m.Get(TopicSearchIndex)
	assert.Equal(t, IndexStatusFailed, s)
	assert.Equal(t, len(AllIndexTypes()), m.Len())
}

func TestStatusMapConcurrentAccess(t *testing.T) {
	m := NewStatusMap()

	var wg sync.WaitGroup
	for _, it := range AllIndexTypes() {
		it := it
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Set(it, IndexStatusCreated))
		}()
		go func() {
			defer wg.Done()
			m.Snapshot()
		}()
	}
	wg.Wait()

	for it, s := range m.Snapshot() {
		assert.Equal(t, IndexStatusCreated, s, it)
	}
}

func TestParseIndexType(t *testing.T) {
	it, err := ParseIndexType("glossary_search_index")
	require.NoError(t, err)
	assert.Equal(t, GlossarySearchIndex, it)

	_, err = ParseIndexType("glossary")
	assert.ErrorIs(t, err, ErrInvalidIndexType)
	assert.ErrorContains(t, err, "glossary")
}

func TestAllIndexTypesReturnsCopy(t *testing.T) {
	types := AllIndexTypes()
	require.Len(t, types, 12)
	types[0] = "changed"

	assert.Equal(t, TableSearchIndex, AllIndexTypes()[0])
}
