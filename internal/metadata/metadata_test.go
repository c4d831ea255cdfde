package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_NewEntry(t *testing.T) {
	store := NewStore()
	store.Set("Designer", Entry{Value: "Alice", Datatype: "xs:string"})

	entry, ok := store.Get("Designer")
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.Value)
	assert.Equal(t, "Designer", entry.Name)
}

func TestSet_AgreeingValuesKeepEntry(t *testing.T) {
	store := NewStore()
	store.Set("Designer", Entry{Value: "Alice"})
	store.Set("Designer", Entry{Value: "Alice", Preserve: true})

	entry, ok := store.Get("Designer")
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.Value)
	// The preserve flag is strengthened, never weakened.
	assert.True(t, entry.Preserve)

	store.Set("Designer", Entry{Value: "Alice"})
	entry, _ = store.Get("Designer")
	assert.True(t, entry.Preserve)
}

func TestSet_ConflictErasesEntry(t *testing.T) {
	store := NewStore()
	store.Set("Designer", Entry{Value: "Alice"})
	store.Set("Designer", Entry{Value: "Bob"})

	assert.False(t, store.Has("Designer"))
	_, ok := store.Get("Designer")
	assert.False(t, ok)

	// A third agreeing value cannot resurrect the entry.
	store.Set("Designer", Entry{Value: "Alice"})
	assert.False(t, store.Has("Designer"))
}

func TestSet_DatatypeMismatchIsAConflict(t *testing.T) {
	store := NewStore()
	store.Set("Count", Entry{Value: "3", Datatype: "xs:integer"})
	store.Set("Count", Entry{Value: "3", Datatype: "xs:string"})

	assert.False(t, store.Has("Count"))
}

func TestDelete_ClearsConflictMarker(t *testing.T) {
	store := NewStore()
	store.Set("Designer", Entry{Value: "Alice"})
	store.Set("Designer", Entry{Value: "Bob"})
	store.Delete("Designer")

	store.Set("Designer", Entry{Value: "Carol"})
	entry, ok := store.Get("Designer")
	require.True(t, ok)
	assert.Equal(t, "Carol", entry.Value)
}

func TestValues_SortedAndSkipsConflicts(t *testing.T) {
	store := NewStore()
	store.Set("b", Entry{Value: "2"})
	store.Set("a", Entry{Value: "1"})
	store.Set("c", Entry{Value: "3"})
	store.Set("c", Entry{Value: "other"})

	values := store.Values()
	require.Len(t, values, 2)
	assert.Equal(t, "a", values[0].Name)
	assert.Equal(t, "b", values[1].Name)
	assert.Equal(t, 2, store.Len())
}

func TestMerge_AppliesConflictRules(t *testing.T) {
	first := NewStore()
	first.Set("Designer", Entry{Value: "Alice"})
	first.Set("Application", Entry{Value: "scene3mf"})

	second := NewStore()
	second.Set("Designer", Entry{Value: "Bob"})
	second.Set("Copyright", Entry{Value: "2026"})

	first.Merge(second)
	assert.False(t, first.Has("Designer"))
	assert.True(t, first.Has("Application"))
	assert.True(t, first.Has("Copyright"))
}

func TestClone_IsIndependent(t *testing.T) {
	store := NewStore()
	store.Set("Designer", Entry{Value: "Alice"})
	store.Set("Erased", Entry{Value: "x"})
	store.Set("Erased", Entry{Value: "y"})

	clone := store.Clone()
	clone.Set("Designer", Entry{Value: "Bob"})

	// The clone carried the conflict marker over.
	clone.Set("Erased", Entry{Value: "x"})
	assert.False(t, clone.Has("Erased"))

	// The original is unaffected by edits to the clone.
	entry, ok := store.Get("Designer")
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.Value)
}
