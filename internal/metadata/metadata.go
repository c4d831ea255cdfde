// Package metadata tracks named, typed metadata entries for a document,
// object, mesh or build item.
//
// The store behaves mostly like a map, with one twist: when several sources
// (for example multiple imported packages) disagree on the value of a key,
// the key is erased rather than silently picking one of the two truths. An
// erased key reads as absent until it is explicitly deleted.
package metadata

import "sort"

// Well-known entry names. PartNumber and ObjectType carry 3MF attributes
// through a metadata-only round trip; Title maps to the host object's name.
const (
	NameTitle      = "Title"
	NamePartNumber = "3mf:partnumber"
	NameObjectType = "3mf:object_type"
)

// Entry is a single metadata entry as it can appear in a 3MF document.
type Entry struct {
	Name     string
	Preserve bool
	Datatype string
	Value    string
}

// Store is a consistency-preserving collection of metadata entries.
type Store struct {
	// entries maps names to entries. A nil value is the erasure marker left
	// behind by conflicting inserts.
	entries map[string]*Entry
}

// NewStore creates an empty metadata store.
func NewStore() *Store {
	return &Store{entries: map[string]*Entry{}}
}

// Set adds an entry. A brand-new key stores the entry. A key that was erased
// by an earlier conflict stays erased. A key holding the same value and
// datatype keeps its entry, with the preserve flag strengthened if either
// side asks for it. A key holding a different value or datatype is erased:
// both the old and the new value become unavailable.
func (s *Store) Set(name string, entry Entry) {
	entry.Name = name

	existing, ok := s.entries[name]
	if !ok {
		s.entries[name] = &entry
		return
	}
	if existing == nil {
		// Already in conflict with another entry. The new value would be in
		// conflict with at least one of them too.
		return
	}
	if entry.Value != existing.Value || entry.Datatype != existing.Datatype {
		s.entries[name] = nil
		return
	}
	if entry.Preserve && !existing.Preserve {
		existing.Preserve = true
	}
}

// Get retrieves an entry. An erased key reads the same as a missing one.
func (s *Store) Get(name string) (Entry, bool) {
	entry, ok := s.entries[name]
	if !ok || entry == nil {
		return Entry{}, false
	}
	return *entry, true
}

// Has reports whether an entry is present and not in conflict.
func (s *Store) Has(name string) bool {
	entry, ok := s.entries[name]
	return ok && entry != nil
}

// Delete removes all traces of an entry, including the shadow left by
// conflicting inserts, so a new value can be stored cleanly.
func (s *Store) Delete(name string) {
	delete(s.entries, name)
}

// Values returns all entries that are present and not in conflict, sorted by
// name so serialized output is deterministic.
func (s *Store) Values() []Entry {
	result := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry != nil {
			result = append(result, *entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Len returns the number of entries that are present and not in conflict.
func (s *Store) Len() int {
	count := 0
	for _, entry := range s.entries {
		if entry != nil {
			count++
		}
	}
	return count
}

// Merge sets every valid entry of other into this store, applying the usual
// conflict rules.
func (s *Store) Merge(other *Store) {
	if other == nil {
		return
	}
	for _, entry := range other.Values() {
		s.Set(entry.Name, entry)
	}
}

// Clone returns an independent copy of the store, conflict markers included.
func (s *Store) Clone() *Store {
	result := NewStore()
	for name, entry := range s.entries {
		if entry == nil {
			result.entries[name] = nil
			continue
		}
		copied := *entry
		result.entries[name] = &copied
	}
	return result
}
