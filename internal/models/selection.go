package models

import (
	"maps"
	"slices"
)

// SelectionSet is an immutable set of highlighted engagement ids. Every
// mutation returns a new value, so readers never observe a partial update.
type SelectionSet struct {
	ids map[string]struct{}
}

// NewSelectionSet builds a set from ids, ignoring duplicates.
func NewSelectionSet(ids ...string) SelectionSet {
	if len(ids) == 0 {
		return SelectionSet{}
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return SelectionSet{ids: m}
}

// Toggle removes id when present and adds it otherwise.
func (s SelectionSet) Toggle(id string) SelectionSet {
	next := make(map[string]struct{}, len(s.ids)+1)
	maps.Copy(next, s.ids)
	if _, ok := next[id]; ok {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return SelectionSet{ids: next}
}

// Contains reports whether id is selected.
func (s SelectionSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s SelectionSet) Len() int { return len(s.ids) }

// IDs returns the selected ids sorted ascending.
func (s SelectionSet) IDs() []string {
	return slices.Sorted(maps.Keys(s.ids))
}

// Equal reports whether both sets hold the same ids.
func (s SelectionSet) Equal(other SelectionSet) bool {
	if len(s.ids) != len(other.ids) {
		return false
	}
	for id := range s.ids {
		if _, ok := other.ids[id]; !ok {
			return false
		}
	}
	return true
}

// Resolve returns the selected engagements present in snap, in snapshot
// order. Ids no longer in the snapshot are ignored.
func (s SelectionSet) Resolve(snap Snapshot) []Engagement {
	if len(s.ids) == 0 {
		return nil
	}
	out := make([]Engagement, 0, len(s.ids))
	for _, e := range snap.All() {
		if s.Contains(e.ID) {
			out = append(out, e.clone())
		}
	}
	return out
}
