package component

import (
	"fmt"
	"sort"
)

// Set is an immutable collection of components keyed by id.
type Set struct {
	byID map[string]*Component
}

// NewSet indexes components. Duplicate ids are an error.
func NewSet(components ...*Component) (*Set, error) {
	s := &Set{byID: make(map[string]*Component, len(components))}
	for _, c := range components {
		if _, dup := s.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate component %q", c.ID)
		}
		s.byID[c.ID] = c
	}
	return s, nil
}

// Lookup returns the component with id.
func (s *Set) Lookup(id string) (*Component, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.byID[id]
	return c, ok
}

// IDs returns every component id, sorted.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of components.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byID)
}
