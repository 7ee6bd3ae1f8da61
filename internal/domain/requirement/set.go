package requirement

import (
	"sort"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
)

// Set is an unordered set of required document kinds
type Set map[entity.DocumentKind]struct{}

// NewSet builds a set from the given kinds
func NewSet(kinds ...entity.DocumentKind) Set {
	s := make(Set, len(kinds))
	for _, k := range kinds {
		s.Add(k)
	}
	return s
}

// Add inserts a kind
func (s Set) Add(kinds ...entity.DocumentKind) {
	for _, k := range kinds {
		s[k] = struct{}{}
	}
}

// Has reports whether the kind is required
func (s Set) Has(k entity.DocumentKind) bool {
	_, ok := s[k]
	return ok
}

// Equal reports whether both sets hold the same kinds
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the kinds in lexical order
func (s Set) Sorted() []entity.DocumentKind {
	out := make([]entity.DocumentKind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
