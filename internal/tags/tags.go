// Package tags evaluates match-any / match-all tag predicates.
//
// A Filter can be evaluated against a single tag set (Matches) or compiled
// against per-tag posting lists into the bitmap of all accepted ids
// (Compile). Both views agree: id ∈ Compile(p) iff Matches(tags(id)).
package tags

import (
	"errors"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrEmpty is returned when a filter has no tags.
var ErrEmpty = errors.New("tags: empty query tag set")

// Postings resolves the ids carrying a tag. Nil means no item has it.
type Postings interface {
	Posting(tag uint32) *roaring.Bitmap
}

// Filter is a tag predicate. MatchAll selects subset semantics (Q ⊆ T);
// otherwise a non-empty intersection (T ∩ Q ≠ ∅) is enough.
type Filter struct {
	tags     []uint32
	matchAll bool
}

// NewFilter builds a filter from the query tags. Duplicates collapse.
func NewFilter(query []uint32, matchAll bool) (*Filter, error) {
	if len(query) == 0 {
		return nil, ErrEmpty
	}
	q := slices.Clone(query)
	slices.Sort(q)
	return &Filter{tags: slices.Compact(q), matchAll: matchAll}, nil
}

// Tags returns the deduplicated query tags in ascending order.
func (f *Filter) Tags() []uint32 { return f.tags }

// MatchAll reports whether the filter uses subset semantics.
func (f *Filter) MatchAll() bool { return f.matchAll }

// Matches evaluates the predicate against a tag set sorted ascending.
func (f *Filter) Matches(set []uint32) bool {
	i, j := 0, 0
	hits := 0
	for i < len(f.tags) && j < len(set) {
		switch {
		case f.tags[i] == set[j]:
			if !f.matchAll {
				return true
			}
			hits++
			i++
			j++
		case f.tags[i] < set[j]:
			if f.matchAll {
				return false
			}
			i++
		default:
			j++
		}
	}
	return f.matchAll && hits == len(f.tags)
}

// Compile returns the bitmap of ids accepted by the filter.
// The result is owned by the caller.
func (f *Filter) Compile(p Postings) *roaring.Bitmap {
	lists := make([]*roaring.Bitmap, 0, len(f.tags))
	for _, tag := range f.tags {
		bm := p.Posting(tag)
		if bm == nil {
			if f.matchAll {
				return roaring.New()
			}
			continue
		}
		lists = append(lists, bm)
	}

	switch {
	case len(lists) == 0:
		return roaring.New()
	case len(lists) == 1:
		return lists[0].Clone()
	case f.matchAll:
		return roaring.FastAnd(lists...)
	default:
		return roaring.FastOr(lists...)
	}
}
