package events

import (
	"cmp"
	"slices"
	"sort"
)

// Interval is a half-open [Start, End) span in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains applies the half-open rule: the start instant is inside, the end
// instant is not.
func (iv Interval) Contains(t float64) bool {
	return iv.Start <= t && t < iv.End
}

// Set answers membership queries against a collection of intervals. It merges
// overlapping and touching intervals up front and binary searches them, which
// yields the same answer as testing every interval independently.
type Set struct {
	merged []Interval
}

// NewSet builds a set. Empty or inverted intervals (End <= Start) contain no
// instant and are discarded.
func NewSet(intervals []Interval) *Set {
	usable := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End > iv.Start {
			usable = append(usable, iv)
		}
	}
	slices.SortFunc(usable, func(a, b Interval) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	merged := make([]Interval, 0, len(usable))
	for _, iv := range usable {
		if n := len(merged); n > 0 && iv.Start <= merged[n-1].End {
			if iv.End > merged[n-1].End {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return &Set{merged: merged}
}

// Len is the number of disjoint intervals after merging.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.merged)
}

// Contains reports whether t falls inside any interval.
func (s *Set) Contains(t float64) bool {
	if s == nil || len(s.merged) == 0 {
		return false
	}
	// first interval starting after t; the candidate is the one before it
	i := sort.Search(len(s.merged), func(i int) bool { return s.merged[i].Start > t })
	if i == 0 {
		return false
	}
	return s.merged[i-1].Contains(t)
}
