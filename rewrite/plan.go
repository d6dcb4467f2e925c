package rewrite

import (
	"sort"
)

// Plan is a sorted set of non-overlapping rewrites that can be applied left to right in a
// single pass, together with the alternate source positions their contents refer to.
type Plan[C Content[C]] struct {
	Rewrites        []Rewrite[C]
	SourcePositions []int
}

// Build sorts the header and body rewrites together and drops every rewrite that starts before
// the end of the previously kept rewrite. Dropped rewrites are reported to the logger.
func Build[C Content[C]](header, body []Rewrite[C], logger Logger) Plan[C] {
	logger = OrDiscard(logger)

	rewrites := make([]Rewrite[C], 0, len(header)+len(body))
	rewrites = append(rewrites, header...)
	rewrites = append(rewrites, body...)
	sort.SliceStable(rewrites, func(i, j int) bool {
		return rewrites[i].Compare(rewrites[j]) < 0
	})

	kept := rewrites[:0]
	positions := []int{}
	end := 0
	for _, r := range rewrites {
		if r.Span.Lo < end {
			logger.Printf("dropping %v: overlaps previous rewrite ending at %d", r, end)
			continue
		}
		kept = append(kept, r)
		end = r.Span.Hi
		if pos, ok := r.Content.SourcePos(); ok {
			positions = append(positions, pos)
		}
	}
	return Plan[C]{
		Rewrites:        kept,
		SourcePositions: SortUnique(positions),
	}
}

// SortUnique sorts positions in place and removes duplicates.
func SortUnique(positions []int) []int {
	if len(positions) == 0 {
		return positions
	}
	sort.Ints(positions)
	j := 1
	for i := 1; i < len(positions); i++ {
		if positions[i] != positions[j-1] {
			positions[j] = positions[i]
			j++
		}
	}
	return positions[:j]
}
