// Package downsample decimates long per-modality tables.
//
// Decimation keeps every Nth row with no anti-alias filtering; aliasing of
// high-frequency content is accepted by the pipeline.
package downsample

import (
	"fmt"

	"biolabel/internal/pipeerr"
	"biolabel/internal/table"
)

// Decimate returns a new table holding rows 0, stride, 2*stride, ... of t in
// their stored order. The result has ceil(t.Len()/stride) rows.
func Decimate(t *table.Table, stride int) (*table.Table, error) {
	if stride < 1 {
		return nil, pipeerr.Wrap(pipeerr.ErrValidation, "downsample", "decimate", fmt.Sprintf("stride must be at least 1 (got %d)", stride), nil)
	}
	keep := make([]int, 0, (t.Len()+stride-1)/stride)
	for i := 0; i < t.Len(); i += stride {
		keep = append(keep, i)
	}
	return t.Select(keep), nil
}
