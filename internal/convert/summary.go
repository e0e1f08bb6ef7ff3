// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import "github.com/pdiddy/mdconvert/pkg/types"

// Summarize counts successes and failures in results. The result order is
// preserved.
func Summarize(results []types.ConversionResult) types.BatchSummary {
	s := types.BatchSummary{
		Total:   len(results),
		Results: make([]types.ConversionResult, len(results)),
	}
	copy(s.Results, results)
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}
