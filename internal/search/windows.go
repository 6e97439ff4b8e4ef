package search

import (
	"github.com/clio-labs/chronotex/internal/domain"
)

// PlanWindows partitions the inclusive year range [startYear, endYear] into
// contiguous, non-overlapping windows of at most size years. The last
// window may be shorter than size so the range is covered exactly once.
func PlanWindows(startYear, endYear, size int) ([]domain.TimeWindow, error) {
	if startYear > endYear {
		return nil, domain.ErrInvalidYearRange
	}
	if size < 1 {
		return nil, domain.ErrInvalidWindowSize
	}

	var windows []domain.TimeWindow
	for cur := startYear; cur <= endYear; cur += size {
		end := cur + size - 1
		if end > endYear {
			end = endYear
		}
		windows = append(windows, domain.TimeWindow{StartYear: cur, EndYear: end})
	}
	return windows, nil
}
