// Package ytd aligns per-year day-of-year opening curves to a common
// cutoff so partial years compare fairly against prior years. The view
// only ever exposes same-cutoff cumulative values; full-year totals are
// unreachable through it by construction.
package ytd

import (
	"fmt"
	"sort"
)

// MaxDayOfYear is the largest valid 1-based day-of-year (leap years).
const MaxDayOfYear = 366

// Row is one year's cumulative count at the cutoff, with its growth rate
// against the previous listed year. GrowthRate is nil for the first year
// and whenever the previous year's cumulative is zero.
type Row struct {
	Year       int      `json:"year"`
	Cumulative int64    `json:"cumulative"`
	GrowthRate *float64 `json:"growth_rate"`
}

// Comparison is a read-only cross-year view at one day-of-year cutoff.
type Comparison struct {
	ReferenceDay int   `json:"reference_day"`
	Rows         []Row `json:"rows"`
}

// Align restricts the per-year curves to days 1..refDay inclusive and
// computes year-over-year growth between consecutive listed years. When
// years is empty, every year present in curves is included, ascending.
func Align(curves map[int]map[int]int64, refDay int, years []int) (Comparison, error) {
	if refDay < 1 || refDay > MaxDayOfYear {
		return Comparison{}, fmt.Errorf("reference day-of-year %d out of range 1..%d", refDay, MaxDayOfYear)
	}

	if len(years) == 0 {
		for year := range curves {
			years = append(years, year)
		}
	}
	years = append([]int(nil), years...)
	sort.Ints(years)

	cmp := Comparison{ReferenceDay: refDay, Rows: make([]Row, 0, len(years))}
	var prev *int64
	for _, year := range years {
		cum := Cumulative(curves[year], refDay)
		row := Row{Year: year, Cumulative: cum}
		if prev != nil && *prev != 0 {
			rate := float64(cum-*prev) / float64(*prev) * 100
			row.GrowthRate = &rate
		}
		cmp.Rows = append(cmp.Rows, row)
		v := cum
		prev = &v
	}
	return cmp, nil
}

// Cumulative sums a single year's curve over days 1..refDay inclusive.
// A missing curve yields zero.
func Cumulative(curve map[int]int64, refDay int) int64 {
	var total int64
	for doy, count := range curve {
		if doy >= 1 && doy <= refDay {
			total += count
		}
	}
	return total
}
