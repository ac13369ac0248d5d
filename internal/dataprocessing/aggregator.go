package dataprocessing

import (
	"fmt"
	"sort"

	"pangandash/pkg/contracts/domain"
)

// DefaultTopN is used when a top_n group does not set N.
const DefaultTopN = 10

// AggregateAll evaluates every group against t, in order.
func AggregateAll(t *domain.Table, groups []domain.AggregationGroup) []domain.AggregateResult {
	results := make([]domain.AggregateResult, 0, len(groups))
	for _, g := range groups {
		results = append(results, Aggregate(t, g))
	}
	return results
}

// Aggregate evaluates one group. Absent columns are skipped with a warning;
// a group with no present column returns an empty result.
func Aggregate(t *domain.Table, g domain.AggregationGroup) domain.AggregateResult {
	res := domain.AggregateResult{
		Group: g.Name,
		Title: g.Title,
		Op:    g.Op,
	}

	present := make([]domain.ColumnRef, 0, len(g.Columns))
	for _, name := range g.Columns {
		ref, ok := t.Lookup(name).Get()
		if !ok {
			res.Warnings = append(res.Warnings, domain.MissingColumnWarning(name))
			continue
		}
		present = append(present, ref)
	}
	if len(present) == 0 {
		res.Empty = true
		res.Warnings = append(res.Warnings, domain.EmptyGroupWarning(groupLabel(g)))
		return res
	}

	switch g.Op {
	case domain.OpSum:
		sumColumns(t, present, &res)
	case domain.OpMean:
		reduceColumns(t, present, &res, mean)
	case domain.OpMax:
		reduceColumns(t, present, &res, maximum)
	case domain.OpTopN:
		topN(t, present[0], g, &res)
	case domain.OpCountBy:
		countBy(t, present[0], &res)
	case domain.OpSumBy:
		sumBy(t, present, g, &res)
	case domain.OpCoordinates:
		coordinates(t, present[0], g, &res)
	default:
		res.Empty = true
		res.Warnings = append(res.Warnings, domain.Warning{
			Code:    domain.WarnEmptyGroup,
			Group:   g.Name,
			Message: fmt.Sprintf("Operasi '%s' tidak dikenal.", g.Op),
		})
	}
	return res
}

func groupLabel(g domain.AggregationGroup) string {
	if g.Title != "" {
		return g.Title
	}
	return g.Name
}

func sumColumns(t *domain.Table, refs []domain.ColumnRef, res *domain.AggregateResult) {
	var total float64
	contributed := false
	for _, ref := range refs {
		nums := t.Numbers(ref)
		cv := domain.ColumnValue{Column: ref.Name, Count: len(nums)}
		if len(nums) == 0 {
			cv.Value = domain.None[float64]()
			res.Warnings = append(res.Warnings, domain.NoNumericValuesWarning(ref.Name))
		} else {
			s := sum(nums)
			cv.Value = domain.Some(s)
			total += s
			contributed = true
		}
		res.Values = append(res.Values, cv)
	}
	if contributed {
		res.Total = domain.Some(total)
	}
}

// reduceColumns applies fn per column. Total holds the first column's value,
// which is the designated column of mean and max groups.
func reduceColumns(t *domain.Table, refs []domain.ColumnRef, res *domain.AggregateResult, fn func([]float64) float64) {
	for i, ref := range refs {
		nums := t.Numbers(ref)
		cv := domain.ColumnValue{Column: ref.Name, Count: len(nums)}
		if len(nums) == 0 {
			cv.Value = domain.None[float64]()
			res.Warnings = append(res.Warnings, domain.NoNumericValuesWarning(ref.Name))
		} else {
			cv.Value = domain.Some(fn(nums))
		}
		if i == 0 {
			res.Total = cv.Value
		}
		res.Values = append(res.Values, cv)
	}
}

func topN(t *domain.Table, ref domain.ColumnRef, g domain.AggregationGroup, res *domain.AggregateResult) {
	n := g.N
	if n <= 0 {
		n = DefaultTopN
	}
	labels := rowLabels(t, g.LabelColumn, res)

	ranked := make([]domain.RankedRow, 0, t.Len())
	for i := range t.Rows {
		f, ok := t.Cell(i, ref).Float()
		if !ok {
			continue
		}
		ranked = append(ranked, domain.RankedRow{Row: i, Label: labels(i), Value: f})
	}
	res.Ranked = TopN(ranked, n)
	if len(res.Ranked) == 0 {
		res.Warnings = append(res.Warnings, domain.NoNumericValuesWarning(ref.Name))
	}
}

// TopN returns the n largest rows by value. Ties keep their input order.
func TopN(rows []domain.RankedRow, n int) []domain.RankedRow {
	sorted := make([]domain.RankedRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func countBy(t *domain.Table, ref domain.ColumnRef, res *domain.AggregateResult) {
	index := make(map[string]int)
	counts := make([]domain.CategoryCount, 0)
	for i := range t.Rows {
		cell := t.Cell(i, ref)
		if cell.IsMissing() {
			continue
		}
		key := cell.String()
		pos, ok := index[key]
		if !ok {
			pos = len(counts)
			index[key] = pos
			counts = append(counts, domain.CategoryCount{Category: key})
		}
		counts[pos].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	res.Counts = counts
}

func sumBy(t *domain.Table, refs []domain.ColumnRef, g domain.AggregationGroup, res *domain.AggregateResult) {
	key, ok := t.Lookup(g.GroupBy).Get()
	if !ok {
		res.Empty = true
		res.Warnings = append(res.Warnings, domain.MissingColumnWarning(g.GroupBy))
		return
	}

	index := make(map[string]int)
	groups := make([]domain.GroupTotal, 0)
	counts := make([][]int, 0)
	for i := range t.Rows {
		cell := t.Cell(i, key)
		if cell.IsMissing() {
			continue
		}
		category := cell.String()
		pos, seen := index[category]
		if !seen {
			pos = len(groups)
			index[category] = pos
			values := make([]domain.ColumnValue, len(refs))
			for j, ref := range refs {
				values[j] = domain.ColumnValue{Column: ref.Name, Value: domain.Some(0.0)}
			}
			groups = append(groups, domain.GroupTotal{Category: category, Values: values})
			counts = append(counts, make([]int, len(refs)))
		}
		for j, ref := range refs {
			f, ok := t.Cell(i, ref).Float()
			if !ok {
				continue
			}
			cur, _ := groups[pos].Values[j].Value.Get()
			groups[pos].Values[j].Value = domain.Some(cur + f)
			groups[pos].Total += f
			counts[pos][j]++
		}
	}
	for pos := range groups {
		for j := range refs {
			groups[pos].Values[j].Count = counts[pos][j]
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total > groups[j].Total
	})
	res.Groups = groups
}

func coordinates(t *domain.Table, ref domain.ColumnRef, g domain.AggregationGroup, res *domain.AggregateResult) {
	labels := rowLabels(t, g.LabelColumn, res)
	points := make([]domain.MapPoint, 0, t.Len())
	for i := range t.Rows {
		cell := t.Cell(i, ref)
		c := ParseCoordinate(cell.String())
		if !c.Valid {
			res.Dropped++
			continue
		}
		points = append(points, domain.MapPoint{
			Row:       i,
			Label:     labels(i),
			Longitude: c.Longitude,
			Latitude:  c.Latitude,
		})
	}
	res.Points = points
	res.Bounds = PointBounds(points)
}

// rowLabels returns a function naming row i by the label column, falling back
// to its position when the column is absent.
func rowLabels(t *domain.Table, column string, res *domain.AggregateResult) func(int) string {
	fallback := func(i int) string { return fmt.Sprintf("Baris %d", i+1) }
	if column == "" {
		return fallback
	}
	ref, ok := t.Lookup(column).Get()
	if !ok {
		res.Warnings = append(res.Warnings, domain.MissingColumnWarning(column))
		return fallback
	}
	return func(i int) string {
		cell := t.Cell(i, ref)
		if cell.IsMissing() {
			return fallback(i)
		}
		return cell.String()
	}
}

func sum(nums []float64) float64 {
	var s float64
	for _, n := range nums {
		s += n
	}
	return s
}

func mean(nums []float64) float64 {
	return sum(nums) / float64(len(nums))
}

func maximum(nums []float64) float64 {
	m := nums[0]
	for _, n := range nums[1:] {
		if n > m {
			m = n
		}
	}
	return m
}
