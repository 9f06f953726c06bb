package tabular

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Float is a statistic that encodes NaN and infinities as JSON null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// Valid reports whether the statistic is a finite number.
func (f Float) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ColumnStats is the descriptive summary of one column. Numeric columns fill
// the moment and percentile fields; other columns fill unique/top/freq.
type ColumnStats struct {
	Count  int     `json:"count"`
	Unique *int    `json:"unique,omitempty"`
	Top    *string `json:"top,omitempty"`
	Freq   *int    `json:"freq,omitempty"`
	Mean   *Float  `json:"mean,omitempty"`
	Std    *Float  `json:"std,omitempty"`
	Min    *Float  `json:"min,omitempty"`
	Q25    *Float  `json:"25%,omitempty"`
	Q50    *Float  `json:"50%,omitempty"`
	Q75    *Float  `json:"75%,omitempty"`
	Max    *Float  `json:"max,omitempty"`
}

// Describe computes per-column descriptive statistics.
func (d *Dataset) Describe() map[string]ColumnStats {
	out := make(map[string]ColumnStats, len(d.cols))
	for i := range d.cols {
		c := &d.cols[i]
		if c.kind == KindNumeric {
			values, _ := d.NumericValues(c.name)
			out[c.name] = describeNumeric(values)
			continue
		}
		out[c.name] = describeText(c.raw)
	}
	return out
}

func describeNumeric(values []float64) ColumnStats {
	st := ColumnStats{Count: len(values)}
	nan := math.NaN()
	mean, std, lo, hi := nan, nan, nan, nan
	q25, q50, q75 := nan, nan, nan

	if len(values) > 0 {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		mean = stat.Mean(sorted, nil)
		std = stat.StdDev(sorted, nil)
		lo = floats.Min(sorted)
		hi = floats.Max(sorted)
		q25 = percentile(sorted, 0.25)
		q50 = percentile(sorted, 0.50)
		q75 = percentile(sorted, 0.75)
	}

	st.Mean = ptr(Float(mean))
	st.Std = ptr(Float(std))
	st.Min = ptr(Float(lo))
	st.Q25 = ptr(Float(q25))
	st.Q50 = ptr(Float(q50))
	st.Q75 = ptr(Float(q75))
	st.Max = ptr(Float(hi))
	return st
}

// percentile interpolates linearly between closest ranks over sorted data,
// position = p * (n-1).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func describeText(raw []string) ColumnStats {
	counts := make(map[string]int)
	var order []string
	for _, v := range raw {
		if isMissing(v) {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}

	st := ColumnStats{}
	for _, n := range counts {
		st.Count += n
	}
	st.Unique = ptr(len(counts))
	if len(order) == 0 {
		return st
	}

	top := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[top] {
			top = v
		}
	}
	st.Top = ptr(top)
	st.Freq = ptr(counts[top])
	return st
}

// Correlate computes the pairwise Pearson correlation of numeric columns,
// using only rows where both cells are present. Non-numeric columns are
// skipped; a dataset without numeric columns yields an empty table.
func (d *Dataset) Correlate() map[string]map[string]Float {
	numeric := make([]*column, 0, len(d.cols))
	for i := range d.cols {
		if d.cols[i].kind == KindNumeric {
			numeric = append(numeric, &d.cols[i])
		}
	}

	out := make(map[string]map[string]Float, len(numeric))
	for _, c := range numeric {
		out[c.name] = make(map[string]Float, len(numeric))
	}

	for i, a := range numeric {
		for j := i; j < len(numeric); j++ {
			b := numeric[j]
			r := pairwiseCorrelation(a.nums, b.nums)
			if i == j && Float(r).Valid() {
				r = 1
			}
			out[a.name][b.name] = Float(r)
			out[b.name][a.name] = Float(r)
		}
	}
	return out
}

func pairwiseCorrelation(a, b []float64) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func ptr[T any](v T) *T { return &v }
