// Package quality computes data-quality reports: missing-value rates,
// duplicate rows and Tukey-rule outlier counts per column.
package quality

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepflow/table"
)

// TukeyMultiplier widens the classic 1.5 IQR fence so only extreme values
// are flagged.
const TukeyMultiplier = 3.0

// CountRate is a per-column count with its rate over the row count.
type CountRate struct {
	Count int     `json:"count"`
	Rate  float64 `json:"rate"`
}

// Report is a quality snapshot of one table.
type Report struct {
	NRows         int                  `json:"n_rows"`
	NCols         int                  `json:"n_cols"`
	MissingValues map[string]CountRate `json:"missing_values"`
	Duplicates    int                  `json:"duplicates"`
	Outliers      map[string]CountRate `json:"outliers"`
	DataTypes     map[string]string    `json:"data_types"`
}

// Generate computes the quality report for a table snapshot. Numeric
// columns that cannot produce quantiles degrade to zero outliers instead
// of failing.
func Generate(t *table.Table) *Report {
	n := t.NumRows()
	report := &Report{
		NRows:         n,
		NCols:         t.NumCols(),
		MissingValues: make(map[string]CountRate, t.NumCols()),
		Duplicates:    t.DuplicateCount(),
		Outliers:      make(map[string]CountRate),
		DataTypes:     make(map[string]string, t.NumCols()),
	}

	for _, col := range t.Columns() {
		missing := col.MissingCount()
		rate := 0.0
		if n > 0 {
			rate = float64(missing) / float64(n)
		}
		report.MissingValues[col.Name] = CountRate{Count: missing, Rate: rate}
		report.DataTypes[col.Name] = col.StorageType()

		if col.Kind != table.Numeric {
			continue
		}
		values := col.Float64s()
		lower, upper, ok := TukeyBounds(values)
		if !ok {
			report.Outliers[col.Name] = CountRate{}
			continue
		}
		count := 0
		for _, v := range values {
			if math.IsNaN(v) {
				continue
			}
			if v < lower || v > upper {
				count++
			}
		}
		outRate := 0.0
		if n > 0 {
			outRate = float64(count) / float64(n)
		}
		report.Outliers[col.Name] = CountRate{Count: count, Rate: outRate}
	}
	return report
}

// TukeyBounds computes [Q1 - 3*IQR, Q3 + 3*IQR] over the non-missing
// values of a column. ok is false when the column has no finite values.
func TukeyBounds(values []float64) (lower, upper float64, ok bool) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}
	sort.Float64s(finite)
	q1 := stat.Quantile(0.25, stat.LinInterp, finite, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, finite, nil)
	iqr := q3 - q1
	return q1 - TukeyMultiplier*iqr, q3 + TukeyMultiplier*iqr, true
}
