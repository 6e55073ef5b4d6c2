// Package cleaning implements the fit/transform cleaning pipeline:
// imputation values, outlier bounds and categorical vocabularies are
// learned from a reference table and replayed deterministically against
// the same or a different table.
package cleaning

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/pkg/log"
	"github.com/YuminosukeSato/prepflow/quality"
	"github.com/YuminosukeSato/prepflow/table"
)

// ImputeStrategy selects the imputation scalar for numeric columns.
type ImputeStrategy string

// OutlierStrategy selects how out-of-bound values are treated.
type OutlierStrategy string

// CategoricalStrategy selects the categorical encoding.
type CategoricalStrategy string

const (
	ImputeMean   ImputeStrategy = "mean"
	ImputeMedian ImputeStrategy = "median"

	OutlierClip   OutlierStrategy = "clip"
	OutlierRemove OutlierStrategy = "remove"

	EncodeOneHot  CategoricalStrategy = "one_hot"
	EncodeOrdinal CategoricalStrategy = "ordinal"
)

// Params are the fit-time cleaning options.
type Params struct {
	ImputeStrategy      ImputeStrategy      `json:"impute_strategy"`
	OutlierStrategy     OutlierStrategy     `json:"outlier_strategy"`
	CategoricalStrategy CategoricalStrategy `json:"categorical_strategy"`
}

// Validate rejects unknown strategy values.
func (p Params) Validate() error {
	switch p.ImputeStrategy {
	case ImputeMean, ImputeMedian:
	default:
		return errors.NewValidationError("impute_strategy", "must be one of mean, median", string(p.ImputeStrategy))
	}
	switch p.OutlierStrategy {
	case OutlierClip, OutlierRemove:
	default:
		return errors.NewValidationError("outlier_strategy", "must be one of clip, remove", string(p.OutlierStrategy))
	}
	switch p.CategoricalStrategy {
	case EncodeOneHot, EncodeOrdinal:
	default:
		return errors.NewValidationError("categorical_strategy", "must be one of one_hot, ordinal", string(p.CategoricalStrategy))
	}
	return nil
}

// Bounds is a closed outlier interval learned at fit time.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Rules are the learned cleaning parameters. They are computed once at
// fit time and never mutated afterwards.
type Rules struct {
	ImputeValues        map[string]float64  `json:"impute_values"`
	OutlierBounds       map[string]Bounds   `json:"outlier_bounds"`
	OutlierStrategy     OutlierStrategy     `json:"outlier_strategy"`
	CategoricalVocab    map[string][]string `json:"categorical_mappings"`
	CategoricalStrategy CategoricalStrategy `json:"categorical_strategy"`
	NumericCols         []string            `json:"numeric_cols"`
	CategoricalCols     []string            `json:"categorical_cols"`
}

// Artifact is an immutable fitted cleaning pipeline.
type Artifact struct {
	ID            string          `json:"id"`
	SourceParams  Params          `json:"source_params"`
	Rules         Rules           `json:"rules"`
	FittedColumns []string        `json:"fitted_columns"`
	ReportBefore  *quality.Report `json:"report_before"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TransformReport summarizes one Transform call.
type TransformReport struct {
	DuplicatesRemoved int             `json:"duplicates_removed"`
	MissingImputed    map[string]int  `json:"missing_imputed"`
	OutliersTreated   map[string]int  `json:"outliers_treated"`
	TypesConverted    []string        `json:"types_converted"`
	RowsBefore        int             `json:"rows_before"`
	RowsAfter         int             `json:"rows_after"`
	ReportAfter       *quality.Report `json:"report_after"`
}

// newArtifactID mints a fresh id per fit; the uuid suffix keeps two fits
// on identical input from colliding.
func newArtifactID(now time.Time) string {
	return fmt.Sprintf("cleaner_%s_%s", now.Format("20060102150405"), uuid.NewString()[:8])
}

// Fit learns imputation scalars, Tukey outlier bounds and categorical
// vocabularies from t.
func Fit(t *table.Table, p Params) (*Artifact, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if t.NumRows() == 0 {
		return nil, errors.NewValueError("cleaning.Fit", "empty table")
	}

	rules := Rules{
		ImputeValues:        make(map[string]float64),
		OutlierBounds:       make(map[string]Bounds),
		OutlierStrategy:     p.OutlierStrategy,
		CategoricalVocab:    make(map[string][]string),
		CategoricalStrategy: p.CategoricalStrategy,
		NumericCols:         t.NumericCols(),
		CategoricalCols:     t.CategoricalCols(),
	}

	for _, name := range rules.NumericCols {
		col, _ := t.Col(name)
		values := observed(col.Float64s())
		if len(values) == 0 {
			continue
		}
		rules.ImputeValues[name] = imputeScalar(values, p.ImputeStrategy)
		if lower, upper, ok := quality.TukeyBounds(values); ok {
			rules.OutlierBounds[name] = Bounds{Lower: lower, Upper: upper}
		}
	}

	for _, name := range rules.CategoricalCols {
		col, _ := t.Col(name)
		rules.CategoricalVocab[name] = vocabulary(col.Strings())
	}

	a := &Artifact{
		ID:            newArtifactID(time.Now()),
		SourceParams:  p,
		Rules:         rules,
		FittedColumns: t.Names(),
		ReportBefore:  quality.Generate(t),
		CreatedAt:     time.Now(),
	}
	lg := log.With("cleaning")
	lg.Info().
		Str(log.CleanerIDKey, a.ID).
		Int(log.RowsKey, t.NumRows()).
		Int(log.ColsKey, t.NumCols()).
		Str("impute_strategy", string(p.ImputeStrategy)).
		Str("outlier_strategy", string(p.OutlierStrategy)).
		Str("categorical_strategy", string(p.CategoricalStrategy)).
		Msg("cleaning pipeline fitted")
	return a, nil
}

func observed(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func imputeScalar(values []float64, strategy ImputeStrategy) float64 {
	if strategy == ImputeMedian {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2]
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// vocabulary returns the sorted distinct non-missing values of a
// categorical column. The sorted order is authoritative for both
// drop-first one-hot expansion and ordinal codes.
func vocabulary(values []string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Transform replays the fitted rules against t. Steps run in a fixed
// order: dedupe, numeric coercion, imputation, outlier policy,
// categorical encoding. Rules referencing columns absent from t are
// skipped. With the remove strategy each column's bounds are applied to
// the table as already shrunk by earlier columns, in fit column order.
func Transform(t *table.Table, a *Artifact) (*table.Table, *TransformReport, error) {
	report := &TransformReport{
		MissingImputed:  make(map[string]int),
		OutliersTreated: make(map[string]int),
		RowsBefore:      t.NumRows(),
	}

	// 1. Drop exact-duplicate rows.
	mask := t.DuplicateMask()
	keep := make([]int, 0, t.NumRows())
	for i, dup := range mask {
		if dup {
			report.DuplicatesRemoved++
		} else {
			keep = append(keep, i)
		}
	}
	out := t.Select(keep)

	// 2. Coerce numeric-designated columns; broken cells become missing.
	for _, name := range a.Rules.NumericCols {
		col, ok := out.Col(name)
		if !ok {
			continue
		}
		if col.StringBacked() {
			out.DropCol(name)
			if err := out.AddCol(table.NewNumeric(name, col.Float64s())); err != nil {
				return nil, nil, err
			}
			report.TypesConverted = append(report.TypesConverted, name)
		}
	}
	out = reorder(out, t.Names())

	// 3. Impute missing numeric values with the fit-time scalar.
	for _, name := range a.Rules.NumericCols {
		col, ok := out.Col(name)
		if !ok {
			continue
		}
		scalar, ok := a.Rules.ImputeValues[name]
		if !ok {
			continue
		}
		values := col.Float64s()
		filled := 0
		for i, v := range values {
			if math.IsNaN(v) {
				values[i] = scalar
				filled++
			}
		}
		if filled > 0 {
			replaceCol(out, table.NewNumeric(name, values))
			report.MissingImputed[name] = filled
		}
	}

	// 4. Outlier policy per column using fit-time bounds.
	for _, name := range a.Rules.NumericCols {
		bounds, ok := a.Rules.OutlierBounds[name]
		if !ok {
			continue
		}
		col, ok := out.Col(name)
		if !ok {
			continue
		}
		values := col.Float64s()
		switch a.Rules.OutlierStrategy {
		case OutlierRemove:
			keep := make([]int, 0, len(values))
			removed := 0
			for i, v := range values {
				if !math.IsNaN(v) && (v < bounds.Lower || v > bounds.Upper) {
					removed++
				} else {
					keep = append(keep, i)
				}
			}
			if removed > 0 {
				out = out.Select(keep)
				report.OutliersTreated[name] = removed
			}
		default: // clip
			clipped := 0
			for i, v := range values {
				if math.IsNaN(v) {
					continue
				}
				if v < bounds.Lower {
					values[i] = bounds.Lower
					clipped++
				} else if v > bounds.Upper {
					values[i] = bounds.Upper
					clipped++
				}
			}
			if clipped > 0 {
				replaceCol(out, table.NewNumeric(name, values))
				report.OutliersTreated[name] = clipped
			}
		}
	}

	// 5. Encode categorical columns against the fit-time vocabulary.
	for _, name := range a.Rules.CategoricalCols {
		col, ok := out.Col(name)
		if !ok {
			continue
		}
		vocab := a.Rules.CategoricalVocab[name]
		switch a.Rules.CategoricalStrategy {
		case EncodeOrdinal:
			codes := ordinalCodes(col.Strings(), vocab)
			out.DropCol(name)
			if err := out.AddCol(table.NewNumeric(name, codes)); err != nil {
				return nil, nil, err
			}
		default: // one_hot, drop-first over the sorted vocabulary
			values := col.Strings()
			out.DropCol(name)
			levels := vocab
			if len(levels) > 0 {
				levels = levels[1:]
			}
			for _, level := range levels {
				indicator := make([]float64, len(values))
				for i, v := range values {
					if v == level {
						indicator[i] = 1
					}
				}
				if err := out.AddCol(table.NewNumeric(fmt.Sprintf("%s_%s", name, level), indicator)); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	report.RowsAfter = out.NumRows()
	report.ReportAfter = quality.Generate(out)
	lg := log.With("cleaning")
	lg.Info().
		Str(log.CleanerIDKey, a.ID).
		Int("rows_before", report.RowsBefore).
		Int("rows_after", report.RowsAfter).
		Int("duplicates_removed", report.DuplicatesRemoved).
		Msg("cleaning pipeline applied")
	return out, report, nil
}

// ordinalCodes maps values to ranks over the sorted fit-time vocabulary.
// Values unseen at fit time, including missing ones, code to -1.
func ordinalCodes(values []string, vocab []string) []float64 {
	rank := make(map[string]int, len(vocab))
	for i, v := range vocab {
		rank[v] = i
	}
	codes := make([]float64, len(values))
	for i, v := range values {
		if r, ok := rank[v]; ok {
			codes[i] = float64(r)
		} else {
			codes[i] = -1
		}
	}
	return codes
}

func replaceCol(t *table.Table, c *table.Column) {
	t.DropCol(c.Name)
	_ = t.AddCol(c)
}

// reorder rebuilds t with columns in the given order where present;
// columns not named keep their relative position at the end.
func reorder(t *table.Table, order []string) *table.Table {
	cols := make([]*table.Column, 0, t.NumCols())
	taken := make(map[string]bool)
	for _, name := range order {
		if c, ok := t.Col(name); ok {
			cols = append(cols, c)
			taken[name] = true
		}
	}
	for _, c := range t.Columns() {
		if !taken[c.Name] {
			cols = append(cols, c)
		}
	}
	return table.MustNew(cols...)
}
