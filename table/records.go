package table

import (
	"math"
	"sort"
	"strconv"
)

// Rows renders the table as a slice of name->value records, the shape used
// on the wire. Numeric cells become float64 (missing -> nil), categorical
// cells become string (missing -> nil).
func (t *Table) Rows() []map[string]interface{} {
	out := make([]map[string]interface{}, t.NumRows())
	for i := range out {
		rec := make(map[string]interface{}, t.NumCols())
		for _, c := range t.cols {
			if c.Missing(i) {
				rec[c.Name] = nil
				continue
			}
			if c.Kind == Numeric && !c.StringBacked() {
				rec[c.Name] = c.num[i]
			} else {
				rec[c.Name] = c.str[i]
			}
		}
		out[i] = rec
	}
	return out
}

// FromRecords builds a table from name->value records, the inverse of Rows.
// A column whose non-nil values are all float64 (JSON numbers) becomes
// numeric; anything else becomes categorical. Keys are collected across
// every record and ordered alphabetically so the result is deterministic.
func FromRecords(records []map[string]interface{}) (*Table, error) {
	keySet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Table{byName: make(map[string]int, len(keys))}
	for _, key := range keys {
		numeric := true
		for _, rec := range records {
			v, ok := rec[key]
			if !ok || v == nil {
				continue
			}
			switch v.(type) {
			case float64, float32, int, int64:
			default:
				numeric = false
			}
		}

		var col *Column
		if numeric {
			vals := make([]float64, len(records))
			for i, rec := range records {
				vals[i] = toFloat(rec[key])
			}
			col = NewNumeric(key, vals)
		} else {
			vals := make([]string, len(records))
			for i, rec := range records {
				vals[i] = toString(rec[key])
			}
			col = NewCategorical(key, vals)
		}
		if err := t.AddCol(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return math.NaN()
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
