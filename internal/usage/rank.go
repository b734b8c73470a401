package usage

import "sort"

// Display helpers. The aggregation contract leaves Report slices
// unordered; these produce the sorted, truncated views the CLI and the
// API hand to renderers. n <= 0 returns the full sorted list.

// TopTables returns tables sorted by descending count (name ascending on
// ties), truncated to n.
func (r *Report) TopTables(n int) []TableCount {
	out := make([]TableCount, len(r.Tables))
	copy(out, r.Tables)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Table < out[j].Table
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopColumns returns columns sorted by descending count, truncated to n.
func (r *Report) TopColumns(n int) []ColumnCount {
	out := make([]ColumnCount, len(r.Columns))
	copy(out, r.Columns)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Column < out[j].Column
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopTableColumns returns (table, column) pairs sorted by descending
// count, truncated to n.
func (r *Report) TopTableColumns(n int) []TableColumnCount {
	out := make([]TableColumnCount, len(r.TableColumns))
	copy(out, r.TableColumns)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Column < out[j].Column
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
