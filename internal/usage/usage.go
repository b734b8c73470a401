// Package usage aggregates table and column usage across historical SQL
// queries. It is a pure computation layer: records arrive through a
// HistoryProvider (or directly as a slice), the extractor runs over each,
// and the result is a set of frequency counters consumed by the CLI and
// the HTTP API.
package usage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/querypulse/querypulse/internal/sqlref"
)

// QueryRecord is one historical query. A record with empty SQL is valid
// input and is skipped during aggregation.
type QueryRecord struct {
	SQL       string    `json:"query_text"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryProvider supplies historical query records for a lookback window.
// windowDays == 0 means unbounded history. The event store implements this.
type HistoryProvider interface {
	QueryHistory(ctx context.Context, windowDays int) ([]QueryRecord, error)
}

// TableCount is the number of queries referencing a table.
type TableCount struct {
	Table string `json:"table_name"`
	Count int    `json:"count"`
}

// ColumnCount is the number of queries selecting a column.
type ColumnCount struct {
	Column string `json:"column_name"`
	Count  int    `json:"count"`
}

// TableColumnCount is the number of queries in which a table and a column
// co-occur. The pair is the Cartesian product of a query's table set and
// column set: it records co-occurrence, not a verified "column X read from
// table Y" relationship.
type TableColumnCount struct {
	Table  string `json:"table_name"`
	Column string `json:"column_name"`
	Count  int    `json:"count"`
}

// Report holds the three frequency tables for one aggregation run. The
// slices are unordered; sorting and truncation belong to the caller.
type Report struct {
	Tables       []TableCount       `json:"tables"`
	Columns      []ColumnCount      `json:"columns"`
	TableColumns []TableColumnCount `json:"table_columns"`
	Skipped      int                `json:"-"` // records dropped during the run
}

// Config configures an Aggregator.
type Config struct {
	// Logger receives skipped-record diagnostics. Nil discards.
	Logger *slog.Logger

	// Workers is the number of parallel extraction shards. Values <= 1
	// run serially. Counter merges are commutative, so results are
	// identical for any worker count.
	Workers int
}

// Aggregator computes usage reports from query history.
type Aggregator struct {
	logger  *slog.Logger
	workers int
	now     func() time.Time
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		logger:  logger,
		workers: workers,
		now:     time.Now,
	}
}

// Aggregate runs extraction over records and counts table, column, and
// (table, column) usage per query. windowDays > 0 drops records older than
// now minus that many days; 0 keeps the full history.
//
// Each counter increments once per query contributing the key, not once
// per textual occurrence (the extractor deduplicates within a query).
// A record that cannot be processed is logged and skipped; a single bad
// record never aborts the run.
func (a *Aggregator) Aggregate(ctx context.Context, records []QueryRecord, windowDays int) (*Report, error) {
	records = a.filterWindow(records, windowDays)

	shards := a.shard(records)
	partials := make([]*counters, len(shards))

	eg, ctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		eg.Go(func() error {
			c := newCounters()
			for _, rec := range shard {
				if err := ctx.Err(); err != nil {
					return err
				}
				a.tally(c, rec)
			}
			partials[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := newCounters()
	for _, p := range partials {
		merged.merge(p)
	}
	return merged.report(), nil
}

// AggregateHistory pulls records from the provider and aggregates them.
func (a *Aggregator) AggregateHistory(ctx context.Context, provider HistoryProvider, windowDays int) (*Report, error) {
	records, err := provider.QueryHistory(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	return a.Aggregate(ctx, records, windowDays)
}

// filterWindow applies the lookback window. Filtering is the aggregator's
// job even when the provider pre-filters; re-filtering is a no-op then.
func (a *Aggregator) filterWindow(records []QueryRecord, windowDays int) []QueryRecord {
	if windowDays <= 0 {
		return records
	}
	cutoff := a.now().AddDate(0, 0, -windowDays)
	kept := make([]QueryRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// shard splits records into up to a.workers contiguous chunks.
func (a *Aggregator) shard(records []QueryRecord) [][]QueryRecord {
	n := a.workers
	if n > len(records) {
		n = len(records)
	}
	if n <= 1 {
		if len(records) == 0 {
			return nil
		}
		return [][]QueryRecord{records}
	}

	shards := make([][]QueryRecord, 0, n)
	size := (len(records) + n - 1) / n
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		shards = append(shards, records[start:end])
	}
	return shards
}

// tally extracts one record into the shard counters. Extraction never
// fails by contract, but a panic on unexpected input downgrades to a
// skipped record rather than aborting the aggregation.
func (a *Aggregator) tally(c *counters, rec QueryRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.skipped++
			a.logger.Warn("skipping unprocessable query record", "panic", r, "timestamp", rec.Timestamp)
		}
	}()

	if strings.TrimSpace(rec.SQL) == "" {
		c.skipped++
		a.logger.Debug("skipping record with empty query text", "timestamp", rec.Timestamp)
		return
	}

	res := sqlref.Extract(rec.SQL)
	for _, table := range res.Tables {
		c.tables[table]++
		for _, column := range res.Columns {
			c.pairs[pairKey{table, column}]++
		}
	}
	for _, column := range res.Columns {
		c.columns[column]++
	}
}

type pairKey struct {
	table  string
	column string
}

// counters holds one shard's partial counts. Merging partials is plain
// addition, so shards can run in any order.
type counters struct {
	tables  map[string]int
	columns map[string]int
	pairs   map[pairKey]int
	skipped int
}

func newCounters() *counters {
	return &counters{
		tables:  make(map[string]int),
		columns: make(map[string]int),
		pairs:   make(map[pairKey]int),
	}
}

func (c *counters) merge(other *counters) {
	if other == nil {
		return
	}
	for k, v := range other.tables {
		c.tables[k] += v
	}
	for k, v := range other.columns {
		c.columns[k] += v
	}
	for k, v := range other.pairs {
		c.pairs[k] += v
	}
	c.skipped += other.skipped
}

func (c *counters) report() *Report {
	r := &Report{
		Tables:       make([]TableCount, 0, len(c.tables)),
		Columns:      make([]ColumnCount, 0, len(c.columns)),
		TableColumns: make([]TableColumnCount, 0, len(c.pairs)),
		Skipped:      c.skipped,
	}
	for table, count := range c.tables {
		r.Tables = append(r.Tables, TableCount{Table: table, Count: count})
	}
	for column, count := range c.columns {
		r.Columns = append(r.Columns, ColumnCount{Column: column, Count: count})
	}
	for key, count := range c.pairs {
		r.TableColumns = append(r.TableColumns, TableColumnCount{Table: key.table, Column: key.column, Count: count})
	}
	return r
}
