// Package loader reads bar series from external sources and hands the
// backtest engine a validated, ascending-by-timestamp series.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/subhashjprasad/strat-tester/internal/domain"
)

// Column headers recognised in bar CSV exports. ts_event is the event
// timestamp used by databento-style exports.
var requiredColumns = []string{"ts_event", "open", "high", "low", "close", "volume"}

// timestampLayouts are tried in order when parsing the ts_event column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ReadCSV parses a bar series for the given symbol from CSV data. Columns
// are located by header name, extra columns are ignored, and the returned
// series is sorted ascending by timestamp.
func ReadCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", name)
		}
	}

	var bars []domain.Bar
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line+1, err)
		}
		line++

		ts, err := parseTimestamp(record[cols["ts_event"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar := domain.Bar{Symbol: strings.ToUpper(symbol), Timestamp: ts}
		if bar.Open, err = parseFloat(record[cols["open"]], "open"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.High, err = parseFloat(record[cols["high"]], "high"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.Low, err = parseFloat(record[cols["low"]], "low"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.Close, err = parseFloat(record[cols["close"]], "close"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vol, err := parseFloat(record[cols["volume"]], "volume")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar.Volume = int64(vol)

		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// LoadCSVFile reads a bar series from the CSV file at path.
func LoadCSVFile(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	// Fall back to Unix nanoseconds, the raw databento encoding.
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(0, ns).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseFloat(s, column string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s value %q: %w", column, s, err)
	}
	return v, nil
}
