// Package series loads load profiles from CSV, JSON or YAML files.
//
// CSV rows are "timestamp,power_kw[,block]" with an optional header row.
// Timestamps are RFC3339 or "2006-01-02 15:04:05" read in the configured
// location.
package series

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/bessim/core/model"
)

// LocalLayout is accepted next to RFC3339.
const LocalLayout = "2006-01-02 15:04:05"

// ErrFormat is returned for unreadable rows or unknown file types.
var ErrFormat = errors.New("series format")

// Options tune parsing.
type Options struct {
	// Location for timestamps without an offset; nil means UTC.
	Location *time.Location
	// SkipValidation returns the series as read.
	SkipValidation bool
}

type record struct {
	Timestamp string  `json:"timestamp" yaml:"timestamp"`
	PowerKW   float64 `json:"power_kw" yaml:"power_kw"`
	Block     int     `json:"block,omitempty" yaml:"block,omitempty"`
}

// LoadFile reads path, choosing the parser from its extension.
func LoadFile(path string, opts Options) (*model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s *model.Series
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		s, err = readCSV(f, opts)
	case ".json":
		s, err = readJSON(f, opts)
	case ".yaml", ".yml":
		s, err = readYAML(f, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return finish(s, opts)
}

// ReadCSV parses CSV rows from r.
func ReadCSV(r io.Reader, opts Options) (*model.Series, error) {
	s, err := readCSV(r, opts)
	if err != nil {
		return nil, err
	}
	return finish(s, opts)
}

// ReadJSON parses a JSON array of {"timestamp","power_kw","block"} objects.
func ReadJSON(r io.Reader, opts Options) (*model.Series, error) {
	s, err := readJSON(r, opts)
	if err != nil {
		return nil, err
	}
	return finish(s, opts)
}

func finish(s *model.Series, opts Options) (*model.Series, error) {
	if opts.SkipValidation {
		return s, nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func readCSV(r io.Reader, opts Options) (*model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var samples []model.Sample
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if line == 1 && isHeader(row) {
			continue
		}
		if len(row) < 2 || len(row) > 3 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrFormat, line, len(row))
		}
		rec := record{Timestamp: row[0]}
		if rec.PowerKW, err = strconv.ParseFloat(strings.TrimSpace(row[1]), 64); err != nil {
			return nil, fmt.Errorf("%w: line %d power: %v", ErrFormat, line, err)
		}
		if len(row) == 3 && strings.TrimSpace(row[2]) != "" {
			if rec.Block, err = strconv.Atoi(strings.TrimSpace(row[2])); err != nil {
				return nil, fmt.Errorf("%w: line %d block: %v", ErrFormat, line, err)
			}
		}
		smp, err := rec.sample(opts.Location)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, smp)
	}
	return model.NewSeries(samples), nil
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(row[len(row)-1]), 64)
	if err == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(row[0]), "timestamp") || strings.EqualFold(strings.TrimSpace(row[0]), "time")
}

func readJSON(r io.Reader, opts Options) (*model.Series, error) {
	var recs []record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return fromRecords(recs, opts.Location)
}

func readYAML(r io.Reader, opts Options) (*model.Series, error) {
	var recs []record
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return fromRecords(recs, opts.Location)
}

func fromRecords(recs []record, loc *time.Location) (*model.Series, error) {
	samples := make([]model.Sample, len(recs))
	for i, rec := range recs {
		smp, err := rec.sample(loc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		samples[i] = smp
	}
	return model.NewSeries(samples), nil
}

func (r record) sample(loc *time.Location) (model.Sample, error) {
	t, err := ParseTime(r.Timestamp, loc)
	if err != nil {
		return model.Sample{}, err
	}
	return model.Sample{Time: t, PowerKW: r.PowerKW, Block: r.Block}, nil
}

// ParseTime accepts RFC3339 or LocalLayout. loc applies to LocalLayout only;
// nil means UTC.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(LocalLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrFormat, s)
	}
	return t, nil
}
