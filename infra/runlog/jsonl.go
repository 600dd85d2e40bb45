// Package runlog provides the run log stores: plain JSONL, size-rotated
// JSONL and SQLite. Each registers itself with core/runlog under its type
// name.
package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kilianp07/bessim/core/runlog"
)

// JSONLStore appends records to a single JSON lines file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the file (and its directory) if needed.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

// Append writes rec as one line.
func (s *JSONLStore) Append(_ context.Context, rec runlog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

// Query scans the file and returns the matching records.
func (s *JSONLStore) Query(ctx context.Context, q runlog.Query) ([]runlog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	recs, err := scanRecords(ctx, f, q, nil)
	if err != nil {
		return nil, err
	}
	return limit(recs, q.Limit), nil
}

// Close is a no-op; the file is opened per call.
func (s *JSONLStore) Close() error { return nil }

// scanRecords decodes JSON lines from r, appending matches to out. Lines
// that do not decode are skipped.
func scanRecords(ctx context.Context, r io.Reader, q runlog.Query, out []runlog.Record) ([]runlog.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec runlog.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, sc.Err()
}

// limit keeps the most recent n records when a limit is set.
func limit(recs []runlog.Record, n int) []runlog.Record {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
