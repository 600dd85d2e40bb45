// Package export writes simulation results as CSV, JSON or an HTML chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bessim/core/model"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat accepts csv, json or html, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatHTML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Write encodes r to w in format f.
func Write(w io.Writer, f Format, r *model.Result) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatHTML:
		return WriteChartHTML(w, r, ChartOptions{})
	}
	return fmt.Errorf("unknown output format %q", f)
}

// WriteFile creates path and writes r in the format of its extension.
func WriteFile(path string, r *model.Result) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(out, f, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteJSON writes the full result, summary included.
func WriteJSON(w io.Writer, r *model.Result) error {
	doc := struct {
		*model.Result
		Summary model.Summary `json:"summary"`
	}{r, r.Summary(stepHours(r))}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

var csvHeader = []string{"timestamp", "load_kw", "battery_plus_kw", "battery_minus_kw", "power_after_kw", "energy_kwh", "limit_kw"}

// WriteCSV writes one row per sample. limit_kw is empty for strategies
// without limits.
func WriteCSV(w io.Writer, r *model.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range r.Load {
		limit := ""
		if i < len(r.Limits) {
			limit = formatFloat(r.Limits[i])
		}
		rec := []string{
			r.Time[i].Format(time.RFC3339),
			formatFloat(r.Load[i]),
			formatFloat(r.BatteryPlus[i]),
			formatFloat(r.BatteryMinus[i]),
			formatFloat(r.PowerAfter[i]),
			formatFloat(r.Energy[i]),
			limit,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stepHours(r *model.Result) float64 {
	if len(r.Time) > 1 {
		return r.Time[1].Sub(r.Time[0]).Hours()
	}
	return model.DefaultStep.Hours()
}
