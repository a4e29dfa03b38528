package faq

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
)

// Export file names written by the UI.
const (
	JSONFileName = "faq_filtered.json"
	CSVFileName  = "faq_filtered.csv"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates an export format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or csv)", s)
}

// FileName returns the default file name for f.
func (f Format) FileName() string {
	if f == FormatCSV {
		return CSVFileName
	}
	return JSONFileName
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Encode renders items in format f.
func Encode(items []api.FAQItem, f Format) ([]byte, error) {
	if f == FormatCSV {
		return ExportCSV(items)
	}
	return ExportJSON(items)
}

type jsonExport struct {
	Items []api.FAQItem `json:"items"`
	Count int           `json:"count"`
}

// ExportJSON encodes {"items": [...], "count": n} with two-space indentation
// and without escaping non-ASCII or HTML characters.
func ExportJSON(items []api.FAQItem) ([]byte, error) {
	if items == nil {
		items = []api.FAQItem{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonExport{Items: items, Count: len(items)}); err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CSVHeader is the first row of ExportCSV.
var CSVHeader = []string{"id", "title", "score", "summary", "strengths", "weaknesses", "url"}

// ExportCSV writes one row per item; analysis columns stay empty for
// items without analysis.
func ExportCSV(items []api.FAQItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, it := range items {
		row := []string{it.ID, it.Title, "", "", "", "", it.URL}
		if it.Analysis != nil {
			row[2] = it.Analysis.Score.String()
			row[3] = it.Summary()
			row[4] = it.Strengths()
			row[5] = it.Weaknesses()
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv export: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes items and writes them into dir, returning the path.
func WriteFile(dir string, items []api.FAQItem, f Format) (string, error) {
	data, err := Encode(items, f)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, f.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export %s: %w", path, err)
	}
	return path, nil
}
