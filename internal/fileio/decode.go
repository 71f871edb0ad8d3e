// Package fileio reads import files into rows and writes exports and templates.
//
// Three formats are supported: CSV with a header row, XLSX (first sheet,
// header row) and JSON (an array of flat objects). Headers resolve to
// canonical field names by key or display label, so an exported file
// imports back unchanged. Unrecognized columns are ignored. Fully blank rows
// are skipped.
package fileio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions and format names
// other than csv, xlsx and json.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format is an import/export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

// DetectFormat picks the format from a file name's extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q (use CSV, XLSX or JSON)", ErrUnsupportedFormat, fileName)
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the file extension for a format, with the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Decode reads a file into rows, choosing the decoder by extension.
func Decode(fileName string, data []byte) ([]core.RawRow, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	return DecodeFormat(format, data)
}

// DecodeFormat reads data in the given format.
func DecodeFormat(format Format, data []byte) ([]core.RawRow, error) {
	switch format {
	case FormatCSV:
		return DecodeCSV(data)
	case FormatXLSX:
		return DecodeXLSX(data)
	case FormatJSON:
		return DecodeJSON(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// DecodeCSV reads a CSV file with a header row.
func DecodeCSV(data []byte) ([]core.RawRow, error) {
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("parse csv: empty file, no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	columns := resolveHeaders(header)
	if !anyRecognized(columns) {
		return nil, errors.New("parse csv: no recognized columns in header row")
	}

	dec, err := csvutil.NewDecoder(&paddedReader{r: r, width: len(columns)}, columnNames(columns)...)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	present := recognizedNames(columns)
	rows := []core.RawRow{}
	for {
		var rec csvRow
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if row := rec.rawRow(present); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// paddedReader pads or truncates every record to the header width so
// ragged rows decode instead of failing the whole file.
type paddedReader struct {
	r     *csv.Reader
	width int
}

func (p *paddedReader) Read() ([]string, error) {
	rec, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	switch {
	case len(rec) < p.width:
		rec = append(rec, make([]string, p.width-len(rec))...)
	case len(rec) > p.width:
		rec = rec[:p.width]
	}
	return rec, nil
}

// DecodeXLSX reads the first sheet of a workbook; its first row is the header.
func DecodeXLSX(data []byte) ([]core.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("parse spreadsheet: workbook has no sheets")
	}

	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("parse spreadsheet: %w", err)
	}
	if len(grid) == 0 {
		return nil, errors.New("parse spreadsheet: empty sheet, no header row")
	}

	columns := resolveHeaders(grid[0])
	if !anyRecognized(columns) {
		return nil, errors.New("parse spreadsheet: no recognized columns in header row")
	}

	rows := []core.RawRow{}
	for _, cells := range grid[1:] {
		if row := buildRow(columns, cells); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// DecodeJSON reads an array of objects. Scalars become strings; nested
// sections of an exported record are flattened into their columns.
func DecodeJSON(data []byte) ([]core.RawRow, error) {
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(text, &items); err != nil {
		return nil, fmt.Errorf("parse json: expected an array of objects: %w", err)
	}

	rows := make([]core.RawRow, 0, len(items))
	for i, item := range items {
		row, err := decodeJSONObject(item)
		if err != nil {
			return nil, fmt.Errorf("parse json: item %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeJSONObject(item json.RawMessage) (core.RawRow, error) {
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}

	row := core.RawRow{}
	nested := false
	for key, val := range obj {
		name, ok := core.ResolveHeader(key)
		if !ok {
			switch core.Section(key) {
			case core.SectionPeople, core.SectionEnvironments, core.SectionTestData,
				core.SectionMetrics, core.SectionArtifacts:
				nested = nested || val != nil
			}
			continue
		}
		row[name] = jsonScalar(val)
	}

	if nested {
		// Flattened columns given explicitly take precedence.
		var rec core.Record
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, err
		}
		for _, s := range core.Sections() {
			for _, name := range core.SectionFields(s) {
				if _, set := row[name]; set {
					continue
				}
				if v, ok := rec.Field(name); ok {
					row[name] = v
				}
			}
		}
	}
	return row, nil
}

func jsonScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// column is one header cell resolved against the field catalog.
type column struct {
	name  string // canonical name, "" when unrecognized or repeated
	index int
}

func resolveHeaders(header []string) []column {
	seen := make(map[string]bool, len(header))
	cols := make([]column, len(header))
	for i, h := range header {
		cols[i].index = i
		name, ok := core.ResolveHeader(core.CleanCell(h))
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		cols[i].name = name
	}
	return cols
}

func anyRecognized(cols []column) bool {
	for _, c := range cols {
		if c.name != "" {
			return true
		}
	}
	return false
}

func recognizedNames(cols []column) []string {
	var names []string
	for _, c := range cols {
		if c.name != "" {
			names = append(names, c.name)
		}
	}
	return names
}

// columnNames is the decoder header: canonical names, with placeholders for
// unrecognized and repeated columns.
func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		if c.name != "" {
			names[i] = c.name
		} else {
			// csvutil rejects duplicate header names.
			names[i] = "_ignored_" + strconv.Itoa(i)
		}
	}
	return names
}

// buildRow maps cells to canonical names. It returns nil for a fully blank row.
func buildRow(cols []column, cells []string) core.RawRow {
	row := make(core.RawRow, len(cols))
	blank := true
	for _, c := range cols {
		if c.name == "" {
			continue
		}
		var v string
		if c.index < len(cells) {
			v = cells[c.index]
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		row[c.name] = v
	}
	if blank {
		return nil
	}
	return row
}
