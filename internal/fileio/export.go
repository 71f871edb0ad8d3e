package fileio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// ExportSheet is the worksheet name used for XLSX exports and templates.
const ExportSheet = "Automations"

// sampleRow fills the template's example line.
var sampleRow = core.RawRow{
	"air_id":                     "AIR-2024-001",
	"name":                       "Sample Automation Process",
	"type":                       "RPA",
	"brief_description":          "Automated invoice processing system",
	"coe_fed":                    "Finance",
	"complexity":                 "Medium",
	"tool_version":               "UiPath 2023.10",
	"process_details":            "Processes invoices from email attachments",
	"object_details":             "PDF extraction and validation",
	"queue":                      "Invoice_Processing_Queue",
	"shared_folders":             `\\server\automation\invoices`,
	"shared_mailboxes":           "automation.invoices@company.com",
	"qa_handshake":               "Yes",
	"preprod_deploy_date":        "2024-01-15",
	"prod_deploy_date":           "2024-01-30",
	"warranty_end_date":          "2024-12-31",
	"comments":                   "Requires daily monitoring",
	"documentation":              "https://docs.company.com/automation/air-2024-001",
	"modified":                   "2024-01-30",
	"path":                       `C:\Automations\InvoiceProcessing`,
	"project_manager":            "Alice Johnson",
	"project_designer":           "Bob Smith",
	"developer":                  "Charlie Brown",
	"tester":                     "Diana Prince",
	"business_spoc":              "Eve Adams",
	"business_stakeholders":      "Frank Miller",
	"app_owner":                  "Grace Lee",
	"dev_vdi":                    "DEV-VDI-001",
	"dev_service_account":        "svc_automation_dev",
	"qa_vdi":                     "QA-VDI-001",
	"qa_service_account":         "svc_automation_qa",
	"production_vdi":             "PROD-VDI-001",
	"production_service_account": "svc_automation_prod",
	"test_data_spoc":             "Test Data Manager",
	"post_prod_total_cases":      "1000",
	"post_prod_sys_ex_count":     "5",
	"post_prod_success_rate":     "99.5",
	"artifacts_link":             "https://sharepoint.company.com/automation/artifacts",
	"code_review":                "completed",
	"demo":                       "completed",
	"rampup_issue_list":          "https://sharepoint.company.com/automation/issues",
}

// SampleRow returns a copy of the template's example row.
func SampleRow() core.RawRow {
	out := make(core.RawRow, len(sampleRow))
	for k, v := range sampleRow {
		out[k] = v
	}
	return out
}

// ExportFileName is the download name for an export taken at now.
func ExportFileName(format Format, now time.Time) string {
	return "automations_" + now.UTC().Format("2006-01-02") + format.Extension()
}

// TemplateFileName is the download name for an import template.
func TemplateFileName(format Format) string {
	return "automation_template" + format.Extension()
}

// Export writes records in the given format. Tabular formats use display
// labels as headers, followed by the read-only timestamps.
func Export(w io.Writer, format Format, records []core.Record) error {
	switch format {
	case FormatCSV:
		return ExportCSV(w, records)
	case FormatXLSX:
		return ExportXLSX(w, records)
	case FormatJSON:
		return ExportJSON(w, records)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// ExportCSV writes records as CSV with label headers.
func ExportCSV(w io.Writer, records []core.Record) error {
	rows := make([]csvRow, len(records))
	for i := range records {
		rows[i] = recordRow(&records[i])
	}
	return encodeCSV(w, "label", rows)
}

// ExportJSON writes records as an indented array of canonical records.
func ExportJSON(w io.Writer, records []core.Record) error {
	if records == nil {
		records = []core.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ExportXLSX writes records to a single-sheet workbook.
func ExportXLSX(w io.Writer, records []core.Record) error {
	return writeXLSX(w, exportTable(records))
}

// Template writes an import template: canonical headers and one sample row.
func Template(w io.Writer, format Format) error {
	specs := core.FieldSpecs()
	header := make([]string, len(specs))
	sample := make([]string, len(specs))
	for i, spec := range specs {
		header[i] = spec.Name
		sample[i] = sampleRow[spec.Name]
	}

	switch format {
	case FormatCSV:
		return encodeCSV(w, "csv", []csvRow{rawRowToCSV(sampleRow)})
	case FormatXLSX:
		return writeXLSX(w, [][]string{header, sample})
	case FormatJSON:
		obj := make(map[string]string, len(specs))
		for i, name := range header {
			obj[name] = sample[i]
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode([]map[string]string{obj})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// exportTable flattens records into a header row plus one row per record.
func exportTable(records []core.Record) [][]string {
	specs := core.ExportSpecs()
	table := make([][]string, 0, len(records)+1)

	header := make([]string, len(specs))
	for i, spec := range specs {
		header[i] = spec.Label
	}
	table = append(table, header)

	for i := range records {
		row := make([]string, len(specs))
		for j, spec := range specs {
			row[j], _ = records[i].Field(spec.Name)
		}
		table = append(table, row)
	}
	return table
}

// encodeCSV writes rows with headers taken from the given struct tag. The
// header is written even when there are no rows.
func encodeCSV(w io.Writer, tag string, rows []csvRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.Tag = tag

	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, table [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}

	sw, err := f.NewStreamWriter(ExportSheet)
	if err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}
	for i, cells := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("write spreadsheet: %w", err)
		}
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write spreadsheet: %w", err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}
	return nil
}
