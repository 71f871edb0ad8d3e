package core

// registry.go holds the catalog of recognized import columns.
//
// The catalog is fixed: the canonical tracked fields first (in template
// order), then the flattened columns of the nested sections. Headers in an
// import file resolve to catalog entries by canonical key or display label,
// case-insensitively.

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DateFields are parsed and normalized to ISO-8601 UTC.
var DateFields = []string{"preprod_deploy_date", "prod_deploy_date", "warranty_end_date", "modified"}

// RequiredFields must be non-blank in every imported row.
var RequiredFields = []string{"air_id", "name", "type"}

var fieldSpecs = []FieldSpec{
	{Name: "air_id", Label: "AIR ID", Type: FieldText, Required: true, Tracked: true},
	{Name: "name", Label: "Name", Type: FieldText, Required: true, Tracked: true},
	{Name: "type", Label: "Type", Type: FieldText, Required: true, Tracked: true},
	{Name: "brief_description", Label: "Brief Description", Type: FieldText, Tracked: true},
	{Name: "coe_fed", Label: "COE/FED", Type: FieldText, Tracked: true},
	{Name: "complexity", Label: "Complexity", Type: FieldText, Tracked: true},
	{Name: "tool_version", Label: "Tool Version", Type: FieldText, Tracked: true},
	{Name: "process_details", Label: "Process Details", Type: FieldText, Tracked: true},
	{Name: "object_details", Label: "Object Details", Type: FieldText, Tracked: true},
	{Name: "queue", Label: "Queue", Type: FieldText, Tracked: true},
	{Name: "shared_folders", Label: "Shared Folders", Type: FieldText, Tracked: true},
	{Name: "shared_mailboxes", Label: "Shared Mailboxes", Type: FieldText, Tracked: true},
	{Name: "qa_handshake", Label: "QA Handshake", Type: FieldText, Tracked: true},
	{Name: "preprod_deploy_date", Label: "PreProd Deploy Date", Type: FieldDate, Tracked: true},
	{Name: "prod_deploy_date", Label: "Prod Deploy Date", Type: FieldDate, Tracked: true},
	{Name: "warranty_end_date", Label: "Warranty End Date", Type: FieldDate, Tracked: true},
	{Name: "comments", Label: "Comments", Type: FieldText, Tracked: true},
	{Name: "documentation", Label: "Documentation", Type: FieldText, Tracked: true},
	{Name: "modified", Label: "Modified", Type: FieldDate, Tracked: true},
	{Name: "path", Label: "Path", Type: FieldText, Tracked: true},

	{Name: "project_manager", Label: "Project Manager", Section: SectionPeople, Role: "project_manager"},
	{Name: "project_designer", Label: "Project Designer", Section: SectionPeople, Role: "project_designer"},
	{Name: "developer", Label: "Developer", Section: SectionPeople, Role: "developer"},
	{Name: "tester", Label: "Tester", Section: SectionPeople, Role: "tester"},
	{Name: "business_spoc", Label: "Business SPOC", Section: SectionPeople, Role: "business_spoc"},
	{Name: "business_stakeholders", Label: "Business Stakeholders", Section: SectionPeople, Role: "business_stakeholder"},
	{Name: "app_owner", Label: "Applications-App Owner", Section: SectionPeople, Role: "app_owner"},

	{Name: "dev_vdi", Label: "Dev VDI", Section: SectionEnvironments, Role: "dev"},
	{Name: "dev_service_account", Label: "Dev Service Account", Section: SectionEnvironments, Role: "dev"},
	{Name: "qa_vdi", Label: "QA VDI", Section: SectionEnvironments, Role: "qa"},
	{Name: "qa_service_account", Label: "QA Service Account", Section: SectionEnvironments, Role: "qa"},
	{Name: "production_vdi", Label: "Production VDI", Section: SectionEnvironments, Role: "prod"},
	{Name: "production_service_account", Label: "Production Service Account", Section: SectionEnvironments, Role: "prod"},

	{Name: "test_data_spoc", Label: "Test Data SPOC", Section: SectionTestData},

	{Name: "post_prod_total_cases", Label: "Post Production Total Cases", Type: FieldInteger, Section: SectionMetrics},
	{Name: "post_prod_sys_ex_count", Label: "Post Production System Exceptions Count", Type: FieldInteger, Section: SectionMetrics},
	{Name: "post_prod_success_rate", Label: "Post Production Success Rate", Type: FieldDecimal, Section: SectionMetrics},

	{Name: "artifacts_link", Label: "Automation Artifacts Link", Section: SectionArtifacts},
	{Name: "code_review", Label: "Code Review with M&E", Section: SectionArtifacts},
	{Name: "demo", Label: "Automation Demo to M&E", Section: SectionArtifacts},
	{Name: "rampup_issue_list", Label: "Rampup/Postprod Issue/Resolution list to M&E", Section: SectionArtifacts},
}

// readOnlySpecs are exported but never imported.
var readOnlySpecs = []FieldSpec{
	{Name: "created_at", Label: "Created At", Type: FieldDate},
	{Name: "updated_at", Label: "Updated At", Type: FieldDate},
}

var (
	specsByName   = make(map[string]FieldSpec)
	specsByHeader = make(map[string]FieldSpec)
)

func init() {
	for _, spec := range fieldSpecs {
		specsByName[spec.Name] = spec
		specsByHeader[headerKey(spec.Name)] = spec
		specsByHeader[headerKey(spec.Label)] = spec
	}
	for _, spec := range readOnlySpecs {
		specsByName[spec.Name] = spec
	}
}

// FieldSpecs returns every importable field in template order.
func FieldSpecs() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	copy(out, fieldSpecs)
	return out
}

// ExportSpecs returns every importable field followed by the read-only timestamps.
func ExportSpecs() []FieldSpec {
	return append(FieldSpecs(), readOnlySpecs...)
}

// TrackedFields returns the canonical field list compared by the planner.
func TrackedFields() []string {
	var out []string
	for _, spec := range fieldSpecs {
		if spec.Tracked {
			out = append(out, spec.Name)
		}
	}
	return out
}

// SectionFields returns the flattened columns of one nested section.
func SectionFields(s Section) []string {
	var out []string
	for _, spec := range fieldSpecs {
		if spec.Section == s && s != SectionNone {
			out = append(out, spec.Name)
		}
	}
	return out
}

// Sections lists the nested sections in catalog order.
func Sections() []Section {
	return []Section{SectionPeople, SectionEnvironments, SectionTestData, SectionMetrics, SectionArtifacts}
}

// LookupField returns the spec for a canonical field name.
func LookupField(name string) (FieldSpec, bool) {
	spec, ok := specsByName[name]
	return spec, ok
}

// ResolveHeader maps an import header (canonical key or display label, any case)
// to its canonical field name. Unrecognized headers return false.
func ResolveHeader(header string) (string, bool) {
	spec, ok := specsByHeader[headerKey(header)]
	if !ok {
		return "", false
	}
	return spec.Name, true
}

// IsDateField reports whether name is one of the date fields.
func IsDateField(name string) bool {
	spec, ok := specsByName[name]
	return ok && spec.Type == FieldDate
}

// headerKey normalizes a header for lookup: NFC, trimmed, lowercased, BOM removed.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = norm.NFC.String(strings.TrimSpace(h))
	return strings.ToLower(h)
}
