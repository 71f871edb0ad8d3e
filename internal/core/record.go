package core

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is the canonical automation entity exchanged with the backend.
// Optional fields are nil when null; nested sections are nil when not supplied.
type Record struct {
	AirID             string  `json:"air_id"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	BriefDescription  *string `json:"brief_description"`
	CoeFed            *string `json:"coe_fed"`
	Complexity        *string `json:"complexity"`
	ToolVersion       *string `json:"tool_version"`
	ProcessDetails    *string `json:"process_details"`
	ObjectDetails     *string `json:"object_details"`
	Queue             *string `json:"queue"`
	SharedFolders     *string `json:"shared_folders"`
	SharedMailboxes   *string `json:"shared_mailboxes"`
	QAHandshake       *string `json:"qa_handshake"`
	PreprodDeployDate *string `json:"preprod_deploy_date"`
	ProdDeployDate    *string `json:"prod_deploy_date"`
	WarrantyEndDate   *string `json:"warranty_end_date"`
	Comments          *string `json:"comments"`
	Documentation     *string `json:"documentation"`
	Modified          *string `json:"modified"`
	Path              *string `json:"path"`

	People       []Person      `json:"people,omitempty"`
	Environments []Environment `json:"environments,omitempty"`
	TestData     *TestData     `json:"test_data,omitempty"`
	Metrics      *Metrics      `json:"metrics,omitempty"`
	Artifacts    *Artifacts    `json:"artifacts,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Person is one named role holder on an automation.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Environment describes one deployment environment of an automation.
type Environment struct {
	Type           string  `json:"type"`
	VDI            *string `json:"vdi"`
	ServiceAccount *string `json:"service_account"`
}

// TestData holds the test data contact.
type TestData struct {
	Spoc *string `json:"spoc"`
}

// Metrics holds post-production figures.
type Metrics struct {
	TotalCases  *int     `json:"post_prod_total_cases"`
	SysExCount  *int     `json:"post_prod_sys_ex_count"`
	SuccessRate *Decimal `json:"post_prod_success_rate"`
}

// Artifacts holds delivery artifact status.
type Artifacts struct {
	Link            *string `json:"artifacts_link"`
	CodeReview      *string `json:"code_review"`
	Demo            *string `json:"demo"`
	RampupIssueList *string `json:"rampup_issue_list"`
}

// Decimal is a number that may arrive as a JSON number or a quoted string.
// Django REST framework serializes decimal fields as strings.
type Decimal float64

// UnmarshalJSON accepts 95.5 and "95.50".
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*d = Decimal(f)
	return nil
}

// MarshalJSON always writes a JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(d))
}

// String formats the decimal without trailing zeros.
func (d Decimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}

// strPtr returns nil for blank strings.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// deref returns the pointed-to string or "".
func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Field returns the value of a canonical or flattened field.
// The boolean is false when the value is null or the field is unknown.
func (r *Record) Field(name string) (string, bool) {
	if p := r.scalarPtr(name); p != nil {
		if *p == nil {
			return "", false
		}
		return **p, true
	}

	var v string
	switch name {
	case "air_id":
		v = r.AirID
	case "name":
		v = r.Name
	case "type":
		v = r.Type
	case "created_at":
		v = r.CreatedAt
	case "updated_at":
		v = r.UpdatedAt
	default:
		spec, ok := LookupField(name)
		if !ok {
			return "", false
		}
		v = r.nestedField(spec)
	}
	return v, v != ""
}

// SetField sets a canonical or flattened field. A nil value clears it.
// Flattened fields create their nested section on demand.
func (r *Record) SetField(name string, value *string) {
	if p := r.scalarPtr(name); p != nil {
		*p = value
		return
	}

	switch name {
	case "air_id":
		r.AirID = deref(value)
	case "name":
		r.Name = deref(value)
	case "type":
		r.Type = deref(value)
	default:
		if spec, ok := LookupField(name); ok {
			r.setNestedField(spec, value)
		}
	}
}

// scalarPtr returns the address of an optional top-level field, or nil.
func (r *Record) scalarPtr(name string) **string {
	switch name {
	case "brief_description":
		return &r.BriefDescription
	case "coe_fed":
		return &r.CoeFed
	case "complexity":
		return &r.Complexity
	case "tool_version":
		return &r.ToolVersion
	case "process_details":
		return &r.ProcessDetails
	case "object_details":
		return &r.ObjectDetails
	case "queue":
		return &r.Queue
	case "shared_folders":
		return &r.SharedFolders
	case "shared_mailboxes":
		return &r.SharedMailboxes
	case "qa_handshake":
		return &r.QAHandshake
	case "preprod_deploy_date":
		return &r.PreprodDeployDate
	case "prod_deploy_date":
		return &r.ProdDeployDate
	case "warranty_end_date":
		return &r.WarrantyEndDate
	case "comments":
		return &r.Comments
	case "documentation":
		return &r.Documentation
	case "modified":
		return &r.Modified
	case "path":
		return &r.Path
	}
	return nil
}

func (r *Record) nestedField(spec FieldSpec) string {
	switch spec.Section {
	case SectionPeople:
		var names []string
		for _, p := range r.People {
			if p.Role == spec.Role && p.Name != "" {
				names = append(names, p.Name)
			}
		}
		return strings.Join(names, ", ")

	case SectionEnvironments:
		for _, e := range r.Environments {
			if e.Type != spec.Role {
				continue
			}
			if strings.HasSuffix(spec.Name, "_vdi") {
				return deref(e.VDI)
			}
			return deref(e.ServiceAccount)
		}

	case SectionTestData:
		if r.TestData != nil {
			return deref(r.TestData.Spoc)
		}

	case SectionMetrics:
		if r.Metrics == nil {
			return ""
		}
		switch spec.Name {
		case "post_prod_total_cases":
			if r.Metrics.TotalCases != nil {
				return strconv.Itoa(*r.Metrics.TotalCases)
			}
		case "post_prod_sys_ex_count":
			if r.Metrics.SysExCount != nil {
				return strconv.Itoa(*r.Metrics.SysExCount)
			}
		case "post_prod_success_rate":
			if r.Metrics.SuccessRate != nil {
				return r.Metrics.SuccessRate.String()
			}
		}

	case SectionArtifacts:
		if r.Artifacts == nil {
			return ""
		}
		switch spec.Name {
		case "artifacts_link":
			return deref(r.Artifacts.Link)
		case "code_review":
			return deref(r.Artifacts.CodeReview)
		case "demo":
			return deref(r.Artifacts.Demo)
		case "rampup_issue_list":
			return deref(r.Artifacts.RampupIssueList)
		}
	}
	return ""
}

// setNestedField assumes numeric values were validated by the caller;
// unparsable numbers are stored as null.
func (r *Record) setNestedField(spec FieldSpec, value *string) {
	switch spec.Section {
	case SectionPeople:
		kept := r.People[:0:0]
		for _, p := range r.People {
			if p.Role != spec.Role {
				kept = append(kept, p)
			}
		}
		if value != nil {
			for _, name := range strings.Split(*value, ",") {
				if name = strings.TrimSpace(name); name != "" {
					kept = append(kept, Person{Name: name, Role: spec.Role})
				}
			}
		}
		r.People = kept

	case SectionEnvironments:
		idx := -1
		for i, e := range r.Environments {
			if e.Type == spec.Role {
				idx = i
				break
			}
		}
		if idx < 0 {
			if value == nil {
				return
			}
			r.Environments = append(r.Environments, Environment{Type: spec.Role})
			idx = len(r.Environments) - 1
		}
		if strings.HasSuffix(spec.Name, "_vdi") {
			r.Environments[idx].VDI = value
		} else {
			r.Environments[idx].ServiceAccount = value
		}

	case SectionTestData:
		if r.TestData == nil {
			r.TestData = &TestData{}
		}
		r.TestData.Spoc = value

	case SectionMetrics:
		if r.Metrics == nil {
			r.Metrics = &Metrics{}
		}
		switch spec.Name {
		case "post_prod_total_cases":
			r.Metrics.TotalCases = parseIntPtr(value)
		case "post_prod_sys_ex_count":
			r.Metrics.SysExCount = parseIntPtr(value)
		case "post_prod_success_rate":
			r.Metrics.SuccessRate = parseDecimalPtr(value)
		}

	case SectionArtifacts:
		if r.Artifacts == nil {
			r.Artifacts = &Artifacts{}
		}
		switch spec.Name {
		case "artifacts_link":
			r.Artifacts.Link = value
		case "code_review":
			r.Artifacts.CodeReview = value
		case "demo":
			r.Artifacts.Demo = value
		case "rampup_issue_list":
			r.Artifacts.RampupIssueList = value
		}
	}
}

// HasSection reports whether the record carries the given nested section.
func (r *Record) HasSection(s Section) bool {
	switch s {
	case SectionPeople:
		return r.People != nil
	case SectionEnvironments:
		return r.Environments != nil
	case SectionTestData:
		return r.TestData != nil
	case SectionMetrics:
		return r.Metrics != nil
	case SectionArtifacts:
		return r.Artifacts != nil
	}
	return true
}

// mergeMissingSections copies nested sections from existing that r lacks,
// so a full replace does not drop data the import file never mentioned.
func (r *Record) mergeMissingSections(existing *Record) {
	if existing == nil {
		return
	}
	if r.People == nil {
		r.People = existing.People
	}
	if r.Environments == nil {
		r.Environments = existing.Environments
	}
	if r.TestData == nil {
		r.TestData = existing.TestData
	}
	if r.Metrics == nil {
		r.Metrics = existing.Metrics
	}
	if r.Artifacts == nil {
		r.Artifacts = existing.Artifacts
	}
}

func parseIntPtr(value *string) *int {
	if value == nil {
		return nil
	}
	i, ok := ParseInteger(*value)
	if !ok {
		return nil
	}
	return &i
}

func parseDecimalPtr(value *string) *Decimal {
	if value == nil {
		return nil
	}
	f, ok := ParseDecimal(*value)
	if !ok {
		return nil
	}
	d := Decimal(f)
	return &d
}
