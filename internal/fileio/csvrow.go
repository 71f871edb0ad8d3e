package fileio

import (
	"strings"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// csvRow is one automation as it appears in a CSV file. The csv tag is the
// canonical column used by imports and templates; the label tag is the
// display header used by exports. Field order follows the export catalog.
type csvRow struct {
	AirID             string `csv:"air_id" label:"AIR ID"`
	Name              string `csv:"name" label:"Name"`
	Type              string `csv:"type" label:"Type"`
	BriefDescription  string `csv:"brief_description" label:"Brief Description"`
	CoeFed            string `csv:"coe_fed" label:"COE/FED"`
	Complexity        string `csv:"complexity" label:"Complexity"`
	ToolVersion       string `csv:"tool_version" label:"Tool Version"`
	ProcessDetails    string `csv:"process_details" label:"Process Details"`
	ObjectDetails     string `csv:"object_details" label:"Object Details"`
	Queue             string `csv:"queue" label:"Queue"`
	SharedFolders     string `csv:"shared_folders" label:"Shared Folders"`
	SharedMailboxes   string `csv:"shared_mailboxes" label:"Shared Mailboxes"`
	QAHandshake       string `csv:"qa_handshake" label:"QA Handshake"`
	PreprodDeployDate string `csv:"preprod_deploy_date" label:"PreProd Deploy Date"`
	ProdDeployDate    string `csv:"prod_deploy_date" label:"Prod Deploy Date"`
	WarrantyEndDate   string `csv:"warranty_end_date" label:"Warranty End Date"`
	Comments          string `csv:"comments" label:"Comments"`
	Documentation     string `csv:"documentation" label:"Documentation"`
	Modified          string `csv:"modified" label:"Modified"`
	Path              string `csv:"path" label:"Path"`

	ProjectManager       string `csv:"project_manager" label:"Project Manager"`
	ProjectDesigner      string `csv:"project_designer" label:"Project Designer"`
	Developer            string `csv:"developer" label:"Developer"`
	Tester               string `csv:"tester" label:"Tester"`
	BusinessSPOC         string `csv:"business_spoc" label:"Business SPOC"`
	BusinessStakeholders string `csv:"business_stakeholders" label:"Business Stakeholders"`
	AppOwner             string `csv:"app_owner" label:"Applications-App Owner"`

	DevVDI                   string `csv:"dev_vdi" label:"Dev VDI"`
	DevServiceAccount        string `csv:"dev_service_account" label:"Dev Service Account"`
	QAVDI                    string `csv:"qa_vdi" label:"QA VDI"`
	QAServiceAccount         string `csv:"qa_service_account" label:"QA Service Account"`
	ProductionVDI            string `csv:"production_vdi" label:"Production VDI"`
	ProductionServiceAccount string `csv:"production_service_account" label:"Production Service Account"`

	TestDataSPOC string `csv:"test_data_spoc" label:"Test Data SPOC"`

	PostProdTotalCases  string `csv:"post_prod_total_cases" label:"Post Production Total Cases"`
	PostProdSysExCount  string `csv:"post_prod_sys_ex_count" label:"Post Production System Exceptions Count"`
	PostProdSuccessRate string `csv:"post_prod_success_rate" label:"Post Production Success Rate"`

	ArtifactsLink   string `csv:"artifacts_link" label:"Automation Artifacts Link"`
	CodeReview      string `csv:"code_review" label:"Code Review with M&E"`
	Demo            string `csv:"demo" label:"Automation Demo to M&E"`
	RampupIssueList string `csv:"rampup_issue_list" label:"Rampup/Postprod Issue/Resolution list to M&E"`

	// Read-only timestamps are exported but never imported.
	CreatedAt string `csv:"-" label:"Created At"`
	UpdatedAt string `csv:"-" label:"Updated At"`
}

// fields maps canonical names to the row's cells.
func (r *csvRow) fields() map[string]*string {
	return map[string]*string{
		"air_id":                     &r.AirID,
		"name":                       &r.Name,
		"type":                       &r.Type,
		"brief_description":          &r.BriefDescription,
		"coe_fed":                    &r.CoeFed,
		"complexity":                 &r.Complexity,
		"tool_version":               &r.ToolVersion,
		"process_details":            &r.ProcessDetails,
		"object_details":             &r.ObjectDetails,
		"queue":                      &r.Queue,
		"shared_folders":             &r.SharedFolders,
		"shared_mailboxes":           &r.SharedMailboxes,
		"qa_handshake":               &r.QAHandshake,
		"preprod_deploy_date":        &r.PreprodDeployDate,
		"prod_deploy_date":           &r.ProdDeployDate,
		"warranty_end_date":          &r.WarrantyEndDate,
		"comments":                   &r.Comments,
		"documentation":              &r.Documentation,
		"modified":                   &r.Modified,
		"path":                       &r.Path,
		"project_manager":            &r.ProjectManager,
		"project_designer":           &r.ProjectDesigner,
		"developer":                  &r.Developer,
		"tester":                     &r.Tester,
		"business_spoc":              &r.BusinessSPOC,
		"business_stakeholders":      &r.BusinessStakeholders,
		"app_owner":                  &r.AppOwner,
		"dev_vdi":                    &r.DevVDI,
		"dev_service_account":        &r.DevServiceAccount,
		"qa_vdi":                     &r.QAVDI,
		"qa_service_account":         &r.QAServiceAccount,
		"production_vdi":             &r.ProductionVDI,
		"production_service_account": &r.ProductionServiceAccount,
		"test_data_spoc":             &r.TestDataSPOC,
		"post_prod_total_cases":      &r.PostProdTotalCases,
		"post_prod_sys_ex_count":     &r.PostProdSysExCount,
		"post_prod_success_rate":     &r.PostProdSuccessRate,
		"artifacts_link":             &r.ArtifactsLink,
		"code_review":                &r.CodeReview,
		"demo":                       &r.Demo,
		"rampup_issue_list":          &r.RampupIssueList,
		"created_at":                 &r.CreatedAt,
		"updated_at":                 &r.UpdatedAt,
	}
}

// rawRow returns the named columns as a raw import row, or nil when every
// one of them is blank.
func (r *csvRow) rawRow(names []string) core.RawRow {
	fields := r.fields()
	row := make(core.RawRow, len(names))
	blank := true
	for _, name := range names {
		v := *fields[name]
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		row[name] = v
	}
	if blank {
		return nil
	}
	return row
}

func recordRow(rec *core.Record) csvRow {
	var r csvRow
	for name, cell := range r.fields() {
		*cell, _ = rec.Field(name)
	}
	return r
}

func rawRowToCSV(raw core.RawRow) csvRow {
	var r csvRow
	for name, cell := range r.fields() {
		*cell = raw[name]
	}
	return r
}
