package core

import (
	"encoding/json"
	"testing"
)

func TestRecord_UnmarshalBackendJSON(t *testing.T) {
	body := `{
		"air_id": "AIR-7",
		"name": "Claims Intake",
		"type": "RPA",
		"queue": null,
		"prod_deploy_date": "2024-02-01T00:00:00Z",
		"people": [{"name": "Ann", "role": "developer"}, {"name": "Raj", "role": "business_stakeholder"}],
		"environments": [{"type": "prod", "vdi": "PVDI-1", "service_account": null}],
		"metrics": {"post_prod_total_cases": 10, "post_prod_sys_ex_count": null, "post_prod_success_rate": "99.50"},
		"created_at": "2024-01-01T00:00:00Z",
		"id": 12
	}`

	var r Record
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	tests := []struct {
		field  string
		want   string
		wantOK bool
	}{
		{"air_id", "AIR-7", true},
		{"queue", "", false},
		{"prod_deploy_date", "2024-02-01T00:00:00Z", true},
		{"developer", "Ann", true},
		{"business_stakeholders", "Raj", true},
		{"tester", "", false},
		{"production_vdi", "PVDI-1", true},
		{"production_service_account", "", false},
		{"post_prod_total_cases", "10", true},
		{"post_prod_success_rate", "99.5", true},
		{"post_prod_sys_ex_count", "", false},
		{"created_at", "2024-01-01T00:00:00Z", true},
		{"no_such_field", "", false},
	}

	for _, tt := range tests {
		got, ok := r.Field(tt.field)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Field(%q) = %q, %v, want %q, %v", tt.field, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRecord_MarshalOmitsMissingSections(t *testing.T) {
	r := rec("A-1", "Foo", "RPA")
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	json.Unmarshal(b, &m)

	for _, key := range []string{"people", "environments", "test_data", "metrics", "artifacts", "created_at"} {
		if _, ok := m[key]; ok {
			t.Errorf("key %q should be omitted", key)
		}
	}
	if v, ok := m["queue"]; !ok || v != nil {
		t.Errorf("queue = %v, %v, want explicit null", v, ok)
	}
}

func TestDecimal_JSON(t *testing.T) {
	for _, in := range []string{`95.5`, `"95.50"`} {
		var d Decimal
		if err := json.Unmarshal([]byte(in), &d); err != nil {
			t.Fatalf("Unmarshal(%s): %v", in, err)
		}
		if d != 95.5 {
			t.Errorf("Unmarshal(%s) = %v, want 95.5", in, d)
		}
	}

	b, _ := json.Marshal(Decimal(97.25))
	if string(b) != "97.25" {
		t.Errorf("Marshal = %s, want 97.25", b)
	}
}

func TestRecord_SetFieldPeopleReplacesRole(t *testing.T) {
	r := rec("A-1", "Foo", "RPA")
	r.People = []Person{{Name: "Ann", Role: "developer"}, {Name: "Tia", Role: "tester"}}

	v := "Bob, Cy"
	r.SetField("developer", &v)

	if got, _ := r.Field("developer"); got != "Bob, Cy" {
		t.Errorf("developer = %q, want %q", got, "Bob, Cy")
	}
	if got, _ := r.Field("tester"); got != "Tia" {
		t.Errorf("tester = %q, other roles must be kept", got)
	}

	r.SetField("developer", nil)
	if _, ok := r.Field("developer"); ok {
		t.Error("developer should be cleared")
	}
}

func TestRecord_MergeMissingSections(t *testing.T) {
	spoc := "Dana"
	existing := rec("A-1", "Foo", "RPA")
	existing.TestData = &TestData{Spoc: &spoc}
	existing.People = []Person{{Name: "Ann", Role: "developer"}}

	incoming := rec("A-1", "Foo", "RPA")
	incoming.People = []Person{{Name: "Bob", Role: "developer"}}
	incoming.mergeMissingSections(&existing)

	if incoming.TestData == nil || *incoming.TestData.Spoc != "Dana" {
		t.Error("missing test_data should be copied from existing")
	}
	if incoming.People[0].Name != "Bob" {
		t.Error("supplied people must not be overwritten")
	}
}
