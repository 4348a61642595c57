package compliance

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleReport() *Report {
	r := newReport()
	r.add(InvariantAdminPortRestricted, SeverityCritical, "ssh open to the internet", "bastion")
	r.add(InvariantCrossTierReference, SeverityMedium, "raw range used for peer group", "app", "prod-public-a")
	r.add(InvariantBindingCardinality, SeverityMedium, "compute has no binding", "worker-3")
	return r
}

func TestSeverity(t *testing.T) {
	if !SeverityCritical.IsValid() || Severity("meh").IsValid() {
		t.Error("IsValid() misclassifies severities")
	}
	if SeverityCritical.Weight() <= SeverityHigh.Weight() {
		t.Error("critical should outweigh high")
	}
	if Severity("meh").Weight() != 0 {
		t.Error("invalid severity should weigh 0")
	}
}

func TestReport_Filters(t *testing.T) {
	r := sampleReport()

	if r.Compliant() {
		t.Error("Compliant() = true for a report with violations")
	}
	if got := len(r.ByInvariant(InvariantCrossTierReference)); got != 1 {
		t.Errorf("ByInvariant() = %d, want 1", got)
	}
	if got := len(r.AtLeast(SeverityMedium)); got != 3 {
		t.Errorf("AtLeast(medium) = %d, want 3", got)
	}
	if got := len(r.AtLeast(SeverityCritical)); got != 1 {
		t.Errorf("AtLeast(critical) = %d, want 1", got)
	}
	want := SeverityCritical.Weight() + 2*SeverityMedium.Weight()
	if r.RiskScore() != want {
		t.Errorf("RiskScore() = %v, want %v", r.RiskScore(), want)
	}
}

func TestExport_JSON(t *testing.T) {
	r := sampleReport()
	b, err := Export(r, FormatJSON)
	if err != nil {
		t.Fatalf("Export(json) error = %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded.Violations) != 3 {
		t.Errorf("decoded violations = %d, want 3", len(decoded.Violations))
	}
	if decoded.ID != r.ID {
		t.Errorf("decoded ID = %v, want %v", decoded.ID, r.ID)
	}
}

func TestExport_CSV(t *testing.T) {
	r := sampleReport()
	b, err := Export(r, FormatCSV)
	if err != nil {
		t.Fatalf("Export(csv) error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 4 {
		t.Fatalf("csv lines = %d, want 4 (header + 3 rows)", len(lines))
	}
	if lines[0] != "invariant,severity,entity_ids,message" {
		t.Errorf("csv header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "app;prod-public-a") {
		t.Errorf("csv entity ids not joined: %q", lines[2])
	}
}

func TestExport_InvalidFormat(t *testing.T) {
	if _, err := Export(sampleReport(), ExportFormat("xml")); err == nil {
		t.Error("Export(xml) succeeded, want error")
	}
	if FormatJSON.FileExtension() != ".json" || FormatCSV.FileExtension() != ".csv" {
		t.Error("FileExtension() wrong for known formats")
	}
}
