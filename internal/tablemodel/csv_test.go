package tablemodel

import (
	"strings"
	"testing"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
)

func TestExportCSVWritesHeaderAndRowsInColumnOrder(t *testing.T) {
	data := catalog.TableData{
		Columns: []catalog.TableColumn{
			{ID: "c1", Name: "Name"},
			{ID: "c2", Name: "Week"},
		},
		Rows: []catalog.TableRow{
			{ID: "r1", Data: map[string]string{"c2": "23", "c1": "Ada"}},
			{ID: "r2", Data: map[string]string{"c1": "Grace"}},
		},
	}

	var out strings.Builder
	if err := ExportCSV(&out, data); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	expected := "Name,Week\nAda,23\nGrace,\n"
	if out.String() != expected {
		t.Fatalf("unexpected csv output:\n%q\nwant\n%q", out.String(), expected)
	}
}

func TestExportCSVQuotesEmbeddedDelimiters(t *testing.T) {
	data := catalog.TableData{
		Columns: []catalog.TableColumn{{ID: "c1", Name: "Notes"}},
		Rows: []catalog.TableRow{
			{ID: "r1", Data: map[string]string{"c1": `on call, "primary"`}},
		},
	}

	var out strings.Builder
	if err := ExportCSV(&out, data); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	expected := "Notes\n\"on call, \"\"primary\"\"\"\n"
	if out.String() != expected {
		t.Fatalf("unexpected csv output:\n%q\nwant\n%q", out.String(), expected)
	}
}

func TestFilterRowsMatchesCaseInsensitively(t *testing.T) {
	data := catalog.TableData{
		Columns: []catalog.TableColumn{
			{ID: "c1", Name: "Name"},
			{ID: "c2", Name: "Role"},
		},
		Rows: []catalog.TableRow{
			{ID: "r1", Data: map[string]string{"c1": "Ada", "c2": "Primary"}},
			{ID: "r2", Data: map[string]string{"c1": "Grace", "c2": "Secondary"}},
			{ID: "r3", Data: map[string]string{"c1": "Edsger"}},
		},
	}

	rows := FilterRows(data, "PRIM")
	if len(rows) != 1 {
		t.Fatalf("expected one matching row, got %d", len(rows))
	}
	if rows[0].ID != "r1" {
		t.Fatalf("unexpected matching row: %q", rows[0].ID)
	}
}

func TestFilterRowsKeepsEverythingForEmptyTerm(t *testing.T) {
	data := catalog.TableData{
		Columns: []catalog.TableColumn{{ID: "c1", Name: "Name"}},
		Rows: []catalog.TableRow{
			{ID: "r1", Data: map[string]string{"c1": "Ada"}},
			{ID: "r2", Data: map[string]string{"c1": "Grace"}},
		},
	}

	rows := FilterRows(data, "")
	if len(rows) != 2 {
		t.Fatalf("expected every row for empty term, got %d", len(rows))
	}
}
