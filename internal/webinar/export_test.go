package webinar

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/storage"
	"github.com/geocoder89/conventionhub/internal/tasks"
)

func TestEncodeVisitorsCSV(t *testing.T) {
	rows := []participation.VisitorRow{
		{Email: "a@x.com", FullName: "Ivanova Anna", DurationMinutes: 40, ConfirmCount: 1, ControlCount: 2,
			CorrectAnswerCount: intPtr(9), TestPassed: boolPtr(true), WorkPlace: "Clinic, 2", Speciality: "Cardiology", Region: "Moscow"},
		{Email: "b@x.com", FullName: "Petrov Boris", DurationMinutes: 60, ConfirmCount: 5, ControlCount: 5},
	}

	b, err := EncodeVisitorsCSV(rows)
	if err != nil {
		t.Fatalf("EncodeVisitorsCSV: %v", err)
	}
	if !strings.HasPrefix(string(b), csvBOM) {
		t.Fatal("missing BOM")
	}

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(b), csvBOM))).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 || records[0][0] != "email" {
		t.Fatalf("unexpected records %v", records)
	}
	if got := strings.Join(records[1], "|"); got != "a@x.com|Ivanova Anna|40|1|2|9|true|Clinic, 2|Cardiology|Moscow" {
		t.Fatalf("unexpected first row %q", got)
	}
	if records[2][5] != "" || records[2][6] != "" {
		t.Fatalf("expected blank test columns, got %v", records[2])
	}
}

func TestHandleExport(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	tk, err := tasks.NewFactory().NewExportWebinarVisitors("admin", 10, "webinar_10_2026-03-10",
		[]participation.VisitorRow{{Email: "a@x.com", FullName: "Ivanova Anna"}})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	out, err := NewExporter(store, discardLogger()).HandleExport(context.Background(), tk)
	if err != nil {
		t.Fatalf("HandleExport: %v", err)
	}

	var res ExportResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Rows != 1 || res.Location == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	b, err := os.ReadFile(filepath.Join(dir, "exports", "webinar_10_2026-03-10.csv"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if !strings.Contains(string(b), "a@x.com,Ivanova Anna") {
		t.Fatalf("unexpected artifact %q", b)
	}
}

func TestHandleExport_RejectsPayloadWithoutFileName(t *testing.T) {
	tk, _ := tasks.NewFactory().NewRecalculateWebinarStatistic(nil, 1)
	tk.Kind = task.KindExportWebinarVisitors

	if _, err := NewExporter(nil, nil).HandleExport(context.Background(), tk); err == nil {
		t.Fatal("expected error for payload without file name")
	}
}
