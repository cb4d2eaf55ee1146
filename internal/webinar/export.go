package webinar

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/storage"
	"github.com/geocoder89/conventionhub/internal/tasks"
)

// utf-8 BOM so spreadsheet apps pick the right encoding
const csvBOM = "\xEF\xBB\xBF"

var exportHeader = []string{
	"email",
	"fullname",
	"duration",
	"confirm_count",
	"control_count",
	"correctly_test_answers",
	"test_is_passed",
	"work_place",
	"speciality",
	"region",
}

type ExportResult struct {
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

// Exporter writes the rows snapshotted in an export task as CSV.
type Exporter struct {
	store storage.ArtifactStore
	log   *slog.Logger
}

func NewExporter(store storage.ArtifactStore, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{store: store, log: log}
}

// HandleExport is the executor handler for export_webinar_visitors.
func (e *Exporter) HandleExport(ctx context.Context, t task.Task) (json.RawMessage, error) {
	p, err := tasks.DecodeAs[tasks.ExportWebinarVisitorsPayload](t)
	if err != nil {
		return nil, err
	}

	key, err := storage.ExportKey(p.FileName)
	if err != nil {
		return nil, err
	}

	body, err := EncodeVisitorsCSV(p.Rows)
	if err != nil {
		return nil, err
	}

	loc, err := e.store.Put(ctx, key, "text/csv", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}

	e.log.InfoContext(ctx, "export.stored",
		"webinar_id", p.WebinarID,
		"requested_by", p.RequestedBy,
		"key", key,
		"rows", len(p.Rows),
	)
	return json.Marshal(ExportResult{Location: loc, Rows: len(p.Rows)})
}

func EncodeVisitorsCSV(rows []participation.VisitorRow) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(csvBOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}

	for _, r := range rows {
		rec := []string{
			r.Email,
			r.FullName,
			strconv.Itoa(r.DurationMinutes),
			strconv.Itoa(r.ConfirmCount),
			strconv.Itoa(r.ControlCount),
			optionalInt(r.CorrectAnswerCount),
			optionalBool(r.TestPassed),
			r.WorkPlace,
			r.Speciality,
			r.Region,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
