package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"

	apperrors "tribune/internal/errors"
	"tribune/internal/models"
	"tribune/internal/testutil"
)

func TestParseExportFormat(t *testing.T) {
	for _, s := range []string{"csv", "json"} {
		if _, err := ParseExportFormat(s); err != nil {
			t.Errorf("expected %q to parse, got %v", s, err)
		}
	}
	if _, err := ParseExportFormat("xml"); !errors.Is(err, apperrors.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat for xml, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	for i := 0; i < 3; i++ {
		testutil.CreateTestEvent(t, db, "org-a")
	}
	testutil.CreateTestEvent(t, db, "org-b")

	var buf bytes.Buffer
	// Restrict to the fixture action so the export's own self-audit record,
	// written before streaming starts, is not part of the result set.
	filter := Filter{OrgID: "org-a", Actions: []models.ActionType{models.ActionCreated}}
	err := svc.Export(context.Background(), Actor{ID: "user-1", Name: "Alice"}, filter, FormatCSV, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("export produced invalid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d records", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "timestamp" {
		t.Errorf("unexpected header: %v", records[0])
	}
	for _, row := range records[1:] {
		if len(row) != len(records[0]) {
			t.Errorf("row width %d does not match header width %d", len(row), len(records[0]))
		}
	}
}

func TestExportJSON(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	for i := 0; i < 2; i++ {
		testutil.CreateTestEvent(t, db, "org-a")
	}

	var buf bytes.Buffer
	filter := Filter{OrgID: "org-a", Actions: []models.ActionType{models.ActionCreated}}
	err := svc.Export(context.Background(), Actor{ID: "user-1"}, filter, FormatJSON, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var events []models.AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("export produced invalid JSON: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 exported events, got %d", len(events))
	}
}

func TestExportEmptyResult(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	var buf bytes.Buffer
	filter := Filter{OrgID: "org-empty", Actions: []models.ActionType{models.ActionCreated}}
	if err := svc.Export(context.Background(), Actor{ID: "user-1"}, filter, FormatJSON, &buf); err != nil {
		t.Fatalf("empty export must not error, got %v", err)
	}
	if got := buf.String(); got != "[]" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestExportAuditsItself(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	testutil.CreateTestEvent(t, db, "org-a")

	var buf bytes.Buffer
	err := svc.Export(context.Background(), Actor{ID: "user-1", Name: "Alice"}, Filter{OrgID: "org-a"}, FormatCSV, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var record models.AuditEvent
	err = db.Where("action = ?", models.ActionExported).First(&record).Error
	if err != nil {
		t.Fatalf("expected a persisted Exported record: %v", err)
	}
	if record.ActorID == nil || *record.ActorID != "user-1" {
		t.Errorf("expected the requesting actor on the record, got %v", record.ActorID)
	}
	if record.ResourceType != models.ResourceAuditLog {
		t.Errorf("expected audit log resource, got %v", record.ResourceType)
	}
	if record.OrgID == nil || *record.OrgID != "org-a" {
		t.Errorf("expected org-a scope on the record, got %v", record.OrgID)
	}
}

func TestExportBatching(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	// More rows than one keyset batch holds.
	total := exportBatchSize + 20
	for i := 0; i < total; i++ {
		testutil.CreateTestEvent(t, db, "org-a")
	}

	var buf bytes.Buffer
	filter := Filter{OrgID: "org-a", Actions: []models.ActionType{models.ActionCreated}}
	err := svc.Export(context.Background(), Actor{ID: "user-1"}, filter, FormatJSON, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var events []models.AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("export produced invalid JSON: %v", err)
	}
	if len(events) != total {
		t.Fatalf("expected %d exported events, got %d", total, len(events))
	}

	seen := make(map[string]bool, total)
	for _, event := range events {
		if seen[event.ID] {
			t.Fatalf("event %s exported twice across batches", event.ID)
		}
		seen[event.ID] = true
	}
}

func TestExportScopeRequired(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), Actor{ID: "user-1"}, Filter{}, FormatCSV, &buf)
	if !errors.Is(err, apperrors.ErrOrgScopeRequired) {
		t.Fatalf("expected ErrOrgScopeRequired, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on a rejected export, got %q", buf.String())
	}
}
