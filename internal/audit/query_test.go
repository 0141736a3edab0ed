package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	apperrors "tribune/internal/errors"
	"tribune/internal/models"
	"tribune/internal/pagination"
	"tribune/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	recorder := NewRecorder(NewGormStore(db), RecorderConfig{})
	svc := NewService(db, recorder, ServiceConfig{})
	return svc, db
}

func TestQueryScope(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	for i := 0; i < 3; i++ {
		testutil.CreateTestEvent(t, db, "org-a")
	}
	for i := 0; i < 2; i++ {
		testutil.CreateTestEvent(t, db, "org-b")
	}

	t.Run("org_scoped", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a"}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 3 {
			t.Errorf("expected 3 events for org-a, got %d", page.TotalItems)
		}
		for _, event := range page.Data {
			if event.OrgID == nil || *event.OrgID != "org-a" {
				t.Errorf("event %s leaked from another org", event.ID)
			}
		}
	})

	t.Run("all_orgs", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{AllOrgs: true}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 5 {
			t.Errorf("expected 5 events across orgs, got %d", page.TotalItems)
		}
	})

	t.Run("missing_scope_rejected", func(t *testing.T) {
		_, err := svc.Query(context.Background(), Filter{}, pagination.PageRequest{})
		if !errors.Is(err, apperrors.ErrOrgScopeRequired) {
			t.Fatalf("expected ErrOrgScopeRequired, got %v", err)
		}
	})
}

func TestQueryFilters(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	testutil.CreateTestEventWithOutcome(t, db, "org-a", models.OutcomeDenied)
	testutil.CreateTestEventWithOutcome(t, db, "org-a", models.OutcomeSuccess)
	testutil.CreateTestEventWithAction(t, db, "org-a", models.ActionDeleted)
	testutil.CreateTestEventWithActor(t, db, "org-a", "user-7", "Grace")

	t.Run("by_outcome", func(t *testing.T) {
		denied := models.OutcomeDenied
		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a", Outcome: &denied}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 1 {
			t.Fatalf("expected 1 denied event, got %d", page.TotalItems)
		}
		if page.Data[0].Outcome != models.OutcomeDenied {
			t.Errorf("expected denied outcome, got %v", page.Data[0].Outcome)
		}
	})

	t.Run("by_action", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{
			OrgID:   "org-a",
			Actions: []models.ActionType{models.ActionDeleted},
		}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 1 {
			t.Errorf("expected 1 deleted-action event, got %d", page.TotalItems)
		}
	})

	t.Run("by_actor", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a", ActorID: "user-7"}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 1 {
			t.Errorf("expected 1 event for user-7, got %d", page.TotalItems)
		}
	})

	t.Run("by_search", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a", Search: "Grace"}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 1 {
			t.Errorf("expected 1 event matching actor name, got %d", page.TotalItems)
		}
	})

	t.Run("search_ignores_case", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a", Search: "gRACE"}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.TotalItems != 1 {
			t.Errorf("expected case-folded match on actor name, got %d", page.TotalItems)
		}
	})
}

func TestQueryTimeRange(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	testutil.CreateTestEventAt(t, db, "org-a", base.Add(-48*time.Hour))
	testutil.CreateTestEventAt(t, db, "org-a", base.Add(-24*time.Hour))
	boundary := testutil.CreateTestEventAt(t, db, "org-a", base)

	from := base.Add(-36 * time.Hour)
	page, err := svc.Query(context.Background(), Filter{OrgID: "org-a", From: &from, To: &base}, pagination.PageRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Half-open range: the event at To is excluded.
	if page.TotalItems != 1 {
		t.Fatalf("expected 1 event in [from, to), got %d", page.TotalItems)
	}
	if page.Data[0].ID == boundary.ID {
		t.Error("event at the To boundary must be excluded")
	}
}

func TestQueryPagination(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	// Same timestamp on purpose, so ordering falls through to the id tie-break.
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	created := make(map[string]bool, 5)
	for i := 0; i < 5; i++ {
		event := testutil.CreateTestEventAt(t, db, "org-a", ts)
		created[event.ID] = true
	}

	t.Run("pages_cover_every_event_once", func(t *testing.T) {
		seen := make(map[string]bool)
		for pageNum := 1; pageNum <= 3; pageNum++ {
			page, err := svc.Query(context.Background(), Filter{OrgID: "org-a"},
				pagination.PageRequest{Page: pageNum, PageSize: 2})
			if err != nil {
				t.Fatalf("page %d: unexpected error: %v", pageNum, err)
			}
			for _, event := range page.Data {
				if seen[event.ID] {
					t.Errorf("event %s returned on more than one page", event.ID)
				}
				seen[event.ID] = true
			}
		}
		if len(seen) != len(created) {
			t.Errorf("expected %d distinct events across pages, got %d", len(created), len(seen))
		}
	})

	t.Run("newest_first", func(t *testing.T) {
		old := testutil.CreateTestEventAt(t, db, "org-a", ts.Add(-time.Hour))
		newest := testutil.CreateTestEventAt(t, db, "org-a", ts.Add(time.Hour))

		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a"}, pagination.PageRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Data) != 7 {
			t.Fatalf("expected 7 events, got %d", len(page.Data))
		}
		if page.Data[0].ID != newest.ID {
			t.Errorf("expected newest event first, got %s", page.Data[0].ID)
		}
		if page.Data[6].ID != old.ID {
			t.Errorf("expected oldest event last, got %s", page.Data[6].ID)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		page, err := svc.Query(context.Background(), Filter{OrgID: "org-a"},
			pagination.PageRequest{Page: 1, PageSize: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !page.HasNext {
			t.Error("expected has_next on a non-final page")
		}
		if page.TotalPages != 4 {
			t.Errorf("expected 4 pages of 2 over 7 events, got %d", page.TotalPages)
		}
	})
}

func TestQueryEmptyPage(t *testing.T) {
	svc, db := newTestService(t)
	defer testutil.TeardownTestDB(t, db)

	page, err := svc.Query(context.Background(), Filter{OrgID: "org-empty"}, pagination.PageRequest{})
	if err != nil {
		t.Fatalf("zero matches must not be an error, got %v", err)
	}
	if page.Data == nil {
		t.Error("expected empty slice, not nil data")
	}
	if len(page.Data) != 0 || page.TotalItems != 0 || page.TotalPages != 0 {
		t.Errorf("expected empty page metadata, got %d items, total %d", len(page.Data), page.TotalItems)
	}
	if page.HasNext {
		t.Error("empty result must not report a next page")
	}
}
