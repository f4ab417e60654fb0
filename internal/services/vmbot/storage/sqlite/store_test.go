package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xqbot/vmbot/internal/services/vmbot/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "vmbot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("Open() error = nil, want path validation failure")
	}
}

func TestRecordAndListCases(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []storage.CaseRecord{
		{Subject: "Vandale", Admin: "AdminA", Duration: "3 Tage", Reason: "Vandalismus", Project: "VM", ClosedAt: base},
		{Subject: "Zweiter", Admin: "AdminB", Duration: "1 Woche", Reason: "Editwar", Project: "VM", ClosedAt: base.Add(time.Hour)},
	}
	for _, record := range records {
		if err := store.RecordCase(ctx, record); err != nil {
			t.Fatalf("record case %q: %v", record.Subject, err)
		}
	}

	got, err := store.ListCases(ctx, 10)
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("cases len = %d, want 2", len(got))
	}
	if got[0].Subject != "Zweiter" {
		t.Fatalf("first subject = %q, want newest first", got[0].Subject)
	}
	if !got[0].ClosedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("closed at = %v, want %v", got[0].ClosedAt, base.Add(time.Hour))
	}
	if got[1].Duration != "3 Tage" || got[1].Reason != "Vandalismus" {
		t.Fatalf("oldest case = %+v", got[1])
	}
}

func TestRecordCaseValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordCase(ctx, storage.CaseRecord{Project: "VM"}); err == nil {
		t.Fatal("missing subject accepted")
	}
	if err := store.RecordCase(ctx, storage.CaseRecord{Subject: "Vandale"}); err == nil {
		t.Fatal("missing project accepted")
	}
}

func TestRecordAndListNotices(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.RecordNotice(ctx, storage.NoticeRecord{
		Defendant:     "Alice",
		Accuser:       "Carol",
		SignatureTime: "2025 Nov 15 11:46",
		Section:       "Benutzer:Alice",
		Project:       "VM",
		SentAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record notice: %v", err)
	}

	got, err := store.ListNotices(ctx, 10)
	if err != nil {
		t.Fatalf("list notices: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("notices len = %d, want 1", len(got))
	}
	notice := got[0]
	if notice.Defendant != "Alice" || notice.Accuser != "Carol" {
		t.Fatalf("notice = %+v", notice)
	}
	if notice.SignatureTime != "2025 Nov 15 11:46" {
		t.Fatalf("signature time = %q", notice.SignatureTime)
	}
}

func TestRecordNoticeValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordNotice(ctx, storage.NoticeRecord{Accuser: "Carol", Project: "VM"}); err == nil {
		t.Fatal("missing defendant accepted")
	}
	if err := store.RecordNotice(ctx, storage.NoticeRecord{Defendant: "Alice", Project: "VM"}); err == nil {
		t.Fatal("missing accuser accepted")
	}
}

func TestListRequiresPositiveLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.ListCases(ctx, 0); err == nil {
		t.Fatal("ListCases(0) error = nil")
	}
	if _, err := store.ListNotices(ctx, -1); err == nil {
		t.Fatal("ListNotices(-1) error = nil")
	}
}
