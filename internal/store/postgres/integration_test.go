package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"savrdv/internal/domain"
	"savrdv/internal/store"
)

// openTestDB connects with a single pooled connection and pins the session to
// a throwaway schema, so the repos' own transactions all land in it.
func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("SAVRDV_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SAVRDV_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "savrdv_test_" + randomHex(t, 8)
	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema error: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(cleanupCtx)
	})

	// public stays on the path so the btree_gist operator classes resolve.
	if _, err := db.NewRaw("SET search_path TO " + schema + ", public").Exec(ctx); err != nil {
		t.Fatalf("set search_path error: %v", err)
	}
	if err := applyTestMigrations(ctx, db); err != nil {
		t.Fatalf("migrations error: %v", err)
	}
	return db
}

func TestPostgresIntegration_SlotOverlapAndReservation(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slots := NewSlotRepo(db)

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	s1, err := slots.Create(ctx, domain.Slot{TechnicianID: "7", StartTime: start, EndTime: end})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = slots.Create(ctx, domain.Slot{
		TechnicianID: "7",
		StartTime:    start.Add(30 * time.Minute),
		EndTime:      end.Add(30 * time.Minute),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("overlap err = %v, want %v", err, store.ErrConflict)
	}

	// Back-to-back and other-technician slots do not collide.
	if _, err := slots.Create(ctx, domain.Slot{TechnicianID: "7", StartTime: end, EndTime: end.Add(time.Hour)}); err != nil {
		t.Fatalf("adjacent Create error: %v", err)
	}
	if _, err := slots.Create(ctx, domain.Slot{TechnicianID: "9", StartTime: start, EndTime: end}); err != nil {
		t.Fatalf("other technician Create error: %v", err)
	}

	jobA := mustUUID(t)
	got, err := slots.Reserve(ctx, s1.ID, jobA)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if !got.Reserved || got.InterventionID == nil || *got.InterventionID != jobA {
		t.Fatalf("reserved slot = %+v, want reserved with intervention %s", got, jobA)
	}

	if _, err := slots.Reserve(ctx, s1.ID, mustUUID(t)); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("double reserve err = %v, want %v", err, store.ErrConflict)
	}

	if err := slots.Delete(ctx, s1.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("delete reserved err = %v, want %v", err, store.ErrConflict)
	}

	released, err := slots.Release(ctx, s1.ID)
	if err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if released.Reserved || released.InterventionID != nil {
		t.Fatalf("released slot = %+v, want free", released)
	}

	// Releasing an already-free slot is a no-op, not an error.
	if _, err := slots.Release(ctx, s1.ID); err != nil {
		t.Fatalf("second Release error: %v", err)
	}

	if err := slots.Delete(ctx, s1.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := slots.Get(ctx, s1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestPostgresIntegration_AcceptIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slots := NewSlotRepo(db)
	requests := NewRequestRepo(db)

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	slot, err := slots.Create(ctx, domain.Slot{TechnicianID: "7", StartTime: start, EndTime: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create slot error: %v", err)
	}

	req, err := requests.Create(ctx, domain.AppointmentRequest{
		ClientID:  "c1",
		Motive:    "noisy fridge",
		Status:    domain.RequestStatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create request error: %v", err)
	}

	// Steal the slot, then try to accept: the status transition must roll
	// back together with the failed reservation.
	if _, err := slots.Reserve(ctx, slot.ID, mustUUID(t)); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	_, err = requests.Accept(ctx, req.ID, slot.ID, mustUUID(t), "", time.Now().UTC())
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("accept on reserved slot err = %v, want %v", err, store.ErrConflict)
	}
	after, err := requests.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get request error: %v", err)
	}
	if after.Status != domain.RequestStatusPending {
		t.Fatalf("status after failed accept = %q, want pending", after.Status)
	}

	if _, err := slots.Release(ctx, slot.ID); err != nil {
		t.Fatalf("Release error: %v", err)
	}

	confirmed, err := requests.Accept(ctx, req.ID, slot.ID, mustUUID(t), "see you monday", time.Now().UTC())
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if confirmed.Status != domain.RequestStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", confirmed.Status)
	}
	if confirmed.SlotID == nil || *confirmed.SlotID != slot.ID {
		t.Fatalf("slot link = %v, want %s", confirmed.SlotID, slot.ID)
	}
	if confirmed.ProcessedAt == nil {
		t.Fatal("processed_at not set")
	}

	if _, err := requests.Accept(ctx, req.ID, slot.ID, mustUUID(t), "", time.Now().UTC()); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("second accept err = %v, want %v", err, store.ErrInvalidState)
	}

	cancelled, err := requests.Cancel(ctx, req.ID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if cancelled.Status != domain.RequestStatusCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
	freed, err := slots.Get(ctx, slot.ID)
	if err != nil {
		t.Fatalf("Get slot error: %v", err)
	}
	if freed.Reserved {
		t.Fatal("slot still reserved after cancel")
	}

	if _, err := requests.Cancel(ctx, req.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("second cancel err = %v, want %v", err, store.ErrInvalidState)
	}
}

func TestPostgresIntegration_BulkCreateSkipsCollisions(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slots := NewSlotRepo(db)

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if _, err := slots.Create(ctx, domain.Slot{TechnicianID: "7", StartTime: start, EndTime: start.Add(time.Hour)}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	accepted, err := slots.BulkCreate(ctx, []domain.SlotCandidate{
		{TechnicianID: "7", StartTime: start, EndTime: start.Add(time.Hour)},
		{TechnicianID: "7", StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour)},
		{TechnicianID: "7", StartTime: start.Add(2 * time.Hour), EndTime: start.Add(3 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("BulkCreate error: %v", err)
	}
	if len(accepted) != 2 {
		t.Fatalf("accepted = %d slots, want 2 (collision skipped)", len(accepted))
	}

	filter := store.AvailabilityFilter{
		RangeStart: start,
		RangeEnd:   start.Add(3 * time.Hour),
		Page:       1,
		PageSize:   2,
	}
	page, err := slots.QueryAvailability(ctx, filter)
	if err != nil {
		t.Fatalf("QueryAvailability error: %v", err)
	}
	if page.TotalCount != 3 || page.FreeCount != 3 || page.ReservedCount != 0 {
		t.Fatalf("totals = %d/%d/%d, want 3/3/0", page.TotalCount, page.FreeCount, page.ReservedCount)
	}
	if page.PageCount != 2 || len(page.Slots) != 2 {
		t.Fatalf("page_count = %d len = %d, want 2 and 2", page.PageCount, len(page.Slots))
	}

	filter.Page = 2
	last, err := slots.QueryAvailability(ctx, filter)
	if err != nil {
		t.Fatalf("QueryAvailability page 2 error: %v", err)
	}
	if len(last.Slots) != 1 {
		t.Fatalf("page 2 len = %d, want 1", len(last.Slots))
	}
	// Page sizes must sum to the total over all pages.
	if got := len(page.Slots) + len(last.Slots); got != page.TotalCount {
		t.Fatalf("slots over pages = %d, want total %d", got, page.TotalCount)
	}
	if last.Slots[0].StartTime.Before(page.Slots[1].StartTime) {
		t.Fatal("page 2 slots not ordered after page 1")
	}

	// A page beyond the last one is empty but keeps the totals.
	filter.Page = 3
	empty, err := slots.QueryAvailability(ctx, filter)
	if err != nil {
		t.Fatalf("QueryAvailability page 3 error: %v", err)
	}
	if len(empty.Slots) != 0 {
		t.Fatalf("out-of-range page len = %d, want 0", len(empty.Slots))
	}
	if empty.TotalCount != 3 || empty.FreeCount != 3 || empty.ReservedCount != 0 || empty.PageCount != 2 {
		t.Fatalf("out-of-range totals = %d/%d/%d/%d, want 3/3/0/2",
			empty.TotalCount, empty.FreeCount, empty.ReservedCount, empty.PageCount)
	}
}

func TestPostgresIntegration_ListByTechnicianDateFilter(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slots := NewSlotRepo(db)

	day1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	// Inserted out of order to exercise the start-ascending sort.
	for _, s := range []domain.Slot{
		{TechnicianID: "7", StartTime: day1.Add(14 * time.Hour), EndTime: day1.Add(15 * time.Hour)},
		{TechnicianID: "7", StartTime: day1.Add(9 * time.Hour), EndTime: day1.Add(10 * time.Hour)},
		{TechnicianID: "7", StartTime: day2.Add(9 * time.Hour), EndTime: day2.Add(10 * time.Hour)},
		{TechnicianID: "9", StartTime: day1.Add(9 * time.Hour), EndTime: day1.Add(10 * time.Hour)},
	} {
		if _, err := slots.Create(ctx, s); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	got, err := slots.ListByTechnician(ctx, "7", &day1)
	if err != nil {
		t.Fatalf("ListByTechnician error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 slots on the filtered date", len(got))
	}
	if !got[0].StartTime.Equal(day1.Add(9*time.Hour)) || !got[1].StartTime.Equal(day1.Add(14*time.Hour)) {
		t.Fatalf("slots not in start order: %v, %v", got[0].StartTime, got[1].StartTime)
	}
	for _, s := range got {
		if s.StartTime.Before(day1) || !s.StartTime.Before(day2) {
			t.Fatalf("slot %v outside the filtered date", s.StartTime)
		}
	}

	all, err := slots.ListByTechnician(ctx, "7", nil)
	if err != nil {
		t.Fatalf("ListByTechnician all error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want all 3 of the technician's slots", len(all))
	}
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("uuid.NewV7 error: %v", err)
	}
	return id
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

func applyTestMigrations(ctx context.Context, db *bun.DB) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(string(b)) {
			if normalized, ok := normalizeExtensionStatement(stmt); ok {
				stmt = normalized
			}
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "database", "migrations")), nil
}

// The schema-scoped search_path cannot host the extension, so it is pinned to
// public where it is shared between test runs.
func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") {
		return "", false
	}
	if !strings.Contains(upper, "BTREE_GIST") {
		return "", false
	}
	if strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
