package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"timetable-service/internal/models"
	"timetable-service/pkg/response"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storage, err := New(dsn)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return storage
}

func newEntry(classID string, day models.Weekday, period int) *models.TimetableEntry {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.TimetableEntry{
		ID:        uuid.NewString(),
		ClassID:   classID,
		TeacherID: "T1",
		Day:       day,
		Period:    period,
		StartTime: "09:00",
		EndTime:   "09:50",
		RoomNo:    "Room101",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStorageSlotUniqueness(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	classID := "class-" + uuid.NewString()

	first := newEntry(classID, models.Monday, 1)
	if err := storage.CreateEntry(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { _ = storage.DeleteEntry(ctx, first.ID) })

	dup := newEntry(classID, models.Monday, 1)
	err := storage.CreateEntry(ctx, dup)
	if !errors.Is(err, response.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	existing, err := storage.GetEntryBySlot(ctx, dup.Slot())
	if err != nil {
		t.Fatalf("get by slot: %v", err)
	}
	if existing.ID != first.ID {
		t.Fatalf("expected %s, got %s", first.ID, existing.ID)
	}
}

func TestStorageListOrderAndUpdate(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	classID := "class-" + uuid.NewString()

	inserted := []*models.TimetableEntry{
		newEntry(classID, models.Wednesday, 1),
		newEntry(classID, models.Monday, 3),
		newEntry(classID, models.Monday, 1),
	}
	for _, e := range inserted {
		if err := storage.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
		id := e.ID
		t.Cleanup(func() { _ = storage.DeleteEntry(ctx, id) })
	}

	entries, err := storage.ListEntries(ctx, &classID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != inserted[2].ID || entries[1].ID != inserted[1].ID || entries[2].ID != inserted[0].ID {
		t.Fatalf("unexpected order")
	}
	if entries[0].StartTime != "09:00" {
		t.Fatalf("expected HH:MM start time, got %s", entries[0].StartTime)
	}

	target := entries[0]
	target.RoomNo = "Room 9"
	target.UpdatedAt = time.Now().UTC()
	if err := storage.UpdateEntry(ctx, target); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := storage.GetEntry(ctx, target.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RoomNo != "Room 9" || got.Day != models.Monday || got.Period != 1 || got.ClassID != classID {
		t.Fatalf("unexpected entry after update: %+v", got)
	}
}

func TestStorageNotFound(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()

	if _, err := storage.GetEntry(ctx, uuid.NewString()); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := storage.DeleteEntry(ctx, uuid.NewString()); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	missing := newEntry("nobody", models.Friday, 2)
	if err := storage.UpdateEntry(ctx, missing); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
