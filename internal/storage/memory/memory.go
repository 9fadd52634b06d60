package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"timetable-service/internal/models"
	"timetable-service/pkg/response"
)

// Storage keeps entries in process memory. The slot index is updated under
// the same lock as the entry map, so check-and-insert is atomic.
type Storage struct {
	mu      sync.RWMutex
	entries map[string]models.TimetableEntry
	slots   map[models.SlotKey]string
}

func New() *Storage {
	return &Storage{
		entries: make(map[string]models.TimetableEntry),
		slots:   make(map[models.SlotKey]string),
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) CreateEntry(_ context.Context, e *models.TimetableEntry) error {
	const op = "storage.memory.CreateEntry"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[e.Slot()]; ok {
		return fmt.Errorf("%s: %w", op, response.ErrSlotConflict)
	}
	if _, ok := s.entries[e.ID]; ok {
		return fmt.Errorf("%s: duplicate id %s", op, e.ID)
	}

	s.entries[e.ID] = *e
	s.slots[e.Slot()] = e.ID

	return nil
}

func (s *Storage) GetEntry(_ context.Context, id string) (*models.TimetableEntry, error) {
	const op = "storage.memory.GetEntry"

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return &e, nil
}

func (s *Storage) GetEntryBySlot(_ context.Context, key models.SlotKey) (*models.TimetableEntry, error) {
	const op = "storage.memory.GetEntryBySlot"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.slots[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	e := s.entries[id]

	return &e, nil
}

func (s *Storage) ListEntries(_ context.Context, classID *string) ([]*models.TimetableEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*models.TimetableEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if classID != nil && e.ClassID != *classID {
			continue
		}
		entries = append(entries, &e)
	}

	slices.SortFunc(entries, func(a, b *models.TimetableEntry) int {
		return cmp.Or(
			cmp.Compare(a.Day.Ordinal(), b.Day.Ordinal()),
			cmp.Compare(a.Period, b.Period),
			cmp.Compare(a.ClassID, b.ClassID),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return entries, nil
}

func (s *Storage) UpdateEntry(_ context.Context, e *models.TimetableEntry) error {
	const op = "storage.memory.UpdateEntry"

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[e.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	current.TeacherID = e.TeacherID
	current.RoomNo = e.RoomNo
	current.StartTime = e.StartTime
	current.EndTime = e.EndTime
	current.UpdatedAt = e.UpdatedAt
	s.entries[e.ID] = current

	return nil
}

func (s *Storage) DeleteEntry(_ context.Context, id string) error {
	const op = "storage.memory.DeleteEntry"

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	delete(s.entries, id)
	delete(s.slots, e.Slot())

	return nil
}
