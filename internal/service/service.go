package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetable-service/api"
	"timetable-service/internal/lock"
	"timetable-service/internal/models"
	"timetable-service/pkg/metrics"
	"timetable-service/pkg/response"
)

const (
	clockLayout = "15:04"

	defaultPeriodsPerDay = 8
	defaultLockTTL       = 10 * time.Second
	defaultLockWait      = 2 * time.Second
	lockRetryInterval    = 50 * time.Millisecond
)

type Store interface {
	CreateEntry(ctx context.Context, entry *models.TimetableEntry) error
	GetEntry(ctx context.Context, id string) (*models.TimetableEntry, error)
	GetEntryBySlot(ctx context.Context, key models.SlotKey) (*models.TimetableEntry, error)
	ListEntries(ctx context.Context, classID *string) ([]*models.TimetableEntry, error)
	UpdateEntry(ctx context.Context, entry *models.TimetableEntry) error
	DeleteEntry(ctx context.Context, id string) error
}

type AllocationObserver interface {
	ObserveAllocation(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveAllocation(string) {}

type Service struct {
	store         Store
	locker        lock.Locker
	observer      AllocationObserver
	periodsPerDay int
	lockTTL       time.Duration
	lockWait      time.Duration
	now           func() time.Time
	newID         func() string
}

type Option func(*Service)

func WithPeriodsPerDay(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.periodsPerDay = n
		}
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLockWait bounds how long Allocate retries a slot lock held by a
// concurrent request. Zero means a single attempt.
func WithLockWait(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.lockWait = d
		}
	}
}

func WithObserver(o AllocationObserver) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, locker lock.Locker, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NopLock{}
	}

	s := &Service{
		store:         store,
		locker:        locker,
		observer:      nopObserver{},
		periodsPerDay: defaultPeriodsPerDay,
		lockTTL:       defaultLockTTL,
		lockWait:      defaultLockWait,
		now:           time.Now,
		newID:         uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) PeriodsPerDay() int {
	return s.periodsPerDay
}

// SlotConflictError reports the entry already holding a (class, day, period)
// slot. Existing is nil when that entry vanished before it could be read.
type SlotConflictError struct {
	Slot     models.SlotKey
	Existing *api.TimetableEntry
}

func (e *SlotConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("class %s already has period %d on %s (entry %s)",
			e.Slot.ClassID, e.Slot.Period, e.Slot.Day, e.Existing.ID)
	}
	return fmt.Sprintf("class %s already has period %d on %s", e.Slot.ClassID, e.Slot.Period, e.Slot.Day)
}

func (e *SlotConflictError) Unwrap() error {
	return response.ErrSlotConflict
}

func (s *Service) List(ctx context.Context, classID *string) ([]*api.TimetableEntry, error) {
	const op = "service.List"

	if classID != nil {
		trimmed := strings.TrimSpace(*classID)
		if trimmed == "" {
			classID = nil
		} else {
			classID = &trimmed
		}
	}

	entries, err := s.store.ListEntries(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.TimetableEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, toAPI(entry))
	}

	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (*api.TimetableEntry, error) {
	const op = "service.Get"

	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAPI(entry), nil
}

// Allocate validates req and stores it as a new entry. The store performs
// the slot check and the insert atomically; the slot lock only keeps
// concurrent callers for the same slot from racing to the store.
func (s *Service) Allocate(ctx context.Context, req *api.AllocateRequest) (*api.TimetableEntry, error) {
	const op = "service.Allocate"

	entry, err := s.buildEntry(req)
	if err != nil {
		s.observer.ObserveAllocation(metrics.AllocationInvalid)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockKey := slotLockKey(entry.Slot())

	token, locked, err := s.acquireSlot(ctx, lockKey)
	if err != nil {
		s.observer.ObserveAllocation(metrics.AllocationError)
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		s.observer.ObserveAllocation(metrics.AllocationLocked)
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token)
	}()

	err = s.store.CreateEntry(ctx, entry)
	switch {
	case err == nil:
	case errors.Is(err, response.ErrSlotConflict):
		s.observer.ObserveAllocation(metrics.AllocationConflict)
		return nil, fmt.Errorf("%s: %w", op, s.conflict(ctx, entry.Slot()))
	case errors.Is(err, response.ErrValidation):
		s.observer.ObserveAllocation(metrics.AllocationInvalid)
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		s.observer.ObserveAllocation(metrics.AllocationError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.observer.ObserveAllocation(metrics.AllocationCreated)

	return toAPI(entry), nil
}

// acquireSlot retries the slot lock until it is granted or lockWait runs
// out. A request that waited out a concurrent allocation of the same slot
// then sees that entry in the store and reports a slot conflict.
func (s *Service) acquireSlot(ctx context.Context, key string) (string, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := s.locker.Lock(ctx, key, s.lockTTL)
		if err != nil || ok {
			return token, ok, err
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return "", false, err
			}
			return "", false, nil
		case <-ticker.C:
		}
	}
}

func (s *Service) conflict(ctx context.Context, key models.SlotKey) *SlotConflictError {
	conflictErr := &SlotConflictError{Slot: key}

	existing, err := s.store.GetEntryBySlot(ctx, key)
	if err == nil {
		conflictErr.Existing = toAPI(existing)
	}

	return conflictErr
}

// Update changes the teacher, room or times of an entry. Class, day and
// period are fixed at allocation, so no slot check is needed here.
func (s *Service) Update(ctx context.Context, id string, req *api.UpdateRequest) (*api.TimetableEntry, error) {
	const op = "service.Update"

	if req.Empty() {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid("no updatable fields supplied"))
	}

	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.TeacherID != nil {
		if entry.TeacherID, err = requireField("teacherId", *req.TeacherID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if req.RoomNo != nil {
		if entry.RoomNo, err = requireField("roomNo", *req.RoomNo); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	startTime, endTime := entry.StartTime, entry.EndTime
	if req.StartTime != nil {
		startTime = *req.StartTime
	}
	if req.EndTime != nil {
		endTime = *req.EndTime
	}

	if entry.StartTime, entry.EndTime, err = parseTimeRange(startTime, endTime); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAPI(entry), nil
}

func (s *Service) Remove(ctx context.Context, id string) error {
	const op = "service.Remove"

	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) buildEntry(req *api.AllocateRequest) (*models.TimetableEntry, error) {
	classID, err := requireField("classId", req.ClassID)
	if err != nil {
		return nil, err
	}

	teacherID, err := requireField("teacherId", req.TeacherID)
	if err != nil {
		return nil, err
	}

	roomNo, err := requireField("roomNo", req.RoomNo)
	if err != nil {
		return nil, err
	}

	day, ok := models.ParseWeekday(req.Day)
	if !ok {
		return nil, response.Invalid("day %q is not a school day (Monday-Saturday)", req.Day)
	}

	if req.Period < 1 || req.Period > s.periodsPerDay {
		return nil, response.Invalid("period must be between 1 and %d", s.periodsPerDay)
	}

	startTime, endTime, err := parseTimeRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	return &models.TimetableEntry{
		ID:        s.newID(),
		ClassID:   classID,
		TeacherID: teacherID,
		Day:       day,
		Period:    req.Period,
		StartTime: startTime,
		EndTime:   endTime,
		RoomNo:    roomNo,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func requireField(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", response.Invalid("%s is required", name)
	}
	return value, nil
}

// parseTimeRange parses two HH:MM clock times and returns them normalised.
func parseTimeRange(start, end string) (string, string, error) {
	startTime, err := time.Parse(clockLayout, strings.TrimSpace(start))
	if err != nil {
		return "", "", response.Invalid("startTime %q must be HH:MM", start)
	}

	endTime, err := time.Parse(clockLayout, strings.TrimSpace(end))
	if err != nil {
		return "", "", response.Invalid("endTime %q must be HH:MM", end)
	}

	if !startTime.Before(endTime) {
		return "", "", response.Invalid("startTime must be before endTime")
	}

	return startTime.Format(clockLayout), endTime.Format(clockLayout), nil
}

func slotLockKey(key models.SlotKey) string {
	return fmt.Sprintf("timetable:%s:%s:%d", key.ClassID, key.Day, key.Period)
}

func toAPI(e *models.TimetableEntry) *api.TimetableEntry {
	return &api.TimetableEntry{
		ID:        e.ID,
		ClassID:   e.ClassID,
		TeacherID: e.TeacherID,
		Day:       string(e.Day),
		Period:    e.Period,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		RoomNo:    e.RoomNo,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
