package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"timetable-service/internal/models"
	"timetable-service/pkg/response"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"

	slotConstraint = "timetable_entries_slot_key"
)

//go:embed schema.sql
var schema string

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Migrate creates the timetable schema if it is missing.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

const selectColumns = `
	SELECT id, class_id, teacher_id, day, period,
		to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
		room_no, created_at, updated_at
	FROM timetable_entries`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.TimetableEntry, error) {
	var e models.TimetableEntry
	var day string

	err := row.Scan(
		&e.ID,
		&e.ClassID,
		&e.TeacherID,
		&day,
		&e.Period,
		&e.StartTime,
		&e.EndTime,
		&e.RoomNo,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Day = models.Weekday(day)

	return &e, nil
}

// CreateEntry inserts e. The slot unique constraint makes check-and-insert a
// single atomic statement; a taken slot is reported as ErrSlotConflict.
func (s *Storage) CreateEntry(ctx context.Context, e *models.TimetableEntry) error {
	const op = "storage.postgres.CreateEntry"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timetable_entries
		(id, class_id, teacher_id, day, day_ordinal, period, start_time, end_time, room_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID,
		e.ClassID,
		e.TeacherID,
		string(e.Day),
		e.Day.Ordinal(),
		e.Period,
		e.StartTime,
		e.EndTime,
		e.RoomNo,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	return nil
}

func (s *Storage) GetEntry(ctx context.Context, id string) (*models.TimetableEntry, error) {
	const op = "storage.postgres.GetEntry"

	entry, err := scanEntry(s.db.QueryRowContext(ctx, selectColumns+` WHERE id::text = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (s *Storage) GetEntryBySlot(ctx context.Context, key models.SlotKey) (*models.TimetableEntry, error) {
	const op = "storage.postgres.GetEntryBySlot"

	entry, err := scanEntry(s.db.QueryRowContext(ctx,
		selectColumns+` WHERE class_id = $1 AND day = $2 AND period = $3`,
		key.ClassID, string(key.Day), key.Period,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (s *Storage) ListEntries(ctx context.Context, classID *string) ([]*models.TimetableEntry, error) {
	const op = "storage.postgres.ListEntries"

	query := selectColumns
	var args []any

	if classID != nil {
		query += ` WHERE class_id = $1`
		args = append(args, *classID)
	}
	query += ` ORDER BY day_ordinal, period, class_id, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	entries := make([]*models.TimetableEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// UpdateEntry writes the mutable columns only; class, day and period never
// change after creation.
func (s *Storage) UpdateEntry(ctx context.Context, e *models.TimetableEntry) error {
	const op = "storage.postgres.UpdateEntry"

	res, err := s.db.ExecContext(ctx,
		`UPDATE timetable_entries
		SET teacher_id = $1, room_no = $2, start_time = $3, end_time = $4, updated_at = $5
		WHERE id::text = $6`,
		e.TeacherID,
		e.RoomNo,
		e.StartTime,
		e.EndTime,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteEntry(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteEntry"

	res, err := s.db.ExecContext(ctx, `DELETE FROM timetable_entries WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch {
	case pqErr.Code == codeUniqueViolation && pqErr.Constraint == slotConstraint:
		return response.ErrSlotConflict
	case pqErr.Code == codeCheckViolation:
		return response.Invalid("constraint %s violated", pqErr.Constraint)
	}

	return err
}
