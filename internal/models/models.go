package models

import "time"

type TimetableEntry struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	TeacherID string    `db:"teacher_id"`
	Day       Weekday   `db:"day"`
	Period    int       `db:"period"`
	StartTime string    `db:"start_time"`
	EndTime   string    `db:"end_time"`
	RoomNo    string    `db:"room_no"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SlotKey identifies the (class, day, period) a single entry may occupy.
type SlotKey struct {
	ClassID string
	Day     Weekday
	Period  int
}

func (e *TimetableEntry) Slot() SlotKey {
	return SlotKey{ClassID: e.ClassID, Day: e.Day, Period: e.Period}
}
