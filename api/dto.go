package api

import "time"

type TimetableEntry struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"classId"`
	TeacherID string    `json:"teacherId"`
	Day       string    `json:"day"`
	Period    int       `json:"period"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	RoomNo    string    `json:"roomNo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AllocateRequest struct {
	ClassID   string `json:"classId" validate:"required,max=64"`
	TeacherID string `json:"teacherId" validate:"required,max=64"`
	Day       string `json:"day" validate:"required"`
	Period    int    `json:"period" validate:"required,min=1"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	RoomNo    string `json:"roomNo" validate:"required,max=64"`
}

// UpdateRequest carries only the fields an entry may change after
// allocation; omitted fields keep their current value.
type UpdateRequest struct {
	TeacherID *string `json:"teacherId,omitempty" validate:"omitempty,max=64"`
	RoomNo    *string `json:"roomNo,omitempty" validate:"omitempty,max=64"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
}

func (r *UpdateRequest) Empty() bool {
	return r.TeacherID == nil && r.RoomNo == nil && r.StartTime == nil && r.EndTime == nil
}
