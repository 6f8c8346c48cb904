package models

import "time"

// Class groups students under a single owning teacher.
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeacherID uint      `gorm:"not null;index" json:"teacher_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassStudent is the enrollment of a student in a class.
type ClassStudent struct {
	ClassID   uint      `gorm:"primaryKey" json:"class_id"`
	StudentID uint      `gorm:"primaryKey;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
