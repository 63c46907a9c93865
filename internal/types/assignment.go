package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Assignment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Course    *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	AuthorID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Author    *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Brief     string         `gorm:"column:brief" json:"brief"`
	DueAt     *time.Time     `gorm:"column:due_at" json:"due_at,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assignment) TableName() string { return "assignment" }

type Submission struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"assignment_id"`
	Assignment   *Assignment    `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssignmentID;references:ID" json:"assignment,omitempty"`
	StudentID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	Student      *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	FileURL      string         `gorm:"column:file_url" json:"file_url"`
	StorageKey   string         `gorm:"column:storage_key" json:"storage_key"`
	SubmittedAt  time.Time      `gorm:"column:submitted_at;not null" json:"submitted_at"`
	Grade        *int           `gorm:"column:grade" json:"grade,omitempty"`
	Feedback     string         `gorm:"column:feedback" json:"feedback,omitempty"`
	GradedAt     *time.Time     `gorm:"column:graded_at" json:"graded_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Submission) TableName() string { return "submission" }
