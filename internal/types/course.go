package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileItem describes one uploaded file inside a section. StoragePath is the
// opaque bucket handle; a FileItem without one cannot be removed from storage.
type FileItem struct {
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Type        string     `json:"type,omitempty"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
	StoragePath string     `json:"storage_path,omitempty"`
}

// Section is a named subdivision of course content. The title doubles as the
// section's key within its course, so it must stay unique per course.
type Section struct {
	Title string     `json:"title"`
	Files []FileItem `json:"files"`
}

// Course keeps its whole section tree in a single jsonb document and patches
// it wholesale, the way the manager mutates it. Modules mirrors
// len(Content) after every successful mutation.
type Course struct {
	ID          uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string                         `gorm:"column:title;not null" json:"title"`
	Year        int                            `gorm:"column:year;not null;index" json:"year"`
	Modules     int                            `gorm:"column:modules;not null;default:0" json:"modules"`
	Author      string                         `gorm:"column:author" json:"author"`
	Description string                         `gorm:"column:description" json:"description"`
	Content     datatypes.JSONType[[]Section]  `gorm:"column:content;type:jsonb" json:"content"`
	CreatedAt   time.Time                      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt                 `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

func (c *Course) Sections() []Section { return c.Content.Data() }

func (c *Course) SetSections(sections []Section) {
	c.Content = datatypes.NewJSONType(sections)
	c.Modules = len(sections)
}

// SectionIndex returns the position of the section with the given title, or
// -1 when absent.
func (c *Course) SectionIndex(title string) int {
	for i, s := range c.Sections() {
		if s.Title == title {
			return i
		}
	}
	return -1
}
