package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CommentParentArticle  = "article"
	CommentParentQuestion = "question"
)

type Article struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Author    *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Body      string         `gorm:"column:body;type:text" json:"body"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Article) TableName() string { return "article" }

type Question struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Author    *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Body      string         `gorm:"column:body;type:text" json:"body"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }

type Comment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ParentKind string         `gorm:"column:parent_kind;not null;index:idx_comment_parent" json:"parent_kind"`
	ParentID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_comment_parent" json:"parent_id"`
	AuthorID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Author     *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Body       string         `gorm:"column:body;type:text" json:"body"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Comment) TableName() string { return "comment" }
