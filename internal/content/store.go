package content

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/types"
)

// CourseStore is the document-store contract the manager mutates through.
// Update has merge-patch semantics: only the named fields change.
type CourseStore interface {
	GetAll(ctx context.Context) ([]*types.Course, error)
	GetByYear(ctx context.Context, year int) ([]*types.Course, error)
	Create(ctx context.Context, course *types.Course) (uuid.UUID, error)
	Update(ctx context.Context, courseID uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, courseID uuid.UUID) error
}

// UploadResult is what the file store reports back for one stored object.
type UploadResult struct {
	URL         string
	StoragePath string
	Type        string
	UploadedAt  time.Time
}

// FileStore is the object-storage contract. Delete takes the opaque
// storage path returned by Upload.
type FileStore interface {
	Upload(ctx context.Context, r io.Reader, filename string, courseID uuid.UUID, sectionTitle string) (*UploadResult, error)
	Delete(ctx context.Context, storagePath string) error
}

// Publisher receives a notification after every successful mutation so
// connected clients can re-render. A nil Publisher is valid.
type Publisher interface {
	Publish(event string, data map[string]interface{})
}

type gormCourseStore struct {
	repo repos.CourseRepo
}

// NewGormCourseStore adapts the batch-oriented course repo to the
// document-store contract the manager expects.
func NewGormCourseStore(repo repos.CourseRepo) CourseStore {
	return &gormCourseStore{repo: repo}
}

func (s *gormCourseStore) GetAll(ctx context.Context) ([]*types.Course, error) {
	return s.repo.GetAll(ctx, nil)
}

func (s *gormCourseStore) GetByYear(ctx context.Context, year int) ([]*types.Course, error) {
	return s.repo.GetByYear(ctx, nil, year)
}

func (s *gormCourseStore) Create(ctx context.Context, course *types.Course) (uuid.UUID, error) {
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	if _, err := s.repo.Create(ctx, nil, []*types.Course{course}); err != nil {
		return uuid.Nil, err
	}
	return course.ID, nil
}

func (s *gormCourseStore) Update(ctx context.Context, courseID uuid.UUID, fields map[string]interface{}) error {
	return s.repo.UpdateFields(ctx, nil, courseID, fields)
}

func (s *gormCourseStore) Delete(ctx context.Context, courseID uuid.UUID) error {
	return s.repo.FullDeleteByIDs(ctx, nil, []uuid.UUID{courseID})
}
