package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/types"
)

type SubmissionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, submissions []*types.Submission) ([]*types.Submission, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, submissionIDs []uuid.UUID) ([]*types.Submission, error)
	GetByAssignmentIDs(ctx context.Context, tx *gorm.DB, assignmentIDs []uuid.UUID) ([]*types.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, tx *gorm.DB, assignmentID, studentID uuid.UUID) (*types.Submission, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, fields map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, submissionIDs []uuid.UUID) error
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) Create(ctx context.Context, tx *gorm.DB, submissions []*types.Submission) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(submissions) == 0 {
		return []*types.Submission{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, submissionIDs []uuid.UUID) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Submission
	if len(submissionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", submissionIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *submissionRepo) GetByAssignmentIDs(ctx context.Context, tx *gorm.DB, assignmentIDs []uuid.UUID) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Submission
	if len(assignmentIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("assignment_id IN ?", assignmentIDs).
		Order("submitted_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *submissionRepo) GetByAssignmentAndStudent(ctx context.Context, tx *gorm.DB, assignmentID, studentID uuid.UUID) (*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Submission
	if err := transaction.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *submissionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Submission{}).
		Where("id = ?", submissionID).
		Updates(fields).Error
}

func (r *submissionRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, submissionIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(submissionIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", submissionIDs).
		Delete(&types.Submission{}).Error
}
