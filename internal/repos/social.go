package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/types"
)

type ArticleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, articles []*types.Article) ([]*types.Article, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Article, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, articleIDs []uuid.UUID) ([]*types.Article, error)
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, articleIDs []uuid.UUID) error
}

type articleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArticleRepo(db *gorm.DB, baseLog *logger.Logger) ArticleRepo {
	return &articleRepo{db: db, log: baseLog.With("repo", "ArticleRepo")}
}

func (r *articleRepo) Create(ctx context.Context, tx *gorm.DB, articles []*types.Article) ([]*types.Article, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(articles) == 0 {
		return []*types.Article{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *articleRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Article, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Article
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *articleRepo) GetByIDs(ctx context.Context, tx *gorm.DB, articleIDs []uuid.UUID) ([]*types.Article, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Article
	if len(articleIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", articleIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *articleRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, articleIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(articleIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", articleIDs).
		Delete(&types.Article{}).Error
}

type QuestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.Question, error)
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questions) == 0 {
		return []*types.Question{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Question
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Question
	if len(questionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", questionIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questionIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", questionIDs).
		Delete(&types.Question{}).Error
}

type CommentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, comments []*types.Comment) ([]*types.Comment, error)
	GetByParent(ctx context.Context, tx *gorm.DB, parentKind string, parentID uuid.UUID) ([]*types.Comment, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, commentIDs []uuid.UUID) ([]*types.Comment, error)
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, commentIDs []uuid.UUID) error
	SoftDeleteByParent(ctx context.Context, tx *gorm.DB, parentKind string, parentID uuid.UUID) error
}

type commentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
	return &commentRepo{db: db, log: baseLog.With("repo", "CommentRepo")}
}

func (r *commentRepo) Create(ctx context.Context, tx *gorm.DB, comments []*types.Comment) ([]*types.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(comments) == 0 {
		return []*types.Comment{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepo) GetByParent(ctx context.Context, tx *gorm.DB, parentKind string, parentID uuid.UUID) ([]*types.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Comment
	if err := transaction.WithContext(ctx).
		Where("parent_kind = ? AND parent_id = ?", parentKind, parentID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *commentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, commentIDs []uuid.UUID) ([]*types.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Comment
	if len(commentIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", commentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *commentRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, commentIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(commentIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", commentIDs).
		Delete(&types.Comment{}).Error
}

func (r *commentRepo) SoftDeleteByParent(ctx context.Context, tx *gorm.DB, parentKind string, parentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("parent_kind = ? AND parent_id = ?", parentKind, parentID).
		Delete(&types.Comment{}).Error
}
