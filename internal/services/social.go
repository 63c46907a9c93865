package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/types"
	"github.com/schoolhub/backend/internal/utils"
)

var ErrForbidden = fmt.Errorf("not allowed")

type PostInput struct {
	Title string
	Body  string
}

// SocialService covers the community surfaces, articles and questions with
// comment threads under each. Authors delete their own posts, admins delete
// anything.
type SocialService interface {
	CreateArticle(ctx context.Context, authorID uuid.UUID, input PostInput) (*types.Article, error)
	ListArticles(ctx context.Context) ([]*types.Article, error)
	DeleteArticle(ctx context.Context, articleID, actorID uuid.UUID, actorRole string) error

	CreateQuestion(ctx context.Context, authorID uuid.UUID, input PostInput) (*types.Question, error)
	ListQuestions(ctx context.Context) ([]*types.Question, error)
	DeleteQuestion(ctx context.Context, questionID, actorID uuid.UUID, actorRole string) error

	AddComment(ctx context.Context, authorID uuid.UUID, parentKind string, parentID uuid.UUID, body string) (*types.Comment, error)
	ListComments(ctx context.Context, parentKind string, parentID uuid.UUID) ([]*types.Comment, error)
	DeleteComment(ctx context.Context, commentID, actorID uuid.UUID, actorRole string) error
}

type socialService struct {
	db           *gorm.DB
	log          *logger.Logger
	articleRepo  repos.ArticleRepo
	questionRepo repos.QuestionRepo
	commentRepo  repos.CommentRepo
}

func NewSocialService(
	db *gorm.DB,
	baseLog *logger.Logger,
	articleRepo repos.ArticleRepo,
	questionRepo repos.QuestionRepo,
	commentRepo repos.CommentRepo,
) SocialService {
	return &socialService{
		db:           db,
		log:          baseLog.With("service", "SocialService"),
		articleRepo:  articleRepo,
		questionRepo: questionRepo,
		commentRepo:  commentRepo,
	}
}

func (s *socialService) CreateArticle(ctx context.Context, authorID uuid.UUID, input PostInput) (*types.Article, error) {
	title := utils.ParseInputString(input.Title)
	if title == "" {
		return nil, fmt.Errorf("article title is required")
	}
	article := &types.Article{
		ID:       uuid.New(),
		AuthorID: authorID,
		Title:    title,
		Body:     input.Body,
	}
	if _, err := s.articleRepo.Create(ctx, nil, []*types.Article{article}); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}
	return article, nil
}

func (s *socialService) ListArticles(ctx context.Context) ([]*types.Article, error) {
	return s.articleRepo.GetAll(ctx, nil)
}

func (s *socialService) DeleteArticle(ctx context.Context, articleID, actorID uuid.UUID, actorRole string) error {
	articles, err := s.articleRepo.GetByIDs(ctx, nil, []uuid.UUID{articleID})
	if err != nil {
		return fmt.Errorf("failed to look up article: %w", err)
	}
	if len(articles) == 0 {
		return fmt.Errorf("article %s not found", articleID)
	}
	if !canDelete(articles[0].AuthorID, actorID, actorRole) {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.commentRepo.SoftDeleteByParent(ctx, tx, types.CommentParentArticle, articleID); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		return s.articleRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{articleID})
	})
}

func (s *socialService) CreateQuestion(ctx context.Context, authorID uuid.UUID, input PostInput) (*types.Question, error) {
	title := utils.ParseInputString(input.Title)
	if title == "" {
		return nil, fmt.Errorf("question title is required")
	}
	question := &types.Question{
		ID:       uuid.New(),
		AuthorID: authorID,
		Title:    title,
		Body:     input.Body,
	}
	if _, err := s.questionRepo.Create(ctx, nil, []*types.Question{question}); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

func (s *socialService) ListQuestions(ctx context.Context) ([]*types.Question, error) {
	return s.questionRepo.GetAll(ctx, nil)
}

func (s *socialService) DeleteQuestion(ctx context.Context, questionID, actorID uuid.UUID, actorRole string) error {
	questions, err := s.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{questionID})
	if err != nil {
		return fmt.Errorf("failed to look up question: %w", err)
	}
	if len(questions) == 0 {
		return fmt.Errorf("question %s not found", questionID)
	}
	if !canDelete(questions[0].AuthorID, actorID, actorRole) {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.commentRepo.SoftDeleteByParent(ctx, tx, types.CommentParentQuestion, questionID); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		return s.questionRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{questionID})
	})
}

func (s *socialService) AddComment(ctx context.Context, authorID uuid.UUID, parentKind string, parentID uuid.UUID, body string) (*types.Comment, error) {
	body = utils.ParseInputString(body)
	if body == "" {
		return nil, fmt.Errorf("comment body is required")
	}
	if err := s.checkParent(ctx, parentKind, parentID); err != nil {
		return nil, err
	}
	comment := &types.Comment{
		ID:         uuid.New(),
		ParentKind: parentKind,
		ParentID:   parentID,
		AuthorID:   authorID,
		Body:       body,
	}
	if _, err := s.commentRepo.Create(ctx, nil, []*types.Comment{comment}); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

func (s *socialService) ListComments(ctx context.Context, parentKind string, parentID uuid.UUID) ([]*types.Comment, error) {
	if err := s.checkParent(ctx, parentKind, parentID); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByParent(ctx, nil, parentKind, parentID)
}

func (s *socialService) DeleteComment(ctx context.Context, commentID, actorID uuid.UUID, actorRole string) error {
	comments, err := s.commentRepo.GetByIDs(ctx, nil, []uuid.UUID{commentID})
	if err != nil {
		return fmt.Errorf("failed to look up comment: %w", err)
	}
	if len(comments) == 0 {
		return fmt.Errorf("comment %s not found", commentID)
	}
	if !canDelete(comments[0].AuthorID, actorID, actorRole) {
		return ErrForbidden
	}
	return s.commentRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{commentID})
}

func (s *socialService) checkParent(ctx context.Context, parentKind string, parentID uuid.UUID) error {
	switch parentKind {
	case types.CommentParentArticle:
		articles, err := s.articleRepo.GetByIDs(ctx, nil, []uuid.UUID{parentID})
		if err != nil {
			return fmt.Errorf("failed to look up article: %w", err)
		}
		if len(articles) == 0 {
			return fmt.Errorf("article %s not found", parentID)
		}
	case types.CommentParentQuestion:
		questions, err := s.questionRepo.GetByIDs(ctx, nil, []uuid.UUID{parentID})
		if err != nil {
			return fmt.Errorf("failed to look up question: %w", err)
		}
		if len(questions) == 0 {
			return fmt.Errorf("question %s not found", parentID)
		}
	default:
		return fmt.Errorf("unknown comment parent kind %q", parentKind)
	}
	return nil
}

func canDelete(authorID, actorID uuid.UUID, actorRole string) bool {
	return actorID == authorID || actorRole == types.RoleAdmin
}
