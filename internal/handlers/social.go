package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/requestdata"
	"github.com/schoolhub/backend/internal/services"
)

type SocialHandler struct {
	log           *logger.Logger
	socialService services.SocialService
}

func NewSocialHandler(log *logger.Logger, socialService services.SocialService) *SocialHandler {
	return &SocialHandler{
		log:           log.With("handler", "SocialHandler"),
		socialService: socialService,
	}
}

type postRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *SocialHandler) CreateArticle(c *gin.Context) {
	rd, ok := h.identity(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	article, err := h.socialService.CreateArticle(c.Request.Context(), rd.UserID, services.PostInput{Title: req.Title, Body: req.Body})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "create_article_failed", err)
		return
	}
	RespondOK(c, gin.H{"article": article})
}

func (h *SocialHandler) ListArticles(c *gin.Context) {
	articles, err := h.socialService.ListArticles(c.Request.Context())
	if err != nil {
		h.log.Error("ListArticles failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_articles_failed", err)
		return
	}
	RespondOK(c, gin.H{"articles": articles})
}

func (h *SocialHandler) DeleteArticle(c *gin.Context) {
	rd, ok := h.identity(c)
	if !ok {
		return
	}
	articleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_article_id", err)
		return
	}
	if err := h.socialService.DeleteArticle(c.Request.Context(), articleID, rd.UserID, rd.Role); err != nil {
		h.respondDeleteError(c, "delete_article_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *SocialHandler) CreateQuestion(c *gin.Context) {
	rd, ok := h.identity(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	question, err := h.socialService.CreateQuestion(c.Request.Context(), rd.UserID, services.PostInput{Title: req.Title, Body: req.Body})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "create_question_failed", err)
		return
	}
	RespondOK(c, gin.H{"question": question})
}

func (h *SocialHandler) ListQuestions(c *gin.Context) {
	questions, err := h.socialService.ListQuestions(c.Request.Context())
	if err != nil {
		h.log.Error("ListQuestions failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_questions_failed", err)
		return
	}
	RespondOK(c, gin.H{"questions": questions})
}

func (h *SocialHandler) DeleteQuestion(c *gin.Context) {
	rd, ok := h.identity(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}
	if err := h.socialService.DeleteQuestion(c.Request.Context(), questionID, rd.UserID, rd.Role); err != nil {
		h.respondDeleteError(c, "delete_question_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *SocialHandler) AddComment(c *gin.Context) {
	rd, ok := h.identity(c)
	if !ok {
		return
	}
	var req struct {
		ParentKind string `json:"parent_kind"`
		ParentID   string `json:"parent_id"`
		Body       string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	parentID, err := uuid.Parse(req.ParentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	comment, err := h.socialService.AddComment(c.Request.Context(), rd.UserID, req.ParentKind, parentID, req.Body)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "add_comment_failed", err)
		return
	}
	RespondOK(c, gin.H{"comment": comment})
}

func (h *SocialHandler) ListComments(c *gin.Context) {
	parentID, err := uuid.Parse(c.Query("parent_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	comments, err := h.socialService.ListComments(c.Request.Context(), c.Query("parent_kind"), parentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "list_comments_failed", err)
		return
	}
	RespondOK(c, gin.H{"comments": comments})
}

func (h *SocialHandler) DeleteComment(c *gin.Context) {
	rd, ok := h.identity(c)
	if !ok {
		return
	}
	commentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_comment_id", err)
		return
	}
	if err := h.socialService.DeleteComment(c.Request.Context(), commentID, rd.UserID, rd.Role); err != nil {
		h.respondDeleteError(c, "delete_comment_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *SocialHandler) identity(c *gin.Context) (*requestdata.RequestData, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, false
	}
	return rd, true
}

func (h *SocialHandler) respondDeleteError(c *gin.Context, code string, err error) {
	if errors.Is(err, services.ErrForbidden) {
		RespondError(c, http.StatusForbidden, code, err)
		return
	}
	RespondError(c, http.StatusBadRequest, code, err)
}
