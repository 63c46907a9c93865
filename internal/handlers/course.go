package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/content"
	"github.com/schoolhub/backend/internal/platform/logger"
)

// CourseHandler exposes the content manager over HTTP. Routes address
// courses by ID and call the manager's ID-addressed operations directly;
// the modal/card flow stays reserved for a single interactive session and
// is never shared between requests.
type CourseHandler struct {
	log     *logger.Logger
	manager *content.Manager
}

func NewCourseHandler(log *logger.Logger, manager *content.Manager) *CourseHandler {
	return &CourseHandler{
		log:     log.With("handler", "CourseHandler"),
		manager: manager,
	}
}

func (h *CourseHandler) ListCourses(c *gin.Context) {
	ctx := c.Request.Context()
	if yearStr := c.Query("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_year", err)
			return
		}
		courses, err := h.manager.CoursesByYear(ctx, year)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "load_courses_failed", err)
			return
		}
		RespondOK(c, gin.H{"courses": courses})
		return
	}
	if err := h.manager.Load(ctx); err != nil {
		RespondError(c, http.StatusInternalServerError, "load_courses_failed", err)
		return
	}
	RespondOK(c, gin.H{"courses": h.manager.Courses()})
}

type courseRequest struct {
	Title       string `json:"title"`
	Year        int    `json:"year"`
	Modules     int    `json:"modules"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

func (r courseRequest) input() content.CourseInput {
	return content.CourseInput{
		Title:       r.Title,
		Year:        r.Year,
		Modules:     r.Modules,
		Author:      r.Author,
		Description: r.Description,
	}
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	course, err := h.manager.CreateCourse(c.Request.Context(), req.input())
	if err != nil {
		h.respondContentError(c, "create_course_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true, "course_id": course.ID})
}

func (h *CourseHandler) EditCourse(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if _, err := h.manager.UpdateCourse(c.Request.Context(), courseID, req.input()); err != nil {
		h.respondContentError(c, "edit_course_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	if err := h.manager.DeleteCourse(c.Request.Context(), courseID); err != nil {
		h.respondContentError(c, "delete_course_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) AddSection(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.manager.SubmitSectionFor(c.Request.Context(), courseID, req.Title); err != nil {
		h.respondContentError(c, "add_section_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) RenameSection(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.manager.RenameSectionFor(c.Request.Context(), courseID, c.Param("title"), req.Title); err != nil {
		h.respondContentError(c, "rename_section_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) DeleteSection(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	if err := h.manager.DeleteSectionFor(c.Request.Context(), courseID, c.Param("title")); err != nil {
		h.respondContentError(c, "delete_section_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) UploadFile(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	in := content.FileInput{
		Name:     c.PostForm("name"),
		Filename: fileHeader.Filename,
		File:     f,
	}
	if err := h.manager.SubmitFileFor(c.Request.Context(), courseID, c.Param("title"), in); err != nil {
		h.respondContentError(c, "add_file_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) RenameFile(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_file_index", err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.manager.RenameFileFor(c.Request.Context(), courseID, c.Param("title"), index, req.Name); err != nil {
		h.respondContentError(c, "rename_file_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) DeleteFile(c *gin.Context) {
	courseID, ok := h.courseID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_file_index", err)
		return
	}
	if err := h.manager.DeleteFileFor(c.Request.Context(), courseID, c.Param("title"), index); err != nil {
		h.respondContentError(c, "delete_file_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CourseHandler) courseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CourseHandler) respondContentError(c *gin.Context, code string, err error) {
	var comp *content.ErrCompensationFailed
	switch {
	case errors.Is(err, content.ErrCourseNotFound),
		errors.Is(err, content.ErrSectionNotFound),
		errors.Is(err, content.ErrFileNotFound):
		RespondError(c, http.StatusNotFound, code, err)
	case errors.Is(err, content.ErrDuplicateSection):
		RespondError(c, http.StatusConflict, code, err)
	case errors.Is(err, content.ErrNoCourseExpanded),
		errors.Is(err, content.ErrMissingFile),
		errors.Is(err, content.ErrMissingStoragePath),
		errors.Is(err, content.ErrCourseNotPersisted),
		errors.Is(err, content.ErrNoModalOpen):
		RespondError(c, http.StatusBadRequest, code, err)
	case errors.As(err, &comp):
		h.log.Error("compensation failed, orphaned object remains", "storage_path", comp.StoragePath, "error", err)
		RespondError(c, http.StatusInternalServerError, code, err)
	default:
		h.log.Error("content operation failed", "code", code, "error", err)
		RespondError(c, http.StatusInternalServerError, code, err)
	}
}
