package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/requestdata"
	"github.com/schoolhub/backend/internal/services"
)

type AssignmentHandler struct {
	log               *logger.Logger
	assignmentService services.AssignmentService
}

func NewAssignmentHandler(log *logger.Logger, assignmentService services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{
		log:               log.With("handler", "AssignmentHandler"),
		assignmentService: assignmentService,
	}
}

func (h *AssignmentHandler) Publish(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		CourseID string     `json:"course_id"`
		Title    string     `json:"title"`
		Brief    string     `json:"brief"`
		DueAt    *time.Time `json:"due_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	assignment, err := h.assignmentService.PublishAssignment(c.Request.Context(), rd.UserID, services.AssignmentInput{
		CourseID: courseID,
		Title:    req.Title,
		Brief:    req.Brief,
		DueAt:    req.DueAt,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "publish_assignment_failed", err)
		return
	}
	RespondOK(c, gin.H{"assignment": assignment})
}

func (h *AssignmentHandler) ListByCourse(c *gin.Context) {
	courseID, err := uuid.Parse(c.Query("course"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	assignments, err := h.assignmentService.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		h.log.Error("ListByCourse failed", "error", err, "course_id", courseID)
		RespondError(c, http.StatusInternalServerError, "list_assignments_failed", err)
		return
	}
	RespondOK(c, gin.H{"assignments": assignments})
}

func (h *AssignmentHandler) Submit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assignment_id", err)
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

	submission, err := h.assignmentService.SubmitWork(c.Request.Context(), assignmentID, rd.UserID, f, fileHeader.Filename)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "submit_work_failed", err)
		return
	}
	RespondOK(c, gin.H{"submission": submission})
}

func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assignment_id", err)
		return
	}
	submissions, err := h.assignmentService.ListSubmissions(c.Request.Context(), assignmentID)
	if err != nil {
		h.log.Error("ListSubmissions failed", "error", err, "assignment_id", assignmentID)
		RespondError(c, http.StatusInternalServerError, "list_submissions_failed", err)
		return
	}
	RespondOK(c, gin.H{"submissions": submissions})
}

func (h *AssignmentHandler) Grade(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_submission_id", err)
		return
	}
	var req struct {
		Grade    int    `json:"grade"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	submission, err := h.assignmentService.GradeSubmission(c.Request.Context(), submissionID, services.GradeInput{
		Grade:    req.Grade,
		Feedback: req.Feedback,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "grade_submission_failed", err)
		return
	}
	RespondOK(c, gin.H{"submission": submission})
}

func (h *AssignmentHandler) Delete(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assignment_id", err)
		return
	}
	if err := h.assignmentService.DeleteAssignment(c.Request.Context(), assignmentID); err != nil {
		h.log.Error("DeleteAssignment failed", "error", err, "assignment_id", assignmentID)
		RespondError(c, http.StatusInternalServerError, "delete_assignment_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
