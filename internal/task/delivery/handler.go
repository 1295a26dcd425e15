package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/recurrence/duration"
	"taskhub-backend/internal/task/domain"
	"taskhub-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskUsecase usecase.TaskUsecase) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
	}
}

// CreateTaskRequest represents the request body for creating a task
type CreateTaskRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Category    string              `json:"category"`
	Assignees   []string            `json:"assignees"`
	StartDate   *string             `json:"start_date"`
	DueDate     *string             `json:"due_date"`
	ReminderAt  *string             `json:"reminder_at"`
	Duration    *duration.Duration  `json:"duration"`
	Pattern     *recurrence.Pattern `json:"pattern"`
}

// GetTasks returns all tasks for the authenticated user
// GET /api/tasks?status=pending&limit=50&offset=0
func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID := c.GetString("userID")

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}

	tasks, total, err := h.taskUsecase.GetUserTasks(userID, statusPtr, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": total,
	})
}

// GetTaskByID returns a specific task
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	task, err := h.taskUsecase.GetTaskByID(userID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// CreateTask creates a new task, recurring when a pattern is supplied
// POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID := c.GetString("userID")

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	task, record, err := h.taskUsecase.CreateTask(userID, usecase.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		Category:    req.Category,
		Assignees:   req.Assignees,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		ReminderAt:  req.ReminderAt,
		Duration:    req.Duration,
		Pattern:     req.Pattern,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"task": task}
	if record != nil {
		resp["pattern"] = record
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdateTask applies a scoped update to a task or series
// PUT /api/tasks/:id?scope=this_and_future
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")
	scope := c.Query("scope")

	var upd recurrence.TaskUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.taskUsecase.UpdateTask(userID, taskID, scope, upd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteTask applies a scoped delete to a task or series
// DELETE /api/tasks/:id?scope=all_instances
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")
	scope := c.Query("scope")

	result, err := h.taskUsecase.DeleteTask(userID, taskID, scope)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PreviewScope returns the impact summary for a scoped update
// POST /api/tasks/:id/preview?scope=all_instances
func (h *TaskHandler) PreviewScope(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")
	scope := c.Query("scope")

	var upd recurrence.TaskUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.taskUsecase.PreviewScope(userID, taskID, scope, upd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// GetTaskActivity returns the recent activity log for a task
// GET /api/tasks/:id/activity?limit=20
func (h *TaskHandler) GetTaskActivity(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.taskUsecase.GetTaskActivity(userID, taskID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

// UpdateTaskStatus is a convenience endpoint to just update status
// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := domain.TaskStatus(req.Status)
	upd := recurrence.TaskUpdate{Status: &status}

	result, err := h.taskUsecase.UpdateTask(userID, taskID, "", upd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondError maps the engine's error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *recurrence.ValidationError
		scopeErr      *recurrence.InvalidScopeError
		staleErr      *recurrence.StaleVersionError
	)
	switch {
	case err.Error() == "task not found" || errors.Is(err, recurrence.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case err.Error() == "unauthorized":
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	case errors.As(err, &validationErr), errors.As(err, &scopeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &staleErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
