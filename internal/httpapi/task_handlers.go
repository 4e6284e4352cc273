package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"todoTracker/internal/auth"
	"todoTracker/internal/export"
	"todoTracker/models"
	"todoTracker/repository"
)

const notOwnedMsg = "Task not found or not owned by user"

type addInput struct {
	Todo    string  `json:"todo"`
	DueDate *string `json:"due_date"`
	Label   *string `json:"label"`
}

// updateInput uses pointers so an omitted (or null) field can be told apart
// from an explicit empty string.
type updateInput struct {
	ID          *int64  `json:"id"`
	Description *string `json:"what_to_do"`
	DueDate     *string `json:"due_date"`
	Label       *string `json:"label"`
	Status      *string `json:"status"`
}

type idInput struct {
	ID *int64 `json:"id"`
}

func currentUser(c echo.Context) (int64, error) {
	uid, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return uid, nil
}

func (s *Server) handleListItems(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := s.Tasks.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleUpcomingTasks(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	tasks, err := s.Tasks.ListDueSoon(c.Request().Context(), uid, s.now())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleAddItem(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var in addInput
	if err := c.Bind(&in); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid JSON body")
	}
	if strings.TrimSpace(in.Todo) == "" {
		return errorJSON(c, http.StatusBadRequest, "Task description is required")
	}
	task := &models.Task{Description: in.Todo, UserID: uid, Status: models.TaskStatusPending}
	if in.DueDate != nil && strings.TrimSpace(*in.DueDate) != "" {
		due, err := models.NormalizeDue(*in.DueDate, s.now().Location())
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("invalid due_date: %v", err))
		}
		task.DueDate = due
	} else {
		task.DueDate = models.FormatDue(s.now())
	}
	if in.Label != nil {
		task.Label = *in.Label
	}

	created, err := s.Tasks.Create(c.Request().Context(), task)
	switch {
	case errors.Is(err, repository.ErrInvalidInput):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Task added", "id": created.ID})
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var in updateInput
	if err := c.Bind(&in); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid JSON body")
	}
	if in.ID == nil || *in.ID == 0 {
		return errorJSON(c, http.StatusBadRequest, "Task ID is required")
	}
	patch, err := s.patchFromInput(in)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	err = s.Tasks.Patch(c.Request().Context(), uid, *in.ID, patch)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "Task not found")
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return messageJSON(c, http.StatusOK, "Task updated successfully")
}

// patchFromInput validates the supplied fields and converts them into a patch.
func (s *Server) patchFromInput(in updateInput) (models.TaskPatch, error) {
	var p models.TaskPatch
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return p, errors.New("what_to_do cannot be empty")
		}
		p.Description = in.Description
	}
	if in.DueDate != nil {
		due, err := models.NormalizeDue(*in.DueDate, s.now().Location())
		if err != nil {
			return p, fmt.Errorf("invalid due_date: %v", err)
		}
		p.DueDate = &due
	}
	if in.Label != nil {
		p.Label = in.Label
	}
	if in.Status != nil {
		st := models.TaskStatus(*in.Status)
		if !st.Valid() {
			return p, fmt.Errorf("status must be %q or %q", models.TaskStatusPending, models.TaskStatusDone)
		}
		p.Status = &st
	}
	return p, nil
}

func (s *Server) handleMarkDone(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var in idInput
	if err := c.Bind(&in); err != nil || in.ID == nil {
		return errorJSON(c, http.StatusBadRequest, "Task ID is required")
	}
	err = s.Tasks.MarkDone(c.Request().Context(), uid, *in.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, notOwnedMsg)
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return messageJSON(c, http.StatusOK, "Task marked as done")
}

func (s *Server) handleDeleteItem(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var in idInput
	if err := c.Bind(&in); err != nil || in.ID == nil {
		return errorJSON(c, http.StatusBadRequest, "Task ID is required")
	}
	err = s.Tasks.Delete(c.Request().Context(), uid, *in.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, notOwnedMsg)
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return messageJSON(c, http.StatusOK, "Task deleted")
}

func (s *Server) handleExport(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "json"
	}
	data, err := s.Exporter.Export(c.Request().Context(), uid, format)
	switch {
	case errors.Is(err, export.ErrUnknownFormat):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="tasks.%s"`, format))
	return c.Blob(http.StatusOK, export.ContentType(format), data)
}
