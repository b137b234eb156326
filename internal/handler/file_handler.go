package handler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/service"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
	"github.com/noah-isme/docflow-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, actor models.Actor, in service.UploadFileInput) (*models.File, error)
	List(ctx context.Context, actor models.Actor, filter models.FileFilter) ([]models.File, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.File, error)
	Open(ctx context.Context, actor models.Actor, id string) (*models.File, io.ReadCloser, error)
	CreateViewLink(ctx context.Context, actor models.Actor, id string) (*service.ViewLinkResult, error)
	OpenShared(ctx context.Context, token string) (*models.File, io.ReadCloser, error)
	ExportHistory(ctx context.Context, actor models.Actor, id, format string) (*service.HistoryExport, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, status models.FileStatus, remarks string) (*models.File, error)
	Forward(ctx context.Context, actor models.Actor, id string, target models.Department, remarks string) (*models.File, error)
	Review(ctx context.Context, actor models.Actor, id string, remarks string) (*models.File, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// UpdateStatusRequest records the final decision on a file.
type UpdateStatusRequest struct {
	Status  models.FileStatus `json:"status" binding:"required"`
	Remarks string            `json:"remarks"`
}

// ForwardRequest hands a file to a review department.
type ForwardRequest struct {
	Department models.Department `json:"department" binding:"required"`
	Remarks    string            `json:"remarks"`
}

// ReviewRequest returns a forwarded file with the reviewer's remarks.
type ReviewRequest struct {
	Remarks string `json:"remarks"`
}

// FileHandler exposes the file workflow.
type FileHandler struct {
	service fileService
}

// NewFileHandler constructs the handler.
func NewFileHandler(svc fileService) *FileHandler {
	return &FileHandler{service: svc}
}

// Upload godoc
// @Summary Upload a file
// @Description Submit a document for approval. Officers upload into their own department.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document"
// @Param department formData string false "Origin department (admins only)"
// @Param remarks formData string false "Remarks"
// @Param dueDate formData string false "Due date (RFC3339)"
// @Param reminderAt formData string false "Reminder time (RFC3339)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Invalid(err, "file is required"))
		return
	}
	dueDate, err := parseOptionalTime(c.PostForm("dueDate"))
	if err != nil {
		response.Error(c, appErrors.Invalid(err, "dueDate must be RFC3339"))
		return
	}
	reminderAt, err := parseOptionalTime(c.PostForm("reminderAt"))
	if err != nil {
		response.Error(c, appErrors.Invalid(err, "reminderAt must be RFC3339"))
		return
	}

	content, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer content.Close()

	file, err := h.service.Upload(c.Request.Context(), actor, service.UploadFileInput{
		FileName:   header.Filename,
		FileType:   header.Header.Get("Content-Type"),
		Size:       header.Size,
		Content:    content,
		Department: models.Department(c.PostForm("department")),
		Remarks:    strings.TrimSpace(c.PostForm("remarks")),
		DueDate:    dueDate,
		ReminderAt: reminderAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, file)
}

// List godoc
// @Summary List files
// @Description Students see their uploads, officers their department queue, admins everything.
// @Tags Files
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Param department query string false "Department filter (admins)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var filter models.FileFilter
	filter.Page, filter.PageSize = pageParams(c)
	if status := models.FileStatus(c.Query("status")); status != "" {
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
		filter.Status = &status
	}
	filter.Department = models.Department(c.Query("department"))

	files, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, files, pagination)
}

// Get godoc
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	file, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// View godoc
// @Summary Stream the file payload
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id}/view [get]
func (h *FileHandler) View(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	file, body, err := h.service.Open(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamPayload(c, file, body)
}

// CreateViewLink godoc
// @Summary Create a signed view link
// @Description Returns a short-lived token for GET /files/shared/{token}.
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id}/view-link [post]
func (h *FileHandler) CreateViewLink(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	link, err := h.service.CreateViewLink(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, link)
}

// ViewShared godoc
// @Summary Open a signed view link
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/shared/{token} [get]
func (h *FileHandler) ViewShared(c *gin.Context) {
	file, body, err := h.service.OpenShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamPayload(c, file, body)
}

// ExportHistory godoc
// @Summary Export file history
// @Tags Files
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "File ID"
// @Param format query string false "pdf or csv"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id}/history/export [get]
func (h *FileHandler) ExportHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	export, err := h.service.ExportHistory(c.Request.Context(), actor, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Attachment(c, export.ContentType, export.Filename, false, export.Data)
}

// UpdateStatus godoc
// @Summary Approve or reject a file
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body UpdateStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id}/status [patch]
func (h *FileHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	file, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req.Status, req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// Forward godoc
// @Summary Forward a file for review
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body ForwardRequest true "Target department"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id}/forward [post]
func (h *FileHandler) Forward(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ForwardRequest
	if !bindJSON(c, &req) {
		return
	}

	file, err := h.service.Forward(c.Request.Context(), actor, c.Param("id"), req.Department, req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// Review godoc
// @Summary Review a forwarded file
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body ReviewRequest true "Review remarks"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id}/review [post]
func (h *FileHandler) Review(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	file, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// Delete godoc
// @Summary Delete a file
// @Tags Files
// @Param id path string true "File ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func streamPayload(c *gin.Context, file *models.File, body io.ReadCloser) {
	defer body.Close()
	contentType := file.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extra := map[string]string{
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": file.FileName}),
		"Cache-Control":       "private, no-store",
	}
	if extra["Content-Disposition"] == "" {
		extra["Content-Disposition"] = fmt.Sprintf("inline; filename=%q", file.FileName)
	}
	c.DataFromReader(http.StatusOK, file.FileSize, contentType, body, extra)
}
