package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/service"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

type fakeFileService struct {
	uploaded    service.UploadFileInput
	uploadBody  string
	lastActor   models.Actor
	lastFilter  models.FileFilter
	lastStatus  models.FileStatus
	lastRemarks string
	lastTarget  models.Department
	lastFormat  string
	err         error
}

func (f *fakeFileService) Upload(ctx context.Context, actor models.Actor, in service.UploadFileInput) (*models.File, error) {
	f.lastActor = actor
	f.uploaded = in
	data, _ := io.ReadAll(in.Content)
	f.uploadBody = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &models.File{ID: "file-1", UniqueID: 1, FileName: in.FileName, Status: models.FileStatusSubmitted}, nil
}

func (f *fakeFileService) List(ctx context.Context, actor models.Actor, filter models.FileFilter) ([]models.File, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.File{{ID: "file-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.err
}

func (f *fakeFileService) Get(ctx context.Context, actor models.Actor, id string) (*models.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.File{ID: id}, nil
}

func (f *fakeFileService) Open(ctx context.Context, actor models.Actor, id string) (*models.File, io.ReadCloser, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.File{ID: id, FileName: "report.pdf", FileType: "application/pdf", FileSize: 7}, io.NopCloser(strings.NewReader("payload")), nil
}

func (f *fakeFileService) CreateViewLink(ctx context.Context, actor models.Actor, id string) (*service.ViewLinkResult, error) {
	return &service.ViewLinkResult{Token: "signed", ExpiresAt: time.Now().Add(time.Minute)}, f.err
}

func (f *fakeFileService) OpenShared(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	if token != "signed" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired view link")
	}
	return f.Open(ctx, models.Actor{}, "file-1")
}

func (f *fakeFileService) ExportHistory(ctx context.Context, actor models.Actor, id, format string) (*service.HistoryExport, error) {
	f.lastFormat = format
	return &service.HistoryExport{Filename: "file-1-history.csv", ContentType: "text/csv", Data: []byte("a,b\n")}, f.err
}

func (f *fakeFileService) UpdateStatus(ctx context.Context, actor models.Actor, id string, status models.FileStatus, remarks string) (*models.File, error) {
	f.lastStatus, f.lastRemarks = status, remarks
	if f.err != nil {
		return nil, f.err
	}
	return &models.File{ID: id, Status: status}, nil
}

func (f *fakeFileService) Forward(ctx context.Context, actor models.Actor, id string, target models.Department, remarks string) (*models.File, error) {
	f.lastTarget, f.lastRemarks = target, remarks
	return &models.File{ID: id, Status: models.FileStatusForwarded, ForwardedTo: &target}, f.err
}

func (f *fakeFileService) Review(ctx context.Context, actor models.Actor, id string, remarks string) (*models.File, error) {
	f.lastRemarks = remarks
	return &models.File{ID: id, Status: models.FileStatusReviewed}, f.err
}

func (f *fakeFileService) Delete(ctx context.Context, actor models.Actor, id string) error {
	f.lastActor = actor
	return f.err
}

func multipartUpload(t *testing.T, fields map[string]string, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if content != "" {
		part, err := writer.CreateFormFile("file", "transcript.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestFileHandlerUpload(t *testing.T) {
	svc := &fakeFileService{}
	handler := NewFileHandler(svc)

	body, contentType := multipartUpload(t, map[string]string{
		"remarks": "  urgent ",
		"dueDate": "2024-03-05T10:00:00Z",
	}, "hello")
	c, rec := newTestContext(http.MethodPost, "/files", nil, officerClaims)
	c.Request = httptest.NewRequest(http.MethodPost, "/files", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "transcript.pdf", svc.uploaded.FileName)
	assert.Equal(t, int64(5), svc.uploaded.Size)
	assert.Equal(t, "hello", svc.uploadBody)
	assert.Equal(t, "urgent", svc.uploaded.Remarks)
	require.NotNil(t, svc.uploaded.DueDate)
	assert.Equal(t, 5, svc.uploaded.DueDate.Day())
	assert.Nil(t, svc.uploaded.ReminderAt)
	assert.Equal(t, "po-cs", svc.lastActor.ID)

	var file models.File
	decodeData(t, rec, &file)
	assert.Equal(t, "file-1", file.ID)
}

func TestFileHandlerUploadValidation(t *testing.T) {
	handler := NewFileHandler(&fakeFileService{})

	body, contentType := multipartUpload(t, map[string]string{"remarks": "x"}, "")
	c, rec := newTestContext(http.MethodPost, "/files", nil, officerClaims)
	c.Request = httptest.NewRequest(http.MethodPost, "/files", body)
	c.Request.Header.Set("Content-Type", contentType)
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartUpload(t, map[string]string{"dueDate": "tomorrow"}, "hello")
	c, rec = newTestContext(http.MethodPost, "/files", nil, officerClaims)
	c.Request = httptest.NewRequest(http.MethodPost, "/files", body)
	c.Request.Header.Set("Content-Type", contentType)
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeError(t, rec).Error.Code)
}

func TestFileHandlerRequiresAuthentication(t *testing.T) {
	handler := NewFileHandler(&fakeFileService{})
	c, rec := newTestContext(http.MethodGet, "/files", nil, nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFileHandlerListFilters(t *testing.T) {
	svc := &fakeFileService{}
	handler := NewFileHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/files?status=forwarded&page=2&page_size=5", nil, officerClaims)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastFilter.Status)
	assert.Equal(t, models.FileStatusForwarded, *svc.lastFilter.Status)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 5, svc.lastFilter.PageSize)
	env := decodeData(t, rec, nil)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)

	c, rec = newTestContext(http.MethodGet, "/files?status=archived", nil, officerClaims)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileHandlerWorkflowEndpoints(t *testing.T) {
	svc := &fakeFileService{}
	handler := NewFileHandler(svc)

	c, rec := newTestContext(http.MethodPatch, "/files/file-1/status", []byte(`{"status":"rejected","remarks":"unsigned"}`), officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FileStatusRejected, svc.lastStatus)
	assert.Equal(t, "unsigned", svc.lastRemarks)

	c, rec = newTestContext(http.MethodPost, "/files/file-1/forward", []byte(`{"department":"Fin","remarks":"fees"}`), officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.Forward(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DepartmentFin, svc.lastTarget)

	c, rec = newTestContext(http.MethodPost, "/files/file-1/forward", []byte(`{}`), officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.Forward(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/files/file-1/review", []byte(`{"remarks":"verified"}`), officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.Review(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "verified", svc.lastRemarks)

	c, rec = newTestContext(http.MethodDelete, "/files/file-1", nil, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFileHandlerMapsServiceErrors(t *testing.T) {
	svc := &fakeFileService{err: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot approve a approved file")}
	handler := NewFileHandler(svc)

	c, rec := newTestContext(http.MethodPatch, "/files/file-1/status", []byte(`{"status":"approved"}`), officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, decodeError(t, rec).Error.Code)
}

func TestFileHandlerViewStreamsInline(t *testing.T) {
	handler := NewFileHandler(&fakeFileService{})

	c, rec := newTestContext(http.MethodGet, "/files/file-1/view", nil, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.View(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")
	assert.Equal(t, "payload", rec.Body.String())
}

func TestFileHandlerSharedLink(t *testing.T) {
	handler := NewFileHandler(&fakeFileService{})

	c, rec := newTestContext(http.MethodPost, "/files/file-1/view-link", nil, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.CreateViewLink(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	var link service.ViewLinkResult
	decodeData(t, rec, &link)
	assert.Equal(t, "signed", link.Token)

	c, rec = newTestContext(http.MethodGet, "/files/shared/signed", nil, nil)
	c.Params = gin.Params{{Key: "token", Value: "signed"}}
	handler.ViewShared(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/files/shared/forged", nil, nil)
	c.Params = gin.Params{{Key: "token", Value: "forged"}}
	handler.ViewShared(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFileHandlerExportHistory(t *testing.T) {
	svc := &fakeFileService{}
	handler := NewFileHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/files/file-1/history/export?format=csv", nil, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}
	handler.ExportHistory(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", svc.lastFormat)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}
