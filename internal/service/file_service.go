package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
	"github.com/noah-isme/docflow-api/pkg/logger"
	"github.com/noah-isme/docflow-api/pkg/storage"
)

type fileStore interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error)
	UpdateWorkflow(ctx context.Context, exec sqlx.ExtContext, file *models.File) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type sequenceStore interface {
	Next(ctx context.Context, exec sqlx.ExtContext, name string) (int64, error)
}

type notificationWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error
}

type recipientResolver interface {
	Resolve(ctx context.Context, file *models.File, event models.EventName, actorID string) (Recipients, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, delivery models.Delivery)
}

type viewLinkSigner interface {
	Generate(fileID, userID string) (string, time.Time, error)
	Parse(token string) (*storage.ViewLink, error)
}

// UploadFileInput carries a new file and its workflow metadata.
type UploadFileInput struct {
	FileName   string            `validate:"required,max=255"`
	FileType   string            `validate:"omitempty,max=255"`
	Size       int64             `validate:"gt=0"`
	Content    io.Reader         `validate:"required"`
	Department models.Department `validate:"omitempty,origin_department"`
	Remarks    string            `validate:"max=2000"`
	DueDate    *time.Time
	ReminderAt *time.Time
}

// ViewLinkResult is a signed, short-lived link to a file payload.
type ViewLinkResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FileService runs the file approval workflow.
type FileService struct {
	tx            txProvider
	files         fileStore
	sequences     sequenceStore
	notifications notificationWriter
	resolver      recipientResolver
	dispatcher    eventDispatcher
	blobs         storage.Blob
	links         viewLinkSigner
	metrics       *MetricsService
	validator     *validator.Validate
	clock         Clock
	logger        *zap.Logger
	maxUpload     int64
	loc           *time.Location
}

// FileServiceOption customises a FileService.
type FileServiceOption func(*FileService)

// WithFileClock overrides the clock used for history timestamps.
func WithFileClock(clock Clock) FileServiceOption {
	return func(s *FileService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithFileMetrics records transition counters.
func WithFileMetrics(metrics *MetricsService) FileServiceOption {
	return func(s *FileService) {
		s.metrics = metrics
	}
}

// WithViewLinks enables signed view links.
func WithViewLinks(links viewLinkSigner) FileServiceOption {
	return func(s *FileService) {
		s.links = links
	}
}

// WithMaxUploadSize caps accepted payloads.
func WithMaxUploadSize(limit int64) FileServiceOption {
	return func(s *FileService) {
		s.maxUpload = limit
	}
}

// WithFileLocation sets the timezone used in exported history.
func WithFileLocation(loc *time.Location) FileServiceOption {
	return func(s *FileService) {
		s.loc = loc
	}
}

// WithFileValidator overrides the validator.
func WithFileValidator(v *validator.Validate) FileServiceOption {
	return func(s *FileService) {
		if v != nil {
			s.validator = v
		}
	}
}

// NewFileService constructs the workflow engine.
func NewFileService(
	tx txProvider,
	files fileStore,
	sequences sequenceStore,
	notifications notificationWriter,
	resolver recipientResolver,
	dispatcher eventDispatcher,
	blobs storage.Blob,
	logger *zap.Logger,
	opts ...FileServiceOption,
) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileService{
		tx:            tx,
		files:         files,
		sequences:     sequences,
		notifications: notifications,
		resolver:      resolver,
		dispatcher:    dispatcher,
		blobs:         blobs,
		validator:     NewValidator(),
		clock:         RealClock{},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores the payload, assigns the next unique id and records the
// submitted file.
func (s *FileService) Upload(ctx context.Context, actor models.Actor, in UploadFileInput) (*models.File, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Invalid(err, "invalid upload payload")
	}
	if s.maxUpload > 0 && in.Size > s.maxUpload {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}

	dept := actor.Department
	if dept == "" {
		dept = in.Department
	}
	if !dept.IsOrigin() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file department must be an academic department")
	}

	now := s.clock.Now()
	if in.ReminderAt != nil && in.DueDate != nil && in.ReminderAt.After(*in.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reminder must not be after the due date")
	}

	file := &models.File{
		ID:           uuid.NewString(),
		FileName:     in.FileName,
		FileSize:     in.Size,
		FileType:     in.FileType,
		UploadedBy:   actor.ID,
		UploaderName: actor.Name,
		UploadedAt:   now,
		Status:       models.FileStatusSubmitted,
		Department:   dept,
		Remarks:      in.Remarks,
		DueDate:      in.DueDate,
		ReminderAt:   in.ReminderAt,
	}
	file.StorageKey = fmt.Sprintf("files/%s%s", file.ID, strings.ToLower(filepath.Ext(in.FileName)))
	file.AppendHistory(models.HistoryEntry{
		Status:        models.FileStatusSubmitted,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		Remarks:       in.Remarks,
		Department:    dept,
		Date:          now,
	})

	if err := s.blobs.Put(ctx, file.StorageKey, in.Content, in.Size, in.FileType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	err := s.apply(ctx, actor, file, fileChange{
		transition: "upload",
		event:      models.EventFileCreated,
		title:      "File Uploaded",
		message:    fmt.Sprintf("%s uploaded the file", actorName(actor)),
		write: func(ctx context.Context, exec sqlx.ExtContext) error {
			seq, err := s.sequences.Next(ctx, exec, repository.FileSequence)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate file id")
			}
			file.UniqueID = seq
			if err := s.files.Insert(ctx, exec, file); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save file")
			}
			return nil
		},
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, file.StorageKey); delErr != nil {
			logger.WithContext(ctx, s.logger).Warn("orphaned upload payload", zap.String("key", file.StorageKey), zap.Error(delErr))
		}
		return nil, err
	}
	return file, nil
}

// UpdateStatus records the final decision on a file.
func (s *FileService) UpdateStatus(ctx context.Context, actor models.Actor, id string, status models.FileStatus, remarks string) (*models.File, error) {
	var transition Transition
	switch status {
	case models.FileStatusApproved:
		transition = TransitionApprove
	case models.FileStatusRejected:
		transition = TransitionReject
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	file, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)
	if err := authorizeTransition(actor, file, transition, remarks); err != nil {
		return nil, err
	}

	s.moveTo(file, actor, status, remarks, "")
	if err := s.apply(ctx, actor, file, fileChange{
		transition: string(transition),
		event:      models.EventFileUpdated,
		title:      "File Status Updated",
		message:    fmt.Sprintf("%s %s the file", actorName(actor), status),
		write:      s.writeWorkflow(file),
	}); err != nil {
		return nil, err
	}
	return file, nil
}

// Forward hands a file to a review department.
func (s *FileService) Forward(ctx context.Context, actor models.Actor, id string, target models.Department, remarks string) (*models.File, error) {
	if !target.IsReview() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "files can only be forwarded to a review department")
	}
	file, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)
	if err := authorizeTransition(actor, file, TransitionForward, remarks); err != nil {
		return nil, err
	}

	s.moveTo(file, actor, models.FileStatusForwarded, remarks, target)
	if err := s.apply(ctx, actor, file, fileChange{
		transition: string(TransitionForward),
		event:      models.EventFileForwarded,
		title:      "File Forwarded",
		message:    fmt.Sprintf("File is forwarded by %s to %s department for review.", actorName(actor), target.DisplayName()),
		write:      s.writeWorkflow(file),
	}); err != nil {
		return nil, err
	}
	return file, nil
}

// Review returns a forwarded file to its origin department for a decision.
func (s *FileService) Review(ctx context.Context, actor models.Actor, id string, remarks string) (*models.File, error) {
	file, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)
	if err := authorizeTransition(actor, file, TransitionReview, remarks); err != nil {
		return nil, err
	}

	reviewer := file.ForwardedDepartment()
	s.moveTo(file, actor, models.FileStatusReviewed, remarks, "")
	file.History[len(file.History)-1].Department = reviewer
	if err := s.apply(ctx, actor, file, fileChange{
		transition: string(TransitionReview),
		event:      models.EventFileReviewed,
		title:      "File Reviewed",
		message: fmt.Sprintf("File was reviewed by %s department and assigned back to %s department for final decision",
			reviewer.DisplayName(), file.Department.DisplayName()),
		write: s.writeWorkflow(file),
	}); err != nil {
		return nil, err
	}
	return file, nil
}

// Delete removes a file and its payload.
func (s *FileService) Delete(ctx context.Context, actor models.Actor, id string) error {
	file, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeTransition(actor, file, TransitionDelete, ""); err != nil {
		return err
	}

	err = s.apply(ctx, actor, file, fileChange{
		transition: string(TransitionDelete),
		event:      models.EventFileDeleted,
		title:      "File Deleted",
		message:    fmt.Sprintf("%s deleted the file", actorName(actor)),
		payload:    models.DeletedPayload{ID: file.ID},
		write: func(ctx context.Context, exec sqlx.ExtContext) error {
			if err := s.files.Delete(ctx, exec, file.ID); err != nil {
				return mapFileError(err, "failed to delete file")
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.WithContext(ctx, s.logger).Warn("failed to delete file payload", zap.String("file_id", file.ID), zap.Error(err))
	}
	return nil
}

// Get returns file metadata. Viewing is gated only by existence; listings
// stay scoped by role.
func (s *FileService) Get(ctx context.Context, _ models.Actor, id string) (*models.File, error) {
	return s.load(ctx, id)
}

// List returns the files visible to the actor, newest first.
func (s *FileService) List(ctx context.Context, actor models.Actor, filter models.FileFilter) ([]models.File, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleProgramOfficer:
		if actor.Department == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "program officer has no department")
		}
		filter.UploadedBy = ""
		filter.Department = actor.Department
		filter.IncludeForwarded = true
	default:
		filter.UploadedBy = actor.ID
		filter.Department = ""
		filter.IncludeForwarded = false
	}

	files, total, err := s.files.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	if files == nil {
		files = []models.File{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return files, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Open returns the file and a reader over its payload. The caller closes it.
func (s *FileService) Open(ctx context.Context, actor models.Actor, id string) (*models.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	return s.openPayload(ctx, file)
}

// CreateViewLink signs a short-lived link to the payload for the actor.
func (s *FileService) CreateViewLink(ctx context.Context, actor models.Actor, id string) (*ViewLinkResult, error) {
	if s.links == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "view links are not configured")
	}
	file, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.links.Generate(file.ID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign view link")
	}
	return &ViewLinkResult{Token: token, ExpiresAt: expiresAt}, nil
}

// OpenShared resolves a signed view link to the payload.
func (s *FileService) OpenShared(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	if s.links == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "view links are not configured")
	}
	link, err := s.links.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired view link")
	}
	file, err := s.load(ctx, link.FileID)
	if err != nil {
		return nil, nil, err
	}
	return s.openPayload(ctx, file)
}

func (s *FileService) openPayload(ctx context.Context, file *models.File) (*models.File, io.ReadCloser, error) {
	body, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file payload not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file payload")
	}
	return file, body, nil
}

func (s *FileService) load(ctx context.Context, id string) (*models.File, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file id is required")
	}
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapFileError(err, "failed to load file")
	}
	return file, nil
}

// moveTo mutates file into status and appends the history entry. forwardTo
// is only set for forwards.
func (s *FileService) moveTo(file *models.File, actor models.Actor, status models.FileStatus, remarks string, forwardTo models.Department) {
	file.Status = status
	file.FinalDecisionPending = status == models.FileStatusForwarded
	file.ForwardedTo = nil
	if forwardTo != "" {
		target := forwardTo
		file.ForwardedTo = &target
	}
	if remarks != "" {
		file.Remarks = remarks
	}
	file.AppendHistory(models.HistoryEntry{
		Status:        status,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		Remarks:       remarks,
		Department:    forwardTo,
		Date:          s.clock.Now(),
	})
}

func (s *FileService) writeWorkflow(file *models.File) func(context.Context, sqlx.ExtContext) error {
	return func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := file.CheckInvariants(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "inconsistent file state")
		}
		if err := s.files.UpdateWorkflow(ctx, exec, file); err != nil {
			return mapFileError(err, "failed to update file")
		}
		return nil
	}
}

type fileChange struct {
	transition string
	event      models.EventName
	title      string
	message    string
	// payload defaults to the file itself.
	payload interface{}
	write   func(ctx context.Context, exec sqlx.ExtContext) error
}

// apply writes the change and its notification in one transaction, then
// pushes the lifecycle event and the notification after commit.
func (s *FileService) apply(ctx context.Context, actor models.Actor, file *models.File, change fileChange) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	recipients, err := s.resolver.Resolve(ctx, file, change.event, actor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = change.write(ctx, tx); err != nil {
		return err
	}

	var notification *models.Notification
	if len(recipients.Notify) > 0 {
		notification = &models.Notification{
			Recipients: recipients.Notify,
			Title:      change.title,
			Message:    change.message,
			CreatedBy:  actor.ID,
			CreatedAt:  s.clock.Now(),
		}
		models.NotificationSnapshot(notification, file)
		if err = s.notifications.Create(ctx, tx, notification); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}

	s.metrics.RecordTransition(change.transition)
	logger.WithContext(ctx, s.logger).Info("file transition committed",
		zap.String("file_id", file.ID),
		zap.String("transition", change.transition),
		zap.String("status", string(file.Status)),
		zap.String("actor_id", actor.ID),
	)

	payload := change.payload
	if payload == nil {
		payload = file
	}
	s.dispatcher.Dispatch(ctx, models.Delivery{Event: change.event, Payload: payload, Users: recipients.Push, Key: file.ID})
	if notification != nil {
		s.dispatcher.Dispatch(ctx, models.Delivery{Event: models.EventNotificationNew, Payload: notification, Users: notification.Recipients, Key: file.ID})
	}
	return nil
}

func mapFileError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func actorName(actor models.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}
	return actor.ID
}
