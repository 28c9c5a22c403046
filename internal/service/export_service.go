package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicbook/clinic-api/internal/authz"
	"github.com/clinicbook/clinic-api/internal/models"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
	"github.com/clinicbook/clinic-api/pkg/export"
	"github.com/clinicbook/clinic-api/pkg/jobs"
	"github.com/clinicbook/clinic-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, message string) error
	ListByCreator(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
}

type exportAppointmentRepository interface {
	ListByDoctorDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error)
}

type exportDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

type exportPatientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

type exportUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes day-sheet export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportStatusResponse reports a job and, once done, its download URL.
type ExportStatusResponse struct {
	Job       models.ExportJob `json:"job"`
	URL       string           `json:"url,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

// ExportService renders doctors' appointment day sheets asynchronously.
// A request queues a job; workers render the file and the client polls the
// job until a signed download URL appears.
type ExportService struct {
	exports      exportJobRepository
	appointments exportAppointmentRepository
	doctors      exportDoctorRepository
	patients     exportPatientRepository
	users        exportUserRepository
	storage      fileStorage
	signer       *storage.SignedURLSigner
	csv          csvRenderer
	pdf          pdfRenderer
	queue        *jobs.Queue
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          ExportConfig
}

// NewExportService constructs an ExportService. Attach the worker queue
// afterwards with SetQueue so the queue handler can close over the service.
func NewExportService(exports exportJobRepository, appointments exportAppointmentRepository, doctors exportDoctorRepository, patients exportPatientRepository, users exportUserRepository, fs fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		exports:      exports,
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		users:        users,
		storage:      fs,
		signer:       signer,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetQueue wires the worker queue used for background rendering.
func (s *ExportService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Request queues a day-sheet export for (doctor, date) and returns the job.
func (s *ExportService) Request(ctx context.Context, actor *models.JWTClaims, doctorID, date string, format models.ExportFormat) (*models.ExportJob, error) {
	date, err := models.CanonicalDate(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	if format != models.ExportCSV && format != models.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if err := authz.RequestExport(actor, doctor.UserID); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		DoctorID:   doctorID,
		ExportDate: date,
		Format:     format,
		Status:     models.ExportQueued,
		CreatedBy:  actor.UserID,
	}
	if err := s.exports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if s.queue == nil {
		s.exports.MarkFailed(ctx, job.ID, "export worker is not running")
		return nil, appErrors.Clone(appErrors.ErrInternal, "exports are not enabled")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "day_sheet", Payload: job.ID}); err != nil {
		s.exports.MarkFailed(ctx, job.ID, "export queue is full")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	s.metrics.RecordExport(string(models.ExportQueued))
	return job, nil
}

// Process renders one queued job. It is the queue handler.
func (s *ExportService) Process(ctx context.Context, j jobs.Job) error {
	jobID := j.Payload
	if jobID == "" {
		return fmt.Errorf("job %s carries no export job id", j.ID)
	}

	job, err := s.exports.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if err := s.exports.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	payload, err := s.render(ctx, job)
	if err != nil {
		if markErr := s.exports.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		s.metrics.RecordExport(string(models.ExportFailed))
		return err
	}

	filename := fmt.Sprintf("daysheets/%s_%s_%s.%s", job.DoctorID, job.ExportDate, time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		if markErr := s.exports.MarkFailed(ctx, job.ID, "failed to store rendered file"); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		s.metrics.RecordExport(string(models.ExportFailed))
		return err
	}

	if err := s.exports.MarkDone(ctx, job.ID, relPath); err != nil {
		return err
	}
	s.metrics.RecordExport(string(models.ExportDone))
	s.logger.Info("day sheet rendered",
		zap.String("job_id", job.ID),
		zap.String("doctor_id", job.DoctorID),
		zap.String("date", job.ExportDate),
		zap.String("path", relPath))
	return nil
}

// Status returns a job with a signed download URL once rendering finished.
// Only the requester and admins may poll a job.
func (s *ExportService) Status(ctx context.Context, actor *models.JWTClaims, jobID string) (*ExportStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.exports.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != job.CreatedBy {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this export")
	}

	resp := &ExportStatusResponse{Job: *job}
	if job.Status == models.ExportDone && job.FilePath != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
		resp.URL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// List returns the actor's recent export jobs.
func (s *ExportService) List(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.ExportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	exports, err := s.exports.ListByCreator(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return exports, nil
}

// Open validates a download token and returns the stored file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "exported file no longer exists")
	}
	return f, relPath, nil
}

// Cleanup removes rendered files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	appts, err := s.appointments.ListByDoctorDate(ctx, job.DoctorID, job.ExportDate)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(appts))
	for _, appt := range appts {
		rows = append(rows, map[string]string{
			"Time":    appt.AppointmentTime,
			"Patient": s.patientName(ctx, appt.PatientID),
			"Reason":  appt.Reason,
			"Status":  string(appt.Status),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Time", "Patient", "Reason", "Status"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Day Sheet %s", job.ExportDate)

	switch job.Format {
	case models.ExportCSV:
		return s.csv.Render(dataset)
	case models.ExportPDF:
		return s.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}
}

func (s *ExportService) patientName(ctx context.Context, patientID string) string {
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return patientID
	}
	user, err := s.users.FindByID(ctx, patient.UserID)
	if err != nil {
		return patientID
	}
	return user.FullName()
}
