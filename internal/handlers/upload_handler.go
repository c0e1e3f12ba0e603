package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"excelsql/internal/models"
	"excelsql/internal/repositories"
	"excelsql/internal/responses"
	"excelsql/internal/services"
)

// UploadProcessor parses a saved spreadsheet and stores it, reporting
// progress on the job.
type UploadProcessor interface {
	ProcessAndSave(ctx context.Context, jobID, path, identificacionCliente, fecha string) error
}

// UploadHandler accepts spreadsheet uploads and runs them as background jobs.
type UploadHandler struct {
	kind       string
	processor  UploadProcessor
	jobs       *services.JobService
	dispatcher *services.Dispatcher
	uploadDir  string
	lggr       *zap.Logger
}

func NewUploadHandler(
	kind string,
	processor UploadProcessor,
	jobs *services.JobService,
	dispatcher *services.Dispatcher,
	uploadDir string,
	lggr *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		kind:       kind,
		processor:  processor,
		jobs:       jobs,
		dispatcher: dispatcher,
		uploadDir:  uploadDir,
		lggr:       lggr,
	}
}

// Process validates the form, stores the file and queues the job. The client
// polls Status with the returned job id.
func (h *UploadHandler) Process(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Archivo requerido")
		return
	}
	cliente := c.PostForm("identificacion_cliente")
	fecha := c.PostForm("fecha")

	if !services.IsSpreadsheet(file.Filename) {
		responses.Fail(c, http.StatusBadRequest, nil, "Solo archivos Excel permitidos (.xlsx, .xls)")
		return
	}
	if !services.IsValidFecha(fecha) {
		responses.Fail(c, http.StatusBadRequest, nil, "Fecha debe estar en formato YYYYMMDD (ej: 20240630)")
		return
	}
	if strings.TrimSpace(cliente) == "" {
		responses.Fail(c, http.StatusBadRequest, nil, "Identificación del cliente es requerida")
		return
	}

	jobID := uuid.NewString()
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Error guardando archivo")
		return
	}
	path := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", jobID, filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.lggr.Error("failed to save upload", zap.String("path", path), zap.Error(err))
		responses.Fail(c, http.StatusInternalServerError, err, "Error guardando archivo")
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobs.Create(ctx, jobID, h.kind)
	if err != nil {
		h.cleanup(path)
		responses.Fail(c, http.StatusInternalServerError, err, "Error creando trabajo")
		return
	}
	h.lggr.Info(fmt.Sprintf("Nuevo trabajo creado - Job ID: %s, Cliente: %s, Fecha: %s, Archivo: %s", jobID, cliente, fecha, file.Filename),
		zap.String("kind", h.kind))

	task := func(ctx context.Context) error {
		defer h.cleanup(path)
		return h.processor.ProcessAndSave(ctx, jobID, path, cliente, fecha)
	}
	if err := h.dispatcher.Submit(jobID, task); err != nil {
		h.cleanup(path)
		msg := "Servidor ocupado, intente nuevamente más tarde"
		h.jobs.Fail(ctx, jobID, msg, err.Error())
		h.lggr.Warn("job rejected", zap.String("job_id", jobID), zap.Error(err))
		responses.Fail(c, http.StatusServiceUnavailable, err, msg)
		return
	}

	responses.Success(c, http.StatusAccepted, models.JobResponse{
		JobID:     job.ID,
		Status:    models.JobPending,
		Message:   "Archivo recibido y en proceso",
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}, "Archivo recibido y en proceso")
}

// Status returns the job; job ids are shared by every upload kind.
func (h *UploadHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			responses.Fail(c, http.StatusNotFound, err, fmt.Sprintf("Trabajo %s no encontrado", jobID))
			return
		}
		responses.Fail(c, http.StatusInternalServerError, err, "Error consultando trabajo")
		return
	}

	responses.Success(c, http.StatusOK, job, job.Message)
}

func (h *UploadHandler) cleanup(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.lggr.Warn(fmt.Sprintf("No se pudo eliminar archivo temporal %s", path), zap.Error(err))
		return
	}
	h.lggr.Info(fmt.Sprintf("Archivo temporal eliminado: %s", path))
}
