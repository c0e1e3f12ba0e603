package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"excelsql/internal/responses"
	"excelsql/internal/services"
	"excelsql/internal/utils"
)

type LogHandler struct {
	logs *services.LogService
	lggr *zap.Logger
}

func NewLogHandler(logs *services.LogService, lggr *zap.Logger) *LogHandler {
	return &LogHandler{logs: logs, lggr: lggr}
}

// fail maps log service errors to their HTTP status.
func (h *LogHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidLogName), errors.Is(err, services.ErrNotALogFile):
		responses.Fail(c, http.StatusBadRequest, err, err.Error())
	case errors.Is(err, services.ErrLogNotFound):
		responses.Fail(c, http.StatusNotFound, err, "Log '"+c.Param("log_name")+"' no encontrado")
	default:
		h.lggr.Error("log operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		responses.Fail(c, http.StatusInternalServerError, err, "Error procesando logs")
	}
}

// lines reads the ?lines query value or writes a 400 and returns false.
func lines(c *gin.Context, def, min, max int) (int, bool) {
	n, err := utils.ParseBoundedInt(c.Query("lines"), def, min, max)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Parámetro 'lines' inválido")
		return 0, false
	}
	return n, true
}

func (h *LogHandler) List(c *gin.Context) {
	logs, err := h.logs.List()
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, gin.H{
		"logs":          logs,
		"total":         len(logs),
		"log_directory": h.logs.Dir(),
	}, "Logs disponibles")
}

func (h *LogHandler) View(c *gin.Context) {
	n, ok := lines(c, 100, 1, 10000)
	if !ok {
		return
	}
	view, err := h.logs.View(c.Param("log_name"), n, c.Query("search"), c.Query("level"))
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, view, "")
}

func (h *LogHandler) Download(c *gin.Context) {
	name := c.Param("log_name")
	path, err := h.logs.Path(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.lggr.Info("Descargando log '" + name + "'")
	c.FileAttachment(path, name)
}

func (h *LogHandler) Errors(c *gin.Context) {
	n, ok := lines(c, 50, 1, 1000)
	if !ok {
		return
	}
	errs, err := h.logs.Errors(n)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := ""
	if errs.TotalErrors == 0 {
		msg = "No hay errores registrados"
	}
	responses.Success(c, http.StatusOK, errs, msg)
}

func (h *LogHandler) Tail(c *gin.Context) {
	n, ok := lines(c, 20, 1, 500)
	if !ok {
		return
	}
	tail, err := h.logs.Tail(c.Param("log_name"), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, tail, "")
}

func (h *LogHandler) Clear(c *gin.Context) {
	res, err := h.logs.Clear(c.Param("log_name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, res, "Log '"+res.LogName+"' limpiado exitosamente")
}

func (h *LogHandler) Stats(c *gin.Context) {
	stats, err := h.logs.Stats()
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, http.StatusOK, stats, "")
}
