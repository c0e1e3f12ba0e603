package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"excelsql/internal/logger"
	"excelsql/internal/models"
)

const (
	// balanceHeaderRow is the 1-based sheet row holding the column names.
	balanceHeaderRow = 8

	colNivel          = "Nivel"
	colTransaccional  = "Transaccional"
	colCodigoCuenta   = "Código cuenta contable"
	colNombreCuenta   = "Nombre cuenta contable"
	colIdentificacion = "Identificación"
	colSucursal       = "Sucursal"
	colNombreTercero  = "Nombre tercero"
	colSaldoInicial   = "Saldo inicial"
	colDebito         = "Movimiento débito"
	colCredito        = "Movimiento crédito"
	colSaldoFinal     = "Saldo final"
)

var balanceColumns = []string{
	colNivel, colTransaccional, colCodigoCuenta, colNombreCuenta, colIdentificacion,
	colSucursal, colNombreTercero, colSaldoInicial, colDebito, colCredito, colSaldoFinal,
}

var ErrNoBalanceData = errors.New("No se encontraron datos válidos en el Excel")

// BalanceStore persists a parsed Balance General upload.
type BalanceStore interface {
	SaveWithTransactionAndValidations(ctx context.Context, rows []models.BalanceGeneralRow, fecha, identificacionCliente string) (*models.SaveResult, error)
	InsertLogCarga(ctx context.Context, l models.LogCarga) error
}

type BalanceGeneralService struct {
	store      BalanceStore
	jobs       *JobService
	uploadUser string
	lggr       *zap.Logger
}

func NewBalanceGeneralService(store BalanceStore, jobs *JobService, uploadUser string, lggr *zap.Logger) *BalanceGeneralService {
	return &BalanceGeneralService{store: store, jobs: jobs, uploadUser: uploadUser, lggr: lggr}
}

// ParseFile reads the Balance General sheet starting at the header row and
// stops at the first row with no level, account code or account name.
func (s *BalanceGeneralService) ParseFile(path string) ([]models.BalanceGeneralRow, error) {
	sheet, err := ReadFirstSheet(path)
	if err != nil {
		return nil, fmt.Errorf("Error procesando Excel: %w", err)
	}
	rows, err := parseBalanceRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("Error procesando Excel: %w", err)
	}
	return rows, nil
}

func parseBalanceRows(sheet [][]string) ([]models.BalanceGeneralRow, error) {
	var header []string
	if len(sheet) >= balanceHeaderRow {
		header = sheet[balanceHeaderRow-1]
	}
	idx := headerIndex(header)

	for _, col := range balanceColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("El Excel no tiene las columnas requeridas. Columnas encontradas: [%s]",
				strings.Join(headerNames(header), ", "))
		}
	}

	var rows []models.BalanceGeneralRow
	for i := balanceHeaderRow; i < len(sheet); i++ {
		raw := sheet[i]
		excelRow := i + 1
		get := func(col string) string { return cleanString(cell(raw, idx[col])) }

		if get(colNivel) == "" && get(colCodigoCuenta) == "" && get(colNombreCuenta) == "" {
			break
		}

		codigo, err := decimal.NewFromString(strings.ReplaceAll(get(colCodigoCuenta), ",", ""))
		if err != nil {
			return nil, fmt.Errorf("Error en fila %d: código cuenta contable inválido %q", excelRow, get(colCodigoCuenta))
		}

		rows = append(rows, models.BalanceGeneralRow{
			ExcelRow:             excelRow,
			Nivel:                get(colNivel),
			Transaccional:        models.NormalizeTransaccional(get(colTransaccional)),
			CodigoCuentaContable: codigo.Truncate(0).String(),
			NombreCuentaContable: get(colNombreCuenta),
			Identificacion:       get(colIdentificacion),
			Sucursal:             get(colSucursal),
			NombreTercero:        get(colNombreTercero),
			SaldoInicial:         cleanDecimal(cell(raw, idx[colSaldoInicial])),
			MovimientoDebito:     cleanDecimal(cell(raw, idx[colDebito])),
			MovimientoCredito:    cleanDecimal(cell(raw, idx[colCredito])),
			SaldoFinal:           cleanDecimal(cell(raw, idx[colSaldoFinal])),
		})
	}

	if len(rows) == 0 {
		return nil, ErrNoBalanceData
	}
	return rows, nil
}

// IsValidFecha reports whether fecha is an 8 digit YYYYMMDD string.
func IsValidFecha(fecha string) bool {
	if len(fecha) != 8 {
		return false
	}
	for _, r := range fecha {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks the request fields and the mandatory columns of every row.
func (s *BalanceGeneralService) Validate(rows []models.BalanceGeneralRow, fecha, identificacionCliente string) models.ValidationResult {
	errs := []string{}

	if !IsValidFecha(fecha) {
		errs = append(errs, "Fecha debe estar en formato YYYYMMDD (ej: 20240630)")
	}
	if strings.TrimSpace(identificacionCliente) == "" {
		errs = append(errs, "Identificación del cliente es requerida")
	}

	for _, row := range rows {
		if row.Nivel == "" {
			errs = append(errs, fmt.Sprintf("Fila %d: Nivel es requerido", row.ExcelRow))
		}
		if row.CodigoCuentaContable == "" {
			errs = append(errs, fmt.Sprintf("Fila %d: Código cuenta contable es requerido", row.ExcelRow))
		}
		if row.NombreCuentaContable == "" {
			errs = append(errs, fmt.Sprintf("Fila %d: Nombre cuenta contable es requerido", row.ExcelRow))
		}
	}

	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs, TotalRows: len(rows)}
}

// ProcessAndSave runs a whole upload for jobID, reporting progress on the
// job. The returned error is informational: the job already reflects it.
func (s *BalanceGeneralService) ProcessAndSave(ctx context.Context, jobID, path, identificacionCliente, fecha string) error {
	started := time.Now()
	lggr := s.lggr.With(zap.String("job_id", jobID))

	s.jobs.Update(ctx, jobID, progressUpdate(models.JobProcessing, "Leyendo archivo Excel...", 10))
	logger.LogExcelProcessing(lggr, jobID, "STARTED", "Procesando Balance General", zap.String("archivo", filepath.Base(path)))

	rows, err := s.ParseFile(path)
	if err != nil {
		s.jobs.Fail(ctx, jobID, "Error en el procesamiento: "+err.Error(), err.Error())
		logger.LogExcelProcessing(lggr, jobID, "FAILED", err.Error())
		return err
	}

	total := len(rows)
	u := progressUpdate("", fmt.Sprintf("Archivo procesado: %d filas encontradas", total), 30)
	u.TotalRows = &total
	s.jobs.Update(ctx, jobID, u)

	s.jobs.Update(ctx, jobID, progressUpdate(models.JobValidating, "Validando datos...", 40))
	validation := s.Validate(rows, fecha, identificacionCliente)
	logger.LogValidation(lggr, "balance_general", validation.Valid, fmt.Sprintf("%d filas, %d errores", total, len(validation.Errors)))
	if !validation.Valid {
		s.jobs.Fail(ctx, jobID, "Validación falló", validation.Errors...)
		return fmt.Errorf("validation failed with %d errors", len(validation.Errors))
	}
	s.jobs.Update(ctx, jobID, progressUpdate("", "Validación exitosa", 50))

	s.jobs.Update(ctx, jobID, progressUpdate(models.JobSaving, "Guardando en base de datos...", 60))
	result, saveErr := s.store.SaveWithTransactionAndValidations(ctx, rows, fecha, identificacionCliente)

	s.writeLogCarga(ctx, lggr, path, jobID, fecha, result, saveErr, time.Since(started))

	if saveErr != nil {
		msg := "Error en transacción: " + saveErr.Error()
		s.jobs.Fail(ctx, jobID, msg, saveErr.Error())
		logger.LogExcelProcessing(lggr, jobID, "FAILED", msg)
		return saveErr
	}

	if !result.Success {
		errs := result.Errors
		if len(errs) == 0 {
			errs = []string{result.Message}
		}
		s.jobs.Update(ctx, jobID, models.JobUpdate{
			Status:   ptrTo(models.JobFailed),
			Message:  ptrTo(result.Message),
			Progress: ptrTo(100),
			Errors:   errs,
			Result:   result,
		})
		logger.LogExcelProcessing(lggr, jobID, "FAILED", result.Message)
		return errors.New(result.Message)
	}

	s.jobs.Update(ctx, jobID, models.JobUpdate{
		Status:        ptrTo(models.JobCompleted),
		Message:       ptrTo(fmt.Sprintf("Proceso completado exitosamente: %d filas guardadas", result.RowsInserted)),
		Progress:      ptrTo(100),
		ProcessedRows: ptrTo(result.RowsInserted),
		Result:        result,
	})
	logger.LogExcelProcessing(lggr, jobID, "COMPLETED", result.Message, zap.Int("filas", result.RowsInserted))
	return nil
}

// writeLogCarga records the audit row of an upload attempt. A failure here
// never changes the job outcome.
func (s *BalanceGeneralService) writeLogCarga(
	ctx context.Context,
	lggr *zap.Logger,
	path, jobID, fecha string,
	result *models.SaveResult,
	saveErr error,
	elapsed time.Duration,
) {
	entry := models.LogCarga{
		FechaCarga:              fecha,
		NombreCliente:           models.ClienteDesconocido,
		Estado:                  models.EstadoCargaFallido,
		UsuarioCarga:            s.uploadUser,
		ArchivoOrigen:           strings.TrimPrefix(filepath.Base(path), jobID+"_"),
		TiempoEjecucionSegundos: decimal.NewFromFloat(elapsed.Seconds()).Round(2),
	}

	if saveErr != nil {
		entry.Observaciones = saveErr.Error()
	}
	if result != nil {
		entry.Observaciones = result.Message
		entry.NombreCliente = result.Cliente.NombreCliente
		if result.Cliente.IDCliente != nil {
			entry.IDCliente = *result.Cliente.IDCliente
		}
		if result.Success {
			entry.Estado = models.EstadoCargaExitoso
		}
		entry.TotalRegistros = result.RowsInserted
		entry.CantidadErroresJerarquia = result.ErroresEcuacionCount
		if t := result.TotalesGenerales; t != nil {
			entry.TotalRegistros = t.TotalRegistros
			entry.SumaSaldoInicial = t.SumaSaldoInicial
			entry.SumaDebito = t.SumaDebito
			entry.SumaCredito = t.SumaCredito
		}
		if c := result.TotalesClase; c != nil {
			entry.TotalActivos = c.TotalClase1
			entry.TotalPasivos = c.TotalClase2
			entry.TotalPatrimonio = c.TotalClase3
			entry.TotalIngresos = c.TotalClase4
			entry.TotalGastos = c.TotalClase5
		}
		if e := result.Ecuacion; e != nil {
			entry.DiferenciaEcuacionContable = e.DiferenciaEcuacionContable
		}
	}

	if err := s.store.InsertLogCarga(context.WithoutCancel(ctx), entry); err != nil {
		lggr.Warn("no se pudo registrar el log de carga", zap.Error(err))
	}
}

func ptrTo[T any](v T) *T { return &v }
