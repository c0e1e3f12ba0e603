package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"excelsql/internal/logger"
	"excelsql/internal/models"
)

const (
	fcCodigoContable   = "Código contable"
	fcCuentaContable   = "Cuenta contable"
	fcComprobante      = "Comprobante"
	fcSecuencia        = "Secuencia"
	fcFechaElaboracion = "Fecha elaboración"
	fcIdentificacion   = "Identificación"
	fcSuc              = "Suc"
	fcNombreTercero    = "Nombre del tercero"
	fcDescripcion      = "Descripción"
	fcDetalle          = "Detalle"
	fcCentroCosto      = "Centro de costo"
	fcSaldoInicial     = "Saldo inicial"
	fcDebito           = "Débito"
	fcCredito          = "Crédito"
	fcSaldoMovimiento  = "Saldo Movimiento"
	fcSaldoTotalCuenta = "Saldo total cuenta"
)

var flujoRequiredColumns = []string{fcCodigoContable, fcCuentaContable}

// FlujoCajaStore persists grouped cash flow movements.
type FlujoCajaStore interface {
	SubirFlujoCajaSecuencial(ctx context.Context, grupos []models.FlujoCajaGrupo, fechaMovimiento, numeroIdentificacion string) ([]int64, string, error)
}

type FlujoCajaService struct {
	store FlujoCajaStore
	jobs  *JobService
	lggr  *zap.Logger
}

func NewFlujoCajaService(store FlujoCajaStore, jobs *JobService, lggr *zap.Logger) *FlujoCajaService {
	return &FlujoCajaService{store: store, jobs: jobs, lggr: lggr}
}

// ParseFile reads the sheet in order. A row without Comprobante and Secuencia
// opens a new group; every other row is a movement of the current group.
// Reading stops at the first fully empty row.
func (s *FlujoCajaService) ParseFile(path string) ([]models.FlujoCajaGrupo, error) {
	sheet, err := ReadFirstSheet(path)
	if err != nil {
		return nil, fmt.Errorf("Error al procesar el archivo Excel: %w", err)
	}
	grupos, err := s.parseGroups(sheet)
	if err != nil {
		return nil, fmt.Errorf("Error al procesar el archivo Excel: %w", err)
	}
	return grupos, nil
}

func (s *FlujoCajaService) parseGroups(sheet [][]string) ([]models.FlujoCajaGrupo, error) {
	if len(sheet) == 0 {
		return nil, nil
	}
	idx := headerIndex(sheet[0])
	for _, col := range flujoRequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("falta la columna %q. Columnas encontradas: [%s]", col, strings.Join(headerNames(sheet[0]), ", "))
		}
	}

	var grupos []models.FlujoCajaGrupo
	var actual *models.FlujoCajaGrupo

	for i := 1; i < len(sheet); i++ {
		raw := sheet[i]
		excelRow := i + 1

		if rowIsEmpty(raw) {
			s.lggr.Info(fmt.Sprintf("Fila %d completamente vacía detectada. Finalizando procesamiento.", excelRow))
			break
		}

		get := func(col string) string {
			pos, ok := idx[col]
			if !ok {
				return ""
			}
			return cleanString(cell(raw, pos))
		}
		amount := func(col string) decimal.Decimal { return cleanDecimal(get(col)) }

		if get(fcComprobante) == "" && get(fcSecuencia) == "" {
			if actual != nil {
				grupos = append(grupos, *actual)
			}
			actual = &models.FlujoCajaGrupo{
				Encabezado: models.FlujoCajaEncabezado{
					ExcelRow:         excelRow,
					CodigoContable:   normalizeCodigo(get(fcCodigoContable)),
					CuentaContable:   get(fcCuentaContable),
					SaldoInicial:     amount(fcSaldoInicial),
					Debito:           amount(fcDebito),
					Credito:          amount(fcCredito),
					SaldoTotalCuenta: amount(fcSaldoTotalCuenta),
				},
				Detalles: []models.FlujoCajaDetalle{},
			}
			continue
		}

		if actual == nil {
			return nil, fmt.Errorf("Se encontró un detalle (fila %d) sin encabezado previo", excelRow)
		}
		actual.Detalles = append(actual.Detalles, models.FlujoCajaDetalle{
			ExcelRow:         excelRow,
			CodigoContable:   normalizeCodigo(get(fcCodigoContable)),
			CuentaContable:   get(fcCuentaContable),
			Comprobante:      get(fcComprobante),
			Secuencia:        normalizeCodigo(get(fcSecuencia)),
			FechaElaboracion: cleanDate(get(fcFechaElaboracion)),
			Identificacion:   normalizeCodigo(get(fcIdentificacion)),
			Suc:              normalizeCodigo(get(fcSuc)),
			NombreTercero:    get(fcNombreTercero),
			Descripcion:      get(fcDescripcion),
			Detalle:          get(fcDetalle),
			CentroCosto:      get(fcCentroCosto),
			Debito:           amount(fcDebito),
			Credito:          amount(fcCredito),
			SaldoMovimiento:  amount(fcSaldoMovimiento),
		})
	}

	if actual != nil {
		grupos = append(grupos, *actual)
	}
	return grupos, nil
}

func rowIsEmpty(row []string) bool {
	for _, v := range row {
		if !isBlank(v) {
			return false
		}
	}
	return true
}

// normalizeCodigo renders whole numbers without a decimal part, so a code
// stored as 110505.0 reads 110505. Other text, leading zeros included, is
// returned unchanged.
func normalizeCodigo(v string) string {
	if !strings.Contains(v, ".") {
		return v
	}
	d, err := decimal.NewFromString(v)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return v
	}
	return d.Truncate(0).String()
}

// ValidateGroups checks the grouping before anything is written.
func (s *FlujoCajaService) ValidateGroups(grupos []models.FlujoCajaGrupo) error {
	if len(grupos) == 0 {
		return errors.New("No se encontraron datos en el archivo")
	}
	for i, g := range grupos {
		n := i + 1
		if g.Encabezado.CodigoContable == "" {
			return fmt.Errorf("El grupo %d no tiene código contable en el encabezado", n)
		}
		if len(g.Detalles) == 0 {
			return fmt.Errorf("El encabezado con código %s (grupo %d) no tiene detalles", g.Encabezado.CodigoContable, n)
		}
		for j, d := range g.Detalles {
			if d.CodigoContable == "" {
				return fmt.Errorf("El detalle %d del grupo %d no tiene código contable", j+1, n)
			}
		}
	}
	return nil
}

// FormatFechaMovimiento turns YYYYMMDD into YYYY-MM-DD.
func FormatFechaMovimiento(fecha string) string {
	if len(fecha) != 8 {
		return fecha
	}
	return fecha[:4] + "-" + fecha[4:6] + "-" + fecha[6:]
}

// ProcessAndSave runs a whole cash flow upload for jobID.
func (s *FlujoCajaService) ProcessAndSave(ctx context.Context, jobID, path, identificacionCliente, fecha string) error {
	lggr := s.lggr.With(zap.String("job_id", jobID))
	logger.LogExcelProcessing(lggr, jobID, "STARTED", "Iniciando procesamiento de flujo de caja")

	s.jobs.Update(ctx, jobID, progressUpdate(models.JobProcessing, "Leyendo archivo Excel...", 10))
	fechaMovimiento := FormatFechaMovimiento(fecha)

	grupos, err := s.ParseFile(path)
	if err != nil {
		msg := "Error inesperado: " + err.Error()
		s.jobs.Fail(ctx, jobID, msg, err.Error())
		logger.LogExcelProcessing(lggr, jobID, "FAILED", msg)
		return err
	}

	totalDetalles := 0
	for _, g := range grupos {
		totalDetalles += len(g.Detalles)
	}
	u := progressUpdate("", fmt.Sprintf("Archivo procesado: %d grupos encontrados", len(grupos)), 30)
	u.TotalRows = &totalDetalles
	s.jobs.Update(ctx, jobID, u)

	if err := s.ValidateGroups(grupos); err != nil {
		logger.LogValidation(lggr, "flujo_caja", false, err.Error())
		s.jobs.Fail(ctx, jobID, "Validación fallida: "+err.Error(), err.Error())
		return err
	}
	logger.LogValidation(lggr, "flujo_caja", true, fmt.Sprintf("%d grupos", len(grupos)))

	s.jobs.Update(ctx, jobID, progressUpdate("", "Validación exitosa. Guardando en base de datos...", 50))

	ids, mensaje, err := s.store.SubirFlujoCajaSecuencial(ctx, grupos, fechaMovimiento, identificacionCliente)
	if err != nil {
		msg := "Error al guardar en base de datos: " + err.Error()
		s.jobs.Fail(ctx, jobID, msg, err.Error())
		logger.LogExcelProcessing(lggr, jobID, "FAILED", msg)
		return err
	}

	totalDebitos, totalCreditos := decimal.Zero, decimal.Zero
	for _, g := range grupos {
		for _, d := range g.Detalles {
			totalDebitos = totalDebitos.Add(d.Debito)
			totalCreditos = totalCreditos.Add(d.Credito)
		}
	}

	result := &models.FlujoCajaResult{
		IDsEncabezados:        ids,
		TotalEncabezados:      len(ids),
		TotalDetalles:         totalDetalles,
		TotalDebitos:          totalDebitos,
		TotalCreditos:         totalCreditos,
		FechaMovimiento:       fechaMovimiento,
		IdentificacionCliente: identificacionCliente,
	}
	s.jobs.Update(ctx, jobID, models.JobUpdate{
		Status:        ptrTo(models.JobCompleted),
		Message:       &mensaje,
		Progress:      ptrTo(100),
		ProcessedRows: &totalDetalles,
		Result:        result,
	})
	logger.LogExcelProcessing(lggr, jobID, "COMPLETED", mensaje, zap.Int64s("ids_encabezados", ids))
	return nil
}
