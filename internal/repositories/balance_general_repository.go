package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"excelsql/internal/database"
	"excelsql/internal/logger"
	"excelsql/internal/models"
)

// ErrClientNotFound is reported when the document number has no Clientes row.
var ErrClientNotFound = errors.New("Cliente no encontrado")

type BalanceGeneralRepository struct {
	db   *sql.DB
	lggr *zap.Logger
}

func NewBalanceGeneralRepository(db *sql.DB, lggr *zap.Logger) *BalanceGeneralRepository {
	return &BalanceGeneralRepository{db: db, lggr: lggr}
}

const insertBalanceRowQuery = `
	EXEC [dbo].[BalanceGeneralInsertar]
		@Nivel = ?,
		@Transaccional = ?,
		@CodigoCuentaContable = ?,
		@NombreCuentaContable = ?,
		@Identificacion = ?,
		@Sucursal = ?,
		@NombreTercero = ?,
		@SaldoInicial = ?,
		@MovimientoDebito = ?,
		@MovimientoCredito = ?,
		@SaldoFinal = ?,
		@Fecha = ?,
		@IdentificacionCliente = ?
`

func insertBalanceRow(ctx context.Context, q querier, row models.BalanceGeneralRow, fecha, identificacionCliente string) error {
	_, err := q.ExecContext(ctx, insertBalanceRowQuery,
		row.Nivel,
		row.Transaccional,
		row.CodigoCuentaContable,
		row.NombreCuentaContable,
		row.Identificacion,
		row.Sucursal,
		row.NombreTercero,
		row.SaldoInicial.InexactFloat64(),
		row.MovimientoDebito.InexactFloat64(),
		row.MovimientoCredito.InexactFloat64(),
		row.SaldoFinal.InexactFloat64(),
		fecha,
		identificacionCliente,
	)
	return err
}

// InsertRow stores a single row outside of any transaction.
func (r *BalanceGeneralRepository) InsertRow(ctx context.Context, row models.BalanceGeneralRow, fecha, identificacionCliente string) error {
	if err := insertBalanceRow(ctx, r.db, row, fecha, identificacionCliente); err != nil {
		return fmt.Errorf("failed to insert balance row %d: %w", row.ExcelRow, err)
	}
	return nil
}

// TestConnection pings the server through the repository's pool.
func (r *BalanceGeneralRepository) TestConnection(ctx context.Context) database.ConnectionStatus {
	return database.TestConnection(ctx, r.db)
}

// GetClienteInfo resolves the client by document number. Unknown clients and
// lookup failures both yield ClienteDesconocido with a nil id.
func (r *BalanceGeneralRepository) GetClienteInfo(ctx context.Context, identificacion string) models.ClienteInfo {
	query := `
		SELECT TOP 1 [IdCliente], [RazonSocial]
		FROM [dbo].[Clientes]
		WHERE [NumeroDocumento] = ?
	`

	if r.db == nil {
		return models.ClienteInfo{NombreCliente: models.ClienteDesconocido}
	}

	var id int64
	var nombre sql.NullString
	err := r.db.QueryRowContext(ctx, query, identificacion).Scan(&id, &nombre)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.lggr.Warn("failed to look up client", zap.String("identificacion", identificacion), zap.Error(err))
		}
		return models.ClienteInfo{NombreCliente: models.ClienteDesconocido}
	}
	return models.ClienteInfo{IDCliente: &id, NombreCliente: nombre.String}
}

func (r *BalanceGeneralRepository) GetTotalesGenerales(ctx context.Context, fecha string, idCliente int64) (*models.TotalesGenerales, error) {
	return getTotalesGenerales(ctx, r.db, fecha, idCliente)
}

func (r *BalanceGeneralRepository) GetTotalesPorClase(ctx context.Context, fecha string, idCliente int64) (*models.TotalesPorClase, error) {
	return getTotalesPorClase(ctx, r.db, fecha, idCliente)
}

func (r *BalanceGeneralRepository) GetEcuacionContable(ctx context.Context, fecha string, idCliente int64) (*models.EcuacionContable, error) {
	return getEcuacionContable(ctx, r.db, fecha, idCliente)
}

func (r *BalanceGeneralRepository) GetErroresEcuacion(ctx context.Context, fecha string, idCliente int64) ([]models.ErrorEcuacion, error) {
	return getErroresEcuacion(ctx, r.db, fecha, idCliente)
}

func getTotalesGenerales(ctx context.Context, q querier, fecha string, idCliente int64) (*models.TotalesGenerales, error) {
	query := `
		SELECT
			COUNT(*),
			ISNULL(SUM([SaldoInicial]), 0),
			ISNULL(SUM([MovimientoDebito]), 0),
			ISNULL(SUM([MovimientoCredito]), 0),
			ISNULL(SUM([SaldoFinal]), 0),
			ISNULL(SUM([MovimientoMes]), 0)
		FROM [dbo].[BalanceGeneral]
		WHERE [Fecha] = ? AND [IdCliente] = ?
	`

	var t models.TotalesGenerales
	err := q.QueryRowContext(ctx, query, fecha, idCliente).Scan(
		&t.TotalRegistros,
		&t.SumaSaldoInicial,
		&t.SumaDebito,
		&t.SumaCredito,
		&t.SumaSaldoFinal,
		&t.SumaMovimientoMes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totales generales: %w", err)
	}
	return &t, nil
}

// claseSum sums |SaldoFinal| of the non transactional "Clase" accounts whose
// code starts with digit.
func claseSum(digit int) string {
	return fmt.Sprintf(`ISNULL(SUM(CASE WHEN [Nivel] = 'Clase' AND [Transaccional] = 0 AND LEFT([CodigoCuentaConble], 1) = '%d' THEN ABS([SaldoFinal]) ELSE 0 END), 0)`, digit)
}

func getTotalesPorClase(ctx context.Context, q querier, fecha string, idCliente int64) (*models.TotalesPorClase, error) {
	query := `SELECT ` + strings.Join([]string{claseSum(1), claseSum(2), claseSum(3), claseSum(4), claseSum(5)}, ",\n") + `
		FROM [dbo].[BalanceGeneral]
		WHERE [Fecha] = ? AND [IdCliente] = ?`

	var t models.TotalesPorClase
	err := q.QueryRowContext(ctx, query, fecha, idCliente).Scan(
		&t.TotalClase1,
		&t.TotalClase2,
		&t.TotalClase3,
		&t.TotalClase4,
		&t.TotalClase5,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totales por clase: %w", err)
	}
	return &t, nil
}

func getEcuacionContable(ctx context.Context, q querier, fecha string, idCliente int64) (*models.EcuacionContable, error) {
	diferencia := fmt.Sprintf("ABS(%s - (%s + %s))", claseSum(1), claseSum(2), claseSum(3))
	query := `SELECT ` + strings.Join([]string{claseSum(1), claseSum(2), claseSum(3), claseSum(4), claseSum(5), diferencia}, ",\n") + `
		FROM [dbo].[BalanceGeneral]
		WHERE [Fecha] = ? AND [IdCliente] = ?`

	var e models.EcuacionContable
	err := q.QueryRowContext(ctx, query, fecha, idCliente).Scan(
		&e.Activos,
		&e.Pasivos,
		&e.Patrimonio,
		&e.Ingresos,
		&e.Gastos,
		&e.DiferenciaEcuacionContable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ecuacion contable: %w", err)
	}
	return &e, nil
}

func getErroresEcuacion(ctx context.Context, q querier, fecha string, idCliente int64) ([]models.ErrorEcuacion, error) {
	query := `
		SELECT TOP 100
			[Id],
			[Nivel],
			[CodigoCuentaConble],
			[NombreCuentaConble],
			ISNULL([Identificacion], ''),
			ISNULL([NombreTercero], ''),
			[SaldoInicial],
			[MovimientoDebito],
			[MovimientoCredito],
			[SaldoFinal],
			([SaldoInicial] + [MovimientoDebito] - [MovimientoCredito]) AS SaldoCalculado,
			ABS([SaldoFinal] - ([SaldoInicial] + [MovimientoDebito] - [MovimientoCredito])) AS Diferencia
		FROM [dbo].[BalanceGeneral]
		WHERE [Fecha] = ?
		AND [IdCliente] = ?
		AND ABS([SaldoFinal] - ([SaldoInicial] + [MovimientoDebito] - [MovimientoCredito])) > 0.01
		ORDER BY Diferencia DESC
	`

	rows, err := q.QueryContext(ctx, query, fecha, idCliente)
	if err != nil {
		return nil, fmt.Errorf("failed to query errores de ecuacion: %w", err)
	}
	defer rows.Close()

	errores := []models.ErrorEcuacion{}
	for rows.Next() {
		var e models.ErrorEcuacion
		err := rows.Scan(
			&e.ID,
			&e.Nivel,
			&e.CodigoCuenta,
			&e.NombreCuenta,
			&e.Identificacion,
			&e.NombreTercero,
			&e.SaldoInicial,
			&e.MovimientoDebito,
			&e.MovimientoCredito,
			&e.SaldoFinal,
			&e.SaldoCalculado,
			&e.Diferencia,
		)
		if err != nil {
			return nil, err
		}
		errores = append(errores, e)
	}

	return errores, rows.Err()
}

// SaveWithTransactionAndValidations inserts every row in one transaction,
// computes the control totals inside it and commits only when they pass.
// Business rejections come back as an unsuccessful SaveResult; the error is
// reserved for infrastructure failures, and the transaction is rolled back
// in both cases.
func (r *BalanceGeneralRepository) SaveWithTransactionAndValidations(
	ctx context.Context,
	rows []models.BalanceGeneralRow,
	fecha string,
	identificacionCliente string,
) (*models.SaveResult, error) {
	if r.db == nil {
		return nil, ErrDatabaseUnavailable
	}
	r.lggr.Info(fmt.Sprintf("Iniciando transacción | Cliente: %s | Fecha: %s | Filas: %d", identificacionCliente, fecha, len(rows)))

	cliente := r.GetClienteInfo(ctx, identificacionCliente)
	result := &models.SaveResult{Errors: []string{}, Cliente: cliente}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	for _, row := range rows {
		if err := insertBalanceRow(ctx, tx, row, fecha, identificacionCliente); err != nil {
			msg := fmt.Sprintf("Error insertando fila %d: %v", row.ExcelRow, err)
			r.lggr.Error(msg)
			if rbErr := rollback(tx); rbErr != nil {
				return nil, fmt.Errorf("rollback failed after insert error: %w", rbErr)
			}
			logger.LogTransaction(r.lggr, "ROLLBACK", msg, false)
			result.RowsInserted = 0
			result.Message = "Error insertando datos: " + msg
			result.Errors = []string{msg}
			return result, nil
		}
		result.RowsInserted++
	}
	r.lggr.Info(fmt.Sprintf("%d registros insertados en transacción", result.RowsInserted))

	if cliente.IDCliente == nil {
		if err := rollback(tx); err != nil {
			return nil, fmt.Errorf("rollback failed: %w", err)
		}
		logger.LogTransaction(r.lggr, "ROLLBACK", "IdCliente no encontrado", false)
		result.RowsInserted = 0
		result.Message = "No se encontró IdCliente para la identificación proporcionada"
		result.Errors = []string{ErrClientNotFound.Error()}
		return result, nil
	}
	idCliente := *cliente.IDCliente

	totales, err := getTotalesGenerales(ctx, tx, fecha, idCliente)
	if err != nil {
		return nil, err
	}
	clase, err := getTotalesPorClase(ctx, tx, fecha, idCliente)
	if err != nil {
		return nil, err
	}
	ecuacion, err := getEcuacionContable(ctx, tx, fecha, idCliente)
	if err != nil {
		return nil, err
	}
	errores, err := getErroresEcuacion(ctx, tx, fecha, idCliente)
	if err != nil {
		return nil, err
	}

	result.TotalesGenerales = totales
	result.TotalesClase = clase
	result.Ecuacion = ecuacion
	result.ErroresEcuacionCount = len(errores)

	r.lggr.Info("Totales calculados",
		zap.Int("total_registros", totales.TotalRegistros),
		zap.String("suma_saldo_inicial", totales.SumaSaldoInicial.StringFixed(2)),
		zap.String("suma_debito", totales.SumaDebito.StringFixed(2)),
		zap.String("suma_credito", totales.SumaCredito.StringFixed(2)),
		zap.String("activos", clase.TotalClase1.StringFixed(2)),
		zap.String("pasivos", clase.TotalClase2.StringFixed(2)),
		zap.String("patrimonio", clase.TotalClase3.StringFixed(2)),
		zap.Int("errores_ecuacion", len(errores)),
	)

	if totales.TotalRegistros == 0 {
		if err := rollback(tx); err != nil {
			return nil, fmt.Errorf("rollback failed: %w", err)
		}
		msg := "No se insertaron registros"
		logger.LogTransaction(r.lggr, "ROLLBACK", "Validaciones fallaron: "+msg, false)
		result.RowsInserted = 0
		result.Message = msg
		result.Errors = []string{msg}
		return result, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	logger.LogTransaction(r.lggr, "COMMIT", fmt.Sprintf("%d registros guardados", result.RowsInserted), true)

	result.Success = true
	result.Message = "Datos guardados y validados correctamente"
	return result, nil
}

// InsertLogCarga writes the audit row of an upload on its own connection.
func (r *BalanceGeneralRepository) InsertLogCarga(ctx context.Context, l models.LogCarga) error {
	query := `
		EXEC [dbo].[LogCargasBalanceGeneral_Insertar]
			@FechaCarga = ?,
			@IdCliente = ?,
			@NombreCliente = ?,
			@TotalRegistros = ?,
			@TotalActivos = ?,
			@TotalPasivos = ?,
			@TotalPatrimonio = ?,
			@TotalIngresos = ?,
			@TotalGastos = ?,
			@SumaSaldoInicial = ?,
			@SumaDebito = ?,
			@SumaCredito = ?,
			@UsuarioCarga = ?,
			@Observaciones = ?,
			@ArchivoOrigen = ?,
			@CantidadErroresJerarquia = ?,
			@DiferenciaEcuacionContable = ?,
			@Estado = ?,
			@TiempoEjecucionSegundos = ?
	`

	if r.db == nil {
		return ErrDatabaseUnavailable
	}

	var idCliente any
	if l.IDCliente != 0 {
		idCliente = l.IDCliente
	}

	_, err := r.db.ExecContext(ctx, query,
		l.FechaCarga,
		idCliente,
		l.NombreCliente,
		l.TotalRegistros,
		l.TotalActivos.InexactFloat64(),
		l.TotalPasivos.InexactFloat64(),
		l.TotalPatrimonio.InexactFloat64(),
		l.TotalIngresos.InexactFloat64(),
		l.TotalGastos.InexactFloat64(),
		l.SumaSaldoInicial.InexactFloat64(),
		l.SumaDebito.InexactFloat64(),
		l.SumaCredito.InexactFloat64(),
		l.UsuarioCarga,
		l.Observaciones,
		l.ArchivoOrigen,
		l.CantidadErroresJerarquia,
		l.DiferenciaEcuacionContable.InexactFloat64(),
		l.Estado,
		l.TiempoEjecucionSegundos.Round(2).InexactFloat64(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log de carga: %w", err)
	}
	return nil
}
