package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"excelsql/internal/models"
)

var errMissingEncabezadoID = errors.New("no se pudo obtener el ID del encabezado")

// saldoTolerance absorbs rounding between header totals and detail sums.
var saldoTolerance = decimal.RequireFromString("0.01")

type FlujoCajaRepository struct {
	db   *sql.DB
	lggr *zap.Logger
}

func NewFlujoCajaRepository(db *sql.DB, lggr *zap.Logger) *FlujoCajaRepository {
	return &FlujoCajaRepository{db: db, lggr: lggr}
}

// InsertarEncabezado stores a group header and returns its identity.
func (r *FlujoCajaRepository) InsertarEncabezado(
	ctx context.Context,
	q querier,
	enc models.FlujoCajaEncabezado,
	fechaMovimiento string,
	numeroIdentificacion string,
) (int64, error) {
	query := `
		EXEC [dbo].[EncabezadoFlujoCajaInsertar]
			@CodigoContable = ?,
			@FechaElaboracion = NULL,
			@SaldoInicial = ?,
			@Debito = ?,
			@Credito = ?,
			@SaldoTotalCuenta = ?,
			@FechaMovimiento = ?,
			@NumeroIdentificacion = ?;
	`

	var id sql.NullInt64
	err := q.QueryRowContext(ctx, query,
		enc.CodigoContable,
		enc.SaldoInicial.InexactFloat64(),
		enc.Debito.InexactFloat64(),
		enc.Credito.InexactFloat64(),
		enc.SaldoTotalCuenta.InexactFloat64(),
		fechaMovimiento,
		numeroIdentificacion,
	).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("error al insertar encabezado: %w", err)
	}
	if !id.Valid || id.Int64 == 0 {
		r.lggr.Error("No se pudo obtener el ID del encabezado después de la inserción")
		return 0, fmt.Errorf("error al insertar encabezado: %w", errMissingEncabezadoID)
	}

	r.lggr.Debug("Encabezado insertado", zap.Int64("id", id.Int64))
	return id.Int64, nil
}

func (r *FlujoCajaRepository) InsertarDetalle(ctx context.Context, q querier, det models.FlujoCajaDetalle, idEncabezado int64) error {
	query := `
		EXEC [dbo].[FlujoCajaInsertar]
			@CodigoContable = ?,
			@CuentaContable = ?,
			@Comprobante = ?,
			@Secuencia = ?,
			@FechaElaboracion = ?,
			@Identificacion = ?,
			@Suc = ?,
			@NombreTercero = ?,
			@Descripcion = ?,
			@Detalle = ?,
			@CentroCosto = ?,
			@SaldoInicial = NULL,
			@Debito = ?,
			@Credito = ?,
			@SaldoMovimiento = ?,
			@IdEncabezadoFlujoCaja = ?;
	`

	_, err := q.ExecContext(ctx, query,
		det.CodigoContable,
		det.CuentaContable,
		det.Comprobante,
		det.Secuencia,
		nullIfEmpty(det.FechaElaboracion),
		det.Identificacion,
		det.Suc,
		det.NombreTercero,
		det.Descripcion,
		det.Detalle,
		det.CentroCosto,
		det.Debito.InexactFloat64(),
		det.Credito.InexactFloat64(),
		det.SaldoMovimiento.InexactFloat64(),
		idEncabezado,
	)
	if err != nil {
		return fmt.Errorf("error al insertar detalle: %w", err)
	}
	return nil
}

// ValidarSaldos compares the header debit and credit with the sums of its
// details. A false result carries the reason; err is set only when the
// comparison could not be made.
func (r *FlujoCajaRepository) ValidarSaldos(ctx context.Context, q querier, idEncabezado int64) (bool, string, error) {
	query := `
		SELECT
			e.Debito,
			e.Credito,
			ISNULL(SUM(d.Debito), 0),
			ISNULL(SUM(d.Credito), 0)
		FROM [dbo].[EncabezadoFlujoCaja] e
		LEFT JOIN [dbo].[FlujoCaja] d ON e.Id = d.IdEncabezadoFlujoCaja
		WHERE e.Id = ?
		GROUP BY e.Debito, e.Credito;
	`

	var debitoEnc, creditoEnc, debitoDet, creditoDet decimal.NullDecimal
	err := q.QueryRowContext(ctx, query, idEncabezado).Scan(&debitoEnc, &creditoEnc, &debitoDet, &creditoDet)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "No se encontró el encabezado para validar", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("error al validar saldos: %w", err)
	}

	if debitoEnc.Decimal.Sub(debitoDet.Decimal).Abs().GreaterThan(saldoTolerance) {
		return false, fmt.Sprintf("Los débitos no coinciden. Encabezado: %s, Detalles: %s",
			debitoEnc.Decimal.String(), debitoDet.Decimal.String()), nil
	}
	if creditoEnc.Decimal.Sub(creditoDet.Decimal).Abs().GreaterThan(saldoTolerance) {
		return false, fmt.Sprintf("Los créditos no coinciden. Encabezado: %s, Detalles: %s",
			creditoEnc.Decimal.String(), creditoDet.Decimal.String()), nil
	}
	return true, "Validación exitosa", nil
}

// SubirFlujoCajaSecuencial stores every group, header first and then its
// details, in a single transaction. Each group is balance-checked right after
// its details are written; any failure rolls the whole upload back.
func (r *FlujoCajaRepository) SubirFlujoCajaSecuencial(
	ctx context.Context,
	grupos []models.FlujoCajaGrupo,
	fechaMovimiento string,
	numeroIdentificacion string,
) ([]int64, string, error) {
	if r.db == nil {
		return nil, "", fmt.Errorf("error al subir flujo de caja: %w", ErrDatabaseUnavailable)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("error al subir flujo de caja: %w", err)
	}
	defer rollback(tx)

	r.lggr.Info("Iniciando subida de flujo de caja secuencialmente", zap.Int("grupos", len(grupos)))

	ids := make([]int64, 0, len(grupos))
	for i, grupo := range grupos {
		idx := i + 1
		id, err := r.InsertarEncabezado(ctx, tx, grupo.Encabezado, fechaMovimiento, numeroIdentificacion)
		if err != nil {
			return nil, "", fmt.Errorf("error al subir flujo de caja: %w", err)
		}
		ids = append(ids, id)

		for _, det := range grupo.Detalles {
			if err := r.InsertarDetalle(ctx, tx, det, id); err != nil {
				return nil, "", fmt.Errorf("error al subir flujo de caja: %w", err)
			}
		}

		ok, msg, err := r.ValidarSaldos(ctx, tx, id)
		if err != nil {
			return nil, "", fmt.Errorf("error al subir flujo de caja: %w", err)
		}
		r.lggr.Info(fmt.Sprintf("Validación de saldos para grupo %d (ID: %d): %s", idx, id, msg))
		if !ok {
			return nil, "", fmt.Errorf("Validación fallida en grupo %d (código: %s): %s", idx, grupo.Encabezado.CodigoContable, msg)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("error al subir flujo de caja: %w", err)
	}

	r.lggr.Info("Subida de flujo de caja completada exitosamente", zap.Int("encabezados", len(ids)))
	return ids, fmt.Sprintf("Flujo de caja subido exitosamente. %d encabezados procesados.", len(ids)), nil
}
