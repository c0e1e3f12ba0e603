package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"excelsql/internal/models"
)

func newFlujoRepo(t *testing.T) (*FlujoCajaRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFlujoCajaRepository(db, zap.NewNop()), mock
}

func flujoGrupos() []models.FlujoCajaGrupo {
	return []models.FlujoCajaGrupo{
		{
			Encabezado: models.FlujoCajaEncabezado{
				CodigoContable: "11050501",
				CuentaContable: "CAJA GENERAL",
				SaldoInicial:   decimal.RequireFromString("1000"),
				Debito:         decimal.RequireFromString("300"),
				Credito:        decimal.RequireFromString("100"),
			},
			Detalles: []models.FlujoCajaDetalle{
				{CodigoContable: "11050501", Comprobante: "RC-1", Secuencia: "1", FechaElaboracion: "2024-06-01", Debito: decimal.RequireFromString("300")},
				{CodigoContable: "11050501", Comprobante: "CE-7", Secuencia: "2", Credito: decimal.RequireFromString("100")},
			},
		},
	}
}

func TestSubirFlujoCajaSecuencial_Commit(t *testing.T) {
	repo, mock := newFlujoRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`EXEC \[dbo\]\.\[EncabezadoFlujoCajaInsertar\]`).
		WithArgs("11050501", 1000.0, 300.0, 100.0, 0.0, "2024-06-30", "800100").
		WillReturnRows(sqlmock.NewRows([]string{"Id"}).AddRow(int64(15)))
	mock.ExpectExec(`EXEC \[dbo\]\.\[FlujoCajaInsertar\]`).
		WithArgs("11050501", "", "RC-1", "1", "2024-06-01", "", "", "", "", "", "", 300.0, 0.0, 0.0, int64(15)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`FlujoCajaInsertar`).
		WithArgs("11050501", "", "CE-7", "2", nil, "", "", "", "", "", "", 0.0, 100.0, 0.0, int64(15)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`LEFT JOIN \[dbo\]\.\[FlujoCaja\]`).
		WithArgs(int64(15)).
		WillReturnRows(sqlmock.NewRows([]string{"de", "ce", "dd", "cd"}).AddRow("300.00", "100.00", "300.00", "100.005"))
	mock.ExpectCommit()

	ids, msg, err := repo.SubirFlujoCajaSecuencial(context.Background(), flujoGrupos(), "2024-06-30", "800100")
	require.NoError(t, err)
	assert.Equal(t, []int64{15}, ids)
	assert.Equal(t, "Flujo de caja subido exitosamente. 1 encabezados procesados.", msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubirFlujoCajaSecuencial_SaldoMismatchRollsBack(t *testing.T) {
	repo, mock := newFlujoRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`EncabezadoFlujoCajaInsertar`).
		WillReturnRows(sqlmock.NewRows([]string{"Id"}).AddRow(int64(3)))
	mock.ExpectExec(`FlujoCajaInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`FlujoCajaInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`LEFT JOIN`).
		WillReturnRows(sqlmock.NewRows([]string{"de", "ce", "dd", "cd"}).AddRow("300", "100", "250", "100"))
	mock.ExpectRollback()

	ids, _, err := repo.SubirFlujoCajaSecuencial(context.Background(), flujoGrupos(), "2024-06-30", "800100")
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Equal(t, "Validación fallida en grupo 1 (código: 11050501): Los débitos no coinciden. Encabezado: 300, Detalles: 250", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubirFlujoCajaSecuencial_MissingHeaderID(t *testing.T) {
	repo, mock := newFlujoRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`EncabezadoFlujoCajaInsertar`).
		WillReturnRows(sqlmock.NewRows([]string{"Id"}).AddRow(nil))
	mock.ExpectRollback()

	_, _, err := repo.SubirFlujoCajaSecuencial(context.Background(), flujoGrupos(), "2024-06-30", "800100")
	require.Error(t, err)
	assert.ErrorIs(t, err, errMissingEncabezadoID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubirFlujoCajaSecuencial_DetailErrorRollsBack(t *testing.T) {
	repo, mock := newFlujoRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`EncabezadoFlujoCajaInsertar`).
		WillReturnRows(sqlmock.NewRows([]string{"Id"}).AddRow(int64(3)))
	mock.ExpectExec(`FlujoCajaInsertar`).WillReturnError(errors.New("string or binary data would be truncated"))
	mock.ExpectRollback()

	_, _, err := repo.SubirFlujoCajaSecuencial(context.Background(), flujoGrupos(), "2024-06-30", "800100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error al insertar detalle: string or binary data would be truncated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidarSaldos_CreditMismatch(t *testing.T) {
	repo, mock := newFlujoRepo(t)

	mock.ExpectQuery(`LEFT JOIN`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"de", "ce", "dd", "cd"}).AddRow("10", "20", "10", "19.5"))

	ok, msg, err := repo.ValidarSaldos(context.Background(), repo.db, 9)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Los créditos no coinciden. Encabezado: 20, Detalles: 19.5", msg)
}

func TestValidarSaldos_HeaderMissing(t *testing.T) {
	repo, mock := newFlujoRepo(t)

	mock.ExpectQuery(`LEFT JOIN`).
		WillReturnRows(sqlmock.NewRows([]string{"de", "ce", "dd", "cd"}))

	ok, msg, err := repo.ValidarSaldos(context.Background(), repo.db, 9)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "No se encontró el encabezado para validar", msg)
}
