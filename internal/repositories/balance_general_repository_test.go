package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"excelsql/internal/models"
)

func newBalanceRepo(t *testing.T) (*BalanceGeneralRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBalanceGeneralRepository(db, zap.NewNop()), mock
}

func balanceRows() []models.BalanceGeneralRow {
	return []models.BalanceGeneralRow{
		{
			ExcelRow:             9,
			Nivel:                "Clase",
			Transaccional:        "No",
			CodigoCuentaContable: "1",
			NombreCuentaContable: "ACTIVO",
			SaldoInicial:         decimal.RequireFromString("1000.50"),
			MovimientoDebito:     decimal.RequireFromString("200"),
			MovimientoCredito:    decimal.RequireFromString("100"),
			SaldoFinal:           decimal.RequireFromString("1100.50"),
		},
		{
			ExcelRow:             10,
			Nivel:                "Auxiliar",
			Transaccional:        "Sí",
			CodigoCuentaContable: "110505",
			NombreCuentaContable: "CAJA GENERAL",
			Identificacion:       "900123",
			Sucursal:             "0",
			NombreTercero:        "PROVEEDOR",
			SaldoFinal:           decimal.RequireFromString("50"),
		},
	}
}

func expectCliente(mock sqlmock.Sqlmock, id int64, nombre string) {
	mock.ExpectQuery(`FROM \[dbo\]\.\[Clientes\]`).
		WithArgs("800100").
		WillReturnRows(sqlmock.NewRows([]string{"IdCliente", "RazonSocial"}).AddRow(id, nombre))
}

func expectTotals(mock sqlmock.Sqlmock, registros int) {
	mock.ExpectQuery(`COUNT\(\*\)`).
		WithArgs("20240630", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).
			AddRow(registros, "1000.50", "200.00", "100.00", "1150.50", "100.00"))
	mock.ExpectQuery(`LEFT\(\[CodigoCuentaConble\], 1\) = '5'`).
		WithArgs("20240630", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"c1", "c2", "c3", "c4", "c5"}).
			AddRow("1100.50", "600", "500.50", "0", "0"))
	mock.ExpectQuery(`ABS\(ISNULL`).
		WithArgs("20240630", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"a", "p", "pt", "i", "g", "d"}).
			AddRow("1100.50", "600", "500.50", "0", "0", "0"))
	mock.ExpectQuery(`SELECT TOP 100`).
		WithArgs("20240630", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"Id", "Nivel", "Codigo", "Nombre", "Identificacion", "Tercero",
			"SI", "MD", "MC", "SF", "SC", "Dif",
		}).AddRow(int64(42), "Auxiliar", "110505", "CAJA GENERAL", "900123", "PROVEEDOR",
			"0", "0", "0", "50", "0", "50"))
}

func TestSaveWithTransactionAndValidations_Commit(t *testing.T) {
	repo, mock := newBalanceRepo(t)
	rows := balanceRows()

	expectCliente(mock, 7, "ACME S.A.S.")
	mock.ExpectBegin()
	mock.ExpectExec(`EXEC \[dbo\]\.\[BalanceGeneralInsertar\]`).
		WithArgs("Clase", "No", "1", "ACTIVO", "", "", "", 1000.5, 200.0, 100.0, 1100.5, "20240630", "800100").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`EXEC \[dbo\]\.\[BalanceGeneralInsertar\]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectTotals(mock, 2)
	mock.ExpectCommit()

	res, err := repo.SaveWithTransactionAndValidations(context.Background(), rows, "20240630", "800100")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Datos guardados y validados correctamente", res.Message)
	assert.Equal(t, 2, res.RowsInserted)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Cliente.IDCliente)
	assert.Equal(t, int64(7), *res.Cliente.IDCliente)
	assert.Equal(t, "ACME S.A.S.", res.Cliente.NombreCliente)
	require.NotNil(t, res.TotalesGenerales)
	assert.Equal(t, 2, res.TotalesGenerales.TotalRegistros)
	assert.True(t, res.TotalesClase.TotalClase1.Equal(decimal.RequireFromString("1100.50")))
	assert.True(t, res.Ecuacion.DiferenciaEcuacionContable.IsZero())
	assert.Equal(t, 1, res.ErroresEcuacionCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithTransactionAndValidations_InsertErrorRollsBack(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	expectCliente(mock, 7, "ACME S.A.S.")
	mock.ExpectBegin()
	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnError(errors.New("conversion failed"))
	mock.ExpectRollback()

	res, err := repo.SaveWithTransactionAndValidations(context.Background(), balanceRows(), "20240630", "800100")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Error insertando fila 10: conversion failed")
	assert.Equal(t, 0, res.RowsInserted)
	assert.Len(t, res.Errors, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithTransactionAndValidations_UnknownClient(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	mock.ExpectQuery(`FROM \[dbo\]\.\[Clientes\]`).
		WillReturnRows(sqlmock.NewRows([]string{"IdCliente", "RazonSocial"}))
	mock.ExpectBegin()
	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	res, err := repo.SaveWithTransactionAndValidations(context.Background(), balanceRows(), "20240630", "800100")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "No se encontró IdCliente para la identificación proporcionada", res.Message)
	assert.Equal(t, []string{ErrClientNotFound.Error()}, res.Errors)
	assert.Nil(t, res.Cliente.IDCliente)
	assert.Equal(t, models.ClienteDesconocido, res.Cliente.NombreCliente)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithTransactionAndValidations_NoRecordsRollsBack(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	expectCliente(mock, 7, "ACME S.A.S.")
	mock.ExpectBegin()
	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnResult(sqlmock.NewResult(0, 1))
	expectTotals(mock, 0)
	mock.ExpectRollback()

	res, err := repo.SaveWithTransactionAndValidations(context.Background(), balanceRows(), "20240630", "800100")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "No se insertaron registros", res.Message)
	assert.Equal(t, 0, res.RowsInserted)
	assert.NotNil(t, res.TotalesGenerales)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithTransactionAndValidations_BeginFails(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	expectCliente(mock, 7, "ACME S.A.S.")
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	res, err := repo.SaveWithTransactionAndValidations(context.Background(), balanceRows(), "20240630", "800100")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestGetClienteInfo_LookupErrorFallsBack(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	mock.ExpectQuery(`Clientes`).WillReturnError(errors.New("timeout"))

	info := repo.GetClienteInfo(context.Background(), "800100")
	assert.Nil(t, info.IDCliente)
	assert.Equal(t, models.ClienteDesconocido, info.NombreCliente)
}

func TestInsertLogCarga(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	mock.ExpectExec(`EXEC \[dbo\]\.\[LogCargasBalanceGeneral_Insertar\]`).
		WithArgs(
			"20240630", nil, models.ClienteDesconocido, 0,
			0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
			"EquipoPruebas", "Error", "balance.xlsx", 0, 0.0,
			models.EstadoCargaFallido, 1.23,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertLogCarga(context.Background(), models.LogCarga{
		FechaCarga:              "20240630",
		NombreCliente:           models.ClienteDesconocido,
		Estado:                  models.EstadoCargaFallido,
		UsuarioCarga:            "EquipoPruebas",
		Observaciones:           "Error",
		ArchivoOrigen:           "balance.xlsx",
		TiempoEjecucionSegundos: decimal.RequireFromString("1.2345"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowWrapsError(t *testing.T) {
	repo, mock := newBalanceRepo(t)

	mock.ExpectExec(`BalanceGeneralInsertar`).WillReturnError(errors.New("boom"))

	err := repo.InsertRow(context.Background(), balanceRows()[0], "20240630", "800100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 9")
}
