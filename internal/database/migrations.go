package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// RunMigrations creates the tables and stored procedures the repositories
// rely on when they do not exist yet. Production databases already carry
// them; this is for development databases and integration tests.
func RunMigrations(ctx context.Context, db *sql.DB, lggr *zap.Logger) error {
	migrations := []string{
		createClientesTable,
		createBalanceGeneralTable,
		createLogCargasTable,
		createEncabezadoFlujoCajaTable,
		createFlujoCajaTable,
		createBalanceGeneralInsertar,
		createLogCargasInsertar,
		createEncabezadoFlujoCajaInsertar,
		createFlujoCajaInsertar,
	}

	for i, migration := range migrations {
		lggr.Info(fmt.Sprintf("Running migration %d/%d", i+1, len(migrations)))
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	lggr.Info("All migrations completed successfully")
	return nil
}

const createClientesTable = `
IF OBJECT_ID(N'dbo.Clientes', N'U') IS NULL
BEGIN
  CREATE TABLE dbo.Clientes (
    IdCliente INT IDENTITY(1,1) PRIMARY KEY,
    NumeroDocumento NVARCHAR(50) NOT NULL,
    RazonSocial NVARCHAR(255) NOT NULL
  );
  CREATE UNIQUE INDEX IX_Clientes_NumeroDocumento ON dbo.Clientes(NumeroDocumento);
END
`

const createBalanceGeneralTable = `
IF OBJECT_ID(N'dbo.BalanceGeneral', N'U') IS NULL
BEGIN
  CREATE TABLE dbo.BalanceGeneral (
    Id BIGINT IDENTITY(1,1) PRIMARY KEY,
    Nivel NVARCHAR(50) NOT NULL,
    Transaccional BIT NOT NULL DEFAULT 0,
    CodigoCuentaConble NVARCHAR(50) NOT NULL,
    NombreCuentaConble NVARCHAR(255) NOT NULL,
    Identificacion NVARCHAR(50) NULL,
    Sucursal NVARCHAR(50) NULL,
    NombreTercero NVARCHAR(255) NULL,
    SaldoInicial DECIMAL(20,2) NOT NULL DEFAULT 0,
    MovimientoDebito DECIMAL(20,2) NOT NULL DEFAULT 0,
    MovimientoCredito DECIMAL(20,2) NOT NULL DEFAULT 0,
    SaldoFinal DECIMAL(20,2) NOT NULL DEFAULT 0,
    MovimientoMes DECIMAL(20,2) NOT NULL DEFAULT 0,
    Fecha DATE NOT NULL,
    IdCliente INT NULL REFERENCES dbo.Clientes(IdCliente),
    FechaCreacion DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
  );
  CREATE INDEX IX_BalanceGeneral_Fecha_Cliente ON dbo.BalanceGeneral(Fecha, IdCliente);
END
`

const createLogCargasTable = `
IF OBJECT_ID(N'dbo.LogCargasBalanceGeneral', N'U') IS NULL
CREATE TABLE dbo.LogCargasBalanceGeneral (
  Id BIGINT IDENTITY(1,1) PRIMARY KEY,
  FechaCarga DATE NOT NULL,
  IdCliente INT NULL,
  NombreCliente NVARCHAR(255) NULL,
  TotalRegistros INT NOT NULL,
  TotalActivos DECIMAL(20,2) NOT NULL,
  TotalPasivos DECIMAL(20,2) NOT NULL,
  TotalPatrimonio DECIMAL(20,2) NOT NULL,
  TotalIngresos DECIMAL(20,2) NOT NULL,
  TotalGastos DECIMAL(20,2) NOT NULL,
  SumaSaldoInicial DECIMAL(20,2) NOT NULL,
  SumaDebito DECIMAL(20,2) NOT NULL,
  SumaCredito DECIMAL(20,2) NOT NULL,
  UsuarioCarga NVARCHAR(100) NOT NULL,
  Observaciones NVARCHAR(MAX) NULL,
  ArchivoOrigen NVARCHAR(400) NULL,
  CantidadErroresJerarquia INT NOT NULL,
  DiferenciaEcuacionContable DECIMAL(20,2) NOT NULL,
  Estado NVARCHAR(20) NOT NULL,
  TiempoEjecucionSegundos DECIMAL(10,2) NOT NULL,
  FechaRegistro DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
)
`

const createEncabezadoFlujoCajaTable = `
IF OBJECT_ID(N'dbo.EncabezadoFlujoCaja', N'U') IS NULL
CREATE TABLE dbo.EncabezadoFlujoCaja (
  Id BIGINT IDENTITY(1,1) PRIMARY KEY,
  CodigoContable NVARCHAR(50) NOT NULL,
  FechaElaboracion DATE NULL,
  SaldoInicial DECIMAL(20,2) NOT NULL DEFAULT 0,
  Debito DECIMAL(20,2) NOT NULL DEFAULT 0,
  Credito DECIMAL(20,2) NOT NULL DEFAULT 0,
  SaldoTotalCuenta DECIMAL(20,2) NOT NULL DEFAULT 0,
  FechaMovimiento DATE NOT NULL,
  NumeroIdentificacion NVARCHAR(50) NOT NULL
)
`

const createFlujoCajaTable = `
IF OBJECT_ID(N'dbo.FlujoCaja', N'U') IS NULL
CREATE TABLE dbo.FlujoCaja (
  Id BIGINT IDENTITY(1,1) PRIMARY KEY,
  CodigoContable NVARCHAR(50) NOT NULL,
  CuentaContable NVARCHAR(255) NULL,
  Comprobante NVARCHAR(50) NULL,
  Secuencia NVARCHAR(50) NULL,
  FechaElaboracion DATE NULL,
  Identificacion NVARCHAR(50) NULL,
  Suc NVARCHAR(50) NULL,
  NombreTercero NVARCHAR(255) NULL,
  Descripcion NVARCHAR(500) NULL,
  Detalle NVARCHAR(500) NULL,
  CentroCosto NVARCHAR(100) NULL,
  SaldoInicial DECIMAL(20,2) NULL,
  Debito DECIMAL(20,2) NOT NULL DEFAULT 0,
  Credito DECIMAL(20,2) NOT NULL DEFAULT 0,
  SaldoMovimiento DECIMAL(20,2) NOT NULL DEFAULT 0,
  IdEncabezadoFlujoCaja BIGINT NOT NULL REFERENCES dbo.EncabezadoFlujoCaja(Id)
)
`

const createBalanceGeneralInsertar = `
CREATE OR ALTER PROCEDURE dbo.BalanceGeneralInsertar
  @Nivel NVARCHAR(50),
  @Transaccional NVARCHAR(5),
  @CodigoCuentaContable NVARCHAR(50),
  @NombreCuentaContable NVARCHAR(255),
  @Identificacion NVARCHAR(50),
  @Sucursal NVARCHAR(50),
  @NombreTercero NVARCHAR(255),
  @SaldoInicial DECIMAL(20,2),
  @MovimientoDebito DECIMAL(20,2),
  @MovimientoCredito DECIMAL(20,2),
  @SaldoFinal DECIMAL(20,2),
  @Fecha NVARCHAR(8),
  @IdentificacionCliente NVARCHAR(50)
AS
BEGIN
  SET NOCOUNT ON;
  DECLARE @IdCliente INT = (
    SELECT TOP 1 IdCliente FROM dbo.Clientes WHERE NumeroDocumento = @IdentificacionCliente
  );
  INSERT INTO dbo.BalanceGeneral (
    Nivel, Transaccional, CodigoCuentaConble, NombreCuentaConble, Identificacion,
    Sucursal, NombreTercero, SaldoInicial, MovimientoDebito, MovimientoCredito,
    SaldoFinal, MovimientoMes, Fecha, IdCliente
  ) VALUES (
    @Nivel,
    CASE WHEN @Transaccional IN (N'Sí', N'Si') THEN 1 ELSE 0 END,
    @CodigoCuentaContable, @NombreCuentaContable, @Identificacion,
    @Sucursal, @NombreTercero, @SaldoInicial, @MovimientoDebito, @MovimientoCredito,
    @SaldoFinal, @MovimientoDebito - @MovimientoCredito,
    CONVERT(DATE, @Fecha, 112), @IdCliente
  );
END
`

const createLogCargasInsertar = `
CREATE OR ALTER PROCEDURE dbo.LogCargasBalanceGeneral_Insertar
  @FechaCarga NVARCHAR(8),
  @IdCliente INT,
  @NombreCliente NVARCHAR(255),
  @TotalRegistros INT,
  @TotalActivos DECIMAL(20,2),
  @TotalPasivos DECIMAL(20,2),
  @TotalPatrimonio DECIMAL(20,2),
  @TotalIngresos DECIMAL(20,2),
  @TotalGastos DECIMAL(20,2),
  @SumaSaldoInicial DECIMAL(20,2),
  @SumaDebito DECIMAL(20,2),
  @SumaCredito DECIMAL(20,2),
  @UsuarioCarga NVARCHAR(100),
  @Observaciones NVARCHAR(MAX),
  @ArchivoOrigen NVARCHAR(400),
  @CantidadErroresJerarquia INT,
  @DiferenciaEcuacionContable DECIMAL(20,2),
  @Estado NVARCHAR(20),
  @TiempoEjecucionSegundos DECIMAL(10,2)
AS
BEGIN
  SET NOCOUNT ON;
  INSERT INTO dbo.LogCargasBalanceGeneral (
    FechaCarga, IdCliente, NombreCliente, TotalRegistros, TotalActivos, TotalPasivos,
    TotalPatrimonio, TotalIngresos, TotalGastos, SumaSaldoInicial, SumaDebito, SumaCredito,
    UsuarioCarga, Observaciones, ArchivoOrigen, CantidadErroresJerarquia,
    DiferenciaEcuacionContable, Estado, TiempoEjecucionSegundos
  ) VALUES (
    CONVERT(DATE, @FechaCarga, 112), @IdCliente, @NombreCliente, @TotalRegistros, @TotalActivos, @TotalPasivos,
    @TotalPatrimonio, @TotalIngresos, @TotalGastos, @SumaSaldoInicial, @SumaDebito, @SumaCredito,
    @UsuarioCarga, @Observaciones, @ArchivoOrigen, @CantidadErroresJerarquia,
    @DiferenciaEcuacionContable, @Estado, @TiempoEjecucionSegundos
  );
END
`

const createEncabezadoFlujoCajaInsertar = `
CREATE OR ALTER PROCEDURE dbo.EncabezadoFlujoCajaInsertar
  @CodigoContable NVARCHAR(50),
  @FechaElaboracion DATE,
  @SaldoInicial DECIMAL(20,2),
  @Debito DECIMAL(20,2),
  @Credito DECIMAL(20,2),
  @SaldoTotalCuenta DECIMAL(20,2),
  @FechaMovimiento DATE,
  @NumeroIdentificacion NVARCHAR(50)
AS
BEGIN
  SET NOCOUNT ON;
  INSERT INTO dbo.EncabezadoFlujoCaja (
    CodigoContable, FechaElaboracion, SaldoInicial, Debito, Credito,
    SaldoTotalCuenta, FechaMovimiento, NumeroIdentificacion
  ) VALUES (
    @CodigoContable, @FechaElaboracion, @SaldoInicial, @Debito, @Credito,
    @SaldoTotalCuenta, @FechaMovimiento, @NumeroIdentificacion
  );
  SELECT CAST(SCOPE_IDENTITY() AS BIGINT) AS Id;
END
`

const createFlujoCajaInsertar = `
CREATE OR ALTER PROCEDURE dbo.FlujoCajaInsertar
  @CodigoContable NVARCHAR(50),
  @CuentaContable NVARCHAR(255),
  @Comprobante NVARCHAR(50),
  @Secuencia NVARCHAR(50),
  @FechaElaboracion DATE,
  @Identificacion NVARCHAR(50),
  @Suc NVARCHAR(50),
  @NombreTercero NVARCHAR(255),
  @Descripcion NVARCHAR(500),
  @Detalle NVARCHAR(500),
  @CentroCosto NVARCHAR(100),
  @SaldoInicial DECIMAL(20,2),
  @Debito DECIMAL(20,2),
  @Credito DECIMAL(20,2),
  @SaldoMovimiento DECIMAL(20,2),
  @IdEncabezadoFlujoCaja BIGINT
AS
BEGIN
  SET NOCOUNT ON;
  INSERT INTO dbo.FlujoCaja (
    CodigoContable, CuentaContable, Comprobante, Secuencia, FechaElaboracion,
    Identificacion, Suc, NombreTercero, Descripcion, Detalle, CentroCosto,
    SaldoInicial, Debito, Credito, SaldoMovimiento, IdEncabezadoFlujoCaja
  ) VALUES (
    @CodigoContable, @CuentaContable, @Comprobante, @Secuencia, @FechaElaboracion,
    @Identificacion, @Suc, @NombreTercero, @Descripcion, @Detalle, @CentroCosto,
    @SaldoInicial, @Debito, @Credito, @SaldoMovimiento, @IdEncabezadoFlujoCaja
  );
END
`
