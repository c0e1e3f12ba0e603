package models

import "github.com/shopspring/decimal"

type FlujoCajaEncabezado struct {
	ExcelRow         int             `json:"excel_row"`
	CodigoContable   string          `json:"codigo_contable"`
	CuentaContable   string          `json:"cuenta_contable"`
	SaldoInicial     decimal.Decimal `json:"saldo_inicial"`
	Debito           decimal.Decimal `json:"debito"`
	Credito          decimal.Decimal `json:"credito"`
	SaldoTotalCuenta decimal.Decimal `json:"saldo_total_cuenta"`
}

type FlujoCajaDetalle struct {
	ExcelRow         int             `json:"excel_row"`
	CodigoContable   string          `json:"codigo_contable"`
	CuentaContable   string          `json:"cuenta_contable"`
	Comprobante      string          `json:"comprobante"`
	Secuencia        string          `json:"secuencia"`
	FechaElaboracion string          `json:"fecha_elaboracion"` // YYYY-MM-DD or empty
	Identificacion   string          `json:"identificacion"`
	Suc              string          `json:"suc"`
	NombreTercero    string          `json:"nombre_tercero"`
	Descripcion      string          `json:"descripcion"`
	Detalle          string          `json:"detalle"`
	CentroCosto      string          `json:"centro_costo"`
	Debito           decimal.Decimal `json:"debito"`
	Credito          decimal.Decimal `json:"credito"`
	SaldoMovimiento  decimal.Decimal `json:"saldo_movimiento"`
}

// FlujoCajaGrupo is an account header followed by its movements, in
// spreadsheet order.
type FlujoCajaGrupo struct {
	Encabezado FlujoCajaEncabezado `json:"encabezado"`
	Detalles   []FlujoCajaDetalle  `json:"detalles"`
}

// FlujoCajaResult is attached to a completed flujo de caja job.
type FlujoCajaResult struct {
	IDsEncabezados        []int64         `json:"ids_encabezados"`
	TotalEncabezados      int             `json:"total_encabezados"`
	TotalDetalles         int             `json:"total_detalles"`
	TotalDebitos          decimal.Decimal `json:"total_debitos"`
	TotalCreditos         decimal.Decimal `json:"total_creditos"`
	FechaMovimiento       string          `json:"fecha_movimiento"`
	IdentificacionCliente string          `json:"identificacion_cliente"`
}
