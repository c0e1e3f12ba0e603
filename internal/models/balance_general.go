package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceGeneralRow is one account line of a Balance General spreadsheet.
type BalanceGeneralRow struct {
	ExcelRow             int             `json:"excel_row"`
	Nivel                string          `json:"nivel"`
	Transaccional        string          `json:"transaccional"`
	CodigoCuentaContable string          `json:"codigo_cuenta_contable"`
	NombreCuentaContable string          `json:"nombre_cuenta_contable"`
	Identificacion       string          `json:"identificacion"`
	Sucursal             string          `json:"sucursal"`
	NombreTercero        string          `json:"nombre_tercero"`
	SaldoInicial         decimal.Decimal `json:"saldo_inicial"`
	MovimientoDebito     decimal.Decimal `json:"movimiento_debito"`
	MovimientoCredito    decimal.Decimal `json:"movimiento_credito"`
	SaldoFinal           decimal.Decimal `json:"saldo_final"`
}

// NormalizeTransaccional maps the spreadsheet flag to "Sí" or "No". Anything
// that is not a recognised yes defaults to "No".
func NormalizeTransaccional(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "Sí", "Si":
		return "Sí"
	default:
		return "No"
	}
}

// ClienteInfo is the Clientes row matched by document number. IDCliente is nil
// when the document is unknown.
type ClienteInfo struct {
	IDCliente     *int64 `json:"id_cliente"`
	NombreCliente string `json:"nombre_cliente"`
}

const ClienteDesconocido = "Cliente Desconocido"

type TotalesGenerales struct {
	TotalRegistros    int             `json:"total_registros"`
	SumaSaldoInicial  decimal.Decimal `json:"suma_saldo_inicial"`
	SumaDebito        decimal.Decimal `json:"suma_debito"`
	SumaCredito       decimal.Decimal `json:"suma_credito"`
	SumaSaldoFinal    decimal.Decimal `json:"suma_saldo_final"`
	SumaMovimientoMes decimal.Decimal `json:"suma_movimiento_mes"`
}

// TotalesPorClase sums |SaldoFinal| of the "Clase" level accounts by the first
// digit of the account code.
type TotalesPorClase struct {
	TotalClase1 decimal.Decimal `json:"total_clase_1"` // activos
	TotalClase2 decimal.Decimal `json:"total_clase_2"` // pasivos
	TotalClase3 decimal.Decimal `json:"total_clase_3"` // patrimonio
	TotalClase4 decimal.Decimal `json:"total_clase_4"` // ingresos
	TotalClase5 decimal.Decimal `json:"total_clase_5"` // gastos
}

// EcuacionContable checks activos = pasivos + patrimonio.
type EcuacionContable struct {
	Activos                    decimal.Decimal `json:"activos"`
	Pasivos                    decimal.Decimal `json:"pasivos"`
	Patrimonio                 decimal.Decimal `json:"patrimonio"`
	Ingresos                   decimal.Decimal `json:"ingresos"`
	Gastos                     decimal.Decimal `json:"gastos"`
	DiferenciaEcuacionContable decimal.Decimal `json:"diferencia_ecuacion_contable"`
}

// ErrorEcuacion is a stored row whose final balance differs from
// SaldoInicial + Debito - Credito by more than 0.01.
type ErrorEcuacion struct {
	ID                int64           `json:"id"`
	Nivel             string          `json:"nivel"`
	CodigoCuenta      string          `json:"codigo_cuenta"`
	NombreCuenta      string          `json:"nombre_cuenta"`
	Identificacion    string          `json:"identificacion"`
	NombreTercero     string          `json:"nombre_tercero"`
	SaldoInicial      decimal.Decimal `json:"saldo_inicial"`
	MovimientoDebito  decimal.Decimal `json:"movimiento_debito"`
	MovimientoCredito decimal.Decimal `json:"movimiento_credito"`
	SaldoFinal        decimal.Decimal `json:"saldo_final"`
	SaldoCalculado    decimal.Decimal `json:"saldo_calculado"`
	Diferencia        decimal.Decimal `json:"diferencia"`
}

// SaveResult reports a transactional Balance General upload.
type SaveResult struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message"`
	RowsInserted         int               `json:"rows_inserted"`
	Errors               []string          `json:"errors"`
	Cliente              ClienteInfo       `json:"cliente"`
	TotalesGenerales     *TotalesGenerales `json:"totales_generales,omitempty"`
	TotalesClase         *TotalesPorClase  `json:"totales_clase,omitempty"`
	Ecuacion             *EcuacionContable `json:"ecuacion,omitempty"`
	ErroresEcuacionCount int               `json:"errores_ecuacion_count"`
}

const (
	EstadoCargaExitoso = "EXITOSO"
	EstadoCargaFallido = "FALLIDO"
)

// LogCarga is an audit row of LogCargasBalanceGeneral.
type LogCarga struct {
	FechaCarga                 string
	IDCliente                  int64
	NombreCliente              string
	Estado                     string
	TotalRegistros             int
	TotalActivos               decimal.Decimal
	TotalPasivos               decimal.Decimal
	TotalPatrimonio            decimal.Decimal
	TotalIngresos              decimal.Decimal
	TotalGastos                decimal.Decimal
	SumaSaldoInicial           decimal.Decimal
	SumaDebito                 decimal.Decimal
	SumaCredito                decimal.Decimal
	UsuarioCarga               string
	Observaciones              string
	ArchivoOrigen              string
	CantidadErroresJerarquia   int
	DiferenciaEcuacionContable decimal.Decimal
	TiempoEjecucionSegundos    decimal.Decimal
}

// ValidationResult is the outcome of checking parsed rows before saving.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	TotalRows int      `json:"total_rows"`
}
