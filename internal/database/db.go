package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"excelsql/internal/config"
)

const (
	// nativeDriverName is go-mssqldb's driver that rewrites "?" placeholders,
	// so the same statements run unchanged on the ODBC driver.
	nativeDriverName = "mssql"
	odbcDriverName   = "odbc"

	defaultODBCDriver = "FreeTDS"
)

// odbcAvailable is switched on by the odbc build tag.
var odbcAvailable = false

var ErrODBCUnavailable = errors.New("binary built without ODBC support (rebuild with -tags odbc)")

// DriverAndDSN resolves the database/sql driver and connection string for cfg.
// "sqlserver", "mssql" or an empty driver select the native TDS driver; "odbc"
// or any other value is taken as the name of an installed ODBC driver.
func DriverAndDSN(cfg config.DBConfig) (string, string, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlserver", "mssql":
		return nativeDriverName, nativeDSN(cfg), nil
	}
	if !odbcAvailable {
		return "", "", ErrODBCUnavailable
	}
	odbcDriver := cfg.Driver
	if strings.EqualFold(odbcDriver, "odbc") {
		odbcDriver = defaultODBCDriver
	}
	return odbcDriverName, odbcDSN(cfg, odbcDriver), nil
}

func nativeDSN(cfg config.DBConfig) string {
	u := &url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	q.Set("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		q.Set("TrustServerCertificate", "true")
	}
	if cfg.ConnectTimeout > 0 {
		q.Set("connection timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	q.Set("app name", "excelsql")
	u.RawQuery = q.Encode()
	return u.String()
}

func odbcDSN(cfg config.DBConfig, driver string) string {
	encrypt := "no"
	if cfg.Encrypt {
		encrypt = "yes"
	}
	parts := []string{
		fmt.Sprintf("DRIVER={%s}", driver),
		"SERVER=" + cfg.Server,
		"PORT=" + strconv.Itoa(cfg.Port),
		"DATABASE=" + cfg.Database,
		"UID=" + cfg.Username,
		"PWD=" + cfg.Password,
		"TDS_Version=" + cfg.TDSVersion,
		"Encrypt=" + encrypt,
	}
	if cfg.TrustServerCertificate {
		parts = append(parts, "TrustServerCertificate=yes")
	}
	return strings.Join(parts, ";") + ";"
}

// Open creates the connection pool without contacting the server.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	driver, dsn, err := DriverAndDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection pool: %w", driver, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return db, nil
}

// Ping checks the server, retrying transient failures.
func Ping(ctx context.Context, db *sql.DB, lggr *zap.Logger) error {
	return retry.Do(
		func() error {
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return db.PingContext(pctx)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			lggr.Warn("database ping failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

// Connect opens the pool and verifies it with Ping.
func Connect(ctx context.Context, cfg config.DBConfig, lggr *zap.Logger) (*sql.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	lggr.Info("Connecting to database",
		zap.String("server", fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.Username),
		zap.String("driver", cfg.Driver),
	)
	if err := Ping(ctx, db, lggr); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	lggr.Info("Database connection pool established successfully")
	return db, nil
}

// ConnectionStatus is the outcome of TestConnection.
type ConnectionStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Type    string `json:"type,omitempty"`
}

func TestConnection(ctx context.Context, db *sql.DB) ConnectionStatus {
	if db == nil {
		return ConnectionStatus{Success: false, Error: "database not configured", Type: "config"}
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return ConnectionStatus{Success: false, Error: err.Error(), Type: fmt.Sprintf("%T", err)}
	}
	return ConnectionStatus{Success: true, Message: "Conexión exitosa"}
}
