package database

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"excelsql/internal/config"
)

func testDBConfig() config.DBConfig {
	return config.DBConfig{
		Driver:         "sqlserver",
		Server:         "sql.example.com",
		Port:           1433,
		Database:       "Contabilidad",
		Username:       "app",
		Password:       "p@ss;word",
		Encrypt:        true,
		TDSVersion:     "8.0",
		ConnectTimeout: 15 * time.Second,
	}
}

func TestDriverAndDSN_Native(t *testing.T) {
	for _, driver := range []string{"", "sqlserver", "MSSQL"} {
		cfg := testDBConfig()
		cfg.Driver = driver

		name, dsn, err := DriverAndDSN(cfg)
		require.NoError(t, err, driver)
		assert.Equal(t, "mssql", name)

		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "sqlserver", u.Scheme)
		assert.Equal(t, "sql.example.com:1433", u.Host)
		assert.Equal(t, "app", u.User.Username())
		pw, _ := u.User.Password()
		assert.Equal(t, "p@ss;word", pw)

		q := u.Query()
		assert.Equal(t, "Contabilidad", q.Get("database"))
		assert.Equal(t, "true", q.Get("encrypt"))
		assert.Equal(t, "15", q.Get("connection timeout"))
		assert.Empty(t, q.Get("TrustServerCertificate"))
	}
}

func TestNativeDSN_TrustServerCertificate(t *testing.T) {
	cfg := testDBConfig()
	cfg.Encrypt = false
	cfg.TrustServerCertificate = true

	u, err := url.Parse(nativeDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "false", u.Query().Get("encrypt"))
	assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
}

func TestODBCDSN(t *testing.T) {
	dsn := odbcDSN(testDBConfig(), "ODBC Driver 18 for SQL Server")

	assert.True(t, strings.HasPrefix(dsn, "DRIVER={ODBC Driver 18 for SQL Server};"))
	assert.Contains(t, dsn, "SERVER=sql.example.com;")
	assert.Contains(t, dsn, "PORT=1433;")
	assert.Contains(t, dsn, "DATABASE=Contabilidad;")
	assert.Contains(t, dsn, "TDS_Version=8.0;")
	assert.Contains(t, dsn, "Encrypt=yes;")
	assert.NotContains(t, dsn, "TrustServerCertificate")
}

func TestDriverAndDSN_ODBC(t *testing.T) {
	cfg := testDBConfig()
	cfg.Driver = "odbc"

	name, dsn, err := DriverAndDSN(cfg)
	if !odbcAvailable {
		assert.ErrorIs(t, err, ErrODBCUnavailable)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, "odbc", name)
	assert.Contains(t, dsn, "DRIVER={FreeTDS};")
}

func TestTestConnection_NilDB(t *testing.T) {
	status := TestConnection(context.Background(), nil)
	assert.False(t, status.Success)
	assert.Equal(t, "config", status.Type)
}
