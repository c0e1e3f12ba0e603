package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"excelsql/internal/config"
	"excelsql/internal/database"
	"excelsql/internal/logger"
	"excelsql/internal/server"
	"excelsql/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:           "excelsql",
		Short:         "Load Balance General and Flujo de Caja spreadsheets into SQL Server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-dir", "logs", "directory for rotating log files")
	pf.String("log-level", "info", "minimum log level")
	pf.String("db-driver", "sqlserver", "sqlserver, odbc or an ODBC driver name")
	pf.String("host", "0.0.0.0", "bind address")
	pf.Int("port", 8000, "HTTP port")
	pf.Int("workers", 4, "background job workers")
	pf.String("job-timeout", "300s", "per-job deadline")
	bindFlags(v, pf, map[string]string{
		"log_dir":     "log-dir",
		"log_level":   "log-level",
		"db_driver":   "db-driver",
		"bind_host":   "host",
		"port":        "port",
		"workers":     "workers",
		"job_timeout": "job-timeout",
	})

	root.AddCommand(
		newServeCmd(v),
		newCheckConnectionCmd(v),
		newMigrateCmd(v),
		newHealthcheckCmd(v),
		newTokenCmd(v),
	)
	return root
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}
}

func loadWithLogger(v *viper.Viper) (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, nil, err
	}
	lggr, cleanup, err := logger.New(logger.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: true})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, lggr, cleanup, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, lggr, cleanup, err := loadWithLogger(v)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(ctx, cfg, lggr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	lggr.Info("Shutting down server gracefully ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lggr.Error("Server Shutdown", zap.Error(err))
		return err
	}
	lggr.Info("Server exiting")
	return nil
}

func newCheckConnectionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check-connection",
		Short: "Print the database target, the registered drivers and ping the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Servidor: %s:%d\n", cfg.DB.Server, cfg.DB.Port)
			fmt.Fprintf(out, "Base de datos: %s\n", cfg.DB.Database)
			fmt.Fprintf(out, "Usuario: %s\n", cfg.DB.Username)
			fmt.Fprintf(out, "Driver: %s\n", cfg.DB.Driver)
			fmt.Fprintf(out, "Drivers registrados: %s\n", strings.Join(sql.Drivers(), ", "))

			if err := cfg.DB.Validate(); err != nil {
				fmt.Fprintf(out, "✗ Configuración incompleta: %v\n", err)
				return err
			}

			db, err := database.Open(cfg.DB)
			if err != nil {
				fmt.Fprintf(out, "✗ Error: %v\n", err)
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			status := database.TestConnection(ctx, db)
			if !status.Success {
				fmt.Fprintf(out, "✗ Error (%s): %s\n", status.Type, status.Error)
				return fmt.Errorf("connection failed: %s", status.Error)
			}
			fmt.Fprintln(out, "✓ Conexión exitosa")
			return nil
		},
	}
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and stored procedures when they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lggr, cleanup, err := loadWithLogger(v)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cfg.DB.Validate(); err != nil {
				return err
			}
			db, err := database.Connect(cmd.Context(), cfg.DB, lggr)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.RunMigrations(cmd.Context(), db, lggr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migraciones aplicadas")
			return nil
		},
	}
}

func newHealthcheckCmd(v *viper.Viper) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the liveness endpoint of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = fmt.Sprintf("http://127.0.0.1:%d/health", v.GetInt("port"))
			}
			return probe(cmd.Context(), url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "liveness URL (default http://127.0.0.1:$PORT/health)")
	return cmd
}

func probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed: %s", resp.Status)
	}
	return nil
}

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the log routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString("access_token_secret")
			if secret == "" {
				return fmt.Errorf("ACCESS_TOKEN_SECRET is not set")
			}
			tok, err := utils.GenerateAccessToken(subject, ttl, []byte(secret))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ops", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
