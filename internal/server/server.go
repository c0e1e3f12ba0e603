package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"excelsql/internal/config"
	"excelsql/internal/database"
	"excelsql/internal/handlers"
	"excelsql/internal/logger"
	"excelsql/internal/middlewares"
	"excelsql/internal/repositories"
	"excelsql/internal/routes"
	"excelsql/internal/services"
)

const purgeInterval = 10 * time.Minute

type Server struct {
	cfg  *config.Config
	lggr *zap.Logger

	http       *http.Server
	db         *sql.DB
	rdb        *redis.Client
	dispatcher *services.Dispatcher
	stopPurge  context.CancelFunc
}

// New wires repositories, services and handlers. An unreachable database is
// logged and tolerated: the server still starts and /api/balance/health
// reports the outage.
func New(ctx context.Context, cfg *config.Config, lggr *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, lggr: lggr}

	lggr.Info("Drivers database/sql registrados", zap.Strings("drivers", sql.Drivers()))
	s.db = s.connectDB(ctx)

	jobRepo, err := s.jobRepository(ctx)
	if err != nil {
		return nil, err
	}

	// Dependency injection
	jobService := services.NewJobService(jobRepo, lggr)
	s.dispatcher = services.NewDispatcher(jobService, cfg.Workers, cfg.JobQueueSize, cfg.JobTimeout, lggr)

	balanceRepo := repositories.NewBalanceGeneralRepository(s.db, lggr)
	flujoRepo := repositories.NewFlujoCajaRepository(s.db, lggr)
	balanceService := services.NewBalanceGeneralService(balanceRepo, jobService, cfg.UploadUser, lggr)
	flujoService := services.NewFlujoCajaService(flujoRepo, jobService, lggr)
	logService := services.NewLogService(cfg.LogDir, lggr)

	h := routes.Handlers{
		Health:    handlers.NewHealthHandler(balanceRepo, lggr),
		Balance:   handlers.NewUploadHandler(services.JobKindBalance, balanceService, jobService, s.dispatcher, cfg.UploadDir, lggr),
		FlujoCaja: handlers.NewUploadHandler(services.JobKindFlujoCaja, flujoService, jobService, s.dispatcher, cfg.UploadDir, lggr),
		Logs:      handlers.NewLogHandler(logService, lggr),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(lggr))
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	routes.RegisterRoutes(router, h, []byte(cfg.AccessTokenSecret))

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.dispatcher.Start()
	purgeCtx, cancel := context.WithCancel(context.Background())
	s.stopPurge = cancel
	go jobService.RunPurge(purgeCtx, purgeInterval, cfg.JobRetention)

	return s, nil
}

func (s *Server) connectDB(ctx context.Context) *sql.DB {
	if err := s.cfg.DB.Validate(); err != nil {
		s.lggr.Warn("database settings incomplete", zap.Error(err))
	}

	db, err := database.Connect(ctx, s.cfg.DB, s.lggr)
	if err != nil {
		logger.LogDatabaseConnection(s.lggr, false, map[string]any{
			"server":   s.cfg.DB.Server,
			"database": s.cfg.DB.Database,
			"error":    err.Error(),
		})
		// keep an unverified pool so the service recovers once the server is up
		db, err = database.Open(s.cfg.DB)
		if err != nil {
			s.lggr.Error("database unavailable", zap.Error(err))
			return nil
		}
		return db
	}
	logger.LogDatabaseConnection(s.lggr, true, nil)

	if s.cfg.DB.AutoMigrate {
		if err := database.RunMigrations(ctx, db, s.lggr); err != nil {
			s.lggr.Error("auto migration failed", zap.Error(err))
		}
	}
	return db
}

func (s *Server) jobRepository(ctx context.Context) (repositories.JobRepository, error) {
	if s.cfg.RedisAddr == "" {
		s.lggr.Info("job store: memory")
		return repositories.NewMemoryJobRepository(), nil
	}

	s.rdb = redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.rdb.Ping(pctx).Err(); err != nil {
		s.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", s.cfg.RedisAddr, err)
	}
	s.lggr.Info("job store: redis", zap.String("addr", s.cfg.RedisAddr))
	return repositories.NewRedisJobRepository(s.rdb, s.cfg.JobRetention), nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.lggr.Info("Server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains the job queue and closes the
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("job workers: %w", err))
	}
	s.stopPurge()
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}
