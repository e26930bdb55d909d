package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/config"
	"github.com/medivision/medivision/internal/domain/identity"
	"github.com/medivision/medivision/internal/domain/inventory"
	"github.com/medivision/medivision/internal/domain/sales"
	"github.com/medivision/medivision/internal/domain/scheduling"
	"github.com/medivision/medivision/internal/domain/statistics"
	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/db"
	"github.com/medivision/medivision/internal/platform/middleware"
	"github.com/medivision/medivision/internal/platform/notification"
	"github.com/medivision/medivision/internal/platform/validate"
	"github.com/medivision/medivision/internal/platform/worker"
)

const (
	jobTimeout      = time.Minute
	shutdownTimeout = 10 * time.Second
)

// server holds the HTTP app and the background pieces that must be stopped
// with it.
type server struct {
	echo  *echo.Echo
	stats *statistics.Service
}

func runServer() error {
	ctx := context.Background()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Close()
	logger := e.logger
	logger.Info().Str("env", e.cfg.Env).Str("timezone", e.loc.String()).Msg("connected to database")

	jobs, err := worker.New(e.cfg.StatsWorkers, jobTimeout, logger)
	if err != nil {
		return err
	}

	srv, err := newServer(e.cfg, logger, e.pool, e.loc, jobs, smsSender(e.cfg, logger))
	if err != nil {
		return err
	}

	sched, err := statistics.NewScheduler(srv.stats, e.cfg.StatsCron, logger)
	if err != nil {
		return err
	}
	sched.Start()

	go func() {
		addr := ":" + e.cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	sched.Stop(shutdownCtx)
	if err := jobs.Shutdown(shutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("background jobs still running at shutdown")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// smsSender talks to the gateway when one is configured and only logs
// otherwise.
func smsSender(cfg *config.Config, logger zerolog.Logger) notification.SMSSender {
	if cfg.SMSAccountSID == "" {
		return notification.NewLogSender(logger)
	}
	return notification.NewGatewaySender(notification.GatewayConfig{
		Edge:       cfg.SMSEdge,
		AccountSID: cfg.SMSAccountSID,
		AuthToken:  cfg.SMSAuthToken,
		From:       cfg.SMSFrom,
	})
}

// newServer wires repositories, services and routes. The pool is only
// dereferenced when a request reaches the database.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, loc *time.Location,
	jobs sales.JobSubmitter, sms notification.SMSSender) (*server, error) {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: len(cfg.CORSOrigins) > 0 && cfg.CORSOrigins[0] != "*",
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", db.LivenessHandler())
	e.GET("/health/ready", db.ReadinessHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	tokens := auth.NewTokenIssuer(cfg.SigningSecret(), cfg.JWTIssuer, cfg.JWTTTL)
	api := e.Group("/api/v1")
	protected := api.Group("", auth.JWTMiddleware(tokens, cfg.AuthCookieName))

	tx := db.NewTxManager(pool)

	// Identity
	users := identity.NewUserRepoPG(pool)
	doctors := identity.NewDoctorRepoPG(pool)
	patients := identity.NewPatientRepoPG(pool)
	identitySvc := identity.NewService(tx, users, doctors, patients, tokens, cfg.AllowAdminSignup)
	identity.NewHandler(identitySvc, identity.HandlerOptions{
		CookieName:   cfg.AuthCookieName,
		SecureCookie: cfg.IsProduction(),
		AuthLimiter: middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.AuthRateLimitRPS,
			BurstSize:         cfg.AuthRateBurst,
		}),
	}).RegisterRoutes(api, protected)

	// Scheduling
	schedulingSvc := scheduling.NewService(tx, scheduling.NewAppointmentRepoPG(pool), doctors, patients, loc)
	scheduling.NewHandler(schedulingSvc, identitySvc).RegisterRoutes(protected)

	// Retail back office
	barcodes, err := inventory.NewBarcodeGenerator(cfg.BarcodeNodeID)
	if err != nil {
		return nil, err
	}
	products := inventory.NewProductRepoPG(pool)
	inventory.NewHandler(inventory.NewService(products, barcodes)).RegisterRoutes(protected)

	statsSvc := statistics.NewService(statistics.NewRepoPG(pool), tx, loc, logger)
	statistics.NewHandler(statsSvc, jobs).RegisterRoutes(protected)

	salesSvc := sales.NewService(sales.Deps{
		Tx:     tx,
		Sales:  sales.NewSaleRepoPG(pool),
		Stock:  products,
		SMS:    sms,
		Jobs:   jobs,
		Stats:  statsSvc,
		Loc:    loc,
		Logger: logger,
	})
	sales.NewHandler(salesSvc).RegisterRoutes(protected)

	return &server{echo: e, stats: statsSvc}, nil
}
