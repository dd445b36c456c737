package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/cmd/meridian/cli"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/balances"
	"github.com/meridian-erp/meridian-erp/internal/ledger/corrections"
	"github.com/meridian-erp/meridian-erp/internal/ledger/journals"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCLI(os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Redis is optional for the API process: without it, journal
	// projections run only when the worker picks them up later.
	var jobsClient *jobs.Client
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, background enqueue disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		jobsClient, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
	}

	journalRepo := journals.NewRepository(dbpool)
	journalService := journals.NewService(journalRepo)
	journalsHandler := journals.NewHandler(logger, journalService, jobsClient)

	correctionService := corrections.NewService(journalRepo)
	correctionsHandler := corrections.NewHandler(logger, correctionService, jobsClient)

	balanceRepo := balances.NewRepository(dbpool)
	balanceService := balances.NewService(balanceRepo)
	balancesHandler := balances.NewHandler(logger, balanceService, jobsClient)

	accountRepo := accounts.NewRepository(dbpool)
	accountService := accounts.NewService(accountRepo)
	accountsHandler := accounts.NewHandler(logger, accountService)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	metrics := app.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		JournalsHandler:    journalsHandler,
		CorrectionsHandler: correctionsHandler,
		BalancesHandler:    balancesHandler,
		AccountsHandler:    accountsHandler,
		JobHandler:         jobHandler,
		Pool:               dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCLI handles `meridian jobs <rollup|stats>` operational commands.
func runJobsCLI(args []string) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		slog.Default().Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		slog.Default().Error("usage: meridian jobs <rollup|stats>")
		return 1
	}

	switch args[0] {
	case "rollup":
		fs := flag.NewFlagSet("rollup", flag.ContinueOnError)
		fiscalYear := fs.Int("fiscal-year", 0, "fiscal year of the period to roll up")
		month := fs.Int("month", 0, "month of the period to roll up")
		carry := fs.Bool("carry-forward", false, "seed next month's opening balances afterwards")
		jsonOut := fs.Bool("json", false, "print the result as JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		return jobsCLI.RollupCommand(context.Background(), cli.RollupOptions{
			FiscalYear:   *fiscalYear,
			Month:        *month,
			CarryForward: *carry,
			JSONOutput:   *jsonOut,
			Stdout:       os.Stdout,
			Stderr:       os.Stderr,
		})
	case "stats":
		return jobsCLI.StatsCommand(os.Stdout, os.Stderr)
	default:
		slog.Default().Error("unknown jobs command", slog.String("command", args[0]))
		return 1
	}
}
