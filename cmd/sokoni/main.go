package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/njorogedev/sokoni/internal/audit"
	"github.com/njorogedev/sokoni/internal/broadcast"
	"github.com/njorogedev/sokoni/internal/config"
	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/engine"
	"github.com/njorogedev/sokoni/internal/events"
	"github.com/njorogedev/sokoni/internal/handler"
	"github.com/njorogedev/sokoni/internal/service"
	"github.com/njorogedev/sokoni/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	orderStore := store.NewOrderStore()
	portfolioStore := store.NewPortfolioStore()
	tradeStore := store.NewTradeStore()
	quoteStore := store.NewQuoteStore()

	// Fixed instrument catalog, seeded at startup.
	catalog := domain.NewSecurityCatalog()
	seedCatalog(catalog)

	// Event sinks. Both are optional; an unset path or broker list
	// simply disables the sink.
	var sinks []events.Sink

	var auditLog *audit.Log
	if cfg.AuditDBPath != "" {
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			logger.Error("failed to open audit log", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sinks = append(sinks, auditLog)
	}

	var publisher *broadcast.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = broadcast.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, publisher)
	}

	dispatcher := events.NewDispatcher(logger, cfg.EventBuffer, cfg.SinkTimeout, sinks...)

	// Engine.
	books := engine.NewBookManager()
	eng := engine.New(books, orderStore, portfolioStore, tradeStore, quoteStore, dispatcher, logger)
	expiryMgr := engine.NewExpiryManager(cfg.ExpirationInterval, books, dispatcher)

	// Services.
	orderSvc := service.NewOrderService(eng, expiryMgr, orderStore, portfolioStore, catalog)
	accountSvc := service.NewAccountService(portfolioStore, quoteStore, catalog)
	marketSvc := service.NewMarketService(eng, quoteStore, tradeStore, catalog)

	// Router.
	router := handler.NewRouter(accountSvc, orderSvc, marketSvc, catalog, logger)

	// Start background goroutines with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)
	go expiryMgr.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server first so no new events are
	// produced, then drain the dispatcher, then close the sinks.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	dispatcher.Wait()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("broadcast close error", slog.String("error", err.Error()))
		}
	}
	if auditLog != nil {
		if err := auditLog.Close(); err != nil {
			logger.Error("audit close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// seedCatalog registers the tradable instruments. The catalog is fixed
// for the lifetime of the process.
func seedCatalog(c *domain.SecurityCatalog) {
	c.Add(&domain.Security{Ticker: "SCOM", Name: "Safaricom PLC", Currency: "KES", LotSize: 100, Status: domain.SecurityStatusActive})
	c.Add(&domain.Security{Ticker: "EQTY", Name: "Equity Group Holdings", Currency: "KES", LotSize: 100, Status: domain.SecurityStatusActive})
	c.Add(&domain.Security{Ticker: "KCB", Name: "KCB Group", Currency: "KES", LotSize: 100, Status: domain.SecurityStatusActive})
	c.Add(&domain.Security{Ticker: "EABL", Name: "East African Breweries", Currency: "KES", LotSize: 100, Status: domain.SecurityStatusActive})
	c.Add(&domain.Security{Ticker: "NCBA", Name: "NCBA Group", Currency: "KES", LotSize: 100, Status: domain.SecurityStatusActive})
}
