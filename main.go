// Package main is the entry point for the property marketplace client.
// It loads the wallet, connects to the ledger, starts the sync session and
// serves the dashboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"propmarket.dapp/pmc/internal/config"
	"propmarket.dapp/pmc/internal/docs"
	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/market"
	"propmarket.dapp/pmc/internal/rpc"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/wallet"
	"propmarket.dapp/pmc/internal/web"
)

func main() {
	cfg, _ := config.LoadConfig(os.Getenv("CONFIG_FILE"))

	log := logger.NewSlog(logger.SlogConfig{
		Level: logger.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(log)
	log.Info("property market client starting", "version", types.Version, "build", types.BuildTime)

	statusOpts := []logger.Option{logger.WithSlog(log)}
	if cfg.Fluent.Enabled {
		sink, err := logger.NewFluentSink(cfg.Fluent.Host, cfg.Fluent.Port, cfg.Fluent.TagPrefix)
		if err != nil {
			log.Warn("fluent forwarding disabled", "error", err)
		} else {
			defer sink.Close()
			statusOpts = append(statusOpts, logger.WithSink(sink))
		}
	}
	status := logger.New(cfg.StatusLogSize, statusOpts...)

	w, err := wallet.LoadOrCreate(cfg.KeyFile)
	if err != nil {
		fatal(log, "failed to load wallet", err)
	}
	log.Info("wallet loaded", "account", w.Address(), "key_file", cfg.KeyFile)

	l, closeLedger, err := openLedger(cfg, w, log)
	if err != nil {
		fatal(log, "failed to open ledger", err)
	}
	defer closeLedger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := market.New(l, market.Options{
		FetchConcurrency: cfg.FetchConcurrency,
		Status:           status,
		Log:              log,
	})
	if err := orch.Start(ctx); err != nil {
		// The dashboard shows the error; Refresh retries identity and read.
		log.Warn("initial sync failed", "error", err)
	}

	if err := ensurePortAvailable(cfg.Port); err != nil {
		fatal(log, fmt.Sprintf("port %d unavailable", cfg.Port), err)
	}

	server, err := web.NewServer(web.Options{
		Market:         orch,
		Logger:         status,
		Docs:           docs.NewService(cfg.DocsDir),
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		fatal(log, "failed to initialize web server", err)
	}
	status.Info("Property market client started")

	serverErrors := server.Start(ctx, fmt.Sprintf(":%d", cfg.Port))
	log.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))

	select {
	case <-ctx.Done():
	case err := <-serverErrors:
		if err != nil {
			fatal(log, "web server exited", err)
		}
	}
	log.Info("shutting down")
}

// openLedger returns the ledger collaborator: the JSON-RPC node at
// cfg.LedgerURL, or an in-process reference ledger in dev mode.
func openLedger(cfg *config.Config, w *wallet.Wallet, log *slog.Logger) (market.Ledger, func(), error) {
	if !cfg.DevLedger {
		log.Info("using ledger node", "url", cfg.LedgerURL)
		return rpc.NewClient(cfg.LedgerURL, w), func() {}, nil
	}

	store, err := ledger.NewStore(cfg.LedgerDBFile)
	if err != nil {
		return nil, nil, err
	}
	state, err := ledger.NewState(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	log.Info("using in-process dev ledger", "db", cfg.LedgerDBFile, "properties", state.Count())
	return ledger.NewLocal(state, w.Address()), func() { store.Close() }, nil
}

func ensurePortAvailable(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return listener.Close()
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
