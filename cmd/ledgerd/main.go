// Command ledgerd runs the reference property ledger as a JSON-RPC node,
// persisting its state to SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propmarket.dapp/pmc/internal/config"
	"propmarket.dapp/pmc/internal/ledger"
	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/rpc"
)

func main() {
	cfg, _ := config.LoadConfig(os.Getenv("CONFIG_FILE"))

	var (
		listenFlag string
		dbFlag     string
	)
	flag.StringVar(&listenFlag, "listen", cfg.LedgerListen, "Address to serve JSON-RPC on")
	flag.StringVar(&dbFlag, "db", cfg.LedgerDBFile, "SQLite database file")
	flag.Parse()

	log := logger.NewSlog(logger.SlogConfig{
		Level: logger.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(log)

	store, err := ledger.NewStore(dbFlag)
	if err != nil {
		log.Error("open store", "db", dbFlag, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	state, err := ledger.NewState(store)
	if err != nil {
		log.Error("load ledger state", "error", err)
		os.Exit(1)
	}
	log.Info("ledger loaded", "db", dbFlag, "properties", state.Count())

	srv := &http.Server{
		Addr:              listenFlag,
		Handler:           rpc.NewServer(state),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("ledger node listening", "addr", listenFlag)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("ledger node exited", "error", err)
		os.Exit(1)
	}
	log.Info("ledger node stopped")
}
