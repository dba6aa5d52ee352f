package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mkats/lessonledger/internal/auth"
	"github.com/mkats/lessonledger/internal/booking"
	"github.com/mkats/lessonledger/internal/config"
	"github.com/mkats/lessonledger/internal/payments"
	"github.com/mkats/lessonledger/internal/server"
	"github.com/mkats/lessonledger/internal/storage/sqlite"
	"github.com/mkats/lessonledger/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.DBPath)

	gateway := payments.NewHTTPGateway(cfg.TransferURL)
	engine := booking.NewEngine(store, gateway, cfg.EscrowAccount)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	srv := server.New(engine, authenticator, jwtManager)

	// h2c allows HTTP/2 without TLS behind a terminating proxy.
	handler := h2c.NewHandler(srv.Routes(), &http2.Server{})

	addr := fmt.Sprintf(":%s", cfg.Port)
	slog.Info("lesson ledger server starting",
		"address", addr,
		"escrow_account", cfg.EscrowAccount,
		"transfer_url", cfg.TransferURL,
	)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
