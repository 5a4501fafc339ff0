package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/exsplitter/backend/internal/auth"
	"github.com/exsplitter/backend/internal/config"
	"github.com/exsplitter/backend/internal/handlers"
	"github.com/exsplitter/backend/internal/money"
	"github.com/exsplitter/backend/internal/service"
	"github.com/exsplitter/backend/internal/storage/sqlite"
	"github.com/exsplitter/backend/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogFormat, cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	rates := money.NewCachedRates(money.NewStaticRates(parseRates(cfg.Rates)))

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store)

	authService := service.NewAuthService(authenticator, jwtManager, slog.Default())
	tripService := service.NewTripService(store)
	ledgerService := service.NewLedgerService(store, rates)

	router := handlers.NewRouter(authService, tripService, ledgerService, jwtManager, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "address", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

// parseRates converts the configured FROM/TO -> rate strings into the table
// the rate provider expects. Viper lowercases map keys, so pairs are
// uppercased back to currency codes. Unparseable entries are skipped with a
// warning rather than failing startup.
func parseRates(raw map[string]string) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for pair, value := range raw {
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate <= 0 {
			slog.Warn("Skipping invalid exchange rate", "pair", pair, "value", value)
			continue
		}
		out[strings.ToUpper(pair)] = rate
	}
	return out
}
