/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the license allocation engine server: configuration,
  dependency wiring, graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse command-line flags
  2. Open SQLite store
  3. Load catalog/directory seed (required - the engine is specified against
     injected lookups, there is no built-in seed data)
  4. Wire ledger, importer, handlers, router
  5. Serve with graceful shutdown

CONFIGURATION:
  -port   HTTP port            (env PORT, default 8080)
  -db     SQLite database path (env DB_PATH, default licenses.db;
          ":memory:" for in-memory)
  -seed   JSON seed file path  (env SEED_PATH, default seed.json)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain for up to 30s, close
  the database, exit.

SEE ALSO:
  - api/server.go: router configuration
  - factory/seed.go: seed file format
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/warp/license-engine/api"
	"github.com/warp/license-engine/factory"
	"github.com/warp/license-engine/importer"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/store/sqlite"
)

func main() {
	// .env is optional; flags fall back to env, env falls back to defaults.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "licenses.db"), "SQLite database path")
	seedPath := flag.String("seed", envStr("SEED_PATH", "seed.json"), "JSON seed file (catalog, directory, pools)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	seed, err := factory.Load(*seedPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *seedPath).Msg("failed to load seed")
	}

	ctx := context.Background()
	if err := seed.Apply(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("failed to persist seeded pools")
	}

	led := ledger.New(store)
	imp := importer.NewEngine(seed.Directory, seed.Registry, store, led, log)
	handler := api.NewHandler(seed.Registry, seed.Directory, store, led, imp)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
