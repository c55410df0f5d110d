package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jtmarsh/latchkey"
	"github.com/jtmarsh/latchkey/api"
	"github.com/jtmarsh/latchkey/identity"
	"github.com/jtmarsh/latchkey/sessionstore"
)

// serverConfig is read from LATCHKEY_* environment variables; flags override
// the port and data directory.
type serverConfig struct {
	Port                  int    `env:"LATCHKEY_PORT" envDefault:"8080"`
	DataDir               string `env:"LATCHKEY_DATA_DIR" envDefault:"./data"`
	RequireTopTier        bool   `env:"LATCHKEY_REQUIRE_TOP_TIER"`
	SessionTimeoutMinutes int    `env:"LATCHKEY_SESSION_TIMEOUT_MINUTES" envDefault:"5"`
	AuthValiditySeconds   int    `env:"LATCHKEY_AUTH_VALIDITY_SECONDS"`

	// SeedEmail/SeedSecret preload one account into the in-memory identity
	// gateway so the demo surface has something to enroll.
	SeedEmail  string `env:"LATCHKEY_SEED_EMAIL" envDefault:"demo@example.com"`
	SeedSecret string `env:"LATCHKEY_SEED_SECRET" envDefault:"latchkey-demo"`
}

var (
	port    int
	dataDir string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the re-authentication demo server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := env.ParseAs[serverConfig]()
		if err != nil {
			return fmt.Errorf("failed to parse environment: %w", err)
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}

		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := sessionstore.NewBoltStoreFromFile(cfg.DataDir+"/session.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		defer store.Close()

		idp := identity.NewMemoryGateway()
		userID := idp.Register(cfg.SeedEmail, cfg.SeedSecret)

		core, err := latchkey.New(
			latchkey.WithSessionStore(store),
			latchkey.WithIdentityGateway(idp),
			latchkey.WithRequireTopTier(cfg.RequireTopTier),
			latchkey.WithSessionTimeoutMinutes(cfg.SessionTimeoutMinutes),
			latchkey.WithAuthValidity(cfg.AuthValiditySeconds),
		)
		if err != nil {
			return fmt.Errorf("failed to assemble core: %w", err)
		}

		a := api.New(core)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s)...\n", cfg.Port, cfg.DataDir)
		fmt.Printf("Seeded account %s (user %s) with temporary credential %q\n",
			cfg.SeedEmail, userID, cfg.SeedSecret)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
}
